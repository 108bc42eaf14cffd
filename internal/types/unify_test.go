package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Two ground type constructors of the same name/arity unify structurally,
// recursing into each argument position.
func TestUnifyGroundConstructorsStructurally(t *testing.T) {
	sub := NewSubstitution()
	a := Cons(Con(Int64), Con(Int64))
	b := Cons(Con(Int64), Con(Int64))
	_, err := Unify(sub, a, b)
	require.NoError(t, err)
}

// Mismatched constructor names are reported, not silently coerced.
func TestUnifyMismatchedConstructorsIsError(t *testing.T) {
	sub := NewSubstitution()
	_, err := Unify(sub, Con(Int64), Con(BoolCon))
	require.Error(t, err)
}

// Mismatched arity between two applications of the same constructor name
// is reported (defensive: arity mismatches never occur between kvasir's
// own fixed-arity builtins, but Unify must not panic on an indexing
// mismatch if it ever does).
func TestUnifyArityMismatchIsError(t *testing.T) {
	sub := NewSubstitution()
	a := &TCon{Name: "Pair", Args: []Type{Con(Int64)}}
	b := &TCon{Name: "Pair", Args: []Type{Con(Int64), Con(Int64)}}
	_, err := Unify(sub, a, b)
	require.Error(t, err)
}

// Binding a fresh variable to a type extends the substitution so that a
// later Apply resolves it.
func TestUnifyBindsVariableIntoSubstitution(t *testing.T) {
	sub := NewSubstitution()
	v := &TVar{ID: 1}
	sub, err := Unify(sub, v, Con(Int64))
	require.NoError(t, err)
	require.Equal(t, "Int64", Apply(sub, v).String())
}

// A variable may not be unified with a type that contains itself
// (spec.md §4.D's occurs check) -- this is what keeps inference from
// building an infinite type.
func TestUnifyOccursCheckRejectsSelfReferentialType(t *testing.T) {
	sub := NewSubstitution()
	v := &TVar{ID: 7}
	self := Con("Box", v)
	_, err := Unify(sub, v, self)
	require.Error(t, err)
}

// Unifying a variable with a constructor lowers the rank of every
// variable transitively reachable from that constructor to the binding
// variable's own rank -- this is what makes rank-based generalization
// sound when a variable escapes into an outer let-group through
// unification rather than direct instantiation.
func TestUnifyLowersRankOfNestedVariables(t *testing.T) {
	sub := NewSubstitution()
	inner := &TVar{ID: 2, Rank: 5}
	outer := &TVar{ID: 1, Rank: 1}
	boxed := Con("Box", inner)
	_, err := Unify(sub, outer, boxed)
	require.NoError(t, err)
	require.Equal(t, 1, inner.Rank)
}

// FreeVars reports every unbound variable reachable through a
// substitution, and none that have already been resolved to a ground
// type.
func TestFreeVarsExcludesResolvedVariables(t *testing.T) {
	sub := NewSubstitution()
	resolved := &TVar{ID: 1}
	unresolved := &TVar{ID: 2}
	sub, err := Unify(sub, resolved, Con(Int64))
	require.NoError(t, err)
	pair := Cons(resolved, unresolved)
	free := FreeVars(sub, pair)
	require.NotContains(t, free, 1)
	require.Contains(t, free, 2)
}

// Env.Lookup walks outward through parent frames and reports the depth at
// which a name was found; a child frame's own binding shadows the
// parent's.
func TestEnvLookupWalksOutwardAndReportsDepth(t *testing.T) {
	root := NewEnv()
	root.Bind("x", Mono(Con(Int64)))
	child := root.Child()
	child.Bind("y", Mono(Con(BoolCon)))

	scheme, depth, ok := child.Lookup("x")
	require.True(t, ok)
	require.Equal(t, 1, depth)
	require.Equal(t, "Int64", scheme.Body.String())

	scheme, depth, ok = child.Lookup("y")
	require.True(t, ok)
	require.Equal(t, 0, depth)
	require.Equal(t, "Bool", scheme.Body.String())

	_, _, ok = child.Lookup("z")
	require.False(t, ok)
}

// A child frame rebinding a name already bound in its parent shadows it
// without mutating the parent frame.
func TestEnvChildBindingShadowsWithoutMutatingParent(t *testing.T) {
	root := NewEnv()
	root.Bind("x", Mono(Con(Int64)))
	child := root.Child()
	child.Bind("x", Mono(Con(BoolCon)))

	scheme, _, _ := child.Lookup("x")
	require.Equal(t, "Bool", scheme.Body.String())
	scheme, _, _ = root.Lookup("x")
	require.Equal(t, "Int64", scheme.Body.String())
}
