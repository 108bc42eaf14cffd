package types

import (
	"fmt"
)

// Substitution maps a TVar's ID to its resolved Type. It threads through
// the inferencer functionally, in the style of the teacher's Unifier.Unify.
type Substitution map[int]Type

// NewSubstitution returns an empty substitution.
func NewSubstitution() Substitution { return Substitution{} }

// Apply resolves every TVar reachable from t through sub, path-compressing
// as it goes. The result contains no TVar bound in sub.
func Apply(sub Substitution, t Type) Type {
	switch t := t.(type) {
	case *TVar:
		if bound, ok := sub[t.ID]; ok {
			resolved := Apply(sub, bound)
			sub[t.ID] = resolved
			return resolved
		}
		return t
	case *TCon:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]Type, len(t.Args))
		changed := false
		for i, a := range t.Args {
			args[i] = Apply(sub, a)
			if args[i] != a {
				changed = true
			}
		}
		if !changed {
			return t
		}
		return &TCon{Name: t.Name, Args: args}
	case *Scheme:
		return &Scheme{Vars: t.Vars, Body: Apply(sub, t.Body)}
	default:
		return t
	}
}

// occursAndLowerRank reports whether the variable with id `v` occurs free in t (after
// resolving through sub), and lowers every TVar reachable from t to rank
// (the rank being bound), per spec.md §4.D.
func occursAndLowerRank(sub Substitution, v int, rank int, t Type) bool {
	t = Apply(sub, t)
	switch t := t.(type) {
	case *TVar:
		if t.ID == v {
			return true
		}
		if t.Rank > rank {
			t.Rank = rank
		}
		return false
	case *TCon:
		for _, a := range t.Args {
			if occursAndLowerRank(sub, v, rank, a) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Unify unifies t1 and t2 under sub, returning the extended substitution or
// a kerrors-free structural error (the inferencer wraps it with a span and
// TypeError kind).
func Unify(sub Substitution, t1, t2 Type) (Substitution, error) {
	t1 = Apply(sub, t1)
	t2 = Apply(sub, t2)

	if v1, ok := t1.(*TVar); ok {
		if v2, ok := t2.(*TVar); ok && v1.ID == v2.ID {
			return sub, nil
		}
		if occursAndLowerRank(sub, v1.ID, v1.Rank, t2) {
			return nil, fmt.Errorf("occurs check failed: %s occurs in %s", v1, t2)
		}
		sub[v1.ID] = t2
		return sub, nil
	}
	if v2, ok := t2.(*TVar); ok {
		return Unify(sub, v2, t1)
	}

	c1, ok1 := t1.(*TCon)
	c2, ok2 := t2.(*TCon)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("cannot unify %s with %s", t1, t2)
	}
	if c1.Name != c2.Name {
		return nil, fmt.Errorf("cannot unify type constructors: %s vs %s", c1.Name, c2.Name)
	}
	if len(c1.Args) != len(c2.Args) {
		return nil, fmt.Errorf("arity mismatch for %s: %d vs %d", c1.Name, len(c1.Args), len(c2.Args))
	}
	var err error
	for i := range c1.Args {
		sub, err = Unify(sub, c1.Args[i], c2.Args[i])
		if err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// FreeVars returns the set of unbound TVar IDs reachable from t under sub.
func FreeVars(sub Substitution, t Type) map[int]bool {
	out := map[int]bool{}
	var walk func(Type)
	walk = func(t Type) {
		t = Apply(sub, t)
		switch t := t.(type) {
		case *TVar:
			out[t.ID] = true
		case *TCon:
			for _, a := range t.Args {
				walk(a)
			}
		}
	}
	walk(t)
	return out
}
