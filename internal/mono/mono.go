// Package mono implements monomorphization (spec.md §4.E): starting from
// `main`, every polymorphic top-level binding is specialized once per
// concrete instantiation type reached by the call graph, to a fixpoint.
// Ad-hoc arithmetic/comparison intrinsics are resolved to their concrete
// runtime ABI extern symbol at this stage.
package mono

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sunholo/kvasir/internal/ast"
	"github.com/sunholo/kvasir/internal/infer"
	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/token"
	"github.com/sunholo/kvasir/internal/types"
)

// Mono carries one monomorphization run's state.
type Mono struct {
	res     *infer.Result
	defs    map[string]ast.Expr
	schemes map[string]*types.Scheme

	cache map[string]string // "name@typeKey" -> emitted symbol
	mono  map[string]bool    // names already emitted once, unspecialized

	order    []string
	bindings map[string]*ast.Binding

	keys []string // "name@typeKey" instance keys, in creation order, for -trace-mono
}

// Monomorphize produces the specialized program reachable from `main`,
// plus the ordered set of instance keys ("name@type") it realized --
// consumed by `-trace-mono` to diff the empty pre-fixpoint set against
// the realized post-fixpoint set with google/go-cmp.
func Monomorphize(prog *ast.Program, res *infer.Result) (*ast.Program, []string, error) {
	m := &Mono{
		res:      res,
		defs:     map[string]ast.Expr{},
		schemes:  map[string]*types.Scheme{},
		cache:    map[string]string{},
		mono:     map[string]bool{},
		bindings: map[string]*ast.Binding{},
	}
	for _, b := range prog.Top.Bindings {
		m.defs[b.Name] = b.Value
		if scheme, _, ok := res.Env.Lookup(b.Name); ok {
			m.schemes[b.Name] = scheme
		}
	}

	mainScheme, ok := m.schemes["main"]
	if !ok {
		return nil, nil, kerrors.New(kerrors.PhaseMono, kerrors.MONO002, prog.Top.Span(), "no type recorded for main")
	}
	if _, err := m.ensureSpecialization("main", mainScheme.Body); err != nil {
		return nil, nil, err
	}

	out := &ast.Program{Datas: prog.Datas, Externs: prog.Externs}
	bindings := make([]ast.Binding, 0, len(m.order))
	for _, sym := range m.order {
		bindings = append(bindings, *m.bindings[sym])
	}
	out.Top = &ast.Let{Bindings: bindings, Body: &ast.Var{Name: "main", Kind: ast.VarGlobal}}
	return out, m.keys, nil
}

// ensureSpecialization returns the emitted symbol name for name instantiated
// at concreteType, specializing its body (and, transitively, everything it
// calls) on first request.
func (m *Mono) ensureSpecialization(name string, concreteType types.Type) (string, error) {
	scheme, ok := m.schemes[name]
	if !ok {
		return "", kerrors.New(kerrors.PhaseMono, kerrors.MONO002, token.Span{}, "unknown global %q", name)
	}

	if len(scheme.Vars) == 0 {
		if m.mono[name] {
			return name, nil
		}
		m.mono[name] = true
		m.order = append(m.order, name)
		m.keys = append(m.keys, name+"@"+concreteType.String())
		m.bindings[name] = &ast.Binding{Name: name, Value: m.defs[name]}
		body, err := m.specialize(m.defs[name], nil)
		if err != nil {
			return "", err
		}
		m.bindings[name].Value = body
		return name, nil
	}

	key := name + "@" + concreteType.String()
	if sym, ok := m.cache[key]; ok {
		return sym, nil
	}
	mapping, err := instantiationMapping(scheme.Body, concreteType)
	if err != nil {
		return "", kerrors.New(kerrors.PhaseMono, kerrors.MONO002, m.defs[name].Span(),
			"cannot instantiate %q at %s: %s", name, concreteType, err.Error())
	}

	sym := name
	if name != "main" {
		sym = fmt.Sprintf("%s$%s", name, uuid.New().String()[:8])
	}
	m.cache[key] = sym
	m.order = append(m.order, sym)
	m.keys = append(m.keys, key)
	placeholder := &ast.Binding{Name: sym, Value: m.defs[name]}
	m.bindings[sym] = placeholder

	body, err := m.specialize(m.defs[name], mapping)
	if err != nil {
		return "", err
	}
	placeholder.Value = body
	return sym, nil
}

// instantiationMapping unifies schemeBody (still carrying the definition's
// raw, generalized TVar ids) against concrete, returning the ground type
// bound to every such id.
func instantiationMapping(schemeBody, concrete types.Type) (map[int]types.Type, error) {
	tmp := types.NewSubstitution()
	if _, err := types.Unify(tmp, schemeBody, concrete); err != nil {
		return nil, err
	}
	out := map[int]types.Type{}
	for id := range tmp {
		out[id] = types.Apply(tmp, &types.TVar{ID: id})
	}
	return out, nil
}

func substVars(t types.Type, mapping map[int]types.Type) types.Type {
	if mapping == nil {
		return t
	}
	switch t := t.(type) {
	case *types.TVar:
		if r, ok := mapping[t.ID]; ok {
			return r
		}
		return t
	case *types.TCon:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]types.Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = substVars(a, mapping)
		}
		return &types.TCon{Name: t.Name, Args: args}
	default:
		return t
	}
}

// specialize deep-copies e, rewriting every node's type through mapping and
// resolving global/builtin references to their concrete specialization.
func (m *Mono) specialize(e ast.Expr, mapping map[int]types.Type) (ast.Expr, error) {
	if e == nil {
		return nil, nil
	}
	switch n := e.(type) {
	case *ast.Lit:
		cp := *n
		cp.Ty = substVars(n.Ty, mapping)
		return &cp, nil

	case *ast.Var:
		cp := *n
		cp.Ty = substVars(n.Ty, mapping)
		switch n.Kind {
		case ast.VarGlobal:
			sym, err := m.ensureSpecialization(n.Name, cp.Ty)
			if err != nil {
				return nil, err
			}
			cp.Name = sym
		case ast.VarBuiltin:
			if types.IsIntrinsic(n.Name) {
				param, _, ok := types.IsArrow(cp.Ty)
				if !ok {
					return nil, kerrors.New(kerrors.PhaseMono, kerrors.MONO001, n.Span(),
						"intrinsic %q has non-function type after substitution", n.Name)
				}
				consT, ok := param.(*types.TCon)
				if !ok || consT.Name != types.ConsCon || len(consT.Args) != 2 {
					return nil, kerrors.New(kerrors.PhaseMono, kerrors.MONO001, n.Span(),
						"intrinsic %q argument is not a ground Cons type", n.Name)
				}
				operand, ok := consT.Args[0].(*types.TCon)
				if !ok {
					return nil, kerrors.New(kerrors.PhaseMono, kerrors.MONO001, n.Span(),
						"intrinsic %q operand type is still ambiguous; no numeric default applies here", n.Name)
				}
				sym, ok := types.ExternSymbol(n.Name, operand.Name)
				if !ok {
					return nil, kerrors.New(kerrors.PhaseMono, kerrors.MONO001, n.Span(),
						"no runtime extern for %s at type %s", n.Name, operand.Name)
				}
				cp.Kind = ast.VarExtern
				cp.Name = sym
			}
		}
		return &cp, nil

	case *ast.Ctor:
		cp := *n
		cp.Ty = substVars(n.Ty, mapping)
		return &cp, nil

	case *ast.Lam:
		body, err := m.specialize(n.Body, mapping)
		if err != nil {
			return nil, err
		}
		cp := *n
		cp.Ty = substVars(n.Ty, mapping)
		cp.Param = ast.Param{Name: n.Param.Name, Slot: substVars(n.Param.Slot, mapping)}
		cp.Body = body
		return &cp, nil

	case *ast.App:
		callee, err := m.specialize(n.Callee, mapping)
		if err != nil {
			return nil, err
		}
		arg, err := m.specialize(n.Arg, mapping)
		if err != nil {
			return nil, err
		}
		cp := *n
		cp.Ty = substVars(n.Ty, mapping)
		cp.Callee, cp.Arg = callee, arg
		return &cp, nil

	case *ast.Let:
		bindings := make([]ast.Binding, len(n.Bindings))
		for i, b := range n.Bindings {
			v, err := m.specialize(b.Value, mapping)
			if err != nil {
				return nil, err
			}
			bindings[i] = ast.Binding{Name: b.Name, Value: v}
		}
		body, err := m.specialize(n.Body, mapping)
		if err != nil {
			return nil, err
		}
		cp := *n
		cp.Ty = substVars(n.Ty, mapping)
		cp.Bindings, cp.Body = bindings, body
		return &cp, nil

	case *ast.If:
		cond, err := m.specialize(n.Cond, mapping)
		if err != nil {
			return nil, err
		}
		then, err := m.specialize(n.Then, mapping)
		if err != nil {
			return nil, err
		}
		els, err := m.specialize(n.Else, mapping)
		if err != nil {
			return nil, err
		}
		cp := *n
		cp.Ty = substVars(n.Ty, mapping)
		cp.Cond, cp.Then, cp.Else = cond, then, els
		return &cp, nil

	case *ast.Ascribe:
		inner, err := m.specialize(n.Expr, mapping)
		if err != nil {
			return nil, err
		}
		cp := *n
		cp.Ty = substVars(n.Ty, mapping)
		cp.Expr = inner
		return &cp, nil

	case *ast.Match:
		scrut, err := m.specialize(n.Scrutinee, mapping)
		if err != nil {
			return nil, err
		}
		arms := make([]ast.MatchArm, len(n.Arms))
		for i, a := range n.Arms {
			body, err := m.specialize(a.Body, mapping)
			if err != nil {
				return nil, err
			}
			arms[i] = ast.MatchArm{CtorName: a.CtorName, Vars: a.Vars, Body: body}
		}
		cp := *n
		cp.Ty = substVars(n.Ty, mapping)
		cp.Scrutinee, cp.Arms = scrut, arms
		return &cp, nil

	default:
		return nil, kerrors.New(kerrors.PhaseMono, kerrors.MONO001, e.Span(), "cannot specialize this expression")
	}
}
