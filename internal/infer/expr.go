package infer

import (
	"github.com/sunholo/kvasir/internal/ast"
	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/token"
	"github.com/sunholo/kvasir/internal/types"
)

// unifySpan wraps types.Unify, translating its plain structural error into
// a TypeError{Mismatch} Report anchored at sp.
func unifySpan(inf *Infer, t1, t2 types.Type, sp token.Span) (types.Substitution, error) {
	sub, err := types.Unify(inf.sub, t1, t2)
	if err != nil {
		return nil, kerrors.New(kerrors.PhaseType, kerrors.TYP001, sp, "%s", err.Error())
	}
	inf.sub = sub
	return sub, nil
}

// inferExpr infers e's type in env, annotating e.Type() in place.
func (inf *Infer) inferExpr(e ast.Expr, env *types.Env) (types.Type, error) {
	switch n := e.(type) {
	case *ast.Lit:
		return inf.inferLit(n)

	case *ast.Var:
		return inf.inferVar(n, env)

	case *ast.Ctor:
		info, ok := inf.ctorInfo[n.Name]
		if !ok {
			return nil, kerrors.New(kerrors.PhaseType, kerrors.TYP004, n.Span(), "unknown constructor %q", n.Name)
		}
		t := ctorFnType(info)
		n.DataName = info.DataName
		n.CtorIndex = info.Index
		n.SetType(t)
		return t, nil

	case *ast.Lam:
		return inf.inferLam(n, env)

	case *ast.App:
		return inf.inferApp(n, env)

	case *ast.Let:
		child, err := inf.processLetGroup(n.Bindings, env)
		if err != nil {
			return nil, err
		}
		bodyT, err := inf.inferExpr(n.Body, child)
		if err != nil {
			return nil, err
		}
		n.SetType(bodyT)
		return bodyT, nil

	case *ast.If:
		return inf.inferIf(n, env)

	case *ast.Ascribe:
		return inf.inferAscribe(n, env)

	case *ast.Match:
		return inf.inferMatch(n, env)

	default:
		return nil, kerrors.New(kerrors.PhaseType, kerrors.TYP004, e.Span(), "cannot infer type of this expression")
	}
}

// ctorFnType builds the curried function type for constructing a data
// value of info's owning type from its fields, e.g. `Field1 -> Field2 -> T`
// or just `T` for a nullary constructor.
func ctorFnType(info *CtorInfo) types.Type {
	result := types.Con(info.DataName)
	var t types.Type = result
	for i := len(info.Fields) - 1; i >= 0; i-- {
		t = types.Arrow(info.Fields[i], t)
	}
	return t
}

func (inf *Infer) inferLit(l *ast.Lit) (types.Type, error) {
	var t types.Type
	switch l.Kind {
	case ast.LitInt:
		v := inf.fresh()
		inf.defaultHint[v.ID] = types.Int64
		t = v
	case ast.LitFloat:
		v := inf.fresh()
		inf.defaultHint[v.ID] = types.Float64
		t = v
	case ast.LitUInt:
		t = types.Con(types.UInt64)
	case ast.LitBool:
		t = types.Con(types.BoolCon)
	case ast.LitString:
		// KString: a pragmatic built-in type backing literal string tokens
		// (an immutable byte-buffer pointer), distinct from the standard
		// library's `String = Empty | Cons UInt8 String` data type built
		// from source-level constructor applications. See DESIGN.md.
		t = types.Con(types.KStringCon)
	default:
		t = types.Con(types.NilCon)
	}
	l.SetType(t)
	return t, nil
}

func (inf *Infer) inferVar(v *ast.Var, env *types.Env) (types.Type, error) {
	scheme, _, ok := env.Lookup(v.Name)
	if !ok {
		return nil, kerrors.New(kerrors.PhaseType, kerrors.TYP004, v.Span(), "unbound identifier %q", v.Name)
	}
	t := inf.instantiate(scheme)
	v.SetType(t)
	return t, nil
}

func (inf *Infer) inferLam(l *ast.Lam, env *types.Env) (types.Type, error) {
	p := inf.fresh()
	child := env.Child()
	child.Bind(l.Param.Name, types.Mono(p))
	l.Param.Slot = p

	bodyT, err := inf.inferExpr(l.Body, child)
	if err != nil {
		return nil, err
	}
	t := types.Arrow(p, bodyT)
	l.SetType(t)
	return t, nil
}

func (inf *Infer) inferApp(a *ast.App, env *types.Env) (types.Type, error) {
	calleeT, err := inf.inferExpr(a.Callee, env)
	if err != nil {
		return nil, err
	}
	argT, err := inf.inferExpr(a.Arg, env)
	if err != nil {
		return nil, err
	}
	result := inf.fresh()
	if _, err := unifySpan(inf, calleeT, types.Arrow(argT, result), a.Span()); err != nil {
		return nil, err
	}
	a.SetType(result)
	return result, nil
}

func (inf *Infer) inferIf(i *ast.If, env *types.Env) (types.Type, error) {
	condT, err := inf.inferExpr(i.Cond, env)
	if err != nil {
		return nil, err
	}
	if _, err := unifySpan(inf, condT, types.Con(types.BoolCon), i.Cond.Span()); err != nil {
		return nil, err
	}
	thenT, err := inf.inferExpr(i.Then, env)
	if err != nil {
		return nil, err
	}
	elseT, err := inf.inferExpr(i.Else, env)
	if err != nil {
		return nil, err
	}
	if _, err := unifySpan(inf, thenT, elseT, i.Span()); err != nil {
		return nil, err
	}
	t := types.Apply(inf.sub, thenT)
	i.SetType(t)
	return t, nil
}

func (inf *Infer) inferAscribe(a *ast.Ascribe, env *types.Env) (types.Type, error) {
	innerT, err := inf.inferExpr(a.Expr, env)
	if err != nil {
		return nil, err
	}
	params := map[string]*types.TVar{}
	wantT, err := inf.resolveTypeExpr(a.TypeExpr, params, a.Span())
	if err != nil {
		return nil, err
	}
	if _, err := unifySpan(inf, innerT, wantT, a.Span()); err != nil {
		return nil, err
	}
	t := types.Apply(inf.sub, wantT)
	a.SetType(t)
	return t, nil
}

func (inf *Infer) inferMatch(m *ast.Match, env *types.Env) (types.Type, error) {
	scrutT, err := inf.inferExpr(m.Scrutinee, env)
	if err != nil {
		return nil, err
	}

	var resultT types.Type
	for idx, arm := range m.Arms {
		info, ok := inf.ctorInfo[arm.CtorName]
		if !ok {
			return nil, kerrors.New(kerrors.PhaseType, kerrors.TYP004, m.Span(), "unknown constructor %q in case arm", arm.CtorName)
		}
		if _, err := unifySpan(inf, scrutT, types.Con(info.DataName), m.Scrutinee.Span()); err != nil {
			return nil, err
		}
		if len(arm.Vars) != len(info.Fields) {
			return nil, kerrors.New(kerrors.PhaseType, kerrors.TYP003, m.Span(),
				"%s expects %d field binder(s), got %d", arm.CtorName, len(info.Fields), len(arm.Vars))
		}
		child := env.Child()
		for i, name := range arm.Vars {
			child.Bind(name, types.Mono(info.Fields[i]))
		}
		armT, err := inf.inferExpr(arm.Body, child)
		if err != nil {
			return nil, err
		}
		if idx == 0 {
			resultT = armT
		} else if _, err := unifySpan(inf, resultT, armT, arm.Body.Span()); err != nil {
			return nil, err
		}
	}
	resultT = types.Apply(inf.sub, resultT)
	m.SetType(resultT)
	return resultT, nil
}
