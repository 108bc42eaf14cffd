// Package infer implements the global Hindley–Milner type inferencer
// (spec.md §4.D): whole-program letrec generalization via SCC
// decomposition of the top-level call graph, rank-based generalization,
// ascription-driven bidirectional hints, and numeric-literal defaulting.
package infer

import (
	"github.com/sunholo/kvasir/internal/ast"
	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/token"
	"github.com/sunholo/kvasir/internal/types"
)

// Result is the outcome of a successful whole-program inference pass.
type Result struct {
	Env    *types.Env
	Sub    types.Substitution
	Ctors  map[string]*CtorInfo
	DataOf map[string]string // ctor name -> owning data type name
}

// CtorInfo records a data constructor's field types, owning type and tag
// index.
type CtorInfo struct {
	DataName string
	Index    int
	Fields   []types.Type // resolved field types, in declaration order
}

// Infer carries the mutable state of one whole-program inference run:
// the next fresh TVar id, the accumulated substitution, and the current
// generalization rank.
type Infer struct {
	nextVar int
	sub     types.Substitution
	rank    int

	dataArity map[string]int
	ctorInfo  map[string]*CtorInfo
	ctorOwner map[string]string

	defaultHint map[int]string // TVar id -> "Int64"/"Float64", for literal defaulting

	externTypes map[string]types.Type
	externSpans map[string]token.Span
}

func (inf *Infer) fresh() *types.TVar {
	v := &types.TVar{ID: inf.nextVar, Rank: inf.rank}
	inf.nextVar++
	return v
}

// Run performs whole-program inference over prog, returning the final
// environment (every global bound to its generalized scheme) and the
// substitution needed to read ground types off any AST node.
func Run(prog *ast.Program) (*Result, error) {
	inf := &Infer{
		sub:         types.NewSubstitution(),
		dataArity:   map[string]int{},
		ctorInfo:    map[string]*CtorInfo{},
		ctorOwner:   map[string]string{},
		defaultHint: map[int]string{},
		externTypes: map[string]types.Type{},
		externSpans: map[string]token.Span{},
	}

	env := types.NewGlobalEnv(&inf.nextVar)

	if err := inf.registerData(prog.Datas); err != nil {
		return nil, err
	}
	if err := inf.registerExterns(prog.Externs, env); err != nil {
		return nil, err
	}

	finalEnv, err := inf.processLetGroup(prog.Top.Bindings, env)
	if err != nil {
		return nil, err
	}
	mainT, err := inf.inferExpr(prog.Top.Body, finalEnv)
	if err != nil {
		return nil, err
	}
	prog.Top.SetType(mainT)

	if err := inf.checkExternsGround(prog.Externs); err != nil {
		return nil, err
	}

	for _, b := range prog.Top.Bindings {
		inf.resolveNode(b.Value)
	}
	inf.resolveNode(prog.Top.Body)

	dataOf := map[string]string{}
	for name, info := range inf.ctorInfo {
		dataOf[name] = info.DataName
	}
	return &Result{Env: finalEnv, Sub: inf.sub, Ctors: inf.ctorInfo, DataOf: dataOf}, nil
}

func (inf *Infer) registerData(datas []*ast.DataDecl) error {
	for _, d := range datas {
		inf.dataArity[d.Name] = 0
		for idx, c := range d.Ctors {
			params := map[string]*types.TVar{}
			fields := make([]types.Type, len(c.Fields))
			for i, ft := range c.Fields {
				t, err := inf.resolveTypeExpr(ft, params, d.Span())
				if err != nil {
					return err
				}
				fields[i] = t
			}
			inf.ctorInfo[c.Name] = &CtorInfo{DataName: d.Name, Index: idx, Fields: fields}
			inf.ctorOwner[c.Name] = d.Name
		}
	}
	return nil
}

func (inf *Infer) registerExterns(externs []*ast.Extern, env *types.Env) error {
	for _, ext := range externs {
		params := map[string]*types.TVar{}
		t, err := inf.resolveTypeExpr(ext.TypeExpr, params, ext.Span())
		if err != nil {
			return err
		}
		inf.externTypes[ext.Name] = t
		inf.externSpans[ext.Name] = ext.Span()
		env.Bind(ext.Name, types.Mono(t))
	}
	return nil
}

// checkExternsGround enforces spec.md §4.E: "extern declarations ... must
// be fully ground after inference." Any surviving TVar is reported as
// TypeError{Ambiguous}.
func (inf *Infer) checkExternsGround(externs []*ast.Extern) error {
	for _, ext := range externs {
		resolved := types.Apply(inf.sub, inf.externTypes[ext.Name])
		if len(types.FreeVars(inf.sub, resolved)) > 0 {
			return kerrors.New(kerrors.PhaseType, kerrors.TYP005, inf.externSpans[ext.Name],
				"extern %q has a non-ground type after inference: %s", ext.Name, resolved)
		}
	}
	return nil
}

// generalize turns placeholder's final (substituted) type into a Scheme,
// quantifying only the free variables whose rank is at least level (i.e.
// introduced within this let-group, never escaped to an enclosing lambda
// parameter or outer let) — spec.md §4.D's rank-based generalization. Any
// variable still carrying a numeric-literal default hint is defaulted
// instead of quantified, including a hinted variable that unification has
// bound to another still-free variable.
func (inf *Infer) generalize(t types.Type, level int) *types.Scheme {
	t = types.Apply(inf.sub, t)
	free := freeTVars(inf.sub, t)
	for id, hint := range inf.defaultHint {
		if v, ok := types.Apply(inf.sub, &types.TVar{ID: id}).(*types.TVar); ok && free[v.ID] != nil {
			inf.sub[v.ID] = types.Con(hint)
		}
	}
	var vars []int
	for id, v := range free {
		if _, defaulted := inf.sub[id]; defaulted {
			continue
		}
		if v.Rank < level {
			continue // bound at an enclosing, shallower scope: not ours to quantify
		}
		vars = append(vars, id)
	}
	return &types.Scheme{Vars: vars, Body: types.Apply(inf.sub, t)}
}

// freeTVars is types.FreeVars but keeps the *TVar pointer (for its Rank)
// instead of discarding it down to a bare id.
func freeTVars(sub types.Substitution, t types.Type) map[int]*types.TVar {
	out := map[int]*types.TVar{}
	var walk func(types.Type)
	walk = func(t types.Type) {
		t = types.Apply(sub, t)
		switch t := t.(type) {
		case *types.TVar:
			out[t.ID] = t
		case *types.TCon:
			for _, a := range t.Args {
				walk(a)
			}
		}
	}
	walk(t)
	return out
}

func (inf *Infer) instantiate(s *types.Scheme) types.Type {
	if len(s.Vars) == 0 {
		return s.Body
	}
	mapping := map[int]types.Type{}
	for _, v := range s.Vars {
		mapping[v] = inf.fresh()
	}
	return substituteVars(s.Body, mapping)
}

func substituteVars(t types.Type, mapping map[int]types.Type) types.Type {
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
			args[i] = substituteVars(a, mapping)
		}
		return &types.TCon{Name: t.Name, Args: args}
	default:
		return t
	}
}

// resolveNode applies the final substitution to e's type and every
// descendant's, in place: a mutually-recursive binding's Var occurrences
// are typed against their group's placeholder before generalization
// finalizes it, so one closing pass over the whole program is needed to
// leave no free unification variable on any node (spec.md §8 invariant).
func (inf *Infer) resolveNode(e ast.Expr) {
	if e == nil {
		return
	}
	e.SetType(types.Apply(inf.sub, e.Type()))
	switch n := e.(type) {
	case *ast.Lam:
		inf.resolveNode(n.Body)
	case *ast.App:
		inf.resolveNode(n.Callee)
		inf.resolveNode(n.Arg)
	case *ast.Let:
		for _, b := range n.Bindings {
			inf.resolveNode(b.Value)
		}
		inf.resolveNode(n.Body)
	case *ast.If:
		inf.resolveNode(n.Cond)
		inf.resolveNode(n.Then)
		inf.resolveNode(n.Else)
	case *ast.Ascribe:
		inf.resolveNode(n.Expr)
	case *ast.Match:
		inf.resolveNode(n.Scrutinee)
		for _, a := range n.Arms {
			inf.resolveNode(a.Body)
		}
	}
}

// processLetGroup types one mutually-recursive binding group (the
// top-level letrec, or a nested `let`): it decomposes the group into SCCs,
// types each component at a fresh rank with the others' names bound
// monomorphically to a placeholder, then generalizes.
func (inf *Infer) processLetGroup(bindings []ast.Binding, parentEnv *types.Env) (*types.Env, error) {
	env := parentEnv.Child()
	byName := map[string]ast.Expr{}
	for _, b := range bindings {
		byName[b.Name] = b.Value
	}

	for _, comp := range buildCallGraph(bindings).sccs() {
		inf.rank++
		placeholders := map[string]*types.TVar{}
		for _, name := range comp {
			p := inf.fresh()
			placeholders[name] = p
			env.Bind(name, types.Mono(p))
		}
		for _, name := range comp {
			t, err := inf.inferExpr(byName[name], env)
			if err != nil {
				return nil, err
			}
			if _, err := unifySpan(inf, placeholders[name], t, byName[name].Span()); err != nil {
				return nil, err
			}
		}
		for _, name := range comp {
			scheme := inf.generalize(placeholders[name], inf.rank)
			env.Bind(name, scheme)
		}
		inf.rank--
	}
	return env, nil
}
