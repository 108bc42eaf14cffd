// Package lower implements closure conversion (spec.md §4.F): every
// surviving ast.Lam is lifted to a top-level ir.Func; a lambda that closes
// over names from its enclosing scope is instead represented as a
// MakeClosure allocating its captured environment alongside a reference to
// the lifted function.
package lower

import (
	"fmt"

	"github.com/sunholo/kvasir/internal/ast"
	"github.com/sunholo/kvasir/internal/ir"
	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/types"
)

// Lowerer accumulates the lifted top-level functions produced while
// lowering one monomorphized program.
type Lowerer struct {
	funcs   []*ir.Func
	ctors   map[string]ctorInfo
	counter int
}

type ctorInfo struct {
	dataName string
	tag      int32
	arity    int
}

// Lower converts prog (already monomorphized: every node carries a ground
// type) into an ir.Program.
func Lower(prog *ast.Program, dataOf map[string]string) (*ir.Program, error) {
	l := &Lowerer{ctors: map[string]ctorInfo{}}
	for _, d := range prog.Datas {
		for idx, c := range d.Ctors {
			l.ctors[c.Name] = ctorInfo{dataName: d.Name, tag: int32(idx), arity: len(c.Fields)}
		}
	}

	for _, b := range prog.Top.Bindings {
		if err := l.lowerTopBinding(b.Name, b.Value); err != nil {
			return nil, err
		}
	}

	return &ir.Program{Funcs: l.funcs, Entry: "main"}, nil
}

// lowerTopBinding lowers one top-level definition. A definition whose value
// is (a chain of) Lam becomes a Func of that name directly — a top-level
// binding has no enclosing locals, so its outermost Lam never captures
// anything itself, though any Lam NESTED inside its body may.
func (l *Lowerer) lowerTopBinding(name string, value ast.Expr) error {
	if lam, ok := value.(*ast.Lam); ok {
		body, err := l.lowerExpr(lam.Body, map[string]bool{lam.Param.Name: true})
		if err != nil {
			return err
		}
		paramT, resultT, _ := types.IsArrow(lam.Type())
		l.funcs = append(l.funcs, &ir.Func{
			Name:      name,
			Param:     lam.Param.Name,
			ParamType: paramT,
			RetType:   resultT,
			Body:      body,
		})
		return nil
	}

	// A non-function top-level value (e.g. a literal constant): represent
	// as a nullary Func the entry/caller reads by calling with no capture
	// state, matching the runtime's uniform "every global is a Func" shape.
	body, err := l.lowerExpr(value, map[string]bool{})
	if err != nil {
		return err
	}
	l.funcs = append(l.funcs, &ir.Func{Name: name, RetType: value.Type(), Body: body})
	return nil
}

// lowerExpr lowers e to IR; locals is the set of names bound in the
// current function (parameter, captures already materialized as
// LocalRefs, and any `let`-bound names) — anything else referenced is
// either a GlobalRef or, for a nested Lam, a capture candidate.
func (l *Lowerer) lowerExpr(e ast.Expr, locals map[string]bool) (ir.Node, error) {
	switch n := e.(type) {
	case *ast.Lit:
		return lowerLit(n), nil

	case *ast.Var:
		switch n.Kind {
		case ast.VarLocal:
			return &ir.LocalRef{Base: ir.Base{Ty: n.Type()}, Name: n.Name}, nil
		case ast.VarGlobal:
			return &ir.GlobalRef{Base: ir.Base{Ty: n.Type()}, Symbol: n.Name}, nil
		case ast.VarExtern:
			return &ir.ExternRef{Base: ir.Base{Ty: n.Type()}, Symbol: n.Name}, nil
		case ast.VarBuiltin:
			// A bare, unapplied cons/car/cdr reference (not the common
			// fully-applied case, which App below recognizes directly):
			// lowered to a GlobalRef of that name. internal/runtime defines
			// no cons/car/cdr symbol, so such a reference is left undefined.
			return &ir.GlobalRef{Base: ir.Base{Ty: n.Type()}, Symbol: n.Name}, nil
		default:
			return nil, kerrors.New(kerrors.PhaseLower, kerrors.LOW001, n.Span(), "unresolved variable %q reached lowering", n.Name)
		}

	case *ast.Ctor:
		return l.lowerCtorRef(n)

	case *ast.Lam:
		return l.liftLambda(n, locals)

	case *ast.App:
		if node, ok, err := l.lowerBuiltinApp(n, locals); ok || err != nil {
			return node, err
		}
		fn, err := l.lowerExpr(n.Callee, locals)
		if err != nil {
			return nil, err
		}
		arg, err := l.lowerExpr(n.Arg, locals)
		if err != nil {
			return nil, err
		}
		return &ir.Call{Base: ir.Base{Ty: n.Type()}, Fn: fn, Arg: arg}, nil

	case *ast.Let:
		child := cloneSet(locals)
		bindings := make([]ir.LetBinding, len(n.Bindings))
		for i, b := range n.Bindings {
			v, err := l.lowerExpr(b.Value, child)
			if err != nil {
				return nil, err
			}
			bindings[i] = ir.LetBinding{Name: b.Name, Value: v}
			child[b.Name] = true
		}
		body, err := l.lowerExpr(n.Body, child)
		if err != nil {
			return nil, err
		}
		return &ir.Let{Base: ir.Base{Ty: n.Type()}, Bindings: bindings, Body: body}, nil

	case *ast.If:
		cond, err := l.lowerExpr(n.Cond, locals)
		if err != nil {
			return nil, err
		}
		then, err := l.lowerExpr(n.Then, locals)
		if err != nil {
			return nil, err
		}
		els, err := l.lowerExpr(n.Else, locals)
		if err != nil {
			return nil, err
		}
		return &ir.If{Base: ir.Base{Ty: n.Type()}, Cond: cond, Then: then, Else: els}, nil

	case *ast.Ascribe:
		return l.lowerExpr(n.Expr, locals)

	case *ast.Match:
		return l.lowerMatch(n, locals)

	default:
		return nil, kerrors.New(kerrors.PhaseLower, kerrors.LOW001, e.Span(), "cannot lower this expression")
	}
}

func lowerLit(n *ast.Lit) ir.Node {
	base := ir.Base{Ty: n.Type()}
	switch n.Kind {
	case ast.LitInt:
		return &ir.Const{Base: base, Kind: ir.ConstInt, IntVal: n.IntVal}
	case ast.LitUInt:
		return &ir.Const{Base: base, Kind: ir.ConstUInt, UIntVal: n.UIntVal}
	case ast.LitFloat:
		return &ir.Const{Base: base, Kind: ir.ConstFloat, FloatVal: n.FloatVal}
	case ast.LitBool:
		return &ir.Const{Base: base, Kind: ir.ConstBool, BoolVal: n.BoolVal}
	case ast.LitString:
		return &ir.Const{Base: base, Kind: ir.ConstString, StrVal: n.StrVal}
	default:
		return &ir.Const{Base: base, Kind: ir.ConstNil}
	}
}

// lowerCtorRef lowers a bare (unapplied, or partially applied) constructor
// reference. Fully saturated applications are recognized directly by
// lowerBuiltinApp.
func (l *Lowerer) lowerCtorRef(c *ast.Ctor) (ir.Node, error) {
	info, ok := l.ctors[c.Name]
	if !ok {
		return nil, kerrors.New(kerrors.PhaseLower, kerrors.LOW001, c.Span(), "unknown constructor %q", c.Name)
	}
	if info.arity == 0 {
		return &ir.Alloc{Base: ir.Base{Ty: c.Type()}, Tag: info.tag, DataName: info.dataName}, nil
	}
	// A curried, not-yet-applied constructor: materialize it as a chain of
	// single-argument closures over a synthesized Alloc, via the same
	// lambda-lifting path as a user lambda would use.
	return l.liftCtorClosure(c, info)
}

// liftCtorClosure builds a chain of curried, single-argument Funcs for a
// bare (unapplied) constructor reference of arity >= 1, mirroring how a
// surface multi-arg lambda is curried: each stage captures the parameters
// collected so far and returns a closure over the next, until the last
// stage allocates the tagged value.
func (l *Lowerer) liftCtorClosure(c *ast.Ctor, info ctorInfo) (ir.Node, error) {
	l.counter++
	base := fmt.Sprintf("ctor$%s$%d", c.Name, l.counter)
	params := make([]string, info.arity)
	for i := range params {
		params[i] = fmt.Sprintf("f%d", i)
	}

	fields := make([]ir.Node, info.arity)
	for i, p := range params {
		fields[i] = &ir.LocalRef{Name: p}
	}
	lastName := fmt.Sprintf("%s$%d", base, info.arity-1)
	l.funcs = append(l.funcs, &ir.Func{
		Name:     lastName,
		Param:    params[info.arity-1],
		Captures: params[:info.arity-1],
		Body:     &ir.Alloc{Tag: info.tag, DataName: info.dataName, Fields: fields},
	})

	target := lastName
	for i := info.arity - 2; i >= 0; i-- {
		stageName := fmt.Sprintf("%s$%d", base, i)
		captures := params[:i]
		capNodes := make([]ir.Node, len(captures)+1)
		for j, cap := range captures {
			capNodes[j] = &ir.LocalRef{Name: cap}
		}
		capNodes[len(captures)] = &ir.LocalRef{Name: params[i]}
		l.funcs = append(l.funcs, &ir.Func{
			Name:     stageName,
			Param:    params[i],
			Captures: captures,
			Body:     &ir.MakeClosure{TargetFn: target, Captures: capNodes},
		})
		target = stageName
	}
	return &ir.GlobalRef{Base: ir.Base{Ty: c.Type()}, Symbol: target}, nil
}

// lowerBuiltinApp recognizes a fully saturated application chain headed by
// cons/car/cdr or a saturated constructor, translating it directly to
// Alloc/GetPayload rather than a Call.
func (l *Lowerer) lowerBuiltinApp(app *ast.App, locals map[string]bool) (ir.Node, bool, error) {
	head, args := flattenApp(app)
	v, ok := head.(*ast.Var)
	if ok && v.Kind == ast.VarBuiltin {
		switch v.Name {
		case "cons":
			if len(args) != 2 {
				return nil, false, nil
			}
			a, err := l.lowerExpr(args[0], locals)
			if err != nil {
				return nil, false, err
			}
			b, err := l.lowerExpr(args[1], locals)
			if err != nil {
				return nil, false, err
			}
			return &ir.Alloc{Base: ir.Base{Ty: app.Type()}, Tag: 0, DataName: "Cons", Fields: []ir.Node{a, b}}, true, nil
		case "car":
			if len(args) != 1 {
				return nil, false, nil
			}
			val, err := l.lowerExpr(args[0], locals)
			if err != nil {
				return nil, false, err
			}
			return &ir.GetPayload{Base: ir.Base{Ty: app.Type()}, Value: val, Index: 0}, true, nil
		case "cdr":
			if len(args) != 1 {
				return nil, false, nil
			}
			val, err := l.lowerExpr(args[0], locals)
			if err != nil {
				return nil, false, err
			}
			return &ir.GetPayload{Base: ir.Base{Ty: app.Type()}, Value: val, Index: 1}, true, nil
		}
	}
	if c, ok := head.(*ast.Ctor); ok {
		info, known := l.ctors[c.Name]
		if known && len(args) == info.arity && info.arity > 0 {
			fields := make([]ir.Node, len(args))
			for i, a := range args {
				fv, err := l.lowerExpr(a, locals)
				if err != nil {
					return nil, false, err
				}
				fields[i] = fv
			}
			return &ir.Alloc{Base: ir.Base{Ty: app.Type()}, Tag: info.tag, DataName: info.dataName, Fields: fields}, true, nil
		}
	}
	return nil, false, nil
}

// flattenApp decomposes a right-leaning chain of unary App nodes into its
// head and ordered argument list.
func flattenApp(app *ast.App) (ast.Expr, []ast.Expr) {
	var args []ast.Expr
	var cur ast.Expr = app
	for {
		a, ok := cur.(*ast.App)
		if !ok {
			break
		}
		args = append([]ast.Expr{a.Arg}, args...)
		cur = a.Callee
	}
	return cur, args
}

// liftLambda lifts lam to a fresh top-level Func, capturing every free
// local it references from the enclosing scope.
func (l *Lowerer) liftLambda(lam *ast.Lam, locals map[string]bool) (ir.Node, error) {
	free := map[string]bool{}
	collectFree(lam.Body, map[string]bool{lam.Param.Name: true}, free)
	var captures []string
	for name := range free {
		if locals[name] {
			captures = append(captures, name)
		}
	}

	bodyLocals := map[string]bool{lam.Param.Name: true}
	for _, c := range captures {
		bodyLocals[c] = true
	}
	body, err := l.lowerExpr(lam.Body, bodyLocals)
	if err != nil {
		return nil, err
	}

	l.counter++
	name := fmt.Sprintf("lambda$%d", l.counter)
	paramT, resultT, _ := types.IsArrow(lam.Type())
	fn := &ir.Func{Name: name, Param: lam.Param.Name, ParamType: paramT, RetType: resultT, Body: body, Captures: captures}
	l.funcs = append(l.funcs, fn)

	if len(captures) == 0 {
		return &ir.GlobalRef{Base: ir.Base{Ty: lam.Type()}, Symbol: name}, nil
	}
	capNodes := make([]ir.Node, len(captures))
	for i, c := range captures {
		capNodes[i] = &ir.LocalRef{Name: c}
	}
	return &ir.MakeClosure{Base: ir.Base{Ty: lam.Type()}, TargetFn: name, Captures: capNodes}, nil
}

func (l *Lowerer) lowerMatch(m *ast.Match, locals map[string]bool) (ir.Node, error) {
	scrut, err := l.lowerExpr(m.Scrutinee, locals)
	if err != nil {
		return nil, err
	}
	// The scrutinee is evaluated once into a synthetic local, then each arm
	// is a branch on its tag; arms are encoded as a right-leaning if/else
	// chain comparing GetTag against each constructor's index.
	const scrutName = "$match"
	child := cloneSet(locals)
	child[scrutName] = true
	scrutRef := &ir.LocalRef{Base: ir.Base{Ty: m.Scrutinee.Type()}, Name: scrutName}

	var chain ir.Node
	for i := len(m.Arms) - 1; i >= 0; i-- {
		arm := m.Arms[i]
		info, ok := l.ctors[arm.CtorName]
		if !ok {
			return nil, kerrors.New(kerrors.PhaseLower, kerrors.LOW001, m.Span(), "unknown constructor %q", arm.CtorName)
		}
		armLocals := cloneSet(child)
		fieldBindings := make([]ir.LetBinding, len(arm.Vars))
		for idx, name := range arm.Vars {
			fieldBindings[idx] = ir.LetBinding{Name: name, Value: &ir.GetPayload{Value: scrutRef, Index: idx}}
			armLocals[name] = true
		}
		armBody, err := l.lowerExpr(arm.Body, armLocals)
		if err != nil {
			return nil, err
		}
		if len(fieldBindings) > 0 {
			armBody = &ir.Let{Base: ir.Base{Ty: armBody.Type()}, Bindings: fieldBindings, Body: armBody}
		}
		tagEq := &ir.TagEquals{Base: ir.Base{Ty: types.Con(types.BoolCon)}, Tag: info.tag, Value: scrutRef}
		if chain == nil {
			chain = armBody
		} else {
			chain = &ir.If{Base: ir.Base{Ty: armBody.Type()}, Cond: tagEq, Then: armBody, Else: chain}
		}
	}
	if chain == nil {
		chain = &ir.Const{Kind: ir.ConstNil}
	}
	return &ir.Let{Base: ir.Base{Ty: chain.Type()}, Bindings: []ir.LetBinding{{Name: scrutName, Value: scrut}}, Body: chain}, nil
}

func cloneSet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// collectFree walks e collecting every VarLocal name not in bound.
func collectFree(e ast.Expr, bound map[string]bool, out map[string]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Var:
		if n.Kind == ast.VarLocal && !bound[n.Name] {
			out[n.Name] = true
		}
	case *ast.Lam:
		child := cloneSet(bound)
		child[n.Param.Name] = true
		collectFree(n.Body, child, out)
	case *ast.App:
		collectFree(n.Callee, bound, out)
		collectFree(n.Arg, bound, out)
	case *ast.Let:
		child := cloneSet(bound)
		for _, b := range n.Bindings {
			child[b.Name] = true
		}
		for _, b := range n.Bindings {
			collectFree(b.Value, child, out)
		}
		collectFree(n.Body, child, out)
	case *ast.If:
		collectFree(n.Cond, bound, out)
		collectFree(n.Then, bound, out)
		collectFree(n.Else, bound, out)
	case *ast.Ascribe:
		collectFree(n.Expr, bound, out)
	case *ast.Match:
		collectFree(n.Scrutinee, bound, out)
		for _, a := range n.Arms {
			child := cloneSet(bound)
			for _, v := range a.Vars {
				child[v] = true
			}
			collectFree(a.Body, child, out)
		}
	}
}
