package infer

import (
	"github.com/sunholo/kvasir/internal/ast"
	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/token"
	"github.com/sunholo/kvasir/internal/types"
)

var builtinCons = map[string]bool{
	types.Int8: true, types.Int16: true, types.Int32: true, types.Int64: true,
	types.UInt8: true, types.UInt16: true, types.UInt32: true, types.UInt64: true,
	types.Float32: true, types.Float64: true,
	types.BoolCon: true, types.NilCon: true, types.RealWorldCon: true,
	types.KStringCon: true,
}

// resolveTypeExpr turns a surface TypeExpr into a types.Type, minting one
// fresh TVar per distinct lowercase identifier encountered (shared across
// repeated occurrences within the same call, via params) and validating
// known constructor names/arities (spec.md §3 invariant: `->`/`Cons`
// always arity 2).
func (inf *Infer) resolveTypeExpr(te ast.TypeExpr, params map[string]*types.TVar, sp token.Span) (types.Type, error) {
	switch t := te.(type) {
	case *ast.TypeName:
		if len(t.Args) == 0 {
			if isLowerParam(t.Name) {
				if v, ok := params[t.Name]; ok {
					return v, nil
				}
				v := inf.fresh()
				params[t.Name] = v
				return v, nil
			}
			if builtinCons[t.Name] {
				return types.Con(t.Name), nil
			}
			if _, ok := inf.dataArity[t.Name]; ok {
				return types.Con(t.Name), nil
			}
			return nil, kerrors.New(kerrors.PhaseType, kerrors.TYP004, sp, "unknown type constructor %q", t.Name)
		}
		args := make([]types.Type, len(t.Args))
		for i, a := range t.Args {
			r, err := inf.resolveTypeExpr(a, params, sp)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		if (t.Name == types.ArrowCon || t.Name == types.ConsCon || t.Name == types.PtrCon) && len(args) != expectedArity(t.Name) {
			return nil, kerrors.New(kerrors.PhaseType, kerrors.TYP003, sp,
				"%s expects %d argument(s), got %d", t.Name, expectedArity(t.Name), len(args))
		}
		return &types.TCon{Name: t.Name, Args: args}, nil
	default:
		return nil, kerrors.New(kerrors.PhaseType, kerrors.TYP004, sp, "malformed type expression")
	}
}

func expectedArity(name string) int {
	switch name {
	case types.PtrCon:
		return 1
	default:
		return 2
	}
}

func isLowerParam(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return c >= 'a' && c <= 'z'
}
