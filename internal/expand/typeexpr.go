package expand

import (
	"github.com/sunholo/kvasir/internal/ast"
	"github.com/sunholo/kvasir/internal/kerrors"
	"github.com/sunholo/kvasir/internal/sexpr"
)

// parseTypeExpr reads the small surface type grammar: a bare symbol
// (`Int64`, or a lowercase type parameter like `t`), or an applied form
// `(Con arg...)`, including the binary built-ins `(-> A B)` and `(Cons A B)`.
func parseTypeExpr(s sexpr.Sexpr) (ast.TypeExpr, error) {
	switch node := s.(type) {
	case *sexpr.Atom:
		name, ok := sexpr.AsSymbol(node)
		if !ok {
			return nil, kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, node.Span(),
				"expected a type name, found %s", node.String())
		}
		return &ast.TypeName{Name: name}, nil
	case *sexpr.List:
		if len(node.Children) == 0 {
			return nil, kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, node.Span(),
				"empty type expression")
		}
		head, ok := sexpr.AsSymbol(node.Children[0])
		if !ok {
			return nil, kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, node.Span(),
				"type constructor must be a symbol")
		}
		args := make([]ast.TypeExpr, 0, len(node.Children)-1)
		for _, c := range node.Children[1:] {
			arg, err := parseTypeExpr(c)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return &ast.TypeName{Name: head, Args: args}, nil
	default:
		return nil, kerrors.New(kerrors.PhaseExpand, kerrors.EXP004, s.Span(), "malformed type expression")
	}
}
