package expand

// scope is one lexical frame introduced by a Lam or Let during expansion.
// names records declaration order so a resolved Var can carry a stable
// slot Index. Top-level `define`s are held in no frame: a top-level
// expression is expanded with a nil scope and its names resolve as globals.
type scope struct {
	parent *scope
	names  []string
}

func newScope(parent *scope, names []string) *scope {
	return &scope{parent: parent, names: append([]string(nil), names...)}
}

// lookup walks outward from s, returning the (depth, index) of name's
// binding site, or ok=false if name is not in any enclosing frame.
func (s *scope) lookup(name string) (depth, index int, ok bool) {
	depth = 0
	for f := s; f != nil; f = f.parent {
		for i, n := range f.names {
			if n == name {
				return depth, i, true
			}
		}
		depth++
	}
	return 0, 0, false
}
