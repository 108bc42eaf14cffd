package types

// Env is a lexically scoped name -> Scheme mapping (spec.md §3
// "Environment"). Frames are chained via Parent; lookups walk outward.
type Env struct {
	Parent *Env
	vars   map[string]*Scheme
}

// NewEnv creates a root environment with no parent.
func NewEnv() *Env { return &Env{vars: map[string]*Scheme{}} }

// Child creates a new scope nested inside e.
func (e *Env) Child() *Env { return &Env{Parent: e, vars: map[string]*Scheme{}} }

// Bind adds name -> scheme to this frame only.
func (e *Env) Bind(name string, scheme *Scheme) { e.vars[name] = scheme }

// Lookup walks outward from e looking for name, returning the scheme and
// the frame depth at which it was found (0 = this frame).
func (e *Env) Lookup(name string) (*Scheme, int, bool) {
	depth := 0
	for f := e; f != nil; f = f.Parent {
		if s, ok := f.vars[name]; ok {
			return s, depth, true
		}
		depth++
	}
	return nil, 0, false
}
