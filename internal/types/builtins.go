package types

// Builtins lists the primitive operations the expander treats as ordinary
// global identifiers rather than new AST syntax (spec.md §4.C):
// `cons`/`car`/`cdr` on the primitive pair type, and the ad-hoc arithmetic
// and comparison intrinsics described in spec.md §9 ("Ad-hoc polymorphism
// placeholder"). Both internal/infer (to seed the initial environment) and
// internal/mono (to resolve an intrinsic to its concrete extern at
// specialization time) consult this table.

// ArithOps are the intrinsic names with type `forall a. (Cons a a) -> a`.
var ArithOps = []string{"add", "sub", "mul", "div"}

// CompareOps are the intrinsic names with type `forall a. (Cons a a) -> Bool`.
var CompareOps = []string{"eq", "neq", "gt", "gteq", "lt", "lteq"}

// NumericExternTypes are the concrete types the runtime ABI (spec.md §6)
// provides arithmetic/comparison externs for: `{op}-{type}`.
var NumericExternTypes = []string{Int64, Float64}

// IsIntrinsic reports whether name is one of the ad-hoc arithmetic or
// comparison intrinsics.
func IsIntrinsic(name string) bool {
	for _, n := range ArithOps {
		if n == name {
			return true
		}
	}
	for _, n := range CompareOps {
		if n == name {
			return true
		}
	}
	return false
}

// IsComparison reports whether name is one of the comparison intrinsics
// (result type Bool rather than the operand type).
func IsComparison(name string) bool {
	for _, n := range CompareOps {
		if n == name {
			return true
		}
	}
	return false
}

// ExternSymbol returns the concrete runtime ABI symbol (e.g. "add-int64")
// for intrinsic op at concrete numeric type conTypeName, per spec.md §6.
func ExternSymbol(op, conTypeName string) (string, bool) {
	for _, t := range NumericExternTypes {
		if t == conTypeName {
			return op + "-" + lowerTypeName(t), true
		}
	}
	return "", false
}

func lowerTypeName(name string) string {
	switch name {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	default:
		return name
	}
}

// numericScheme builds `forall a. (Cons a a) -> result` for one arithmetic
// or comparison intrinsic: per spec.md §4.C/§6, these follow the standard
// library's single-Cons-tuple-argument convention, matching the runtime
// ABI's "single struct argument" externs directly.
func numericScheme(next *int, resultIsBool bool) *Scheme {
	a := &TVar{ID: *next}
	*next++
	var result Type = a
	if resultIsBool {
		result = Con(BoolCon)
	}
	return &Scheme{Vars: []int{a.ID}, Body: Arrow(Cons(a, a), result)}
}

// NewGlobalEnv returns the Env seeded with cons/car/cdr and the arithmetic
// and comparison intrinsics, ready for the inferencer's whole-program
// letrec to extend with user top-level bindings.
func NewGlobalEnv(next *int) *Env {
	env := NewEnv()

	a := &TVar{ID: *next}
	*next++
	b := &TVar{ID: *next}
	*next++
	consT := Arrow(a, Arrow(b, Cons(a, b)))
	env.Bind("cons", &Scheme{Vars: []int{a.ID, b.ID}, Body: consT})

	a2 := &TVar{ID: *next}
	*next++
	b2 := &TVar{ID: *next}
	*next++
	env.Bind("car", &Scheme{Vars: []int{a2.ID, b2.ID}, Body: Arrow(Cons(a2, b2), a2)})

	a3 := &TVar{ID: *next}
	*next++
	b3 := &TVar{ID: *next}
	*next++
	env.Bind("cdr", &Scheme{Vars: []int{a3.ID, b3.ID}, Body: Arrow(Cons(a3, b3), b3)})

	for _, op := range ArithOps {
		env.Bind(op, numericScheme(next, false))
	}
	for _, op := range CompareOps {
		env.Bind(op, numericScheme(next, true))
	}
	return env
}
