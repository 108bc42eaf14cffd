package infer

import "github.com/sunholo/kvasir/internal/ast"

// callGraph is a dependency graph between top-level bindings, used to
// decompose the whole-program letrec into maximal generalization groups
// (spec.md §4.D "Whole-program letrec"). Grounded on the classic Tarjan
// strongly-connected-components algorithm.
type callGraph struct {
	nodes   []string
	edges   map[string][]string
	nodeSet map[string]bool
}

func newCallGraph() *callGraph {
	return &callGraph{edges: map[string][]string{}, nodeSet: map[string]bool{}}
}

func (g *callGraph) addNode(name string) {
	if !g.nodeSet[name] {
		g.nodes = append(g.nodes, name)
		g.nodeSet[name] = true
		g.edges[name] = nil
	}
}

func (g *callGraph) addEdge(caller, callee string) {
	g.addNode(caller)
	if !g.nodeSet[callee] {
		return // reference to something outside this letrec group (extern/ctor/builtin)
	}
	g.edges[caller] = append(g.edges[caller], callee)
}

// sccs computes strongly connected components via Tarjan's algorithm,
// returned in reverse-topological order: a component's callees appear in
// components already returned, i.e. processing the result in order lets
// each group's generalization see fully-generalized callee schemes.
func (g *callGraph) sccs() [][]string {
	index := 0
	var stack []string
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var out [][]string

	var strongconnect func(string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			out = append(out, comp)
		}
	}

	for _, n := range g.nodes {
		if _, seen := indices[n]; !seen {
			strongconnect(n)
		}
	}
	return out
}

// buildCallGraph walks each binding's value expression collecting
// references to other bindings in the same letrec group.
func buildCallGraph(bindings []ast.Binding) *callGraph {
	names := map[string]bool{}
	for _, b := range bindings {
		names[b.Name] = true
	}
	g := newCallGraph()
	for _, b := range bindings {
		g.addNode(b.Name)
		for _, ref := range references(b.Value) {
			if names[ref] {
				g.addEdge(b.Name, ref)
			}
		}
	}
	return g
}

// references collects the name of every global or local Var reference
// reachable from e, so that both the top-level group and a nested let group
// get call-graph edges; buildCallGraph keeps only the names of the group
// being decomposed.
func references(e ast.Expr) []string {
	var out []string
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *ast.Var:
			if n.Kind == ast.VarGlobal || n.Kind == ast.VarLocal {
				out = append(out, n.Name)
			}
		case *ast.Lam:
			walk(n.Body)
		case *ast.App:
			walk(n.Callee)
			walk(n.Arg)
		case *ast.Let:
			for _, b := range n.Bindings {
				walk(b.Value)
			}
			walk(n.Body)
		case *ast.If:
			walk(n.Cond)
			walk(n.Then)
			walk(n.Else)
		case *ast.Ascribe:
			walk(n.Expr)
		case *ast.Match:
			walk(n.Scrutinee)
			for _, a := range n.Arms {
				walk(a.Body)
			}
		}
	}
	walk(e)
	return out
}
