// Package hierarchy walks manager → report relations.
package hierarchy

// Graph maps a manager id to the ids of its direct reports.
type Graph map[string][]string

// Build creates a Graph from (id, managerID) edges. Entries with an empty
// manager are roots and contribute no edge.
func Build[T any](nodes []T, id func(T) string, manager func(T) string) Graph {
	g := Graph{}
	for _, n := range nodes {
		if m := manager(n); m != "" {
			g[m] = append(g[m], id(n))
		}
	}
	return g
}

// Reports returns every transitive report of root in breadth-first order.
// The walk uses an explicit queue and a visited set, so a cyclic hierarchy
// terminates and root is never reported as its own report.
func Reports(g Graph, root string) []string {
	visited := map[string]bool{root: true}
	queue := []string{root}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, r := range g[cur] {
			if visited[r] {
				continue
			}
			visited[r] = true
			out = append(out, r)
			queue = append(queue, r)
		}
	}
	return out
}

// HasCycle reports whether any manager chain loops back on itself.
func HasCycle(g Graph) bool {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := map[string]int{}
	type frame struct {
		node string
		next int
	}
	for start := range g {
		if state[start] != unvisited {
			continue
		}
		stack := []frame{{node: start}}
		state[start] = inProgress
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g[top.node]
			if top.next == len(children) {
				state[top.node] = done
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[top.next]
			top.next++
			switch state[child] {
			case inProgress:
				return true
			case unvisited:
				state[child] = inProgress
				stack = append(stack, frame{node: child})
			}
		}
	}
	return false
}
