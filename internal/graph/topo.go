package graph

import "sort"

// topoSort runs Kahn's algorithm over g's resolved edges. On success,
// g.TopoOrder holds a total order consistent with the DAG and g.Cyclic is
// false. On a cycle, g.Cyclic is set, g.CycleKeys names the leaves that
// never reached zero in-degree, and TopoOrder still contains every leaf —
// the acyclic prefix in dependency order, followed by the cyclic remainder
// in a deterministic (key-sorted) order, so downstream passes can still
// produce a best-effort result (spec §7 partial results).
func topoSort(g *Graph) {
	inDegree := make(map[string]int, len(g.Leaves))
	for _, leaf := range g.Leaves {
		inDegree[leaf.Key] = len(g.Predecessors[leaf.Key])
	}

	var ready []string
	for _, leaf := range g.Leaves {
		if inDegree[leaf.Key] == 0 {
			ready = append(ready, leaf.Key)
		}
	}
	sort.Strings(ready)

	var order []string
	visited := make(map[string]bool, len(g.Leaves))
	for len(ready) > 0 {
		sort.Strings(ready)
		key := ready[0]
		ready = ready[1:]
		if visited[key] {
			continue
		}
		visited[key] = true
		order = append(order, key)

		for _, e := range g.Successors[key] {
			inDegree[e.Successor]--
			if inDegree[e.Successor] == 0 {
				ready = append(ready, e.Successor)
			}
		}
	}

	if len(order) == len(g.Leaves) {
		g.TopoOrder = order
		g.Cyclic = false
		return
	}

	g.Cyclic = true
	var remainder []string
	for _, leaf := range g.Leaves {
		if !visited[leaf.Key] {
			remainder = append(remainder, leaf.Key)
		}
	}
	sort.Strings(remainder)
	g.CycleKeys = remainder
	g.TopoOrder = append(order, remainder...)
}
