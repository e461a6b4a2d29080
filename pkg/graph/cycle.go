package graph

import (
	"strings"

	"github.com/forgepm/forge/pkg/ident"
)

// findCycle runs a single DFS over adj, restricted to the identities in
// live, starting from each of order in turn, maintaining an
// insertion-ordered path. The first time it revisits an identity already on
// the current path, it returns the acyclic prefix leading to the cycle and
// the cycle itself: path[len(prefix):] plus the repeated identity closes
// the loop. found is false when adj restricted to live is acyclic.
func findCycle(adj map[ident.Identity][]ident.Identity, order []ident.Identity, live map[ident.Identity]bool) (prefix, cycle []ident.Identity, found bool) {
	visited := make(map[ident.Identity]bool, len(order))

	for _, start := range order {
		if !live[start] || visited[start] {
			continue
		}
		if p, c, ok := dfsFindCycle(adj, live, start, visited); ok {
			return p, c, true
		}
	}
	return nil, nil, false
}

func dfsFindCycle(adj map[ident.Identity][]ident.Identity, live map[ident.Identity]bool, start ident.Identity, visited map[ident.Identity]bool) ([]ident.Identity, []ident.Identity, bool) {
	var path []ident.Identity
	onPath := make(map[ident.Identity]int)

	var walk func(id ident.Identity) ([]ident.Identity, []ident.Identity, bool)
	walk = func(id ident.Identity) ([]ident.Identity, []ident.Identity, bool) {
		if idx, on := onPath[id]; on {
			prefix := append([]ident.Identity(nil), path[:idx]...)
			cycle := append([]ident.Identity(nil), path[idx:]...)
			return prefix, cycle, true
		}
		if visited[id] {
			return nil, nil, false
		}
		visited[id] = true
		onPath[id] = len(path)
		path = append(path, id)

		for _, next := range adj[id] {
			if !live[next] {
				continue
			}
			if p, c, ok := walk(next); ok {
				return p, c, true
			}
		}

		path = path[:len(path)-1]
		delete(onPath, id)
		return nil, nil, false
	}

	return walk(start)
}

// cyclePathString renders prefix ++ cycle ++ cycle[0] as "A -> B -> A", the
// form a CycleDetected diagnostic cites.
func cyclePathString(prefix, cycle []ident.Identity) string {
	full := make([]string, 0, len(prefix)+len(cycle)+1)
	for _, id := range prefix {
		full = append(full, string(id))
	}
	for _, id := range cycle {
		full = append(full, string(id))
	}
	if len(cycle) > 0 {
		full = append(full, string(cycle[0]))
	}
	return strings.Join(full, " -> ")
}

// breakCycles repeatedly detects a cycle in adj restricted to live and
// removes the last node of the returned cycle from live, reporting each
// cycle via report, until the remaining graph is acyclic. It mutates
// nothing but live; callers derive build order from the result.
func breakCycles(adj map[ident.Identity][]ident.Identity, order []ident.Identity, live map[ident.Identity]bool, report func(prefix, cycle []ident.Identity)) {
	for {
		prefix, cycle, found := findCycle(adj, order, live)
		if !found {
			return
		}
		report(prefix, cycle)
		// Drop the node that closes the loop; re-run detection on the
		// resulting (smaller) live set rather than assuming one deletion
		// clears every cycle.
		drop := cycle[len(cycle)-1]
		live[drop] = false
	}
}

// topoOrder returns order restricted to live, in children-before-parents
// (post-order DFS) sequence, so a caller building packages bottom-up can
// always construct a dependency before the package that needs it. adj must
// already be acyclic over live.
func topoOrder(adj map[ident.Identity][]ident.Identity, order []ident.Identity, live map[ident.Identity]bool) []ident.Identity {
	visited := make(map[ident.Identity]bool, len(order))
	var out []ident.Identity

	var visit func(id ident.Identity)
	visit = func(id ident.Identity) {
		if visited[id] || !live[id] {
			return
		}
		visited[id] = true
		for _, next := range adj[id] {
			if live[next] {
				visit(next)
			}
		}
		out = append(out, id)
	}

	for _, id := range order {
		visit(id)
	}
	return out
}
