package graph

import "sort"

// DetectCycles finds cycles along a single edge type. The result is a list
// of address paths, each beginning at the node the cycle re-enters. Cycles
// are informational; traversal elsewhere handles them without error.
func DetectCycles(store Store, edgeType EdgeType) ([][]string, error) {
	nodes, err := store.AllNodes(nil)
	if err != nil {
		return nil, err
	}

	adjacency := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		edges, err := store.GetEdges(n.Address, edgeType, DirOut)
		if err != nil {
			return nil, err
		}
		targets := make([]string, 0, len(edges))
		for _, e := range edges {
			targets = append(targets, e.To)
		}
		sort.Strings(targets)
		adjacency[n.Address] = targets
	}

	addrs := make([]string, 0, len(adjacency))
	for a := range adjacency {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var walk func(curr string, path []string)
	walk = func(curr string, path []string) {
		visited[curr] = true
		onStack[curr] = true
		path = append(path, curr)

		for _, next := range adjacency[curr] {
			if onStack[next] {
				cycleStart := -1
				for i, a := range path {
					if a == next {
						cycleStart = i
						break
					}
				}
				if cycleStart != -1 {
					cycle := make([]string, len(path)-cycleStart)
					copy(cycle, path[cycleStart:])
					cycles = append(cycles, cycle)
				}
			} else if !visited[next] {
				walk(next, path)
			}
		}

		onStack[curr] = false
	}

	for _, a := range addrs {
		if !visited[a] {
			walk(a, nil)
		}
	}
	return cycles, nil
}

// FindPath returns the shortest path from one address to another along a
// single edge type, or false when no path exists. Neighbors are expanded in
// sorted order so the result is deterministic.
func FindPath(store Store, from, to string, edgeType EdgeType) ([]string, bool, error) {
	if from == to {
		return []string{from}, true, nil
	}

	queue := []string{from}
	visited := map[string]bool{from: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		edges, err := store.GetEdges(curr, edgeType, DirOut)
		if err != nil {
			return nil, false, err
		}
		neighbors := make([]string, 0, len(edges))
		for _, e := range edges {
			neighbors = append(neighbors, e.To)
		}
		sort.Strings(neighbors)

		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == to {
				path := []string{to}
				for node := to; node != from; {
					p, ok := prev[node]
					if !ok {
						return nil, false, nil
					}
					path = append(path, p)
					node = p
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true, nil
			}

			queue = append(queue, next)
		}
	}

	return nil, false, nil
}
