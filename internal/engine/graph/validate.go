package graph

import (
	"sort"

	"symgraph/internal/engine/address"
)

// ValidationReport lists graph inconsistencies. Dangling edges are tolerated
// at read time (traversal simply stops at them) but surfaced here so
// operators can spot extraction gaps.
type ValidationReport struct {
	DanglingEdges    []Edge
	InvalidAddresses []string
}

func (r ValidationReport) Clean() bool {
	return len(r.DanglingEdges) == 0 && len(r.InvalidAddresses) == 0
}

// Validate scans the store for edges referencing missing nodes and for nodes
// whose address string fails the codec.
func Validate(store Store) (ValidationReport, error) {
	var report ValidationReport

	nodes, err := store.AllNodes(nil)
	if err != nil {
		return report, err
	}

	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.Address] = true
		if ok, _ := address.Validate(n.Address); !ok {
			report.InvalidAddresses = append(report.InvalidAddresses, n.Address)
		}
	}
	sort.Strings(report.InvalidAddresses)

	seen := make(map[string]bool)
	for _, n := range nodes {
		edges, err := store.GetEdges(n.Address, "", DirOut)
		if err != nil {
			return report, err
		}
		for _, e := range edges {
			if present[e.To] {
				continue
			}
			if seen[e.key()] {
				continue
			}
			seen[e.key()] = true
			report.DanglingEdges = append(report.DanglingEdges, e)
		}
	}

	sort.Slice(report.DanglingEdges, func(i, j int) bool {
		if report.DanglingEdges[i].From == report.DanglingEdges[j].From {
			return report.DanglingEdges[i].To < report.DanglingEdges[j].To
		}
		return report.DanglingEdges[i].From < report.DanglingEdges[j].From
	})
	return report, nil
}
