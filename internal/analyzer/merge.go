package analyzer

import (
	"sort"
)

// MergeConnected resolves the connection graph into final groups.
//
// Connections are applied in score-descending order (ties keep their
// discovery order), so the highest-confidence merges win first and the
// reduction is reproducible for a given connection set. The redirect map is
// a union-find without rank balancing: absorbing root(j) into root(i)
// records j's root as redirected to i's root, and the surviving groups are
// exactly the indices that never appear as a redirect source.
//
// Input groups are consumed: absorbed groups are emptied in place.
func MergeConnected(groups []*Group, connections []Connection) []*Group {
	sorted := make([]Connection, len(connections))
	copy(sorted, connections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	redirect := make(map[int]int)

	resolve := func(idx int) int {
		for {
			next, ok := redirect[idx]
			if !ok {
				return idx
			}
			idx = next
		}
	}

	for _, conn := range sorted {
		rootI := resolve(conn.I)
		rootJ := resolve(conn.J)
		if rootI == rootJ {
			continue
		}
		if rootI >= len(groups) || rootJ >= len(groups) {
			continue
		}

		groups[rootI].Messages = append(groups[rootI].Messages, groups[rootJ].Messages...)
		groups[rootJ].Messages = nil
		redirect[rootJ] = rootI
	}

	var merged []*Group
	for i, g := range groups {
		if _, absorbed := redirect[i]; absorbed {
			continue
		}
		merged = append(merged, g)
	}
	return merged
}
