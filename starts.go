package maskedem

import (
	"context"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// maskGroup is a set of points sharing one mask pattern.
type maskGroup struct {
	pattern *roaring.Bitmap
	points  []int
}

// ClusterMaskStarts builds the starting assignment and resets the run.
//
// Points are grouped by mask pattern: the set of features whose mask
// strength is positive and at least PointsForClusterMask. With more patterns
// than NumStartingClusters, the largest groups are kept and every other group
// joins the kept group with the nearest pattern (Hamming distance). With
// fewer, the largest cluster is halved at random until the target is reached
// or no cluster is large enough to halve. Only halving draws from the random
// source.
//
// Cluster ids start at 1; no point starts in noise.
func (e *Engine) ClusterMaskStarts(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clusterMaskStarts(ctx)
	return nil
}

func (e *Engine) clusterMaskStarts(ctx context.Context) {
	groups := e.maskGroups()
	target := e.cfg.NumStartingClusters

	var clusters [][]int
	if len(groups) > target {
		clusters = foldGroups(groups, target)
	} else {
		clusters = make([][]int, len(groups))
		for k, g := range groups {
			clusters[k] = g.points
		}
		clusters = e.halve(clusters, target)
	}

	assign := make([]int, e.ds.NumPoints())
	for k, pts := range clusters {
		for _, i := range pts {
			assign[i] = k + 1
		}
	}

	e.resetRun(assign, len(clusters)+1)
	e.iteration = 0
	e.lastSplit = 0
	e.lastScore = e.bestScore
	e.state = StateInitializing

	e.logger.InfoContext(ctx, "starting clusters created",
		"patterns", len(groups),
		"clusters", len(clusters),
		"points", len(assign),
	)
}

// maskGroups groups points by mask pattern, ordered by first member.
func (e *Engine) maskGroups() []*maskGroup {
	byKey := make(map[string]*maskGroup)
	var groups []*maskGroup

	for i := range e.ds.NumPoints() {
		_, idx, w := e.ds.Unmasked(i)
		pattern := roaring.New()
		for j, f := range idx {
			if w[j] > 0 && w[j] >= e.cfg.PointsForClusterMask {
				pattern.Add(uint32(f))
			}
		}
		pattern.RunOptimize()

		raw, err := pattern.ToBytes()
		if err != nil {
			raw = []byte(pattern.String())
		}
		key := string(raw)

		g, ok := byKey[key]
		if !ok {
			g = &maskGroup{pattern: pattern}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.points = append(g.points, i)
	}
	return groups
}

// foldGroups keeps the target largest groups and folds every other group
// into the kept group whose pattern differs in the fewest features.
func foldGroups(groups []*maskGroup, target int) [][]int {
	order := make([]int, len(groups))
	for k := range order {
		order[k] = k
	}
	// Stable, so equal sizes keep first-member order.
	slices.SortStableFunc(order, func(a, b int) int {
		return len(groups[b].points) - len(groups[a].points)
	})

	kept := order[:target]
	slices.Sort(kept)

	clusters := make([][]int, target)
	for k, g := range kept {
		clusters[k] = slices.Clone(groups[g].points)
	}
	for _, g := range order[target:] {
		nearest, bestDist := 0, uint64(0)
		for k, kg := range kept {
			d := roaring.Xor(groups[g].pattern, groups[kg].pattern).GetCardinality()
			if k == 0 || d < bestDist {
				nearest, bestDist = k, d
			}
		}
		clusters[nearest] = append(clusters[nearest], groups[g].points...)
	}
	for _, c := range clusters {
		slices.Sort(c)
	}
	return clusters
}

// halve splits the largest cluster into two random halves until there are
// target clusters. A cluster is halved only if both halves keep more points
// than there are features.
func (e *Engine) halve(clusters [][]int, target int) [][]int {
	minHalf := e.ds.NumFeatures() + 1
	for len(clusters) < target {
		largest := -1
		for k, c := range clusters {
			if largest < 0 || len(c) > len(clusters[largest]) {
				largest = k
			}
		}
		if largest < 0 || len(clusters[largest]) < 2*minHalf {
			break
		}

		pts := slices.Clone(clusters[largest])
		e.rng.Shuffle(len(pts), func(a, b int) { pts[a], pts[b] = pts[b], pts[a] })
		mid := len(pts) / 2
		a, b := pts[:mid], pts[mid:]
		slices.Sort(a)
		slices.Sort(b)
		clusters[largest] = a
		clusters = append(clusters, b)
	}
	return clusters
}
