package maskedem

import (
	"context"
	"maps"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/maskedem/internal/model"
)

// mergeRound repeatedly tries the closest pair of clusters whose centers lie
// within MergeThreshold Mahalanobis units under their pooled covariance. The
// higher id is moved into the lower id and the merge is kept only if the
// penalized score of the whole model rises; otherwise every member goes back
// and the pair is not tried again this round. Noise and degenerate clusters
// never merge.
//
// It returns the number of clusters merged away.
func (e *Engine) mergeRound(ctx context.Context) int {
	limitSq := e.cfg.MergeThreshold * e.cfg.MergeThreshold

	var cl []*model.Params
	for _, id := range e.liveIDs() {
		if p := e.params[id]; id != NoiseClusterID && !p.Degenerate {
			cl = append(cl, p)
		}
	}
	n := len(cl)
	if n < 2 {
		return 0
	}

	dist := make([][]float64, n)
	for a := range dist {
		dist[a] = make([]float64, n)
	}
	var g errgroup.Group
	g.SetLimit(e.workers)
	for a := range n {
		g.Go(func() error {
			for b := a + 1; b < n; b++ {
				dist[a][b] = model.CenterDistanceSq(cl[a], cl[b], limitSq)
			}
			return nil
		})
	}
	_ = g.Wait()

	active := make([]bool, n)
	for a := range active {
		active[a] = true
	}

	base := e.penalizedScore(e.params)
	merged := 0
	for {
		ba, bb, bd := -1, -1, math.Inf(1)
		for a := range n {
			if !active[a] {
				continue
			}
			for b := a + 1; b < n; b++ {
				if active[b] && dist[a][b] < bd {
					ba, bb, bd = a, b, dist[a][b]
				}
			}
		}
		if ba < 0 || bd >= limitSq {
			break
		}

		keep, drop := cl[ba].ID, cl[bb].ID
		moved := e.members[drop].ToArray()
		for _, i := range moved {
			e.move(int(i), keep)
		}

		p := e.estimate(keep)
		trial := maps.Clone(e.params)
		delete(trial, drop)
		trial[keep] = p
		e.setWeights(trial)
		score := e.penalizedScore(trial)

		if score <= base {
			for _, i := range moved {
				e.move(int(i), drop)
			}
			e.setWeights(e.params)
			dist[ba][bb] = math.Inf(1)
			e.logger.LogMerge(ctx, keep, drop, math.Sqrt(bd), score-base, false)
			continue
		}

		e.removeCluster(drop)
		e.params = trial
		e.logger.LogMerge(ctx, keep, drop, math.Sqrt(bd), score-base, true)
		base = score
		active[bb] = false
		merged++

		cl[ba] = p
		if p.Degenerate {
			active[ba] = false
			continue
		}
		for o := range n {
			if o == ba || !active[o] {
				continue
			}
			lo, hi := min(o, ba), max(o, ba)
			dist[lo][hi] = model.CenterDistanceSq(cl[lo], cl[hi], limitSq)
		}
	}
	return merged
}
