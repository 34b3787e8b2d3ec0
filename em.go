package maskedem

import (
	"maps"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/maskedem/internal/model"
)

// scoreChunk is the number of points scored by one worker task.
const scoreChunk = 512

// estimate computes the parameters of live cluster id from its members.
func (e *Engine) estimate(id int) *model.Params {
	m := e.members[id]
	if id == NoiseClusterID {
		return e.acc.Noise(int(m.GetCardinality()))
	}
	return e.acc.Estimate(id, m)
}

// estimateAll estimates every live cluster in parallel and sets the mixture
// weights. Each estimate only reads its own member set, so the result does
// not depend on scheduling.
func (e *Engine) estimateAll() map[int]*model.Params {
	ids := e.liveIDs()
	out := make([]*model.Params, len(ids))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for k, id := range ids {
		g.Go(func() error {
			out[k] = e.estimate(id)
			return nil
		})
	}
	_ = g.Wait()

	params := make(map[int]*model.Params, len(ids))
	for k, id := range ids {
		params[id] = out[k]
	}
	e.setWeights(params)
	return params
}

// setWeights sets the smoothed mixture weight (n_c + α) / (N + α·K) of every
// cluster in params, K being the number of clusters including noise.
func (e *Engine) setWeights(params map[int]*model.Params) {
	n := float64(e.ds.NumPoints())
	alpha := e.cfg.MixturePrior
	denom := n + alpha*float64(len(params))
	for _, p := range params {
		p.SetWeight((float64(p.Size) + alpha) / denom)
	}
}

// scorable returns the non-degenerate clusters of e.params in ascending id order.
func (e *Engine) scorable() []*model.Params {
	out := make([]*model.Params, 0, len(e.params))
	for _, id := range e.liveIDs() {
		if p, ok := e.params[id]; ok && !p.Degenerate {
			out = append(out, p)
		}
	}
	return out
}

// reassign moves every point to its highest-scoring cluster. On a full step
// every scorable cluster is tried and the candidate lists are rebuilt; on a
// quick step only the candidates and the current cluster are tried. Ties go
// to the lowest id. Points with no scorable cluster go to noise.
//
// It returns the summed log-likelihood of the new assignment minus the
// penalties of the scored clusters.
func (e *Engine) reassign(full bool) float64 {
	n := e.ds.NumPoints()
	nf := e.ds.NumFeatures()
	all := e.scorable()
	next := make([]int, n)
	best := make([]float64, n)

	var cands [][]int32
	if full {
		cands = make([][]int32, n)
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for lo := 0; lo < n; lo += scoreChunk {
		hi := min(lo+scoreChunk, n)
		g.Go(func() error {
			s := model.NewScratch(nf)
			lls := make([]float64, len(all))
			for i := lo; i < hi; i++ {
				if full {
					next[i], best[i], cands[i] = e.scoreAll(i, all, lls, s)
				} else {
					next[i], best[i] = e.scoreCandidates(i, s)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if full {
		e.candidates = cands
	}
	total := 0.0
	for i := range n {
		e.move(i, next[i])
		total += best[i]
	}
	for _, p := range all {
		total -= e.penalizer.Penalty(p)
	}
	return total
}

func (e *Engine) scoreAll(i int, all []*model.Params, lls []float64, s *model.Scratch) (int, float64, []int32) {
	bestID, bestLL := NoiseClusterID, model.ScoreFloor
	found := false
	for k, p := range all {
		ll := model.LogLikelihood(e.ds, p, i, s)
		lls[k] = ll
		if !found || ll > bestLL {
			bestID, bestLL, found = p.ID, ll, true
		}
	}
	if !found {
		return NoiseClusterID, model.ScoreFloor, nil
	}

	cands := make([]int32, 0, 4)
	for k, p := range all {
		if bestLL-lls[k] <= e.cfg.DistThresh {
			cands = append(cands, int32(p.ID))
		}
	}
	return bestID, bestLL, cands
}

func (e *Engine) scoreCandidates(i int, s *model.Scratch) (int, float64) {
	cur := e.assign[i]
	bestID, bestLL := NoiseClusterID, model.ScoreFloor
	found := false

	try := func(id int) {
		p, ok := e.params[id]
		if !ok || p.Degenerate {
			return
		}
		ll := model.LogLikelihood(e.ds, p, i, s)
		if !found || ll > bestLL || (ll == bestLL && id < bestID) {
			bestID, bestLL, found = id, ll, true
		}
	}

	seenCur := false
	for _, c := range e.candidates[i] {
		id := int(c)
		if id == cur {
			seenCur = true
		}
		try(id)
	}
	if !seenCur {
		try(cur)
	}
	return bestID, bestLL
}

// penalizedScore returns Σ_i loglik(i, own cluster) - Σ_c penalty(c) under
// params. Points whose cluster is missing or degenerate contribute ScoreFloor.
func (e *Engine) penalizedScore(params map[int]*model.Params) float64 {
	n := e.ds.NumPoints()
	nf := e.ds.NumFeatures()
	chunks := make([]float64, (n+scoreChunk-1)/scoreChunk)

	var g errgroup.Group
	g.SetLimit(e.workers)
	for c := range chunks {
		lo := c * scoreChunk
		hi := min(lo+scoreChunk, n)
		g.Go(func() error {
			s := model.NewScratch(nf)
			sum := 0.0
			for i := lo; i < hi; i++ {
				p, ok := params[e.assign[i]]
				if !ok || p.Degenerate {
					sum += model.ScoreFloor
					continue
				}
				sum += model.LogLikelihood(e.ds, p, i, s)
			}
			chunks[c] = sum
			return nil
		})
	}
	_ = g.Wait()

	total := 0.0
	for _, v := range chunks {
		total += v
	}
	for _, id := range slices.Sorted(maps.Keys(params)) {
		if p := params[id]; !p.Degenerate {
			total -= e.penalizer.Penalty(p)
		}
	}
	if math.IsNaN(total) {
		return math.Inf(-1)
	}
	return total
}

// prune removes every non-noise cluster without members and returns their ids.
func (e *Engine) prune() []int {
	var removed []int
	for _, id := range e.liveIDs() {
		if id != NoiseClusterID && e.members[id].IsEmpty() {
			e.removeCluster(id)
			removed = append(removed, id)
		}
	}
	return removed
}
