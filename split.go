package maskedem

import (
	"context"
	"maps"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/maskedem/internal/model"
)

// splitRound tries to split every live non-noise cluster once.
//
// A candidate is cut along the principal direction of its scatter and
// refined by a local two-cluster EM. Candidates that beat the unsplit
// cluster locally by more than SplitMargin are applied tentatively and kept
// only if the penalized score of the whole model improves by more than
// SplitMargin as well. Rejected candidates leave no trace: assignment,
// member sets and the id counter are restored.
//
// It returns the number of accepted splits and the penalized score of the
// resulting model.
func (e *Engine) splitRound(ctx context.Context) (int, float64) {
	params := e.estimateAll()
	base := e.penalizedScore(params)
	minSize := 2 * (e.ds.NumFeatures() + 1)

	accepted := 0
	for _, id := range e.liveIDs() {
		p := params[id]
		if id == NoiseClusterID || p.Degenerate || p.Size < minSize {
			continue
		}

		a, b, gain, ok := e.proposeSplit(p)
		if b == nil {
			continue
		}
		if !ok {
			e.metrics.RecordSplit(false)
			e.logger.LogSplit(ctx, id, 0, gain, false)
			continue
		}

		child := e.nextID
		e.addCluster(child)
		moved := b.ToArray()
		for _, i := range moved {
			e.move(int(i), child)
		}

		trial := maps.Clone(params)
		trial[id] = e.acc.Estimate(id, a)
		trial[child] = e.acc.Estimate(child, b)
		e.setWeights(trial)
		score := e.penalizedScore(trial)

		if score > base+e.cfg.SplitMargin {
			e.nextID++
			params = trial
			gain, base = score-base, score
			accepted++
			e.metrics.RecordSplit(true)
			e.logger.LogSplit(ctx, id, child, gain, true)
			continue
		}

		for _, i := range moved {
			e.move(int(i), id)
		}
		e.removeCluster(child)
		e.setWeights(params)
		e.metrics.RecordSplit(false)
		e.logger.LogSplit(ctx, id, 0, score-base, false)
	}

	if accepted > 0 {
		e.params = params
	}
	return accepted, base
}

// proposeSplit partitions the members of p into two sub-clusters and runs a
// local EM on them. b is nil when no partition exists. ok reports whether
// the split beats p on its own members by more than SplitMargin, gain being
// the penalized log-likelihood difference.
func (e *Engine) proposeSplit(p *model.Params) (a, b *roaring.Bitmap, gain float64, ok bool) {
	members := e.members[p.ID]
	dir := model.PrincipalDirection(e.ds, members, p.Mean)
	if dir == nil {
		return nil, nil, 0, false
	}

	a, b = roaring.New(), roaring.New()
	it := members.Iterator()
	for it.HasNext() {
		i := it.Next()
		if model.Project(e.ds, int(i), p.Mean, dir) <= 0 {
			a.Add(i)
		} else {
			b.Add(i)
		}
	}
	if a.IsEmpty() || b.IsEmpty() {
		return nil, nil, 0, false
	}

	s := model.NewScratch(e.ds.NumFeatures())
	var pa, pb *model.Params
	for range e.cfg.MaxSplitIterations {
		pa, pb = e.localPair(p.ID, a, b)
		if pa == nil {
			return a, b, 0, false
		}

		na, nb := roaring.New(), roaring.New()
		it := members.Iterator()
		for it.HasNext() {
			i := it.Next()
			if model.LogLikelihood(e.ds, pb, int(i), s) > model.LogLikelihood(e.ds, pa, int(i), s) {
				nb.Add(i)
			} else {
				na.Add(i)
			}
		}
		if na.IsEmpty() || nb.IsEmpty() {
			return a, b, 0, false
		}
		changed := !na.Equals(a)
		a, b = na, nb
		if !changed {
			break
		}
	}

	pa, pb = e.localPair(p.ID, a, b)
	if pa == nil {
		return a, b, 0, false
	}
	parent := e.acc.Estimate(p.ID, members)
	if parent.Degenerate {
		return a, b, 0, false
	}
	parent.SetWeight(1)

	split := e.localScore(pa, a, s) + e.localScore(pb, b, s) -
		e.penalizer.Penalty(pa) - e.penalizer.Penalty(pb)
	whole := e.localScore(parent, members, s) - e.penalizer.Penalty(parent)
	gain = split - whole
	return a, b, gain, gain > e.cfg.SplitMargin
}

// localPair estimates both halves of a split candidate with weights local to
// the parent. It returns nils when either half is degenerate.
func (e *Engine) localPair(id int, a, b *roaring.Bitmap) (*model.Params, *model.Params) {
	pa := e.acc.Estimate(id, a)
	pb := e.acc.Estimate(id, b)
	if pa.Degenerate || pb.Degenerate {
		return nil, nil
	}
	total := float64(pa.Size + pb.Size)
	pa.SetWeight(float64(pa.Size) / total)
	pb.SetWeight(float64(pb.Size) / total)
	return pa, pb
}

func (e *Engine) localScore(p *model.Params, members *roaring.Bitmap, s *model.Scratch) float64 {
	sum := 0.0
	it := members.Iterator()
	for it.HasNext() {
		sum += model.LogLikelihood(e.ds, p, int(it.Next()), s)
	}
	return sum
}
