// Package maskedem clusters sparse masked feature data with a masked
// expectation-maximization Gaussian mixture.
//
// Every point carries a mask strength in [0,1] per feature. Fully masked
// features are replaced by the per-feature noise distribution, partially
// masked ones are blended with it, so clusters are fitted on what each point
// actually observed. Cluster 0 is a fixed noise cluster; all other clusters
// are created, split, merged and removed by the engine.
//
// # Quick Start
//
//	ds, _ := dataset.FromDense(features, masks)
//	eng, _ := maskedem.New(ds, maskedem.DefaultConfig())
//	res, err := eng.Run(ctx)
//	fmt.Println(res.Status, res.NumClusters, res.Assignment)
//
// # Steps
//
// The engine alternates cheap quick steps, which refresh means and move
// points among the clusters they were close to on the last full step, with
// full steps, which re-estimate every covariance, merge indistinguishable
// clusters and reassign every point against every cluster:
//
//	eng.ClusterMaskStarts(ctx) // optional, Step does it on first use
//	for {
//	    r, err := eng.Step(ctx)
//	    if errors.Is(err, maskedem.ErrTerminated) {
//	        break
//	    }
//	    fmt.Println(r.Iteration, r.Kind, r.Reassigned)
//	}
//
// Splits are attempted every Config.SplitEvery iterations and once more at
// every fixed point; a split is kept only if it improves the penalized
// log-likelihood of the whole model.
//
// # Termination
//
// Run ends with one of four statuses:
//
//   - StatusConverged: a full step changed nothing and no split was accepted
//   - StatusDiverged: the assignment kept cycling between two states
//   - StatusMaxIterationsReached: Config.MaxIterations steps ran
//   - StatusAborted: the context was cancelled between steps
//
// Diverged and MaxIterationsReached results carry the best-scoring
// assignment seen on a full step.
//
// # Resuming
//
// Snapshot captures the assignment and run counters; Restore puts them back
// into an engine built on the same dataset. The checkpoint package persists
// snapshots to any blobstore.Store.
package maskedem
