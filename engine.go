package maskedem

import (
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hupe1980/maskedem/dataset"
	"github.com/hupe1980/maskedem/internal/model"
)

// NoiseClusterID is the reserved id of the noise cluster. It is never split,
// merged or removed.
const NoiseClusterID = model.NoiseClusterID

// Engine clusters one dataset. It owns the assignment vector and the live
// cluster set; the dataset itself is shared read-only.
//
// All exported methods are safe for concurrent use. Each step is applied
// atomically: observers never see a half-applied iteration.
type Engine struct {
	mu sync.Mutex

	cfg       Config
	ds        *dataset.Dataset
	acc       *model.Accumulator
	penalizer model.Penalizer
	workers   int

	logger   *Logger
	metrics  MetricsCollector
	rng      *rand.Rand
	runID    string
	progress rate.Sometimes

	initialized bool
	state       State
	iteration   int
	nextID      int
	forceFull   bool
	lastSplit   int

	assign  []int
	live    *roaring.Bitmap
	members map[int]*roaring.Bitmap
	params  map[int]*model.Params

	// candidates[i] lists the clusters point i is scored against on quick
	// steps. It is rebuilt on every full step.
	candidates [][]int32

	prev, prev2     []int
	prevFP, prev2FP uint32
	cycles          int

	best      []int
	bestScore float64
	lastScore float64
}

// New creates an engine for ds. It fails with an *InvalidDataError when ds is
// nil or empty and with a *ConfigError when cfg is out of range.
func New(ds *dataset.Dataset, cfg Config, optFns ...Option) (*Engine, error) {
	if ds == nil {
		return nil, &InvalidDataError{Point: -1, Feature: -1, Reason: "nil dataset"}
	}
	if ds.NumPoints() == 0 {
		return nil, &InvalidDataError{Point: -1, Feature: -1, Reason: "dataset has no points"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.rand == nil {
		o.rand = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Engine{
		cfg: cfg,
		ds:  ds,
		acc: model.NewAccumulator(ds, cfg.RidgePrior),
		penalizer: model.Penalizer{
			K:      cfg.PenaltyK,
			KLogN:  cfg.PenaltyKLogN,
			Points: ds.NumPoints(),
		},
		workers:   workers,
		logger:    o.logger.WithRunID(o.runID),
		metrics:   o.metricsCollector,
		rng:       o.rand,
		runID:     o.runID,
		progress:  rate.Sometimes{Interval: time.Second},
		state:     StateInitializing,
		bestScore: math.Inf(-1),
		lastScore: math.Inf(-1),
	}, nil
}

// RunID returns the id attached to log records and snapshots.
func (e *Engine) RunID() string { return e.runID }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Dataset returns the dataset being clustered.
func (e *Engine) Dataset() *dataset.Dataset { return e.ds }

// State returns the current driver state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Iteration returns the number of completed steps.
func (e *Engine) Iteration() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iteration
}

// Clusters returns a copy of the current assignment: one cluster id per
// point, 0 meaning noise. It returns nil before initialization.
func (e *Engine) Clusters() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.assign)
}

// ClusterIDs returns the live non-noise cluster ids in ascending order.
func (e *Engine) ClusterIDs() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	ids := make([]int, 0, e.live.GetCardinality())
	for _, id := range e.live.ToArray() {
		if id != NoiseClusterID {
			ids = append(ids, int(id))
		}
	}
	return ids
}

// Sizes returns the member count of every live cluster, noise included.
func (e *Engine) Sizes() map[int]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	sizes := make(map[int]int, len(e.members))
	for id, m := range e.members {
		sizes[id] = int(m.GetCardinality())
	}
	return sizes
}

// Score returns the penalized log-likelihood of the current assignment, with
// every cluster re-estimated from its members. It returns -Inf before
// initialization.
func (e *Engine) Score() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return math.Inf(-1)
	}
	params := e.estimateAll()
	return e.penalizedScore(params)
}

// numClusters returns the number of live non-noise clusters.
func (e *Engine) numClusters() int {
	n := int(e.live.GetCardinality())
	if e.live.Contains(NoiseClusterID) {
		n--
	}
	return n
}

// liveIDs returns the live cluster ids, noise included, in ascending order.
func (e *Engine) liveIDs() []int {
	arr := e.live.ToArray()
	ids := make([]int, len(arr))
	for i, id := range arr {
		ids[i] = int(id)
	}
	return ids
}

// move reassigns point i to cluster to.
func (e *Engine) move(i, to int) {
	from := e.assign[i]
	if from == to {
		return
	}
	e.members[from].Remove(uint32(i))
	e.members[to].Add(uint32(i))
	e.assign[i] = to
}

// addCluster makes id live with an empty member set.
func (e *Engine) addCluster(id int) {
	e.live.Add(uint32(id))
	e.members[id] = roaring.New()
}

// removeCluster drops id from the live set. Its members must already have
// been moved elsewhere.
func (e *Engine) removeCluster(id int) {
	e.live.Remove(uint32(id))
	delete(e.members, id)
	delete(e.params, id)
}

// resetRun rebuilds the member sets from assign and clears all run state
// derived from previous steps.
func (e *Engine) resetRun(assign []int, nextID int) {
	e.assign = assign
	e.nextID = nextID
	e.live = roaring.New()
	e.members = make(map[int]*roaring.Bitmap)
	e.params = nil
	e.candidates = nil
	e.addCluster(NoiseClusterID)
	for i, id := range assign {
		if _, ok := e.members[id]; !ok {
			e.addCluster(id)
		}
		e.members[id].Add(uint32(i))
	}
	e.prev, e.prev2 = nil, nil
	e.cycles = 0
	e.forceFull = true
	e.best = nil
	e.bestScore = math.Inf(-1)
	e.initialized = true
}
