package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/maskedem"
	"github.com/hupe1980/maskedem/blobstore"
	"github.com/hupe1980/maskedem/checkpoint"
	"github.com/hupe1980/maskedem/promcollector"
	"github.com/hupe1980/maskedem/testutil"
)

type runOptions struct {
	scenario string
	config   string

	checkpointDir string
	s3Bucket      string
	s3Region      string
	s3Endpoint    string
	minioEndpoint string
	minioBucket   string
	minioSecure   bool
	prefix        string

	checkpointEvery int
	keep            int
	compression     string
	resume          string
	metricsAddr     string
	fraction        float64
}

var runFlags runOptions

// summary is what a run reports once it stops.
type summary struct {
	RunID       string
	Scenario    string
	NumPoints   int
	NumFeatures int
	State       maskedem.State
	Iterations  int
	Clusters    int
	Sizes       map[int]int
	Score       float64
	Checkpoints int
	// Recovery is nil when every generating group landed in its own cluster.
	Recovery error
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(logLevel, logJSON)
	if err != nil {
		return err
	}
	sum, err := runScenario(ctx, runFlags, logger)
	if sum != nil {
		printSummary(cmd.OutOrStdout(), sum)
	}
	return err
}

func newLogger(level string, json bool) (*maskedem.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if json {
		return maskedem.NewJSONLogger(l), nil
	}
	return maskedem.NewTextLogger(l), nil
}

// loadScenario resolves a built-in scenario name or reads a YAML file.
func loadScenario(nameOrPath string) (testutil.Scenario, error) {
	if s, ok := testutil.Scenarios()[nameOrPath]; ok {
		return s, nil
	}
	f, err := os.Open(nameOrPath)
	if err != nil {
		return testutil.Scenario{}, fmt.Errorf("scenario %q is neither built in nor readable: %w", nameOrPath, err)
	}
	defer f.Close()

	var s testutil.Scenario
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return testutil.Scenario{}, fmt.Errorf("parse scenario %s: %w", nameOrPath, err)
	}
	if s.Name == "" {
		s.Name = nameOrPath
	}
	return s, nil
}

func loadEngineConfig(path string) (maskedem.Config, error) {
	if path == "" {
		return maskedem.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return maskedem.Config{}, err
	}
	defer f.Close()
	return maskedem.LoadConfig(f)
}

func runScenario(ctx context.Context, o runOptions, logger *maskedem.Logger) (*summary, error) {
	sc, err := loadScenario(o.scenario)
	if err != nil {
		return nil, err
	}
	ds, _, err := sc.Generate()
	if err != nil {
		return nil, err
	}
	cfg, err := loadEngineConfig(o.config)
	if err != nil {
		return nil, err
	}
	comp, err := checkpoint.ParseCompression(o.compression)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, o)
	if err != nil {
		return nil, err
	}

	opts := []maskedem.Option{maskedem.WithLogger(logger)}
	if o.resume != "" {
		opts = append(opts, maskedem.WithRunID(o.resume))
	}
	if o.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, maskedem.WithMetricsCollector(promcollector.New(reg)))
		srv := &http.Server{
			Addr:              o.metricsAddr,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	eng, err := maskedem.New(ds, cfg, opts...)
	if err != nil {
		return nil, err
	}
	logger = logger.WithRunID(eng.RunID())

	if o.resume != "" {
		if store == nil {
			return nil, errors.New("--resume needs a checkpoint store")
		}
		name, err := checkpoint.Latest(ctx, store, o.resume)
		if err != nil {
			return nil, err
		}
		snap, err := checkpoint.Load(ctx, store, name)
		if err != nil {
			return nil, err
		}
		if err := eng.Restore(snap); err != nil {
			return nil, err
		}
		logger.Info("resumed from checkpoint", "checkpoint", name, "iteration", snap.Iteration)
	}

	cp := &checkpointer{store: store, compression: comp, keep: o.keep, logger: logger}
	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("%w: %w", maskedem.ErrAborted, err)
			break
		}
		r, err := eng.Step(ctx)
		if errors.Is(err, maskedem.ErrTerminated) {
			break
		}
		if err != nil && !errors.Is(err, maskedem.ErrDiverged) {
			return nil, err
		}
		if o.checkpointEvery > 0 && r.Iteration%o.checkpointEvery == 0 {
			if err := cp.save(ctx, eng); err != nil {
				return nil, err
			}
		}
		if r.State.Terminal() {
			break
		}
	}
	if err := cp.save(context.WithoutCancel(ctx), eng); err != nil {
		return nil, err
	}

	sum := &summary{
		RunID:       eng.RunID(),
		Scenario:    sc.Name,
		NumPoints:   ds.NumPoints(),
		NumFeatures: ds.NumFeatures(),
		State:       eng.State(),
		Iterations:  eng.Iteration(),
		Clusters:    len(eng.ClusterIDs()),
		Sizes:       eng.Sizes(),
		Score:       eng.Score(),
		Checkpoints: cp.saved,
	}
	if assign := eng.Clusters(); assign != nil {
		sum.Recovery = testutil.WellClustered(assign, len(sc.Centres), sc.PointsPerCentre, o.fraction)
	}
	return sum, runErr
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

type checkpointer struct {
	store       blobstore.Store
	compression checkpoint.Compression
	keep        int
	logger      *maskedem.Logger
	saved       int
}

func (c *checkpointer) save(ctx context.Context, eng *maskedem.Engine) error {
	if c.store == nil {
		return nil
	}
	s := eng.Snapshot()
	if s == nil {
		return nil
	}
	name, err := checkpoint.Save(ctx, c.store, s, c.compression)
	if err != nil {
		return err
	}
	c.saved++
	c.logger.Debug("checkpoint saved", "checkpoint", name, "iteration", s.Iteration)
	if c.keep > 0 {
		return checkpoint.Prune(ctx, c.store, s.RunID, c.keep)
	}
	return nil
}

func printSummary(w io.Writer, s *summary) {
	fmt.Fprintf(w, "run        %s\n", s.RunID)
	fmt.Fprintf(w, "scenario   %s (%d points, %d features)\n", s.Scenario, s.NumPoints, s.NumFeatures)
	fmt.Fprintf(w, "state      %s after %d iterations\n", s.State, s.Iterations)
	fmt.Fprintf(w, "clusters   %d (noise holds %d points)\n", s.Clusters, s.Sizes[maskedem.NoiseClusterID])
	fmt.Fprintf(w, "score      %.4f\n", s.Score)
	if s.Checkpoints > 0 {
		fmt.Fprintf(w, "saved      %d checkpoints\n", s.Checkpoints)
	}
	if s.Recovery != nil {
		fmt.Fprintf(w, "recovery   failed: %v\n", s.Recovery)
	} else {
		fmt.Fprintln(w, "recovery   ok")
	}
}
