package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/qcoptim/parallel-optim/coord"
	"github.com/qcoptim/parallel-optim/coord/batch"
	"github.com/qcoptim/parallel-optim/coord/bayes"
	"github.com/qcoptim/parallel-optim/coord/pool"
	"github.com/qcoptim/parallel-optim/coord/problem"
	"github.com/qcoptim/parallel-optim/coord/trace"
	"github.com/sirupsen/logrus"
)

// StudyOptions describes a study: every pool size is run Trials times
// against one landscape, all coordinators sharing one executor.
type StudyOptions struct {
	PoolSizes []int
	Trials    int
	// Calls is the evaluation budget of one coordinator, split between
	// init samples and rounds by InitRatio.
	Calls     int
	InitRatio float64
	// Rounds overrides the budget split when positive.
	Rounds int

	Coord coord.Config
	// InitFromBudget sizes init from Calls instead of Coord.InitialSamples.
	InitFromBudget bool
	Bayes          bayes.Config

	Landscape   *problem.Landscape
	Workers     int
	ExecutorURL string
	APIKey      string
	Registry    prometheus.Registerer
	TraceLevel  trace.TraceLevel
	// TraceDir receives one header/CSV pair per coordinator when set.
	TraceDir string
}

// StudyResult is the outcome of one coordinator.
type StudyResult struct {
	PoolSize int
	Trial    int
	Rounds   int
	Best     float64   // lowest observed cost over all slots
	BestX    []float64 // point of Best
	Exact    float64   // noiseless landscape value at BestX
	Summary  *trace.TraceSummary
}

// BudgetSplit divides calls evaluations between a pool of size n:
// round(calls·ratio/n) init samples and round(calls·(1-ratio)/n) rounds.
func BudgetSplit(calls int, ratio float64, n int) (initSamples, rounds int) {
	initSamples = int(math.Round(float64(calls) * ratio / float64(n)))
	rounds = int(math.Round(float64(calls) * (1 - ratio) / float64(n)))
	if initSamples < 1 {
		initSamples = 1
	}
	return initSamples, rounds
}

func (o StudyOptions) validate() error {
	if len(o.PoolSizes) == 0 {
		return fmt.Errorf("no pool sizes")
	}
	for _, n := range o.PoolSizes {
		if n < 1 {
			return fmt.Errorf("pool size must be >= 1, got %d", n)
		}
	}
	if o.Trials < 1 {
		return fmt.Errorf("trials must be >= 1, got %d", o.Trials)
	}
	if o.InitFromBudget && (o.Calls < 1 || o.InitRatio < 0 || o.InitRatio > 1) {
		return fmt.Errorf("invalid budget: calls=%d init-ratio=%v", o.Calls, o.InitRatio)
	}
	if o.Landscape == nil {
		return fmt.Errorf("no landscape")
	}
	if !trace.IsValidTraceLevel(string(o.TraceLevel)) {
		return fmt.Errorf("unknown trace level %q", o.TraceLevel)
	}
	if o.TraceDir != "" && o.TraceLevel != trace.TraceLevelRounds {
		return fmt.Errorf("trace dir needs trace level %q", trace.TraceLevelRounds)
	}
	return o.Landscape.Validate()
}

func (o StudyOptions) executor() (coord.Executor, error) {
	name := "local"
	if o.ExecutorURL != "" {
		name = "http"
	}
	metrics, err := batch.NewMetrics(o.Registry, name)
	if err != nil {
		return nil, err
	}
	capacity := o.Coord.ExecutorBatchCapacity
	if o.ExecutorURL != "" {
		return batch.NewHTTPExecutor(o.ExecutorURL, o.APIKey, capacity, o.Workers, metrics), nil
	}
	return batch.NewLocalExecutor(o.Landscape.Evaluate, capacity, o.Workers, metrics), nil
}

type studyRun struct {
	poolSize, trial int
	cfg             coord.Config
	coordinator     *pool.Coordinator[*bayes.Optimizer]
	trace           *trace.RoundTrace
}

// RunStudy builds every coordinator, runs them through one merged batch
// per round and reports each coordinator's best point.
func RunStudy(ctx context.Context, o StudyOptions) ([]StudyResult, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	exec, err := o.executor()
	if err != nil {
		return nil, err
	}

	var runs []studyRun
	var entries []batch.StudyEntry
	for trial := 0; trial < o.Trials; trial++ {
		for _, n := range o.PoolSizes {
			cfg := o.Coord
			cfg.Seed = o.Coord.Seed + int64(trial)*1000 + int64(n)
			initSamples, rounds := BudgetSplit(o.Calls, o.InitRatio, n)
			if o.InitFromBudget {
				cfg.InitialSamples = coord.Samples(initSamples)
			}
			if o.Rounds > 0 || !o.InitFromBudget {
				rounds = cfg.RoundSamples
				if o.Rounds > 0 {
					rounds = o.Rounds
				}
			}
			c, rt, err := o.newCoordinator(cfg, n, trial, len(runs))
			if err != nil {
				return nil, err
			}
			runs = append(runs, studyRun{poolSize: n, trial: trial, cfg: cfg, coordinator: c, trace: rt})
			entries = append(entries, batch.StudyEntry{
				Name: fmt.Sprintf("n=%d/trial=%d", n, trial), Participant: c, Rounds: rounds,
			})
		}
	}
	logrus.Infof("study: %d coordinators over a %d-term landscape in %d dims",
		len(runs), len(o.Landscape.Terms), o.Landscape.Dim)

	if err := batch.RunStudy(ctx, exec, entries); err != nil {
		return nil, err
	}

	if o.TraceDir != "" {
		if err := exportTraces(o.TraceDir, runs); err != nil {
			return nil, err
		}
	}

	results := make([]StudyResult, 0, len(runs))
	for _, r := range runs {
		res := StudyResult{PoolSize: r.poolSize, Trial: r.trial, Rounds: r.coordinator.Rounds(),
			Best: math.Inf(1), Summary: trace.Summarize(r.trace)}
		for _, b := range r.coordinator.Best() {
			if b.X != nil && b.Y < res.Best {
				res.Best, res.BestX = b.Y, b.X
			}
		}
		if res.BestX != nil {
			res.Exact = o.Landscape.Exact(res.BestX)
		}
		results = append(results, res)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].PoolSize != results[j].PoolSize {
			return results[i].PoolSize < results[j].PoolSize
		}
		return results[i].Trial < results[j].Trial
	})
	return results, nil
}

func exportTraces(dir string, runs []studyRun) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating trace dir: %w", err)
	}
	for _, r := range runs {
		base := filepath.Join(dir, fmt.Sprintf("pool%d_trial%d", r.poolSize, r.trial))
		header := trace.ExportHeader{
			Coordinator: fmt.Sprintf("n=%d/trial=%d", r.poolSize, r.trial),
			SharingMode: r.cfg.SharingMode,
			PoolSize:    r.poolSize,
			ShareInit:   r.cfg.ShareInit,
			Seed:        r.cfg.Seed,
		}
		if err := trace.Export(header, r.trace, base+".yaml", base+".csv"); err != nil {
			return err
		}
	}
	logrus.Infof("study: wrote %d traces to %s", len(runs), dir)
	return nil
}

// newCoordinator builds run's coordinator. Tokens are counter-based and
// prefixed by the run index, so request names (and the noise keyed by
// them) repeat across invocations with the same seed.
func (o StudyOptions) newCoordinator(cfg coord.Config, n, trial, run int) (*pool.Coordinator[*bayes.Optimizer], *trace.RoundTrace, error) {
	rng := coord.NewPartitionedRNG(cfg.Seed)
	optimizers := make([]*bayes.Optimizer, n)
	costs := make([]coord.CostModel, n)
	for i := 0; i < n; i++ {
		opt, err := bayes.New(o.Landscape.Dim, o.Bayes, rng.ForSubsystem(coord.SubsystemOptimizer(i)))
		if err != nil {
			return nil, nil, err
		}
		optimizers[i] = opt
		costs[i] = problem.NewCostModel(o.Landscape)
	}
	var rt *trace.RoundTrace
	if o.TraceLevel == trace.TraceLevelRounds {
		rt = trace.NewRoundTrace(o.TraceLevel)
	}
	c, err := pool.New(cfg, optimizers, costs,
		pool.WithName(fmt.Sprintf("n=%d/trial=%d", n, trial)),
		pool.WithTokenSource(&coord.CounterTokens{Prefix: fmt.Sprintf("r%d", run)}),
		pool.WithTrace(rt))
	if err != nil {
		return nil, nil, err
	}
	return c, rt, nil
}

// PrintResults writes one line per coordinator and a per-pool-size mean.
func PrintResults(w io.Writer, results []StudyResult) {
	fmt.Fprintf(w, "%-6s %-6s %-7s %-12s %-12s %s\n", "pool", "trial", "rounds", "best", "exact", "shared")
	means := make(map[int][]float64)
	var sizes []int
	for _, r := range results {
		shared := 0
		if r.Summary != nil {
			shared = r.Summary.SharedDeliveries
		}
		fmt.Fprintf(w, "%-6d %-6d %-7d %-12.5f %-12.5f %d\n", r.PoolSize, r.Trial, r.Rounds, r.Best, r.Exact, shared)
		if _, ok := means[r.PoolSize]; !ok {
			sizes = append(sizes, r.PoolSize)
		}
		means[r.PoolSize] = append(means[r.PoolSize], r.Exact)
	}
	fmt.Fprintln(w)
	for _, n := range sizes {
		var sum float64
		for _, v := range means[n] {
			sum += v
		}
		fmt.Fprintf(w, "pool %d: mean exact best %.5f over %d trials\n", n, sum/float64(len(means[n])), len(means[n]))
	}
}
