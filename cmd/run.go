package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qcoptim/parallel-optim/coord"
	"github.com/qcoptim/parallel-optim/coord/bayes"
	"github.com/qcoptim/parallel-optim/coord/problem"
	"github.com/qcoptim/parallel-optim/coord/trace"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// study layout
	poolSizes []int   // Pool sizes to compare
	trials    int     // Trials per pool size
	calls     int     // Evaluation budget per coordinator
	initRatio float64 // Share of the budget spent on init samples
	rounds    int     // Fixed round count; overrides the budget split

	// coordinator
	configPath     string // Coordinator YAML config
	sharingMode    string // Sharing mode
	shareInit      bool   // Share one init batch across slots
	initialSamples string // Init samples per generator, integer or "max"
	seed           int64  // Master seed

	// problem
	landscapePath string  // Landscape YAML; random when empty
	dim           int     // Parameters of a random landscape
	terms         int     // Terms of a random landscape
	noise         float64 // Shot noise of a random landscape

	// optimizer
	acquisition string // Acquisition function
	iterations  int    // Mayfly iterations per proposal

	// execution
	workers     int    // Concurrent executor jobs
	executorURL string // Remote evaluation service; local when empty
	apiKey      string // Bearer token for the remote service
	metricsAddr string // Serve Prometheus metrics on this address
	traceLevel  string // Round trace level
	traceDir    string // Directory for per-coordinator trace files
)

// runCmd runs a study using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a study comparing pool sizes on a shared evaluation stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := studyOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		if metricsAddr != "" {
			reg := prometheus.NewRegistry()
			opts.Registry = reg
			go func() {
				err := http.ListenAndServe(metricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					logrus.Errorf("metrics server: %v", err)
				}
			}()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		results, err := RunStudy(ctx, opts)
		if err != nil {
			return err
		}
		PrintResults(cmd.OutOrStdout(), results)
		logrus.Info("Study complete.")
		return nil
	},
}

// studyOptionsFromFlags layers explicitly set flags over the config file.
func studyOptionsFromFlags(cmd *cobra.Command) (StudyOptions, error) {
	cfg := coord.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = coord.LoadConfig(configPath); err != nil {
			return StudyOptions{}, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("mode") || configPath == "" {
		cfg.SharingMode = sharingMode
	}
	if flags.Changed("share-init") || configPath == "" {
		cfg.ShareInit = shareInit
	}
	if flags.Changed("seed") || configPath == "" {
		cfg.Seed = seed
	}
	if flags.Changed("initial-samples") {
		n, err := coord.ParseSampleCount(initialSamples)
		if err != nil {
			return StudyOptions{}, err
		}
		cfg.InitialSamples = n
	}
	if err := cfg.Validate(); err != nil {
		return StudyOptions{}, err
	}

	var landscape *problem.Landscape
	if landscapePath != "" {
		var err error
		if landscape, err = problem.LoadLandscape(landscapePath); err != nil {
			return StudyOptions{}, err
		}
	} else {
		rng := coord.NewPartitionedRNG(cfg.Seed).ForSubsystem(coord.SubsystemLandscape)
		landscape = problem.RandomLandscape(rng, dim, terms, noise)
	}

	bcfg := bayes.DefaultConfig()
	bcfg.Acquisition = bayes.Acquisition(acquisition)
	bcfg.Iterations = iterations

	return StudyOptions{
		PoolSizes:      poolSizes,
		Trials:         trials,
		Calls:          calls,
		InitRatio:      initRatio,
		Rounds:         rounds,
		Coord:          cfg,
		InitFromBudget: !flags.Changed("initial-samples") && configPath == "",
		Bayes:          bcfg,
		Landscape:      landscape,
		Workers:        workers,
		ExecutorURL:    executorURL,
		APIKey:         apiKey,
		TraceLevel:     trace.TraceLevel(traceLevel),
		TraceDir:       traceDir,
	}, nil
}

func init() {
	runCmd.Flags().IntSliceVar(&poolSizes, "pool-sizes", []int{1, 2, 3}, "Comma-separated pool sizes to compare")
	runCmd.Flags().IntVar(&trials, "trials", 3, "Trials per pool size")
	runCmd.Flags().IntVar(&calls, "calls", 60, "Evaluation budget per coordinator")
	runCmd.Flags().Float64Var(&initRatio, "init-ratio", 0.5, "Share of the budget spent on init samples")
	runCmd.Flags().IntVar(&rounds, "rounds", 0, "Optimisation rounds per coordinator (0 = from budget)")

	runCmd.Flags().StringVar(&configPath, "config", "", "Coordinator YAML config")
	runCmd.Flags().StringVar(&sharingMode, "mode", string(coord.Shared), "Sharing mode (independent, shared, left, right)")
	runCmd.Flags().BoolVar(&shareInit, "share-init", true, "Share one init batch across all slots")
	runCmd.Flags().StringVar(&initialSamples, "initial-samples", "", "Init samples per generator, integer or \"max\" (default from budget)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed")

	runCmd.Flags().StringVar(&landscapePath, "landscape", "", "Landscape YAML (default: random)")
	runCmd.Flags().IntVar(&dim, "dim", 3, "Parameters of a random landscape")
	runCmd.Flags().IntVar(&terms, "terms", 6, "Terms of a random landscape")
	runCmd.Flags().Float64Var(&noise, "noise", 0.01, "Noise per term evaluation of a random landscape")

	runCmd.Flags().StringVar(&acquisition, "acquisition", string(bayes.EI), "Acquisition function (ucb, pi, ei, thompson)")
	runCmd.Flags().IntVar(&iterations, "iterations", 50, "Acquisition search iterations per proposal")

	runCmd.Flags().IntVar(&workers, "workers", 4, "Concurrent executor jobs")
	runCmd.Flags().StringVar(&executorURL, "executor-url", "", "Remote evaluation service (default: in-process)")
	runCmd.Flags().StringVar(&apiKey, "api-key", "", "Bearer token for the remote evaluation service")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelRounds), "Round trace level (none, rounds)")
	runCmd.Flags().StringVar(&traceDir, "trace-dir", "", "Write one trace header/CSV pair per coordinator to this directory")
}
