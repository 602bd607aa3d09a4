package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/taskflow/internal/api"
	"github.com/phrazzld/taskflow/internal/config"
	"github.com/phrazzld/taskflow/internal/events"
	"github.com/phrazzld/taskflow/internal/metrics"
	"github.com/phrazzld/taskflow/internal/platform/logger"
	"github.com/phrazzld/taskflow/internal/substrate"
	"github.com/phrazzld/taskflow/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys maps each run flag to its configuration key.
var flagKeys = map[string]string{
	"producers":      "pipeline.producers",
	"consumers":      "pipeline.consumers",
	"queue-capacity": "pipeline.queue_capacity",
	"duration":       "pipeline.duration",
	"min-pause":      "pipeline.min_pause",
	"max-pause":      "pipeline.max_pause",
	"max-tasks":      "pipeline.max_tasks",
	"initial-value":  "pipeline.initial_value",
	"substrate":      "pipeline.substrate",
	"seeded":         "random.seeded",
	"seed":           "random.seed",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"status-addr":    "status.addr",
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for one window",
		Long: `Start the producers and consumers, stop production when the run window
ends or on SIGINT/SIGTERM, then drain the queue and join every worker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, v)
		},
	}

	flags := runCmd.Flags()
	flags.Int("producers", config.DefaultProducers, "number of producer workers")
	flags.Int("consumers", config.DefaultConsumers, "number of consumer workers")
	flags.Int("queue-capacity", config.DefaultQueueCapacity, "maximum number of queued tasks")
	flags.Duration("duration", config.DefaultDuration, "run window")
	flags.Duration("min-pause", config.DefaultMinPause, "shortest pause between worker steps")
	flags.Duration("max-pause", config.DefaultMaxPause, "longest pause between worker steps")
	flags.Uint64("max-tasks", 0, "stop production after this many tasks (0 = unlimited)")
	flags.Float32("initial-value", 0, "starting accumulator value")
	flags.String("substrate", config.DefaultSubstrate, "worker substrate: threads or tasks")
	flags.Bool("seeded", false, "derive every worker's random stream from --seed")
	flags.Uint64("seed", config.DefaultSeed, "seed for reproducible runs")
	flags.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	flags.String("log-format", config.DefaultLogFormat, "log format: json or text")
	flags.String("status-addr", "", "serve /health, /stats and /metrics on this address")

	for name, key := range flagKeys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	return runCmd
}

func runPipeline(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.LoadWith(v)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cmd.OutOrStdout(), cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	rt, err := substrate.ByName(cfg.Pipeline.Substrate)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(events.NewLogHandler(log))
	emitter.RegisterHandler(collector)

	sup, err := task.NewSupervisor(task.SupervisorConfig{
		Producers:     cfg.Pipeline.Producers,
		Consumers:     cfg.Pipeline.Consumers,
		QueueCapacity: cfg.Pipeline.QueueCapacity,
		Duration:      cfg.Pipeline.Duration,
		MaxTasks:      cfg.Pipeline.MaxTasks,
		InitialValue:  cfg.Pipeline.InitialValue,
	}, rt, emitter, log)
	if err != nil {
		return err
	}

	if cfg.Random.Seeded {
		sup.SetPolicyFactory(task.SeededPolicies(cfg.Random.Seed, cfg.Pipeline.MinPause, cfg.Pipeline.MaxPause))
	} else {
		sup.SetPolicyFactory(task.UnseededPolicies(cfg.Pipeline.MinPause, cfg.Pipeline.MaxPause))
	}

	if err := collector.TrackQueue(sup.Queue()); err != nil {
		return fmt.Errorf("failed to register queue metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		serverDone   chan error
		cancelServer context.CancelFunc = func() {}
	)
	if cfg.Status.Addr != "" {
		var serverCtx context.Context
		serverCtx, cancelServer = context.WithCancel(context.Background())
		defer cancelServer()

		router := api.NewRouter(api.RouterConfig{
			Stats:    sup,
			Stop:     stop,
			Gatherer: reg,
			Logger:   log,
		})
		server := api.NewServer(cfg.Status.Addr, router, log)

		serverDone = make(chan error, 1)
		go func() {
			serverDone <- server.Serve(serverCtx)
		}()
	}

	summary, runErr := sup.Run(ctx)

	cancelServer()
	if serverDone != nil {
		if err := <-serverDone; err != nil {
			log.Warn("status server stopped with error", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("pipeline failed: %w", runErr)
	}

	log.Info("run complete",
		"run_id", summary.RunID,
		"stop_reason", summary.StopReason,
		"issued", summary.Issued,
		"drain_ms", summary.FinishedAt.Sub(summary.StopRequestedAt).Milliseconds(),
		"total_ms", summary.FinishedAt.Sub(summary.StartedAt).Milliseconds())
	return nil
}
