package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/scenepool/internal/sim"
	"github.com/ajitpratap0/scenepool/pkg/config"
	"github.com/ajitpratap0/scenepool/pkg/logger"
	"github.com/ajitpratap0/scenepool/pkg/metrics"
	"github.com/ajitpratap0/scenepool/pkg/observability"
	"github.com/ajitpratap0/scenepool/pkg/pool"
	"github.com/ajitpratap0/scenepool/pkg/scene"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	root := &cobra.Command{
		Use:   "scenepool",
		Short: "scenepool - lifecycle-driven object recycling",
		Long: `scenepool runs a spawn/despawn simulation over a scene tree. Components are
acquired from a bounded pool and return to it automatically when the tree
detaches them.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("scenepool v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var configFile string

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			out, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	var jsonOutput bool
	var cpuProfile, memProfile string
	var ticks, spawnPerTick, capacity int

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation",
		Long: `Run the spawn/despawn simulation and print a report.

Settings come from the config file, then SCENEPOOL_* environment variables,
then flags.

Example:
  scenepool run --config scenepool.yaml --ticks 1200 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ticks") {
				cfg.Simulation.Ticks = ticks
			}
			if cmd.Flags().Changed("spawn-per-tick") {
				cfg.Simulation.SpawnPerTick = spawnPerTick
			}
			if cmd.Flags().Changed("capacity") {
				cfg.Pool.Capacity = capacity
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cpuProfile != "" {
				stopCPU, err := startCPUProfile(cpuProfile)
				if err != nil {
					return err
				}
				defer stopCPU()
			}
			if err := runSimulation(cmd.Context(), cfg, jsonOutput); err != nil {
				return err
			}
			if memProfile != "" {
				return writeHeapProfile(memProfile)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML/JSON config file (optional)")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	runCmd.Flags().IntVar(&ticks, "ticks", 0, "Override simulation.ticks")
	runCmd.Flags().IntVar(&spawnPerTick, "spawn-per-tick", 0, "Override simulation.spawn_per_tick")
	runCmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile to file")
	runCmd.Flags().StringVar(&memProfile, "memprofile", "", "Write a heap profile to file after the run")
	runCmd.Flags().IntVar(&capacity, "capacity", 0, "Override pool.capacity")
	root.AddCommand(runCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSimulation(ctx context.Context, cfg *config.Config, jsonOutput bool) error {
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	shutdown, err := observability.Setup(ctx, cfg.Tracing, version, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPoolMetrics(reg)

	if cfg.Metrics.Enabled {
		srv := serveMetrics(cfg.Metrics, reg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	components := pool.New(scene.NewComponent,
		pool.WithName(cfg.Pool.Name),
		pool.WithCapacity(cfg.Pool.Capacity),
		pool.WithInitialCount(cfg.Pool.InitialCount),
		pool.WithLogger(log),
		pool.WithMetrics(m),
	)
	defer components.Close()

	tree := scene.NewTree(scene.WithLogger(log))
	s, err := sim.New(components, tree, cfg.Simulation, sim.WithLogger(log), sim.WithMetrics(m))
	if err != nil {
		return err
	}

	report, err := s.Run(logger.WithPool(ctx, cfg.Pool.Name))
	if err != nil {
		return err
	}

	if jsonOutput {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	printReport(report)
	return nil
}

func serveMetrics(cfg config.MetricsConfig, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("serving metrics", zap.String("address", cfg.Address), zap.String("path", cfg.Path))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func printReport(r *sim.Report) {
	fmt.Printf("Ticks:        %d (%v)\n", r.Ticks, r.Elapsed.Round(time.Millisecond))
	fmt.Printf("Spawned:      %d\n", r.Spawned)
	fmt.Printf("Despawned:    %d\n", r.Despawned)
	fmt.Printf("Peak live:    %d\n", r.PeakLive)
	fmt.Printf("Constructed:  %d\n", r.Pool.Constructed)
	fmt.Printf("Reused:       %d (%.1f%%)\n", r.Pool.Reused, r.Pool.HitRate()*100)
	fmt.Printf("Discarded:    %d\n", r.Pool.Discarded)
	fmt.Printf("Idle:         %d/%d\n", r.Pool.Idle, r.Pool.Capacity)
	if r.Pool.ContractViolations > 0 {
		fmt.Printf("Violations:   %d\n", r.Pool.ContractViolations)
	}
	fmt.Printf("RSS:          %.1f MiB\n", float64(r.RSSBytes)/(1<<20))
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("failed to create memory profile: %w", err)
	}
	defer f.Close()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}
	return nil
}
