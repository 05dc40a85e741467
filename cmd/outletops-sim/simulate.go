package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"outletops-sim/internal/config"
	"outletops-sim/internal/logging"
	"outletops-sim/internal/sim"
	"outletops-sim/internal/store"
	"outletops-sim/internal/web"
)

var (
	simPrintOnly  bool
	simTUI        bool
	simAutostart  bool
	simConfigPath string
	simSchemaPath string
	simTick       time.Duration
	simLogFile    string
	simListenAddr string
	simUsersDB    string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the outlet telemetry simulator",
	Long:  "simulate starts the outlet asset simulator emitting telemetry and anomaly events, and serves the monitoring dashboard.",
	RunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()
		logger := logging.New()

		cfg, err := config.Load(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}

		writer, eventWriter, cleanup, err := newWriters(simPrintOnly, simLogFile, simTUI)
		if err != nil {
			return err
		}
		defer cleanup()

		tickOverride := simTick
		if envTick := os.Getenv("TICK_INTERVAL"); envTick != "" {
			d, err := time.ParseDuration(envTick)
			if err != nil {
				return err
			}
			tickOverride = d
		}

		st, err := store.Open(simUsersDB)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Users().SeedDefaultUsers(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), logger))
		defer cancel()

		simulator := sim.NewSimulator(cfg, writer, eventWriter, tickOverride)
		if simAutostart {
			simulator.StartAll()
		}

		srv := web.NewServer(simulator, st.Users(), web.NewAuthService(os.Getenv("OUTLETOPS_JWT_SECRET")))
		go func() {
			logger.Info("dashboard listening", "addr", simListenAddr)
			if err := srv.Start(ctx, simListenAddr); err != nil && err != http.ErrServerClosed {
				logger.Error("dashboard server failed", "error", err)
				cancel()
			}
		}()

		simDone := make(chan struct{})
		go func() {
			defer close(simDone)
			simulator.Run(ctx)
		}()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigs:
		case <-ctx.Done():
		}

		cancel()
		// Let the tick loops drain before the deferred cleanup closes the
		// writers underneath them.
		<-simDone
		logger.Info("outlet simulation stopped")
		return nil
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	simulateCmd.Flags().BoolVar(&simTUI, "tui", false, "Render a live terminal dashboard")
	simulateCmd.Flags().BoolVar(&simAutostart, "autostart", true, "Start all assets immediately")
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	simulateCmd.Flags().DurationVar(&simTick, "tick", 0, "Override per-asset tick interval (e.g. 500ms, 2s)")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export telemetry/event logs (JSONL)")
	simulateCmd.Flags().StringVar(&simListenAddr, "listen", ":8080", "Dashboard listen address")
	simulateCmd.Flags().StringVar(&simUsersDB, "users-db", "outletops.db", "Path to the SQLite user database")
}
