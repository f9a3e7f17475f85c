// Command netsecd wires the scan orchestrator, alert pipeline,
// notification dispatch, and monitoring sweeps into a single running
// process. It is a thin demonstration entrypoint: route binding,
// request validation, and response serialization for a full HTTP API
// are left to an external collaborator service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sentinel-labs/netsec/internal/adapters"
	"github.com/sentinel-labs/netsec/internal/alerts"
	"github.com/sentinel-labs/netsec/internal/config"
	"github.com/sentinel-labs/netsec/internal/eventbus"
	"github.com/sentinel-labs/netsec/internal/logging"
	"github.com/sentinel-labs/netsec/internal/metrics"
	"github.com/sentinel-labs/netsec/internal/monitoring"
	"github.com/sentinel-labs/netsec/internal/notifications"
	"github.com/sentinel-labs/netsec/internal/scheduler"
	"github.com/sentinel-labs/netsec/internal/store"
	"github.com/sentinel-labs/netsec/internal/websocket"
)

var (
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "netsecd",
	Short:   "Security orchestration backend: scan scheduling, alert pipeline, notification dispatch",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Format:     cfg.LogFormat,
		Level:      cfg.LogLevel,
		Component:  "netsecd",
		FilePath:   cfg.LogFilePath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxAgeDays: cfg.LogMaxAgeDay,
		Compress:   true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DataPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bus := eventbus.New(256)
	bus.Start()
	defer bus.Stop()

	hub := websocket.NewHub(nil)
	go hub.Run()
	defer hub.Stop()
	hub.SubscribeToBus(bus)

	registry := adapters.NewRegistry()
	adapters.RegisterAll(registry)
	registry.InitAll(ctx)
	defer registry.ShutdownAll(ctx)

	queue, err := notifications.NewNotificationQueue(cfg.DataPath)
	if err != nil {
		return fmt.Errorf("open notification queue: %w", err)
	}
	defer queue.Stop()
	notifyManager := notifications.NewManager(cfg.Dispatch, queue)

	pipeline := alerts.NewPipeline(cfg.DedupWindow, cfg.CorrelationWindow, nil, st, bus, notifyManager)

	monitorSvc := monitoring.NewService(st, registry, bus)
	scanOrchestrator := monitoring.NewScanOrchestrator(st, registry, bus)

	sched := scheduler.New()
	sched.SetTaskHandler(func(taskCtx context.Context, taskType string, params map[string]interface{}) error {
		switch taskType {
		case "availability_sweep":
			_, err := monitorSvc.CheckDeviceAvailability(taskCtx, cfg.OfflineThreshold)
			return err
		case "tool_health_check":
			monitorSvc.CheckToolHealth(taskCtx)
			return nil
		default:
			tool, _ := params["tool"].(string)
			scanType, _ := params["scan_type"].(string)
			target, _ := params["target"].(string)
			_, err := scanOrchestrator.RunScan(taskCtx, scanType, tool, target, params)
			return err
		}
	})
	sched.Start(ctx)
	defer sched.Stop()

	if _, err := sched.AddJob("availability-sweep", scheduler.TriggerInterval,
		map[string]interface{}{"seconds": int(cfg.AvailabilitySweepPeriod.Seconds())},
		"availability_sweep", nil); err != nil {
		log.Warn().Err(err).Msg("failed to schedule availability sweep")
	}
	if _, err := sched.AddJob("tool-health-check", scheduler.TriggerInterval,
		map[string]interface{}{"seconds": int(cfg.ToolHealthCheckPeriod.Seconds())},
		"tool_health_check", nil); err != nil {
		log.Warn().Err(err).Msg("failed to schedule tool health check")
	}

	_ = pipeline // exercised by the alert-ingestion callers (webhook/API layer, out of scope here)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", hub.HandleWebSocket)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("netsecd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
