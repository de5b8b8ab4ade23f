package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roundsbot/internal/adapter/effects"
	"roundsbot/internal/adapter/feed"
	"roundsbot/internal/adapter/filestore"
	httpadapter "roundsbot/internal/adapter/http"
	metricsinmem "roundsbot/internal/adapter/metrics/inmemory"
	"roundsbot/internal/adapter/navbackend"
	gormrepo "roundsbot/internal/adapter/repo/gorm"
	memrepo "roundsbot/internal/adapter/repo/memory"
	"roundsbot/internal/adapter/storebackend"
	"roundsbot/internal/adapter/telemetry"
	"roundsbot/internal/app/gateway"
	"roundsbot/internal/app/ports"
	"roundsbot/internal/app/registry"
	"roundsbot/internal/app/replay"
	"roundsbot/internal/app/sequencer"
	"roundsbot/internal/app/status"
	"roundsbot/internal/config"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := pflag.String("config", os.Getenv("ROUNDSBOT_CONFIG"), "path to roundsbot.yaml")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roundsbot: %v\n", err)
		os.Exit(2)
	}
	logger := newLogger(os.Stderr, cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("roundsbot stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	recorder := metricsinmem.NewRecorder()
	pump := telemetry.NewPump(cfg.Telemetry.Buffer, cfg.Telemetry.Keep, logger.With("component", "telemetry"))
	fx := effects.NewLogging(logger.With("component", "effects"))

	nav, err := navbackend.New(cfg.Navigation, pump, logger.With("component", "navbackend"))
	if err != nil {
		return fmt.Errorf("navigation client: %w", err)
	}
	store, err := storebackend.New(cfg.Storage, logger.With("component", "storebackend"))
	if err != nil {
		return fmt.Errorf("storage client: %w", err)
	}
	journal, err := openJournal(ctx, cfg.Journal, logger)
	if err != nil {
		return err
	}

	regCfg := registry.Config{Source: nav, Logger: logger.With("component", "registry")}
	if cfg.Registry.SnapshotPath != "" {
		regCfg.Snapshot = filestore.NewSnapshot(cfg.Registry.SnapshotPath)
	}
	reg := registry.New(regCfg)
	if _, err := reg.Refresh(ctx); err != nil {
		logger.Warn("initial poi refresh failed, navigation will report unknown locations until the next refresh", "error", err)
	}

	// The sequencer asks the assignment feed for work, and the feed hands
	// assignments back to the sequencer.
	var listener *feed.Listener
	seq := sequencer.New(sequencer.Config{
		Resolver:       reg,
		Navigator:      nav,
		Journal:        journal,
		Feed:           nextRequester(func(req ports.NextRequest) { listener.RequestNext(req) }),
		Metrics:        recorder,
		Logger:         logger.With("component", "sequencer"),
		Plan:           cfg.Sequencer.Plan,
		BackendRetries: cfg.Sequencer.BackendRetries,
		EventTimeout:   cfg.Sequencer.EventTimeout,
		QueueSize:      cfg.Sequencer.QueueSize,
		EventQueueSize: cfg.Sequencer.EventQueueSize,
		DedupeWindow:   cfg.Sequencer.DedupeWindow,
		JournalTimeout: cfg.Sequencer.JournalTimeout,
	})
	feedCfg := cfg.Feed
	feedCfg.Name = "assignments"
	listener = feed.New(feedCfg, feed.AssignmentHandler(seq, logger), recorder, logger.With("component", "feed", "feed", feedCfg.Name))

	var emergency *feed.Listener
	if cfg.Emergency.URL != "" {
		emCfg := cfg.Emergency
		emCfg.Name = "emergency"
		emergency = feed.New(emCfg, feed.EmergencyHandler(logger), recorder, logger.With("component", "feed", "feed", emCfg.Name))
	}

	h := httpadapter.Handler{
		GatewayUC: gateway.UseCase{
			Events:    seq,
			Localizer: nav,
			Positions: store,
			Effects:   fx,
			Logger:    logger.With("component", "gateway"),
		},
		StatusUC:  status.UseCase{Tasks: seq, Feed: status.FeedFunc(func() string { return string(listener.State()) })},
		ReplayUC:  replay.UseCase{Journal: journal},
		KPI:       kpiView{metrics: recorder, effects: fx, registry: reg},
		Telemetry: pump,
		CORS:      cfg.Server.CORS,
	}
	s := server.Default(server.WithHostPorts(cfg.Server.Addr), server.WithExitWaitTime(cfg.Server.ShutdownTimeout))
	h.RegisterRoutes(s)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("roundsbot gateway listening", "addr", cfg.Server.Addr)
		if err := s.Run(); err != nil && gctx.Err() == nil {
			return fmt.Errorf("http gateway: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http gateway shutdown", "error", err)
		}
		return nil
	})
	g.Go(func() error { return listener.Run(gctx) })
	if emergency != nil {
		g.Go(func() error { return emergency.Run(gctx) })
	}
	g.Go(func() error { return reg.RunRefreshLoop(gctx, cfg.Registry.RefreshInterval) })
	g.Go(func() error { return pump.Run(gctx) })
	g.Go(func() error { return seq.Run(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

type nextRequester func(ports.NextRequest)

func (f nextRequester) RequestNext(req ports.NextRequest) { f(req) }

func openJournal(ctx context.Context, cfg config.JournalConfig, logger *slog.Logger) (ports.TaskJournal, error) {
	if cfg.DSN == "" && cfg.Path == "" {
		logger.Warn("task journal is in memory only, history is lost on restart")
		return memrepo.NewJournal(), nil
	}
	if cfg.DSN == "" {
		j, err := filestore.OpenJournal(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal %s: %w", cfg.Path, err)
		}
		logger.Info("task journal", "backend", "file", "path", cfg.Path)
		return j, nil
	}
	db, err := gormrepo.OpenPostgres(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MigrationsDir != "" {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := gormrepo.ApplyMigrations(migrateCtx, db, cfg.MigrationsDir); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	logger.Info("task journal", "backend", "postgres")
	return gormrepo.NewTaskJournalRepo(db), nil
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

type kpiView struct {
	metrics  *metricsinmem.Recorder
	effects  *effects.Logging
	registry *registry.Registry
}

func (k kpiView) SnapshotAny() any {
	return map[string]any{
		"metrics":   k.metrics.Snapshot(),
		"effects":   k.effects.Snapshot(),
		"locations": len(k.registry.Entries()),
	}
}
