package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/silviutimaru/mivton-presence/pkg/activity"
	"github.com/silviutimaru/mivton-presence/pkg/broadcast"
	"github.com/silviutimaru/mivton-presence/pkg/config"
	"github.com/silviutimaru/mivton-presence/pkg/database"
	"github.com/silviutimaru/mivton-presence/pkg/errors"
	"github.com/silviutimaru/mivton-presence/pkg/events"
	httpapi "github.com/silviutimaru/mivton-presence/pkg/http"
	"github.com/silviutimaru/mivton-presence/pkg/logging"
	"github.com/silviutimaru/mivton-presence/pkg/metrics"
	"github.com/silviutimaru/mivton-presence/pkg/models"
	"github.com/silviutimaru/mivton-presence/pkg/policy"
	"github.com/silviutimaru/mivton-presence/pkg/presence"
	"github.com/silviutimaru/mivton-presence/pkg/registry"
	"github.com/silviutimaru/mivton-presence/pkg/repository"
	"github.com/silviutimaru/mivton-presence/pkg/scheduler"
	"github.com/silviutimaru/mivton-presence/pkg/services"
	"github.com/silviutimaru/mivton-presence/pkg/websocket"
)

// connectionListener forwards count transitions into the presence store and
// keeps the active-connections gauge in step. It tracks per-user counts so
// bulk removals (force-logout) adjust the gauge by the right amount.
type connectionListener struct {
	store *presence.Store

	mu     sync.Mutex
	counts map[string]int
}

func (l *connectionListener) OnConnectionChange(userID string, liveCount int) {
	l.mu.Lock()
	prev := l.counts[userID]
	if liveCount == 0 {
		delete(l.counts, userID)
	} else {
		l.counts[userID] = liveCount
	}
	l.mu.Unlock()

	metrics.ConnectionsActive.Add(float64(liveCount - prev))
	l.store.OnConnectionChange(userID, liveCount)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logging.Init(logging.LogLevel(cfg.Logging.Level), cfg.Logging.Format); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger := logging.Get()
	defer logger.Sync()

	logger.Info("starting presence server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("db_driver", cfg.Database.Driver))

	// Settings persistence
	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	settingsRepo := repository.NewSettingsRepository(db)
	relationRepo := repository.NewRelationRepository(db)
	chatRepo := repository.NewChatSessionRepository(db)

	// Core presence state. The registry feeds connection-count transitions
	// into the store through the listener; the store pushes effective-status
	// changes into the broadcaster.
	store := presence.New()
	listener := &connectionListener{store: store, counts: make(map[string]int)}
	reg := registry.New(listener)
	tracker := activity.New(store)

	engine := policy.New(store, settingsRepo, relationRepo, chatRepo,
		policy.WithFailureHook(func(error) { metrics.PolicyFailures.Inc() }))

	hub := websocket.NewHub(logger)
	dispatcher := events.NewHubDispatcher(hub, logger)

	broadcaster := broadcast.New(engine, store, relationRepo, dispatcher, logger,
		broadcast.WithEventHook(metrics.BroadcastEvents.Inc))

	store.SetOnChange(func(rec models.PresenceRecord) {
		metrics.StatusChanges.WithLabelValues(string(rec.Status)).Inc()
		broadcaster.OnPresenceChanged(context.Background(), rec)
	})

	errHandler := errors.NewHandler(true, func(msg string, err error) {
		logger.Warn(msg, zap.Error(err))
	})

	service := services.NewPresenceService(
		reg, store, tracker, engine, broadcaster, settingsRepo,
		cfg.Presence.IdleTimeout, logger,
		services.WithHooks(
			func(n int) { metrics.SweepRemoved.Add(float64(n)) },
			metrics.AutoAwayTransitions.Inc,
			metrics.Reconciliations.Inc,
		),
	)

	wsHandler := websocket.NewHandler(hub, reg, tracker, logger, cfg.Presence.SendBuffer)
	router := httpapi.NewRouter(service, wsHandler, errHandler, logger)

	// Background tasks
	taskCtx, cancelTasks := context.WithCancel(context.Background())
	sched := scheduler.New(logger, []scheduler.Task{
		{Name: "idle-sweep", Interval: cfg.Presence.SweepInterval, Run: func(ctx context.Context) { service.RunSweep(ctx) }},
		{Name: "auto-away", Interval: cfg.Presence.AutoAwayInterval, Run: service.RunAutoAwayCheck},
		{Name: "reconcile", Interval: cfg.Presence.ReconcileInterval, Run: service.RunReconcile},
	})
	sched.Start(taskCtx)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutting down", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown error", zap.Error(err))
		}

		cancelTasks()
		sched.Wait()
		hub.Stop()

		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	logger.Info("presence server listening", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
