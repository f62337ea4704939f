package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/adapters"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/classify"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/crm"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/dialog"
	apphttp "github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/http"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/lock"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/relay"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/session"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/webhook"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/config"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/events"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/logger"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/validator"
)

type redisHealth struct {
	client *redis.Client
}

func (h redisHealth) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting bot", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var (
		lockBackend lock.Backend
		store       session.Store = session.NewMemoryStore()
		health      apphttp.HealthChecker
	)
	if cfg.IsRedisEnabled() {
		opt, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			log.Error("invalid REDIS_URL", "error", err)
			panic("invalid REDIS_URL: " + err.Error())
		}
		client := redis.NewClient(opt)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			// The lock coordinator degrades on its own; startup does not
			// wait for Redis.
			log.Warn("redis unreachable at startup", "error", err)
		}
		lockBackend = lock.NewRedisBackend(client, cfg.GetRedisKeyPrefix())
		store = session.NewRedisStore(client, cfg.GetRedisKeyPrefix())
		health = redisHealth{client: client}
	} else {
		log.Warn("redis disabled, running with in-memory sessions and local-only locking")
	}

	settings, err := crm.Load(cfg.GetCRMSettingsPath())
	if err != nil {
		log.Error("failed to load crm settings", "error", err)
		panic("failed to load crm settings: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// ========================================================================
	// Dialog Pipeline
	// ========================================================================

	classifyCfg := classify.Config{
		Pin:                 cfg.ClassificationPin,
		CanaryPercent:       cfg.GetCanaryPercent(),
		ShadowEnabled:       cfg.IsShadowCompareEnabled(),
		ShadowSamplePercent: cfg.GetShadowSamplePercent(),
	}

	orch := dialog.NewOrchestrator(dialog.Deps{
		Locks:    lock.NewCoordinator(lockBackend, cfg, log),
		Store:    store,
		Settings: settings,
		Classify: classifyCfg,
		Bus:      eventBus,
		Log:      log,
		Flows: map[string]dialog.Flow{
			classify.ModeLegacy: &adapters.LogFlow{FlowName: classify.ModeLegacy, Log: log},
			classify.ModeNew:    &adapters.LogFlow{FlowName: classify.ModeNew, Log: log},
		},
		Replier:         &adapters.LogReplier{Log: log},
		CRM:             &adapters.LogCRM{Log: log},
		HistoryMaxTurns: cfg.GetSessionHistoryMaxTurns(),
		SmallTalkDedup:  cfg.GetSmallTalkDedupWindow(),
	})

	// ========================================================================
	// Trace Relay (optional)
	// ========================================================================

	var relayWorker *relay.Worker
	if cfg.IsRelayEnabled() {
		enqueuer, err := relay.NewEnqueuer(cfg.GetRelayRedisURL(), cfg.GetRelayQueueName(), log)
		if err != nil {
			log.Error("failed to initialize trace relay", "error", err)
			panic("failed to initialize trace relay: " + err.Error())
		}
		defer enqueuer.Close()
		enqueuer.Subscribe(eventBus)

		relayWorker, err = relay.NewWorker(cfg.GetRelayRedisURL(), cfg.GetRelayQueueName(), cfg.GetRelayConcurrency(), log)
		if err != nil {
			log.Error("failed to initialize relay worker", "error", err)
			panic("failed to initialize relay worker: " + err.Error())
		}
		log.Info("trace relay enabled", "queue", cfg.GetRelayQueueName())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	engine := apphttp.NewRouter(&apphttp.App{
		Env:    cfg.Env,
		Config: cfg,
		Logger: log,
		Health: health,
		Modules: []apphttp.Module{
			webhook.NewModule(orch, val, log),
		},
	})

	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relayWorker != nil {
		g.Go(relayWorker.Run)
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if relayWorker != nil {
			relayWorker.Shutdown()
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}
