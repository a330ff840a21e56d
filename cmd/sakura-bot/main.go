package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/sakura-mc-bot/internal/audit"
	"github.com/park285/sakura-mc-bot/internal/bluemap"
	"github.com/park285/sakura-mc-bot/internal/bridge"
	"github.com/park285/sakura-mc-bot/internal/command"
	appcfg "github.com/park285/sakura-mc-bot/internal/config"
	"github.com/park285/sakura-mc-bot/internal/metrics"
	"github.com/park285/sakura-mc-bot/internal/msgcat"
	"github.com/park285/sakura-mc-bot/internal/obslog"
	"github.com/park285/sakura-mc-bot/internal/roles"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := roles.NewStore(cfg.SuperOperators)
	if err != nil {
		log.Fatalf("role store error: %v", err)
	}
	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	sinks, closers := openAudit(ctx, cfg, logger)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	headers := func() map[string]string {
		return map[string]string{
			"X-Bot-Username":   cfg.BotUsername,
			"X-Server-Address": cfg.ServerAddress,
		}
	}
	client := bridge.NewClient(cfg.BridgeBaseURL, bridge.WithHeaderProvider(headers))
	ws := bridge.NewWebSocket(cfg.BridgeWSURL, 10, time.Second)
	ws.SetHeaderProvider(headers)
	ws.SetLogger(logger)
	ws.OnStateChange(func(state bridge.State) {
		logger.Info("ws_state", zap.String("state", string(state)))
	})

	dryrun := os.Getenv("BRIDGE_DRYRUN") == "1"
	egress := bridge.WithRateLimit(
		bridge.NewEgress(cfg.BridgeEgress, dryrun, client, ws, logger),
		bridge.NewLimiter(cfg.ChatRate, cfg.ChatBurst),
	)

	locator := bluemap.NewClient(cfg.BlueMapURL,
		bluemap.WithTimeout(cfg.LookupTimeout),
		bluemap.WithMaxAttempts(cfg.LookupMaxAttempts),
		bluemap.WithRetryDelay(cfg.LookupRetryDelay),
		bluemap.WithLogger(logger),
	)

	router, err := command.NewRouter(cfg.CommandPrefix, store, catalog, egress,
		command.WithLogger(logger),
		command.WithAudit(audit.Multi(sinks...)),
		command.WithIgnoredSenders(cfg.BotUsername),
	)
	if err != nil {
		log.Fatalf("router init error: %v", err)
	}
	handlers := command.NewHandlers(store, locator, command.WithWaypointDelay(cfg.WaypointDelay))
	if err := router.Register(handlers.Commands()...); err != nil {
		log.Fatalf("command table error: %v", err)
	}

	eventCb := ws.OnEvent(func(ev bridge.Event) {
		if ev.Type != "" && ev.Type != bridge.EventChat {
			return
		}
		// keep the read loop free; waypoint handlers block for seconds
		go router.Handle(ctx, ev)
	})

	metrics.Serve(ctx, cfg.MetricsAddr, logger)

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		log.Fatalf("ws connect error: %v", err)
	}
	cancel()

	logger.Info("bot_started",
		zap.String("username", cfg.BotUsername),
		zap.String("server", cfg.ServerHost()),
		zap.String("prefix", cfg.CommandPrefix),
		zap.Strings("super_operators", store.SuperOperators()),
		zap.String("egress", cfg.BridgeEgress),
	)

	<-ctx.Done()
	logger.Info("bot_stopping")
	ws.RemoveEventCallback(eventCb)

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = ws.Close(sctx)
}

// openAudit connects the optional audit stores. A store that cannot be reached
// is logged and skipped; the bot runs without it.
func openAudit(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) ([]audit.Sink, []func()) {
	var sinks []audit.Sink
	var closers []func()

	if cfg.RedisURL != "" {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := audit.DialRedis(rctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Warn("audit_redis_unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, audit.NewRedisSink(rdb, 0))
			closers = append(closers, func() { _ = rdb.Close() })
		}
	}
	if cfg.DatabaseURL != "" {
		pg, err := audit.NewPostgresSink(cfg.DatabaseURL)
		if err != nil {
			logger.Warn("audit_postgres_unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, pg)
			closers = append(closers, func() { _ = pg.Close() })
		}
	}
	return sinks, closers
}
