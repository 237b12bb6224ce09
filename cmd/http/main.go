package main

import (
	"context"
	"expvar"
	"log"
	"runtime"
	"time"

	"github.com/hilthontt/huddle/internal/application/chat"
	"github.com/hilthontt/huddle/internal/application/rooms"
	"github.com/hilthontt/huddle/internal/application/sessions"
	"github.com/hilthontt/huddle/internal/infrastructure/configs"
	"github.com/hilthontt/huddle/internal/infrastructure/events"
	"github.com/hilthontt/huddle/internal/infrastructure/kv"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/metrics"
	"github.com/hilthontt/huddle/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/huddle/internal/infrastructure/repository"
	"github.com/hilthontt/huddle/internal/infrastructure/tracing"
	"github.com/hilthontt/huddle/internal/infrastructure/ws"
	"github.com/hilthontt/huddle/internal/presentation/api"
	"github.com/hilthontt/huddle/internal/presentation/handler/health"
	"github.com/hilthontt/huddle/internal/presentation/handler/messages"
	"github.com/hilthontt/huddle/internal/presentation/handler/realtime"
	roomsHandler "github.com/hilthontt/huddle/internal/presentation/handler/rooms"
)

const (
	serviceName = "huddle"
)

func main() {
	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&cfg.Logger)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal(logging.General, logging.Startup, "server exited", map[logging.ExtraKey]any{
			logging.ErrorMessage: err,
		})
	}
}

func run(cfg *configs.Config, logger logging.Logger) error {
	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: serviceName,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher, closePublisher, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	m := metrics.New()

	roomRepository := repository.NewRoomRepository(store, cfg.Store.RoomTTL)
	messageRepository := repository.NewMessageRepository(store, cfg.Store.ChatCapacity, cfg.Store.RoomTTL)

	directory := rooms.NewDirectory(roomRepository, rooms.WithMetrics(m))
	chatService := chat.NewService(directory, messageRepository, cfg.Store.MessageMaxLength)
	registry := sessions.NewRegistry()
	hub := ws.NewHub(logger, m)

	router := realtime.NewRouter(directory, chatService, registry, hub, logger,
		realtime.WithMetrics(m),
		realtime.WithPublisher(publisher),
	)

	clientCfg := ws.ClientConfig{
		ReadLimit:  cfg.WS.ReadLimit,
		PongWait:   cfg.WS.PongWait,
		PingPeriod: cfg.WS.PingPeriod,
		WriteWait:  cfg.WS.WriteWait,
		SendBuffer: cfg.WS.SendBuffer,
	}

	rateLimiter := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
	defer rateLimiter.Close()

	if cfg.Auth.APIKey == "" {
		logger.Warn(logging.General, logging.Startup, "no api key configured, room routes are open", nil)
	}

	app := api.NewApplication(
		*cfg,
		roomsHandler.NewHandler(directory, publisher, logger),
		messages.NewHandler(directory, chatService, logger),
		health.NewHandler(store),
		realtime.NewHandler(router, hub, ws.NewUpgrader(cfg.HTTP.AllowedOrigins), clientCfg, logger),
		hub,
		m,
		logger,
		rateLimiter,
	)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	return app.Run(mux)
}

func openStore(cfg *configs.Config, logger logging.Logger) (kv.Store, error) {
	if cfg.Store.Backend == "memory" {
		logger.Info(logging.General, logging.Startup, "using in-memory store", nil)
		return kv.NewMemory(), nil
	}

	store := kv.NewRedis(kv.RedisOptions{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
		PoolSize:    cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info(logging.Redis, logging.Startup, "connected to redis", map[logging.ExtraKey]any{
		"addr": cfg.Redis.Addr,
	})
	return store, nil
}

func openPublisher(cfg *configs.Config, logger logging.Logger) (events.Publisher, func(), error) {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}, func() {}, nil
	}

	rabbitmq, err := events.NewRabbitMQ(cfg.Events.URI, cfg.Events.Exchange)
	if err != nil {
		return nil, nil, err
	}

	logger.Info(logging.RabbitMQ, logging.Startup, "connected to rabbitmq", map[logging.ExtraKey]any{
		"exchange": cfg.Events.Exchange,
	})

	return events.NewRoomPublisher(rabbitmq), func() { _ = rabbitmq.Close() }, nil
}
