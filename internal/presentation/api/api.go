package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/huddle/internal/infrastructure/configs"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/metrics"
	"github.com/hilthontt/huddle/internal/infrastructure/ws"
	healthHandler "github.com/hilthontt/huddle/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/huddle/internal/presentation/handler/messages"
	"github.com/hilthontt/huddle/internal/presentation/handler/realtime"
	roomHandler "github.com/hilthontt/huddle/internal/presentation/handler/rooms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

type limiter interface {
	Allow(key string) (bool, time.Duration)
}

type Application struct {
	config          configs.Config
	roomHandler     *roomHandler.Handler
	messagesHandler *messagesHandler.Handler
	healthHandler   *healthHandler.Handler
	realtimeHandler *realtime.Handler
	hub             *ws.Hub
	metrics         *metrics.Metrics
	logger          logging.Logger
	ratelimiter     limiter
}

func NewApplication(
	config configs.Config,
	roomHandler *roomHandler.Handler,
	messagesHandler *messagesHandler.Handler,
	healthHandler *healthHandler.Handler,
	realtimeHandler *realtime.Handler,
	hub *ws.Hub,
	metrics *metrics.Metrics,
	logger logging.Logger,
	ratelimiter limiter,
) *Application {
	return &Application{
		config:          config,
		roomHandler:     roomHandler,
		messagesHandler: messagesHandler,
		healthHandler:   healthHandler,
		realtimeHandler: realtimeHandler,
		hub:             hub,
		metrics:         metrics,
		logger:          logger,
		ratelimiter:     ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(app.enableCors)

	r.Get("/ws", app.realtimeHandler.ServeWS)
	r.Handle("/metrics", app.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(otelhttp.NewMiddleware("huddle-api"))
		r.Use(app.loggerMiddleware)
		r.Use(app.rateLimiterMiddleware)
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetReady)

		r.Route("/rooms", func(r chi.Router) {
			r.Use(app.apiKeyMiddleware)

			r.Post("/", app.roomHandler.CreateRoomHandler)
			r.Get("/{roomId}", app.roomHandler.GetRoomHandler)
			r.Get("/{roomId}/exists", app.roomHandler.RoomExistsHandler)
			r.Get("/{roomId}/messages", app.messagesHandler.ListMessagesHandler)
		})
	})

	return r
}

// Run serves until SIGINT or SIGTERM, then drains HTTP requests and closes
// every websocket, waiting for their disconnect handling to finish.
func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.Addr(),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		err := srv.Shutdown(ctx)

		app.hub.CloseAll()
		if drainErr := app.hub.Drain(ctx); drainErr != nil {
			err = errors.Join(err, drainErr)
		}

		shutdown <- err
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
