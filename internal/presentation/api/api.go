package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/musorogski/cucme/internal/infrastructure/configs"
	"github.com/musorogski/cucme/internal/infrastructure/logging"
	"github.com/musorogski/cucme/internal/infrastructure/ratelimiter"
	"github.com/musorogski/cucme/internal/infrastructure/ws"
	auditHandler "github.com/musorogski/cucme/internal/presentation/handler/audit"
	healthHandler "github.com/musorogski/cucme/internal/presentation/handler/health"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Application struct {
	config        configs.Config
	wsHandler     *ws.Handler
	healthHandler *healthHandler.Handler
	auditHandler  *auditHandler.Handler
	logger        logging.Logger
	ratelimiter   ratelimiter.Limiter
}

func NewApplication(
	config configs.Config,
	wsHandler *ws.Handler,
	healthHandler *healthHandler.Handler,
	auditHandler *auditHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:        config,
		wsHandler:     wsHandler,
		healthHandler: healthHandler,
		auditHandler:  auditHandler,
		logger:        logger,
		ratelimiter:   ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(app.loggerMiddleware)
	r.Use(app.enableCors)

	// The upgrade endpoint is the only write surface; it alone is rate
	// limited. No request timeout here, connections are long-lived.
	r.With(app.rateLimiterMiddleware).Get("/ws", app.wsHandler.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetReady)

		if app.auditHandler != nil {
			r.Get("/rooms/{roomId}/audit", app.auditHandler.GetRoomAuditLog)
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	if app.config.HTTP.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(app.config.HTTP.StaticDir)))
	}

	return r
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
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

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infof("signal caught: %s", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infof("server has started on %s", srv.Addr)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infof("server has stopped on %s", srv.Addr)

	return nil
}
