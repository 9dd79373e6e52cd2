package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/evotar/apiserver/config"
	"github.com/evotar/apiserver/internal/handlers"
	"github.com/evotar/apiserver/internal/obs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	app        *App

	stopSink context.CancelFunc
	sinkDone sync.WaitGroup
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewRouter(cfg, app),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		app:        app,
	}, nil
}

// NewRouter builds the HTTP routes on top of a wired App.
func NewRouter(cfg config.Config, app *App) *chi.Mux {
	obs.Init()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		obs.Instrument,
		app.Codec.Middleware,
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", obs.Handler())

	limiter := handlers.NewRateLimiter(cfg.Login.RatePerSecond, cfg.Login.Burst)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(app.Auth, app.Users, app.Codec, limiter))
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(app.Users))
	})

	lookups := handlers.NewLookupHandler(app.Lookups)
	router.Route("/departments", func(r chi.Router) {
		handlers.DepartmentRouter(r, lookups)
	})
	router.Route("/election-types", func(r chi.Router) {
		handlers.ElectionTypeRouter(r, lookups)
	})
	router.Route("/elections", func(r chi.Router) {
		handlers.ElectionRouter(r, handlers.NewElectionHandler(app.Elections, app.Candidates, app.Votes, app.Tabulation, app.Wallets))
	})
	router.Route("/wallet", func(r chi.Router) {
		handlers.WalletRouter(r, handlers.NewWalletHandler(app.Wallets))
	})
	router.Route("/api", func(r chi.Router) {
		r.Use(handlers.RequireAPIKey(cfg.PublicAPIKey))
		r.Route("/logs", func(r chi.Router) {
			handlers.LogRouter(r, handlers.NewLogHandler(app.Sink))
		})
	})
	return router
}

// Start runs the system log drain loop and the HTTP server. It returns nil
// after Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopSink = cancel
	s.sinkDone.Add(1)
	go func() {
		defer s.sinkDone.Done()
		s.app.Sink.Run(ctx, 0)
	}()

	obs.Logger().Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, flushes queued system logs and closes
// the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.stopSink != nil {
		s.stopSink()
		s.sinkDone.Wait()
	}
	return errors.Join(err, s.app.Close())
}
