package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitbill/internal/auth"
	"github.com/mmynk/splitbill/internal/companion"
	"github.com/mmynk/splitbill/internal/config"
	"github.com/mmynk/splitbill/internal/docstore"
	"github.com/mmynk/splitbill/internal/docstore/mongo"
	"github.com/mmynk/splitbill/internal/docstore/sqlite"
	"github.com/mmynk/splitbill/internal/ledger"
	"github.com/mmynk/splitbill/internal/metrics"
	"github.com/mmynk/splitbill/internal/middleware"
	"github.com/mmynk/splitbill/internal/receipts"
	"github.com/mmynk/splitbill/internal/service"
	"github.com/mmynk/splitbill/internal/session"
	"github.com/mmynk/splitbill/internal/state"
)

// App is the wired primary process.
type App struct {
	Handler   http.Handler
	Workspace *service.Workspace
	Channel   *companion.Channel
	Metrics   *metrics.Metrics

	store     docstore.Store
	transport *companion.HTTPTransport
	log       *slog.Logger
}

// NewApp opens the store and wires every component described by cfg.
func NewApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	log.Info("Storage initialized", "driver", cfg.Store.Driver)

	app := &App{store: store, log: log, Metrics: metrics.New()}

	opts := ledger.Options{
		MaxConcurrentCalls: cfg.Ledger.MaxConcurrentCalls,
		Logger:             log,
		Metrics:            app.Metrics,
	}
	if cfg.Receipts.Dir != "" {
		images, err := receipts.NewFileStore(cfg.Receipts.Dir, cfg.Receipts.BaseURL)
		if err != nil {
			store.Close()
			return nil, err
		}
		opts.Images = images
		log.Info("Receipt store initialized", "dir", images.Dir())
	}
	engine := ledger.New(store, opts)

	app.Workspace = service.NewWorkspace(engine, state.New(), session.NewFileProvider(cfg.Session.Path), log)

	app.transport = companion.NewHTTPTransport(cfg.Companion.URL, nil, log)
	app.Channel = companion.NewChannel(app.transport, app.Workspace.State(), log, app.Metrics)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		log.Warn("No JWT secret configured; using an insecure development secret")
		secret = "splitbill-dev-secret"
	}
	jwtManager := auth.NewJWTManager(secret, cfg.Auth.TokenDuration)
	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(app.Metrics),
		middleware.RequireAuth(jwtManager, service.PublicProcedures...),
	)

	mux := http.NewServeMux()
	mux.Handle(service.NewAuthServiceHandler(
		service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, engine, app.Workspace, log),
		interceptors,
	))
	mux.Handle(service.NewLedgerServiceHandler(service.NewLedgerService(engine, app.Workspace, log), interceptors))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if cfg.Server.MetricsEnabled {
		mux.Handle("GET /metrics", app.Metrics.Handler())
	}

	app.Handler = loggingMiddleware(log, corsMiddleware(mux))
	return app, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (docstore.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.New(cfg.Path)
	case config.DriverMongo:
		return mongo.New(ctx, mongo.Options{
			URI:          cfg.MongoURI,
			Database:     cfg.MongoDatabase,
			Transactions: cfg.MongoTransactions,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Start restores the session ledger, starts replication and activates the companion session
// when a companion is paired.
func (a *App) Start(ctx context.Context) {
	a.Channel.Start(ctx)

	if err := a.Workspace.Restore(ctx); err != nil {
		a.log.Warn("Failed to restore session ledger", "error", err)
	}

	if !a.transport.IsPaired() {
		a.log.Info("No companion paired")
		return
	}
	a.Channel.Activate()
	go func() {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		a.Channel.Activated(a.transport.Probe(probeCtx))
	}()
}

// Close deactivates replication, stops the in-memory ledger and closes the store.
func (a *App) Close() error {
	a.Channel.Deactivate()
	a.transport.Close()
	a.Workspace.State().Close()
	return a.store.Close()
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		// Connect calls are logged by the interceptor.
		if strings.HasPrefix(r.URL.Path, "/splitbill.v1.") {
			return
		}
		log.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// serve runs srv until ctx is done, then shuts it down within timeout.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down", "addr", srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
