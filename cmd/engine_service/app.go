package engineservice

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/postgres"
	"ride-dispatch/internal/general/rabbitmq"
	"ride-dispatch/internal/general/redisgeo"
	"ride-dispatch/internal/general/websocket"
	"ride-dispatch/internal/observability"
	"ride-dispatch/internal/ports"
	dispatchhandler "ride-dispatch/internal/software/dispatch/handler"
	dispatchservice "ride-dispatch/internal/software/dispatch/service"
	earningshandler "ride-dispatch/internal/software/earnings/handler"
	earningsservice "ride-dispatch/internal/software/earnings/service"
	lifecyclehandler "ride-dispatch/internal/software/lifecycle/handler"
	lifecycleservice "ride-dispatch/internal/software/lifecycle/service"
)

const producerName = "dispatch-engine"

// Run wires the dispatch engine and blocks until ctx is cancelled.
func Run(ctx context.Context, maxConcurrent int) error {
	logger := logger.New(producerName)
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	// postgres document store
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, logger, "migrations"); err != nil {
		logger.Error(ctx, "db_migrations_failed", "Failed to apply migrations", err, nil)
		return err
	}

	store := postgres.NewDocStore(pool, logger)
	defer store.Close()

	// rabbitmq notification collaborator
	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()
	notifier := rabbitmq.NewNotifier(logger, rabbitmq.NewPublisher(rmq), producerName)

	// redis geo index; the engine degrades to availability scans without it
	var selector ports.CandidateSelector
	if redisClient, rerr := redisgeo.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); rerr != nil {
		logger.Error(ctx, "redis_connection_failed", "Geo index unavailable, using store scans", rerr, map[string]any{
			"addr": cfg.Redis.Addr,
		})
	} else {
		selector = redisgeo.New(redisClient, "")
		defer redisClient.Close()
	}

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	// services
	dispatch := dispatchservice.NewDispatchService(logger, store, notifier, selector,
		cfg.Dispatch.SearchRadiusKM, cfg.Dispatch.MaxCandidates)
	lifecycle := lifecycleservice.NewLifecycleService(logger, store, dispatch, notifier, selector)
	earnings := earningsservice.NewEarningsService(logger, store)

	// websocket gateway
	gateway := websocket.NewGateway(logger, jwtManager, store, lifecycle, dispatch)

	// HTTP surface
	mux := http.NewServeMux()
	lifecyclehandler.NewLifecycleHTTPHandler(lifecycle, logger, jwtManager, gateway).RegisterRoutes(mux)
	dispatchhandler.NewDispatchHTTPHandler(dispatch, logger, jwtManager, gateway).RegisterRoutes(mux)
	earningshandler.NewEarningsHTTPHandler(earnings, logger, jwtManager).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// global concurrency limiter, blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, withHTTPMetrics(mux))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Service.EnginePort),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Dispatch engine started on port %d", cfg.Service.EnginePort),
		map[string]any{"port": cfg.Service.EnginePort, "max_concurrent": maxConcurrent},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		// graceful HTTP shutdown on context cancel
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info(ctx, "shutdown_started", "Graceful shutdown initiated", nil)
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{
				"port": cfg.Service.EnginePort,
			})
			return err
		}
	}

	return nil
}

// withHTTPMetrics records request counts and latencies per method, route
// pattern and status. Websocket upgrades need Hijack, so the status recorder
// passes it through.
func withHTTPMetrics(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, route := mux.Handler(r)
		if route == "" {
			route = r.URL.Path
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
