package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jpl-safedocs/file-observatory/internal/config"
	"github.com/jpl-safedocs/file-observatory/internal/configstore"
	"github.com/jpl-safedocs/file-observatory/internal/download"
	"github.com/jpl-safedocs/file-observatory/internal/engine"
	logpkg "github.com/jpl-safedocs/file-observatory/internal/logger"
	"github.com/jpl-safedocs/file-observatory/internal/metrics"
	"github.com/jpl-safedocs/file-observatory/internal/store"
	"github.com/jpl-safedocs/file-observatory/internal/store/direct"
	"github.com/jpl-safedocs/file-observatory/internal/store/passthrough"
	"github.com/jpl-safedocs/file-observatory/internal/transport/httpapi"
	"github.com/jpl-safedocs/file-observatory/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting observatory API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("store_mode", cfg.Store.Mode),
		zap.String("index", cfg.Store.Index),
	)

	// Register engine metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	factory := newStoreFactory(cfg.Store)

	eng := engine.New(factory,
		engine.WithLogger(logger),
		engine.WithDefaultTake(cfg.Store.DefaultTake),
		engine.WithAggregationAlerts(cfg.Store.AggregationAlerts),
		engine.WithDownload(cfg.Download.Mode, cfg.Download.PathField,
			cfg.Download.RawFileRoot, cfg.Download.S3Bucket),
	)

	// Configuration persistence backend
	var configs configstore.Store
	switch cfg.ConfigStore.Backend {
	case "redis":
		redisStore, err := configstore.NewRedisStore(configstore.RedisConfig{
			Addrs:    cfg.ConfigStore.Addrs,
			Password: cfg.ConfigStore.Password,
			Key:      cfg.ConfigStore.Key,
		})
		if err != nil {
			logger.Fatal("Failed to create config store", zap.Error(err))
		}
		defer redisStore.Close()
		configs = redisStore
	case "file":
		configs = configstore.NewFileStore(cfg.ConfigStore.Path)
	}

	downloads := &download.Resolver{
		Mode:        cfg.Download.Mode,
		APIURL:      cfg.Download.API,
		RawFileRoot: cfg.Download.RawFileRoot,
		S3Bucket:    cfg.Download.S3Bucket,
	}

	// Bring up the initial index and schema; a failure here leaves the
	// engine unconfigured but the server still serves state and index
	// switches.
	ctx := context.Background()
	if cfg.Store.Index != "" {
		if err := eng.SetIndex(ctx, cfg.Store.Index); err != nil {
			logger.Warn("Initial index validation failed", zap.Error(err))
		} else if err := eng.FetchSchema(ctx); err != nil {
			logger.Warn("Initial schema fetch failed", zap.Error(err))
		}
	}

	server := httpapi.NewServer(eng, downloads, configs)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// newStoreFactory builds the per-index transport constructor for the
// configured mode.
func newStoreFactory(cfg config.StoreConfig) engine.StoreFactory {
	switch cfg.Mode {
	case "direct":
		return func(index string) (store.Store, error) {
			return direct.New(direct.Config{
				URL:      cfg.URL,
				Index:    index,
				Username: cfg.Username,
				Password: cfg.Password,
			})
		}
	default:
		return func(index string) (store.Store, error) {
			return passthrough.New(passthrough.Config{
				Endpoint: cfg.Endpoint,
				Index:    index,
				Username: cfg.Username,
				Password: cfg.Password,
			})
		}
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
