package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/thatjuancodes/chathistory"
	"github.com/thatjuancodes/chathistory/storage/bolt"
	"github.com/thatjuancodes/chathistory/storage/postgres"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// .env is a development convenience; in production the environment
	// is expected to be set directly.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded, using environment only")
	}

	port := getEnv("HTTP_PORT", "8080")
	backend := getEnv("STORAGE", "bolt")
	origins := strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ",")

	limits, err := loadLimits(getEnv("LIMITS_FILE", ""))
	if err != nil {
		return err
	}

	var kv chathistory.KV
	var cleanup func()

	switch backend {
	case "memory":
		kv = chathistory.NewMemoryKV()

	case "bolt":
		path := getEnv("BOLT_PATH", "chathistory.db")
		db, err := bolt.Open(path)
		if err != nil {
			return err
		}
		cleanup = func() { _ = db.Close() }
		kv = db
		logger.Info("bolt storage opened", "path", path)

	case "postgres":
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			return errors.New("DATABASE_URL is required for postgres storage")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return err
		}

		pg := postgres.New(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return err
		}
		cleanup = pool.Close
		kv = pg
		logger.Info("postgres storage ready")

	default:
		return errors.New("STORAGE must be memory, bolt, or postgres")
	}
	if cleanup != nil {
		defer cleanup()
	}

	store, err := chathistory.New(chathistory.Config{
		KV:     kv,
		Limits: limits,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      chathistory.NewHTTPHandler(store, origins),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", port, "storage", backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-stop:
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	// Store.Close flushes pending state via the deferred call above.
	return nil
}

// loadLimits reads capacity overrides from a YAML file. An empty path
// yields the built-in defaults.
func loadLimits(path string) (chathistory.Limits, error) {
	var limits chathistory.Limits
	if path == "" {
		return limits, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return limits, err
	}
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return limits, err
	}
	return limits, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
