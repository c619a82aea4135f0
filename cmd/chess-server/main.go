package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-live-server/internal/config"
	"github.com/park285/chess-live-server/internal/live"
	"github.com/park285/chess-live-server/internal/msgcat"
	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/internal/store"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		obslog.L().Fatal("config", zap.Error(err))
	}
	cat, err := msgcat.New(os.Getenv("MESSAGE_OVERRIDE_DIR"))
	if err != nil {
		obslog.L().Fatal("message catalog", zap.Error(err))
	}

	st, err := openStore(cfg)
	if err != nil {
		obslog.L().Fatal("store", zap.Error(err))
	}
	defer st.Close()

	srv := live.NewServer(cfg, cat, st)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWS)
	mux.HandleFunc("/healthz", srv.HandleHealth)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("http server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	obslog.L().Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	srv.Shutdown()
}

// openStore selects the archive backend: Postgres when DATABASE_URL is set,
// Redis when only REDIS_URL is set, in-memory otherwise.
func openStore(cfg *config.AppConfig) (store.GameStore, error) {
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		obslog.L().Info("store", zap.String("backend", "postgres"))
		return pg, nil
	}
	if cfg.RedisURL != "" {
		rd, err := store.NewRedis(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		obslog.L().Info("store", zap.String("backend", "redis"))
		return rd, nil
	}
	obslog.L().Warn("store", zap.String("backend", "memory"), zap.String("note", "finished games are not durable"))
	return store.NewMemory(), nil
}
