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

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/park285/cheese-relay/internal/archive"
	appcfg "github.com/park285/cheese-relay/internal/config"
	"github.com/park285/cheese-relay/internal/match"
	"github.com/park285/cheese-relay/internal/msgcat"
	"github.com/park285/cheese-relay/internal/obslog"
	"github.com/park285/cheese-relay/internal/opsapi"
	"github.com/park285/cheese-relay/internal/relay"
	"github.com/park285/cheese-relay/internal/wsgate"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(obslog.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		File:    cfg.Log.File,
		Console: cfg.Log.Console,
		ToFile:  cfg.Log.ToFile,
		Caller:  cfg.Log.Caller,
	}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("msgcat_init_error", zap.Error(err))
	}

	// Archive destinations are optional; without them results are only logged.
	var (
		savers  []archive.Saver
		results opsapi.ResultReader
		rdb     *redis.Client
		repo    *archive.Repository
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis_url_error", zap.Error(err))
		}
		rdb = redis.NewClient(opts)
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			logger.Fatal("redis_ping_error", zap.Error(err))
		}
		store := archive.NewStore(rdb, cfg.ResultTTL, cfg.RecentResults)
		savers = append(savers, store)
		results = store
	}
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db_init_error", zap.Error(err))
		}
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = repo.EnsureSchema(sctx)
		cancel()
		if err != nil {
			logger.Fatal("db_schema_error", zap.Error(err))
		}
		savers = append(savers, repo)
	}
	archiver := archive.NewArchiver(cfg.ArchiveQueueSize, 5*time.Second, savers...)
	archiver.Start()

	hub := wsgate.NewHub()
	dispatcher := relay.New(
		relay.WithLiveness(hub.IsLive),
		relay.WithTimeControl(match.TimeControl{Initial: cfg.InitialClock, Increment: cfg.Increment}),
		relay.WithMessages(catalog),
		relay.WithResultSink(archiver),
	)
	gateway := wsgate.New(hub, dispatcher, wsgate.Options{
		OriginPatterns: cfg.AllowedOrigins,
		PingInterval:   cfg.PingInterval,
		SendBuffer:     cfg.SendBuffer,
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.WSPath, gateway)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	corsOpts := cors.Options{AllowedMethods: []string{http.MethodGet, http.MethodOptions}}
	if len(cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = cfg.AllowedOrigins
	}
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           cors.New(corsOpts).Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("relay_listen", zap.String("addr", cfg.ListenAddr), zap.String("ws_path", cfg.WSPath))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("relay_listen_error", zap.Error(err))
		}
	}()

	var ops *opsapi.Server
	if cfg.OpsAddr != "" {
		ops = opsapi.NewServer(dispatcher, results, hub)
		go func() {
			if err := ops.ListenAndServe(cfg.OpsAddr); err != nil {
				logger.Error("ops_listen_error", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go gateway.RunSweeper(ctx, cfg.SweepInterval)

	<-ctx.Done()
	logger.Info("relay_shutdown")

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_error", zap.Error(err))
	}
	if err := gateway.Shutdown(sctx); err != nil {
		logger.Warn("ws_shutdown_error", zap.Error(err))
	}
	if ops != nil {
		_ = ops.Shutdown(sctx)
	}
	if err := archiver.Close(sctx); err != nil {
		logger.Warn("archive_close_error", zap.Error(err))
	}
	if repo != nil {
		_ = repo.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
