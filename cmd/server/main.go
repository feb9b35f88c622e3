package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier/internal/config"
	"courier/internal/directory"
	clog "courier/internal/log"
	"courier/internal/mw"
	"courier/internal/server"
	"courier/internal/service"
	"courier/internal/storage"
	"courier/internal/ws"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

func main() {
	// main 负责加载配置与快照、启动 HTTP 服务，并在收到信号后保存快照退出。
	envFile := pflag.String("env-file", ".env", "optional env file loaded before reading the environment")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	clog.Init(cfg.Env, cfg.LogLevel)

	store, err := storage.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	defer store.Close()

	dir := directory.New()
	saver := storage.NewSaver(dir, store, cfg.SnapshotInterval)
	if err := saver.Load(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("load snapshot")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	go hub.Run()

	// 控制单个 IP+路由的速率。
	rl := mw.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 2*time.Minute)
	go rl.GC(30 * time.Second)
	defer rl.Stop()

	go saver.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.SetupRouter(cfg, dir, hub, rl),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("listening")
	if err := server.Run(ctx, srv, cfg.ShutdownTimeout); errors.Is(err, service.ErrTransportAborted) {
		log.Warn().Err(err).Msg("listener closed unexpectedly")
	} else if err != nil {
		log.Error().Err(err).Msg("server run")
	}

	log.Info().Msg("shutting down gracefully")
	hub.Close()
	<-hub.Done()

	saveCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := saver.Save(saveCtx); err != nil {
		log.Error().Err(err).Msg("final snapshot")
		return
	}
	log.Info().Int("users", dir.Len()).Msg("snapshot saved, exiting")
}
