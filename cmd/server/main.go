package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/joho/godotenv"

	"cryptic-tracker/internal/api"
	"cryptic-tracker/internal/config"
	"cryptic-tracker/internal/engine"
	"cryptic-tracker/internal/market"
	"cryptic-tracker/internal/push"
	"cryptic-tracker/internal/push/discord"
	"cryptic-tracker/internal/store"
	"cryptic-tracker/internal/watchlist"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		hlog.Warnf(".env load error: %v", err)
	}

	cfg, err := config.Load("configs/app.yaml")
	if err != nil {
		hlog.Fatalf("config error: %v", err)
	}
	hlog.SetLevel(parseLevel(cfg.Log.Level))

	st, err := store.Open(cfg.Store.Sqlite.Path)
	if err != nil {
		hlog.Fatalf("store error: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			hlog.Errorf("store close error: %v", err)
		}
	}()

	var backend watchlist.Backend = watchlist.NewFileBackend(cfg.WatchList.Path)
	if cfg.WatchList.Backend == "sqlite" {
		backend = st
	}
	list := watchlist.NewStore(backend)

	marketTimeout := time.Duration(cfg.Market.TimeoutMs) * time.Millisecond
	scanner := market.NewScannerProvider(cfg.Market.ScannerURL, marketTimeout)
	search := market.NewSymbolSearch(cfg.Market.SearchURL, marketTimeout)

	dc := discord.NewClient(
		cfg.Discord.APIBase,
		cfg.Discord.Token,
		time.Duration(cfg.Discord.TimeoutMs)*time.Millisecond,
	)

	surface := push.NewLimited(dc, push.NewTokenBucket(
		cfg.Discord.RateLimit.PerMinute,
		cfg.Discord.RateLimit.Burst,
	))

	eng := engine.New(engine.Config{
		UpdateInterval: cfg.Tracker.UpdateInterval(),
		RequestDelay:   cfg.Tracker.RequestDelay(),
		ReadyRetry:     cfg.Tracker.ReadyRetry(),
		Title:          cfg.Tracker.Title,
	}, list, scanner, surface, st)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))
	api.RegisterRoutes(h, list, search, eng, st)

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		eng.Run(ctx, dc)
	}()
	h.OnShutdown = append(h.OnShutdown, func(context.Context) {
		cancel()
		<-loopDone
	})

	hlog.Infof("server starting on %s (log.level=%s, watchlist=%s)", addr, cfg.Log.Level, cfg.WatchList.Backend)
	h.Spin()
	cancel()
}

func parseLevel(raw string) hlog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return hlog.LevelTrace
	case "debug":
		return hlog.LevelDebug
	case "warn", "warning":
		return hlog.LevelWarn
	case "error":
		return hlog.LevelError
	default:
		return hlog.LevelInfo
	}
}
