// cmd/meminator/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"meminator/internal/common/config"
	"meminator/internal/common/logger"
	"meminator/internal/common/observability"
	"meminator/internal/common/server"
	ap "meminator/internal/services/meminator/apply-phrase"
	di "meminator/internal/services/meminator/download-image"
)

const serviceName = "meminator"

func main() {
	bootLog := logger.New("info", "console")
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewFromConfig(cfg.Logging, serviceName)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	if _, err := os.Stat(cfg.Render.FallbackImagePath); err != nil {
		// Every degraded request will fail with a missing-asset error.
		zapLog.Warn("fallback image not found", zap.String("path", cfg.Render.FallbackImagePath), zap.Error(err))
	}
	if err := os.MkdirAll(cfg.Render.TempDir, 0o755); err != nil {
		zapLog.Fatal("temp dir unavailable", zap.String("path", cfg.Render.TempDir), zap.Error(err))
	}

	obs := observability.New(serviceName, cfg.Tracing, nil, log)
	defer obs.Shutdown()
	tracer := obs.Tracer(serviceName)

	downloader := di.NewDownloader(di.LoadConfig(cfg.Render), log, tracer)

	renderCfg := ap.LoadConfig(cfg.Render)
	annotator := ap.NewImageMagick(renderCfg.Binary, renderCfg.Timeout, log)
	compositor := ap.NewCompositor(renderCfg, annotator, log, tracer)
	handler := ap.NewHandler(renderCfg, downloader, compositor, log, tracer)

	r := server.NewRouter(server.Options{Logger: log, Observability: obs})
	r.Method(http.MethodPost, ap.Route, handler)
	r.Method(http.MethodGet, ap.Route, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, server.New(cfg.Server, r), config.GetDuration(cfg.Server.ShutdownTimeout), log); err != nil {
		zapLog.Error("server stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("Shutdown complete")
}
