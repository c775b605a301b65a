// cmd/backend-for-frontend/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"meminator/internal/common/config"
	"meminator/internal/common/logger"
	"meminator/internal/common/observability"
	"meminator/internal/common/server"
	"meminator/internal/common/upstream"
	cp "meminator/internal/services/backend/create-picture"
	"meminator/pkg/registry"
)

const serviceName = "backend-for-frontend"

func main() {
	upstreamsFile := flag.String("upstreams", "", "Optional JSON upstream registry; overrides the upstreams config section")
	flag.Parse()

	bootLog := logger.New("info", "console")
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewFromConfig(cfg.Logging, serviceName)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(serviceName, cfg.Tracing, nil, log)
	defer obs.Shutdown()

	var reg *registry.Registry
	if *upstreamsFile != "" {
		reg, err = registry.LoadRegistry(*upstreamsFile)
	} else {
		reg, err = registry.FromConfig(cfg.Upstreams)
	}
	if err == nil {
		err = reg.Require(config.RequiredUpstreams...)
	}
	if err != nil {
		zapLog.Fatal("upstream registry invalid", zap.Error(err))
	}
	zapLog.Info("upstream registry loaded", zap.Strings("upstreams", reg.Names()))

	client := upstream.NewClient(reg, log, obs.Tracer("upstream"))
	aggregator := cp.NewAggregator(cp.LoadConfig(cfg.Fallbacks), client, log, obs.Tracer(serviceName))

	r := server.NewRouter(server.Options{Logger: log, Observability: obs})
	r.Get("/", server.HealthHandler)
	r.Method(http.MethodPost, cp.Route, cp.NewHandler(aggregator, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, server.New(cfg.Server, r), config.GetDuration(cfg.Server.ShutdownTimeout), log); err != nil {
		zapLog.Error("server stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("Shutdown complete")
}
