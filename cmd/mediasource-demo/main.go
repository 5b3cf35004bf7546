// Command mediasource-demo wires a Provider to a mock service-discovery
// plugin and a mock preparse engine, exercises a handful of operations,
// and serves Prometheus metrics until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nmxmxh/master-ovasabi/internal/config"
	"github.com/nmxmxh/master-ovasabi/internal/mediasource"
	"github.com/nmxmxh/master-ovasabi/internal/mediasource/preparse"
	"github.com/nmxmxh/master-ovasabi/internal/mediasource/sd"
	"github.com/nmxmxh/master-ovasabi/pkg/logger"
	"github.com/nmxmxh/master-ovasabi/pkg/metrics"
	"github.com/nmxmxh/master-ovasabi/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Environment = cfg.AppEnv
	logCfg.LogLevel = cfg.LogLevel
	log, err := logger.New(logCfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck
	zlog := log.GetZapLogger()

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.ServiceName = cfg.AppName
	tracingCfg.Environment = cfg.AppEnv
	if cfg.OtelExporterEndpoint != "" {
		tracingCfg.JaegerEndpoint = cfg.OtelExporterEndpoint
	}
	_, shutdownTracing, err := tracing.Init(tracingCfg)
	if err != nil {
		zlog.Warn("tracing init failed, continuing without spans", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	metrics.Register()
	metrics.CollectSystemMetrics(15 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			zlog.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	factory := &sd.MockFactory{Config: sd.MockConfig{
		Tree:      "music/rock,music/jazz,podcasts",
		FeedEvery: 200 * time.Millisecond,
	}}
	provider := mediasource.New(factory, zlog, cfg.CatalogRefreshInterval, mediasource.BreakerConfig{
		MaxFailures: cfg.SdBreakerMaxFailures,
		OpenTimeout: cfg.SdBreakerOpenTimeout,
	})
	defer provider.Close()

	src, err := provider.GetMediaSource(ctx, "mock")
	if err != nil {
		zlog.Error("get media source failed", zap.Error(err))
		return
	}
	defer src.Release()

	src.Tree().Lock()
	reg := src.Tree().AddListener(mediasource.Callbacks{
		OnChildrenReset: func(_ interface{}, node *mediasource.Node) {
			zlog.Info("children reset", zap.Int("count", len(node.Children())))
		},
		OnChildrenAdded: func(_ interface{}, _ *mediasource.Node, children []*mediasource.Node) {
			for _, c := range children {
				zlog.Info("item added", zap.String("name", c.Item().Name()))
			}
		},
		OnPreparseEnd: func(_ interface{}, node *mediasource.Node, status mediasource.PreparseStatus) {
			zlog.Info("preparse ended", zap.String("item", node.Item().Name()), zap.Stringer("status", status))
		},
	}, nil, true)
	src.Tree().Unlock()
	defer func() {
		src.Tree().Lock()
		src.Tree().RemoveListener(reg)
		src.Tree().Unlock()
	}()

	time.Sleep(500 * time.Millisecond)

	engine := preparse.NewMockEngine(preparse.MockEngineConfig{
		ChildrenPerItem: 3,
		Delay:           100 * time.Millisecond,
		Workers:         cfg.PreparseWorkers,
	})
	binder := preparse.NewBinder(src.Tree(), engine, zlog)

	src.Tree().Lock()
	root := src.Tree().Root()
	var target *mediasource.Item
	if children := root.Children(); len(children) > 0 {
		target = children[0].Item()
	}
	src.Tree().Unlock()

	if target != nil {
		if _, err := binder.Preparse(ctx, target); err != nil {
			zlog.Warn("preparse submit failed", zap.Error(err))
		}
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdownTracing(shutdownCtx)
}
