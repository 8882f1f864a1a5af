package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gpuflow/gpuflow/internal/config"
	"github.com/gpuflow/gpuflow/pkg/adapters/driver/memory"
	prommetrics "github.com/gpuflow/gpuflow/pkg/adapters/metrics/prometheus"
	"github.com/gpuflow/gpuflow/pkg/graph"
	"github.com/gpuflow/gpuflow/pkg/ports"
	"github.com/gpuflow/gpuflow/pkg/scheduler"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting gpuflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize the simulated device and its queues
	drv := memory.New(logger)

	const device = 1
	queues := make([]*ports.Queue, cfg.Demo.Queues)
	for i := range queues {
		queues[i] = drv.RegisterQueue(device, uint32(i), fmt.Sprintf("demo-q%d", i))
	}

	metricsCollector := prommetrics.NewCollector()

	engine := scheduler.NewEngine(drv, metricsCollector, logger, cfg.Engine.FencePollInterval)

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("gpuflow started",
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Int("queues", cfg.Demo.Queues),
		zap.Int("chain_depth", cfg.Demo.ChainDepth))

	// Submit demo graphs until interrupted
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Demo.SubmitInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			break loop
		case <-ticker.C:
			submitDemoGraph(context.Background(), engine, drv, queues, cfg.Demo.ChainDepth, logger)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout)
	defer cancel()

	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Error("engine shutdown error", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	drv.Close()

	logger.Info("gpuflow shut down complete")
}

// submitDemoGraph submits a dependency chain that crosses the registered
// queues round-robin, exercising the cross-queue semaphore path.
func submitDemoGraph(
	ctx context.Context,
	engine *scheduler.Engine,
	drv *memory.Driver,
	queues []*ports.Queue,
	depth int,
	logger *zap.Logger,
) {
	node, err := graph.New(
		[]ports.CommandBuffer{drv.NewCommandBuffer(queues[0].Family(), nil)},
		queues[0],
	)
	if err != nil {
		logger.Error("demo graph construction failed", zap.Error(err))
		return
	}
	for i := 1; i < depth; i++ {
		q := queues[i%len(queues)]
		node, err = graph.Chain(node,
			[]ports.CommandBuffer{drv.NewCommandBuffer(q.Family(), nil)}, q)
		if err != nil {
			logger.Error("demo graph construction failed", zap.Error(err))
			return
		}
	}

	token, err := engine.Submit(ctx, node)
	if err != nil {
		logger.Error("demo submission failed", zap.Error(err))
		return
	}

	token.OnComplete(func() {
		logger.Debug("demo graph completed",
			zap.String("submission_id", token.ID()))
	})
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
