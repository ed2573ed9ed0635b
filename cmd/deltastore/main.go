// Command deltastore boots a simulated deltastore cluster: a set of
// StoreServers behind a deterministic in-process network, an
// ObjectStorage facade, and the DeltaLog for one table. When METRICS_ADDR
// is set it exposes Prometheus metrics over HTTP at that address. It exits
// cleanly on SIGINT/SIGTERM.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/devrev/deltastore/internal/config"
	"github.com/devrev/deltastore/internal/delta"
	"github.com/devrev/deltastore/internal/metrics"
	"github.com/devrev/deltastore/internal/network"
	"github.com/devrev/deltastore/internal/objectstore"
	"github.com/devrev/deltastore/internal/storage"
)

func main() {
	logger, err := newLogger()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting deltastore")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}
	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	m, reg := metrics.New("deltastore-cluster", nil)

	dataRoot := os.Getenv("DATA_DIR")
	if dataRoot == "" {
		dataRoot = "./data"
	}

	bus := network.NewMessageBus(logger, m)
	bus.Network().SetMessageLossRate(cfg.Network.MessageLossRate)
	bus.Network().SetLatency(uint64(cfg.Network.MinLatencyTicks), uint64(cfg.Network.MaxLatencyTicks))
	bus.Network().SetMaxMessagesPerTick(cfg.Network.MaxMessagesPerTick)
	bus.SetTickInterval(cfg.Network.TickInterval)

	var serverEndpoints []network.Endpoint
	var servers []*objectstore.StoreServer
	for _, sc := range cfg.Servers {
		endpoint, err := network.NewEndpoint(sc.Host, sc.Port)
		if err != nil {
			logger.Fatal("invalid server endpoint", zap.String("node_id", sc.NodeID), zap.Error(err))
		}
		nodeDataDir := filepath.Join(dataRoot, sc.NodeID)
		if err := os.MkdirAll(nodeDataDir, 0o755); err != nil {
			logger.Fatal("failed to create node data directory", zap.String("node_id", sc.NodeID), zap.Error(err))
		}
		guard := storage.NewDiskGuard(storage.DiskGuardConfig{
			DataDir:                 nodeDataDir,
			CheckInterval:           cfg.Storage.DiskCheckInterval,
			WarningThreshold:        cfg.Storage.DiskWarningThreshold,
			ThrottleThreshold:       cfg.Storage.DiskThrottleThreshold,
			CircuitBreakerThreshold: cfg.Storage.DiskCircuitBreakerThreshold,
		}, logger)
		local, err := storage.New(nodeDataDir, storage.WithLogger(logger), storage.WithDiskGuard(guard))
		if err != nil {
			logger.Fatal("failed to initialize local storage", zap.String("node_id", sc.NodeID), zap.Error(err))
		}
		s := objectstore.NewStoreServer(endpoint, local, bus, logger, m)
		servers = append(servers, s)
		serverEndpoints = append(serverEndpoints, endpoint)
		logger.Info("store server registered", zap.String("node_id", sc.NodeID), zap.Stringer("endpoint", endpoint))
	}

	clientEndpoint := network.MustEndpoint("client", 1)
	client := objectstore.NewStoreClient(clientEndpoint, bus, serverEndpoints, logger, m, cfg.HashRing.VirtualNodesPerServer)
	facade := objectstore.NewObjectStorage(client, cfg.Facade, logger)

	log := delta.NewDeltaLog(facade, cfg.TablePath, logger, m)

	bus.Start()
	logger.Info("message bus started", zap.Duration("tick_interval", cfg.Network.TickInterval))

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go serveMetrics(addr, reg, logger)
	}

	logger.Info("cluster ready",
		zap.Int("servers", len(servers)),
		zap.Int("hash_ring_virtual_nodes", cfg.HashRing.VirtualNodesPerServer),
		zap.String("table_path", cfg.TablePath))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	client.Shutdown()
	for _, s := range servers {
		s.Shutdown()
	}
	bus.Stop()

	if _, err := log.Snapshot(); err != nil {
		logger.Warn("final snapshot read failed during shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig(path string, logger *zap.Logger) (*config.ClusterConfig, error) {
	if _, err := os.Stat(path); err != nil {
		logger.Warn("config file not found, using defaults", zap.String("path", path))
		return config.Default(), nil
	}
	return config.Load(path)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("starting metrics server", zap.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", zap.Error(err))
	}
}
