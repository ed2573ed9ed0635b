// Package config loads and validates the configuration for a simulated
// deltastore cluster.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig describes one storage server's identity in the cluster.
type ServerConfig struct {
	NodeID string `yaml:"node_id"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
}

// NetworkConfig configures the SimulatedNetwork's transport conditions.
type NetworkConfig struct {
	MessageLossRate    float64       `yaml:"message_loss_rate"`
	MinLatencyTicks    int           `yaml:"min_latency_ticks"`
	MaxLatencyTicks    int           `yaml:"max_latency_ticks"`
	MaxMessagesPerTick int           `yaml:"max_messages_per_tick"`
	TickInterval       time.Duration `yaml:"tick_interval"`
}

// HashRingConfig configures consistent hashing.
type HashRingConfig struct {
	VirtualNodesPerServer int `yaml:"virtual_nodes_per_server"`
}

// TxnConfig configures the optimistic transaction manager's retry policy.
type TxnConfig struct {
	MaxRetryCount int           `yaml:"max_retry_count"`
	RetryBaseWait time.Duration `yaml:"retry_base_wait"`
}

// FacadeConfig configures the blocking ObjectStorage facade.
type FacadeConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig configures each server's LocalStorage disk guard.
type StorageConfig struct {
	DiskCheckInterval           time.Duration `yaml:"disk_check_interval"`
	DiskWarningThreshold        float64       `yaml:"disk_warning_threshold"`
	DiskThrottleThreshold       float64       `yaml:"disk_throttle_threshold"`
	DiskCircuitBreakerThreshold float64       `yaml:"disk_circuit_breaker_threshold"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ClusterConfig is the complete configuration for a simulated deltastore
// cluster: the servers sharing the keyspace, the simulated network
// conditions between them, and the table-layer defaults.
type ClusterConfig struct {
	Servers   []ServerConfig `yaml:"servers"`
	Network   NetworkConfig  `yaml:"network"`
	HashRing  HashRingConfig `yaml:"hash_ring"`
	Txn       TxnConfig      `yaml:"txn"`
	Facade    FacadeConfig   `yaml:"facade"`
	Storage   StorageConfig  `yaml:"storage"`
	Logging   LoggingConfig  `yaml:"logging"`
	TablePath string         `yaml:"table_path"`
}

// Load reads a ClusterConfig from a YAML file, applies defaults, and
// validates the result.
func Load(filePath string) (*ClusterConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ClusterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a ClusterConfig with every default applied and no servers,
// suitable as a starting point for tests that add servers programmatically.
func Default() *ClusterConfig {
	cfg := &ClusterConfig{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *ClusterConfig) {
	if cfg.Network.TickInterval == 0 {
		cfg.Network.TickInterval = 100 * time.Millisecond
	}
	if cfg.Network.MaxMessagesPerTick == 0 {
		cfg.Network.MaxMessagesPerTick = 1 << 30
	}
	if cfg.HashRing.VirtualNodesPerServer == 0 {
		cfg.HashRing.VirtualNodesPerServer = 100
	}
	if cfg.Txn.MaxRetryCount == 0 {
		cfg.Txn.MaxRetryCount = 3
	}
	if cfg.Txn.RetryBaseWait == 0 {
		cfg.Txn.RetryBaseWait = 50 * time.Millisecond
	}
	if cfg.Facade.RequestTimeout == 0 {
		cfg.Facade.RequestTimeout = 10 * time.Second
	}
	if cfg.Storage.DiskCheckInterval == 0 {
		cfg.Storage.DiskCheckInterval = 10 * time.Second
	}
	if cfg.Storage.DiskWarningThreshold == 0 {
		cfg.Storage.DiskWarningThreshold = 80.0
	}
	if cfg.Storage.DiskThrottleThreshold == 0 {
		cfg.Storage.DiskThrottleThreshold = 90.0
	}
	if cfg.Storage.DiskCircuitBreakerThreshold == 0 {
		cfg.Storage.DiskCircuitBreakerThreshold = 95.0
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.TablePath == "" {
		cfg.TablePath = "table"
	}
}

// Validate checks the configuration for internal consistency.
func (c *ClusterConfig) Validate() error {
	if c.Network.MessageLossRate < 0 || c.Network.MessageLossRate > 1 {
		return fmt.Errorf("network.message_loss_rate must be between 0.0 and 1.0")
	}
	if c.Network.MinLatencyTicks < 0 || c.Network.MaxLatencyTicks < 0 {
		return fmt.Errorf("network latency ticks cannot be negative")
	}
	if c.Network.MinLatencyTicks > c.Network.MaxLatencyTicks {
		return fmt.Errorf("network.min_latency_ticks cannot exceed max_latency_ticks")
	}
	if c.HashRing.VirtualNodesPerServer <= 0 {
		return fmt.Errorf("hash_ring.virtual_nodes_per_server must be positive")
	}
	if !(c.Storage.DiskWarningThreshold < c.Storage.DiskThrottleThreshold &&
		c.Storage.DiskThrottleThreshold < c.Storage.DiskCircuitBreakerThreshold) {
		return fmt.Errorf("storage disk thresholds must satisfy warning < throttle < circuit_breaker")
	}
	if c.Storage.DiskCircuitBreakerThreshold > 100 {
		return fmt.Errorf("storage.disk_circuit_breaker_threshold cannot exceed 100")
	}
	for _, s := range c.Servers {
		if s.NodeID == "" {
			return fmt.Errorf("server node_id is required")
		}
		if s.Host == "" {
			return fmt.Errorf("server %s: host is required", s.NodeID)
		}
		if s.Port <= 0 || s.Port > 65535 {
			return fmt.Errorf("server %s: port must be between 1 and 65535", s.NodeID)
		}
	}
	return nil
}
