package storage

import (
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	deltaerrors "github.com/devrev/deltastore/internal/errors"
)

// DiskGuard monitors filesystem free space beneath a LocalStorage root and
// enforces a three-tier write policy: warn, throttle, and a hard circuit
// breaker. It is consulted by LocalStorage.Put before every write.
type DiskGuard struct {
	dataDir string
	logger  *zap.Logger

	checkInterval time.Duration

	warningThreshold        float64
	throttleThreshold       float64
	circuitBreakerThreshold float64

	mu                   sync.Mutex
	lastCheck            time.Time
	cachedUsagePercent   float64
	cachedAvailableBytes uint64
	throttled            bool
	circuitBroken        bool
}

// DiskGuardConfig configures a DiskGuard's thresholds, expressed as
// percentages of total disk space used.
type DiskGuardConfig struct {
	DataDir                 string
	CheckInterval           time.Duration
	WarningThreshold        float64
	ThrottleThreshold       float64
	CircuitBreakerThreshold float64
}

// DefaultDiskGuardConfig returns sane thresholds (80/90/95%) for dataDir.
func DefaultDiskGuardConfig(dataDir string) DiskGuardConfig {
	return DiskGuardConfig{
		DataDir:                 dataDir,
		CheckInterval:           10 * time.Second,
		WarningThreshold:        80.0,
		ThrottleThreshold:       90.0,
		CircuitBreakerThreshold: 95.0,
	}
}

// NewDiskGuard constructs a DiskGuard and performs an initial check.
func NewDiskGuard(cfg DiskGuardConfig, logger *zap.Logger) *DiskGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &DiskGuard{
		dataDir:                 cfg.DataDir,
		logger:                  logger,
		checkInterval:           cfg.CheckInterval,
		warningThreshold:        cfg.WarningThreshold,
		throttleThreshold:       cfg.ThrottleThreshold,
		circuitBreakerThreshold: cfg.CircuitBreakerThreshold,
	}
	if err := g.refresh(); err != nil {
		logger.Warn("initial disk space check failed", zap.Error(err))
	}
	return g
}

// CheckBeforeWrite returns an error if a write of estimatedBytes should be
// rejected given current disk usage.
func (g *DiskGuard) CheckBeforeWrite(estimatedBytes uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if time.Since(g.lastCheck) > g.checkInterval {
		if err := g.refreshLocked(); err != nil {
			g.logger.Warn("disk space check failed", zap.Error(err))
		}
	}

	if g.circuitBroken {
		return deltaerrors.New(deltaerrors.IO, "disk usage circuit breaker engaged", nil)
	}
	if g.throttled && estimatedBytes > g.cachedAvailableBytes/10 {
		return deltaerrors.New(deltaerrors.IO, "disk write throttled", nil)
	}
	if estimatedBytes > g.cachedAvailableBytes {
		return deltaerrors.New(deltaerrors.IO, "insufficient disk space", nil)
	}
	return nil
}

func (g *DiskGuard) refresh() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshLocked()
}

// refreshLocked must be called with g.mu held.
func (g *DiskGuard) refreshLocked() error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(g.dataDir, &stat); err != nil {
		return err
	}

	totalBytes := stat.Blocks * uint64(stat.Bsize)
	availableBytes := stat.Bavail * uint64(stat.Bsize)
	usedBytes := totalBytes - availableBytes
	usagePercent := 0.0
	if totalBytes > 0 {
		usagePercent = (float64(usedBytes) / float64(totalBytes)) * 100.0
	}

	g.cachedUsagePercent = usagePercent
	g.cachedAvailableBytes = availableBytes
	g.lastCheck = time.Now()

	wasCircuitBroken := g.circuitBroken
	wasThrottled := g.throttled
	g.circuitBroken = usagePercent >= g.circuitBreakerThreshold
	g.throttled = usagePercent >= g.throttleThreshold && !g.circuitBroken

	if g.circuitBroken && !wasCircuitBroken {
		g.logger.Error("disk circuit breaker engaged", zap.Float64("usage_percent", usagePercent))
	} else if !g.circuitBroken && wasCircuitBroken {
		g.logger.Info("disk circuit breaker disengaged", zap.Float64("usage_percent", usagePercent))
	}
	if g.throttled && !wasThrottled {
		g.logger.Warn("disk write throttling enabled", zap.Float64("usage_percent", usagePercent))
	} else if !g.throttled && wasThrottled {
		g.logger.Info("disk write throttling disabled", zap.Float64("usage_percent", usagePercent))
	}
	if usagePercent >= g.warningThreshold && !g.throttled && !g.circuitBroken {
		g.logger.Warn("disk usage warning", zap.Float64("usage_percent", usagePercent))
	}
	return nil
}
