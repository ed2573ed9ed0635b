package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deltaerrors "github.com/devrev/deltastore/internal/errors"
)

// forceState bypasses refreshLocked's syscall.Statfs call so tests can drive
// CheckBeforeWrite's tiered policy without needing real disk pressure.
func forceState(g *DiskGuard, availableBytes uint64, throttled, circuitBroken bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cachedAvailableBytes = availableBytes
	g.throttled = throttled
	g.circuitBroken = circuitBroken
	g.lastCheck = time.Now()
}

func TestDiskGuard_CheckBeforeWriteAllowsWriteUnderNormalConditions(t *testing.T) {
	g := NewDiskGuard(DefaultDiskGuardConfig(t.TempDir()), nil)
	forceState(g, 1<<30, false, false)
	assert.NoError(t, g.CheckBeforeWrite(1024))
}

func TestDiskGuard_CheckBeforeWriteRejectsWhenCircuitBroken(t *testing.T) {
	g := NewDiskGuard(DefaultDiskGuardConfig(t.TempDir()), nil)
	forceState(g, 1<<30, true, true)

	err := g.CheckBeforeWrite(1024)
	require.Error(t, err)
	assert.True(t, deltaerrors.Is(err, deltaerrors.IO))
}

func TestDiskGuard_CheckBeforeWriteThrottlesLargeWrites(t *testing.T) {
	g := NewDiskGuard(DefaultDiskGuardConfig(t.TempDir()), nil)
	forceState(g, 1000, true, false)

	// throttled rejects writes over 10% of available bytes.
	assert.Error(t, g.CheckBeforeWrite(200))
	assert.NoError(t, g.CheckBeforeWrite(50))
}

func TestDiskGuard_CheckBeforeWriteRejectsInsufficientSpace(t *testing.T) {
	g := NewDiskGuard(DefaultDiskGuardConfig(t.TempDir()), nil)
	forceState(g, 100, false, false)

	err := g.CheckBeforeWrite(500)
	require.Error(t, err)
	assert.True(t, deltaerrors.Is(err, deltaerrors.IO))
}

func TestLocalStorage_PutRejectedWhenDiskGuardCircuitBroken(t *testing.T) {
	dir := t.TempDir()
	guard := NewDiskGuard(DefaultDiskGuardConfig(dir), nil)
	forceState(guard, 1<<30, true, true)

	s, err := New(dir, WithDiskGuard(guard))
	require.NoError(t, err)

	err = s.Put("k", []byte("v"), true)
	require.Error(t, err)
	assert.True(t, deltaerrors.Is(err, deltaerrors.IO))

	_, getErr := s.Get("k")
	assert.True(t, deltaerrors.Is(getErr, deltaerrors.NotFound), "rejected write must not land on disk")
}
