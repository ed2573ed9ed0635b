// Package txn implements OptimisticTxn, the single-shot optimistic
// concurrency transaction over a DeltaLog (spec §4.10).
package txn

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devrev/deltastore/internal/config"
	"github.com/devrev/deltastore/internal/delta"
	"github.com/devrev/deltastore/internal/delta/recordio"
	deltaerrors "github.com/devrev/deltastore/internal/errors"
	"github.com/devrev/deltastore/internal/metrics"
)

// Storage is the narrow object-store surface OptimisticTxn needs to stage
// data files, mirroring delta.Storage.
type Storage interface {
	WriteObject(key string, data []byte, overwrite bool) error
}

// OptimisticTxn is open-nested optimistic concurrency control over a
// single table: it captures a read version at construction, stages
// actions locally, and validates the read version is still current at
// commit time.
type OptimisticTxn struct {
	log     *delta.DeltaLog
	storage Storage
	logger  *zap.Logger
	metrics *metrics.Metrics

	readVersion int64
	staged      []delta.Action
	committed   bool
}

// New constructs an OptimisticTxn by capturing log's current snapshot.
func New(log *delta.DeltaLog, storage Storage, logger *zap.Logger, m *metrics.Metrics) (*OptimisticTxn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	snap, err := log.Snapshot()
	if err != nil {
		return nil, err
	}
	return &OptimisticTxn{
		log:         log,
		storage:     storage,
		logger:      logger,
		metrics:     m,
		readVersion: snap.Version,
	}, nil
}

// ReadVersion returns the table version this transaction was built from.
func (t *OptimisticTxn) ReadVersion() int64 {
	return t.readVersion
}

// Insert frames records with the record writer, stores the result as a new
// data file, and stages an AddFile action for it.
func (t *OptimisticTxn) Insert(records [][]byte) error {
	if t.committed {
		return deltaerrors.InvalidArgumentError("transaction already committed")
	}
	w := recordio.NewWriter()
	for _, r := range records {
		if err := w.WriteRecord(r); err != nil {
			return deltaerrors.New(deltaerrors.IO, "failed to frame record", err)
		}
	}
	data := w.Bytes()
	path := fmt.Sprintf("%spart-%s.parquet", t.log.DataPath(), uuid.NewString())
	if err := t.storage.WriteObject(path, data, true); err != nil {
		return err
	}
	t.staged = append(t.staged, delta.AddFile{
		Path:             path,
		Size:             int64(len(data)),
		ModificationTime: nowMillis(),
		DataChange:       true,
	})
	return nil
}

// Stage appends an arbitrary action to the transaction without going
// through Insert, for callers that construct their own AddFile/RemoveFile
// actions (e.g. compaction).
func (t *OptimisticTxn) Stage(a delta.Action) {
	t.staged = append(t.staged, a)
}

// Commit runs the five-step commit protocol: lock, conflict-check against
// the log's current head, append a CommitInfo action, write the next
// version, and refresh the cached snapshot. The lock is always released,
// including on panic. A transaction may commit at most once.
func (t *OptimisticTxn) Commit(operation string) (err error) {
	if t.committed {
		return deltaerrors.InvalidArgumentError("transaction already committed")
	}

	t.log.Lock()
	defer t.log.ReleaseLock()
	defer func() {
		if r := recover(); r != nil {
			err = deltaerrors.New(deltaerrors.IO, fmt.Sprintf("panic during commit: %v", r), nil)
		}
	}()

	current, refreshErr := t.log.RefreshLocked()
	if refreshErr != nil {
		return refreshErr
	}
	if current.Version > t.readVersion {
		return deltaerrors.ConcurrentModificationError(t.readVersion, current.Version)
	}

	actions := append(append([]delta.Action{}, t.staged...), delta.CommitInfo{
		Operation:  operation,
		Parameters: nil,
		Timestamp:  nowMillis(),
	})

	nextVersion := t.readVersion + 1
	if writeErr := t.log.Write(nextVersion, actions); writeErr != nil {
		return writeErr
	}
	if _, refreshErr := t.log.RefreshLocked(); refreshErr != nil {
		return refreshErr
	}

	t.committed = true
	return nil
}

// CommitWithRetry retries Commit under exponential backoff (baseWait *
// 2^attempt) up to cfg.MaxRetryCount times, stopping immediately on any
// error that is not ConcurrentModification. It does not re-stage: a
// caller whose transaction conflicted must build a fresh OptimisticTxn to
// try again with an up-to-date read version.
func (t *OptimisticTxn) CommitWithRetry(operation string, cfg config.TxnConfig) error {
	maxRetries := cfg.MaxRetryCount
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseWait := cfg.RetryBaseWait
	if baseWait <= 0 {
		baseWait = 50 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := t.Commit(operation)
		if err == nil {
			return nil
		}
		lastErr = err
		if !deltaerrors.Is(err, deltaerrors.ConcurrentModification) {
			return err
		}
		if t.metrics != nil {
			t.metrics.DeltaLogConflictsTotal.Inc()
		}
		if attempt == maxRetries {
			break
		}
		backoff := time.Duration(float64(baseWait) * math.Pow(2, float64(attempt)))
		t.logger.Warn("commit conflict, retrying",
			zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff))
		time.Sleep(backoff)
	}
	return lastErr
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
