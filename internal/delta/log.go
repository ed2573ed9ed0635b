package delta

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	deltaerrors "github.com/devrev/deltastore/internal/errors"
	"github.com/devrev/deltastore/internal/metrics"
)

// Storage is the object-store surface DeltaLog depends on (spec §6.3). It
// is satisfied by *objectstore.ObjectStorage; DeltaLog depends on this
// narrower interface so it can be tested against an in-memory fake.
type Storage interface {
	ReadObject(key string) ([]byte, error)
	WriteObject(key string, data []byte, overwrite bool) error
	ObjectExists(key string) (bool, error)
	DeleteObject(key string) error
	ListObjects(prefix string) ([]string, error)
}

// DeltaLog is the authoritative version register for a single table: an
// append-only sequence of version files, each a JSON array of actions,
// replayed in full to reconstruct a snapshot (spec §4.9).
type DeltaLog struct {
	storage Storage
	logger  *zap.Logger
	metrics *metrics.Metrics

	tablePath string
	logPath   string

	mu             sync.Mutex // reentrant-equivalent: DeltaLog's own goroutine never re-enters
	cachedSnapshot *Snapshot
}

// NewDeltaLog constructs a DeltaLog rooted at tablePath.
func NewDeltaLog(storage Storage, tablePath string, logger *zap.Logger, m *metrics.Metrics) *DeltaLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeltaLog{
		storage:   storage,
		logger:    logger,
		metrics:   m,
		tablePath: tablePath,
		logPath:   GetPathIn(tablePath, "_delta_log") + "/",
	}
}

// DataPath returns the directory data files for this table are written
// under.
func (l *DeltaLog) DataPath() string {
	return GetPathIn(l.tablePath, "data") + "/"
}

// Snapshot returns the current table state, recomputing it if stale. It is
// the exported entry point for callers outside this package (spec §4.9's
// update()).
func (l *DeltaLog) Snapshot() (Snapshot, error) {
	return l.update()
}

// Write appends a new committed version. Exported for OptimisticTxn's
// commit protocol (spec §4.10 step 4).
func (l *DeltaLog) Write(version int64, actions []Action) error {
	return l.write(version, actions)
}

// Lock acquires the commit lock, held across OptimisticTxn's multi-step
// commit protocol (spec §4.10 step 1).
func (l *DeltaLog) Lock() {
	l.lock()
}

// ReleaseLock releases the commit lock (spec §4.10 step 6).
func (l *DeltaLog) ReleaseLock() {
	l.releaseLock()
}

// RefreshLocked recomputes the current snapshot without acquiring the
// lock; the caller must already hold it via Lock (spec §4.10 step 2).
func (l *DeltaLog) RefreshLocked() (Snapshot, error) {
	return l.updateLocked()
}

// listVersions returns every valid version present under logPath, in no
// particular order.
func (l *DeltaLog) listVersions() ([]int64, error) {
	names, err := l.storage.ListObjects(l.logPath)
	if err != nil {
		return nil, err
	}
	versions := make([]int64, 0, len(names))
	for _, name := range names {
		v := VersionFromName(name)
		if v < 0 {
			continue
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// getLatestVersion returns the maximum committed version, or -1 if the log
// is empty.
func (l *DeltaLog) getLatestVersion() (int64, error) {
	versions, err := l.listVersions()
	if err != nil {
		return -1, err
	}
	latest := int64(-1)
	for _, v := range versions {
		if v > latest {
			latest = v
		}
	}
	return latest, nil
}

// write serializes actions to the log-entry format and atomically writes
// them at logPath + fromVersion(version).json. This write is the commit
// point; the object store provides create-or-overwrite semantics, and
// commit conflict detection is the caller's responsibility (spec §4.10).
func (l *DeltaLog) write(version int64, actions []Action) error {
	if version < 0 {
		return deltaerrors.InvalidArgumentError("version must be >= 0")
	}
	name, err := FromVersion(version)
	if err != nil {
		return err
	}
	data, err := MarshalActions(actions)
	if err != nil {
		return err
	}
	if err := l.storage.WriteObject(l.logPath+name, data, true); err != nil {
		return err
	}
	if l.metrics != nil {
		l.metrics.DeltaLogCommitsTotal.Inc()
		l.metrics.DeltaLogVersion.Set(float64(version))
	}
	return nil
}

// readVersion reads and deserializes a single version file.
func (l *DeltaLog) readVersion(v int64) ([]Action, error) {
	name, err := FromVersion(v)
	if err != nil {
		return nil, err
	}
	data, err := l.storage.ReadObject(l.logPath + name)
	if err != nil {
		return nil, err
	}
	return UnmarshalActions(data)
}

// snapshot recomputes the table state from scratch by replaying every
// committed version in ascending order.
func (l *DeltaLog) snapshot() (Snapshot, error) {
	latest, err := l.getLatestVersion()
	if err != nil {
		return Snapshot{}, err
	}
	if latest < 0 {
		return EmptySnapshot(), nil
	}
	versions, err := l.listVersions()
	if err != nil {
		return Snapshot{}, err
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	var actions []Action
	for _, v := range versions {
		vActions, err := l.readVersion(v)
		if err != nil {
			return Snapshot{}, err
		}
		actions = append(actions, vActions...)
	}
	return Snapshot{Version: latest, Actions: actions}, nil
}

// update returns the current snapshot, recomputing it only if the cached
// snapshot is stale. Two consecutive calls with no intervening write
// return the identical cached instance.
func (l *DeltaLog) update() (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updateLocked()
}

// updateLocked assumes l.mu is already held; used by commit protocols that
// need to refresh while holding the lock across further steps.
func (l *DeltaLog) updateLocked() (Snapshot, error) {
	latest, err := l.getLatestVersion()
	if err != nil {
		return Snapshot{}, err
	}
	if l.cachedSnapshot != nil && l.cachedSnapshot.Version == latest {
		return *l.cachedSnapshot, nil
	}
	snap, err := l.snapshot()
	if err != nil {
		return Snapshot{}, err
	}
	l.cachedSnapshot = &snap
	return snap, nil
}

// lock acquires the commit lock. Combined with releaseLock it lets
// OptimisticTxn hold the lock across its multi-step commit protocol.
func (l *DeltaLog) lock() {
	l.mu.Lock()
}

// releaseLock releases the commit lock.
func (l *DeltaLog) releaseLock() {
	l.mu.Unlock()
}

// now is a seam for tests; production code uses time.Now.
var now = func() int64 { return time.Now().UnixMilli() }
