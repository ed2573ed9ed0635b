package delta_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrev/deltastore/internal/delta"
	deltaerrors "github.com/devrev/deltastore/internal/errors"
)

// memStorage is an in-memory delta.Storage fake for testing DeltaLog
// without a simulated cluster.
type memStorage struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objs: make(map[string][]byte)}
}

func (m *memStorage) ReadObject(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objs[key]
	if !ok {
		return nil, deltaerrors.NotFoundError(key)
	}
	return data, nil
}

func (m *memStorage) WriteObject(key string, data []byte, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !overwrite {
		if _, exists := m.objs[key]; exists {
			return deltaerrors.AlreadyExistsError(key)
		}
	}
	m.objs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) ObjectExists(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objs[key]
	return ok, nil
}

func (m *memStorage) DeleteObject(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, key)
	return nil
}

func (m *memStorage) ListObjects(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func TestDeltaLog_EmptyLogHasVersionMinusOne(t *testing.T) {
	log := delta.NewDeltaLog(newMemStorage(), "table", nil, nil)
	snap, err := log.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), snap.Version)
	assert.Empty(t, snap.Actions)
}

func TestDeltaLog_WriteThenSnapshotReplaysAllVersions(t *testing.T) {
	log := delta.NewDeltaLog(newMemStorage(), "table", nil, nil)

	require.NoError(t, log.Write(0, []delta.Action{delta.AddFile{Path: "data/part-0.parquet", Size: 10}}))
	require.NoError(t, log.Write(1, []delta.Action{delta.AddFile{Path: "data/part-1.parquet", Size: 20}}))

	snap, err := log.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, []string{"data/part-0.parquet", "data/part-1.parquet"}, snap.ActiveFiles())
}

func TestDeltaLog_ActiveFilesExcludesRemoved(t *testing.T) {
	log := delta.NewDeltaLog(newMemStorage(), "table", nil, nil)

	require.NoError(t, log.Write(0, []delta.Action{delta.AddFile{Path: "data/part-0.parquet"}}))
	require.NoError(t, log.Write(1, []delta.Action{delta.RemoveFile{Path: "data/part-0.parquet"}}))

	snap, err := log.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.ActiveFiles())
}

func TestDeltaLog_UpdateIsIdempotentWithoutIntermediateWrite(t *testing.T) {
	log := delta.NewDeltaLog(newMemStorage(), "table", nil, nil)
	require.NoError(t, log.Write(0, []delta.Action{delta.AddFile{Path: "data/part-0.parquet"}}))

	first, err := log.Snapshot()
	require.NoError(t, err)
	second, err := log.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeltaLog_WriteRejectsNegativeVersion(t *testing.T) {
	log := delta.NewDeltaLog(newMemStorage(), "table", nil, nil)
	err := log.Write(-1, nil)
	require.Error(t, err)
	assert.True(t, deltaerrors.Is(err, deltaerrors.InvalidArgument))
}
