package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deltaerrors "github.com/devrev/deltastore/internal/errors"
	"github.com/devrev/deltastore/internal/storage"
)

func newStore(t *testing.T) *storage.LocalStorage {
	t.Helper()
	s, err := storage.New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLocalStorage_PutGetRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put("customer-CUST0001", []byte("hello"), true))

	data, err := s.Get("customer-CUST0001")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestLocalStorage_GetMissingIsNotFoundWithExactMarker(t *testing.T) {
	s := newStore(t)
	_, err := s.Get("does-not-exist")
	require.Error(t, err)
	assert.True(t, deltaerrors.Is(err, deltaerrors.NotFound))
	assert.Equal(t, "Failed to retrieve object: does-not-exist", err.Error())
}

func TestLocalStorage_PutWithoutOverwriteFailsOnCollision(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put("k", []byte("v1"), true))

	err := s.Put("k", []byte("v2"), false)
	require.Error(t, err)
	assert.True(t, deltaerrors.Is(err, deltaerrors.AlreadyExists))

	data, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data, "failed overwrite must not clobber the existing object")
}

func TestLocalStorage_DeleteThenGetIsNotFound(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put("k", []byte("v"), true))
	require.NoError(t, s.Delete("k"))

	_, err := s.Get("k")
	assert.True(t, deltaerrors.Is(err, deltaerrors.NotFound))
}

func TestLocalStorage_DeleteAbsentKeyIsNotAnError(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Delete("never-existed"))
}

func TestLocalStorage_ListObjectsByPrefix(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 10; i++ {
		key := filepath.ToSlash(filepath.Join("customer-CUST000" + string(rune('0'+i))))
		require.NoError(t, s.Put(key, []byte("x"), true))
	}
	require.NoError(t, s.Put("unrelated-key", []byte("y"), true))

	keys, err := s.ListObjects("customer-")
	require.NoError(t, err)
	assert.Len(t, keys, 10)
	for _, k := range keys {
		assert.Contains(t, k, "customer-")
	}
}

func TestLocalStorage_ListObjectsOnMissingPrefixDirCreatesItAndReturnsEmpty(t *testing.T) {
	s := newStore(t)
	keys, err := s.ListObjects("nested/dir/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
