package delta_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrev/deltastore/internal/delta"
)

func TestActions_MarshalUnmarshalRoundTrip(t *testing.T) {
	actions := []delta.Action{
		delta.AddFile{Path: "data/part-1.parquet", Size: 100, ModificationTime: 123, DataChange: true},
		delta.RemoveFile{Path: "data/part-0.parquet", DeletionTimestamp: 456},
		delta.CommitInfo{Operation: "INSERT", Parameters: map[string]string{"rows": "3"}, Timestamp: 789},
	}

	data, err := delta.MarshalActions(actions)
	require.NoError(t, err)

	parsed, err := delta.UnmarshalActions(data)
	require.NoError(t, err)
	assert.Equal(t, actions, parsed)
}

func TestActions_UnknownTypeFailsParsing(t *testing.T) {
	_, err := delta.UnmarshalActions([]byte(`[{"type":"mystery","path":"x"}]`))
	assert.Error(t, err)
}

func TestActions_UnknownFieldsAreIgnored(t *testing.T) {
	parsed, err := delta.UnmarshalActions([]byte(`[{"type":"add","path":"p","size":1,"modificationTime":2,"dataChange":true,"futureField":"ignored"}]`))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, delta.AddFile{Path: "p", Size: 1, ModificationTime: 2, DataChange: true}, parsed[0])
}
