package delta_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrev/deltastore/internal/delta"
)

func TestLogFileName_FromVersionRoundTripsWithParse(t *testing.T) {
	name, err := delta.FromVersion(42)
	require.NoError(t, err)
	assert.Equal(t, "00000000000000000042.json", name)

	v, err := delta.Parse(name)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestLogFileName_FromVersionRejectsNegative(t *testing.T) {
	_, err := delta.FromVersion(-1)
	assert.Error(t, err)
}

func TestLogFileName_ParseRejectsGarbage(t *testing.T) {
	cases := []string{"not-a-version.json", "42.json", "00000000000000000042.txt", ""}
	for _, c := range cases {
		_, err := delta.Parse(c)
		assert.Error(t, err, "expected %q to be rejected", c)
	}
}

func TestLogFileName_VersionFromNameIsNonThrowing(t *testing.T) {
	assert.Equal(t, int64(-1), delta.VersionFromName("garbage"))
	assert.Equal(t, int64(7), delta.VersionFromName("dir/00000000000000000007.json"))
}

func TestLogFileName_GetPathIn(t *testing.T) {
	assert.Equal(t, "table/_delta_log/00000000000000000000.json", delta.GetPathIn("table/_delta_log", "00000000000000000000.json"))
	assert.Equal(t, "table/_delta_log/00000000000000000000.json", delta.GetPathIn("table/_delta_log/", "00000000000000000000.json"))
}
