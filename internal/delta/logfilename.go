// Package delta implements the append-only versioned transaction log that
// backs a table: version files under _delta_log, each holding a JSON array
// of actions, replayed to reconstruct a snapshot (spec §4.8, §4.9, §6.2).
package delta

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	deltaerrors "github.com/devrev/deltastore/internal/errors"
)

const versionWidth = 20

// FromVersion produces the canonical filename for version v: a
// versionWidth-digit zero-padded decimal followed by ".json".
func FromVersion(v int64) (string, error) {
	if v < 0 {
		return "", deltaerrors.InvalidArgumentError(fmt.Sprintf("version must be >= 0, got %d", v))
	}
	return fmt.Sprintf("%0*d.json", versionWidth, v), nil
}

// Parse extracts the version encoded in path's basename, requiring a
// purely-numeric stem at least versionWidth digits wide followed by
// ".json". It fails on anything else.
func Parse(p string) (int64, error) {
	name := path.Base(p)
	stem, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return 0, deltaerrors.InvalidArgumentError(fmt.Sprintf("not a log file name: %s", name))
	}
	if len(stem) < versionWidth {
		return 0, deltaerrors.InvalidArgumentError(fmt.Sprintf("log file name too short: %s", name))
	}
	for _, r := range stem {
		if r < '0' || r > '9' {
			return 0, deltaerrors.InvalidArgumentError(fmt.Sprintf("log file name is not purely numeric: %s", name))
		}
	}
	v, err := strconv.ParseInt(stem, 10, 64)
	if err != nil {
		return 0, deltaerrors.InvalidArgumentError(fmt.Sprintf("log file name does not parse as a version: %s", name))
	}
	return v, nil
}

// VersionFromName is the non-throwing variant of Parse used while scanning
// a directory: it returns -1 instead of an error on any failure.
func VersionFromName(p string) int64 {
	v, err := Parse(p)
	if err != nil {
		return -1
	}
	return v
}

// GetPathIn joins name onto dir with a '/' separator, tolerating a missing
// trailing slash on dir.
func GetPathIn(dir, name string) string {
	if dir == "" {
		return name
	}
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
