package delta

import (
	"encoding/json"
	"fmt"

	deltaerrors "github.com/devrev/deltastore/internal/errors"
)

// Action is one entry in a version file's action log (spec §6.2). The
// concrete types are AddFile, RemoveFile, and CommitInfo.
type Action interface {
	actionType() string
}

// AddFile records a data file added to the table.
type AddFile struct {
	Path             string            `json:"path"`
	Size             int64             `json:"size"`
	ModificationTime int64             `json:"modificationTime"`
	PartitionValues  map[string]string `json:"partitionValues,omitempty"`
	DataChange       bool              `json:"dataChange"`
	Tags             map[string]string `json:"tags,omitempty"`
	Stats            string            `json:"stats,omitempty"`
}

func (AddFile) actionType() string { return "add" }

// RemoveFile records a data file logically removed from the table.
type RemoveFile struct {
	Path              string `json:"path"`
	DeletionTimestamp int64  `json:"deletionTimestamp"`
}

func (RemoveFile) actionType() string { return "remove" }

// CommitInfo annotates a version with metadata about the operation that
// produced it. It carries no table state of its own.
type CommitInfo struct {
	Operation  string            `json:"operation"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

func (CommitInfo) actionType() string { return "commitInfo" }

// wireAction is the on-disk shape shared by every action type: a "type"
// discriminator plus the union of every type's fields.
type wireAction struct {
	Type              string            `json:"type"`
	Path              string            `json:"path,omitempty"`
	Size              int64             `json:"size,omitempty"`
	ModificationTime  int64             `json:"modificationTime,omitempty"`
	PartitionValues   map[string]string `json:"partitionValues,omitempty"`
	DataChange        bool              `json:"dataChange,omitempty"`
	Tags              map[string]string `json:"tags,omitempty"`
	Stats             string            `json:"stats,omitempty"`
	DeletionTimestamp int64             `json:"deletionTimestamp,omitempty"`
	Operation         string            `json:"operation,omitempty"`
	Parameters        map[string]string `json:"parameters,omitempty"`
	Timestamp         int64             `json:"timestamp,omitempty"`
}

func toWire(a Action) wireAction {
	switch v := a.(type) {
	case AddFile:
		return wireAction{
			Type: "add", Path: v.Path, Size: v.Size, ModificationTime: v.ModificationTime,
			PartitionValues: v.PartitionValues, DataChange: v.DataChange, Tags: v.Tags, Stats: v.Stats,
		}
	case RemoveFile:
		return wireAction{Type: "remove", Path: v.Path, DeletionTimestamp: v.DeletionTimestamp}
	case CommitInfo:
		return wireAction{Type: "commitInfo", Operation: v.Operation, Parameters: v.Parameters, Timestamp: v.Timestamp}
	default:
		panic(fmt.Sprintf("delta: unregistered action type %T", a))
	}
}

func fromWire(w wireAction) (Action, error) {
	switch w.Type {
	case "add":
		return AddFile{
			Path: w.Path, Size: w.Size, ModificationTime: w.ModificationTime,
			PartitionValues: w.PartitionValues, DataChange: w.DataChange, Tags: w.Tags, Stats: w.Stats,
		}, nil
	case "remove":
		return RemoveFile{Path: w.Path, DeletionTimestamp: w.DeletionTimestamp}, nil
	case "commitInfo":
		return CommitInfo{Operation: w.Operation, Parameters: w.Parameters, Timestamp: w.Timestamp}, nil
	default:
		return nil, deltaerrors.InvalidArgumentError(fmt.Sprintf("unknown action type: %q", w.Type))
	}
}

// MarshalActions serializes actions to the version-file JSON format: an
// array of discriminated action objects.
func MarshalActions(actions []Action) ([]byte, error) {
	wire := make([]wireAction, len(actions))
	for i, a := range actions {
		wire[i] = toWire(a)
	}
	return json.Marshal(wire)
}

// UnmarshalActions parses the version-file JSON format. Unknown fields on
// a recognized action are ignored; an unrecognized "type" fails parsing.
func UnmarshalActions(data []byte) ([]Action, error) {
	var wire []wireAction
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, deltaerrors.New(deltaerrors.IO, "failed to parse log entry", err)
	}
	actions := make([]Action, len(wire))
	for i, w := range wire {
		a, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		actions[i] = a
	}
	return actions, nil
}
