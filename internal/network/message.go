package network

import deltaerrors "github.com/devrev/deltastore/internal/errors"

// Kind discriminates the payload carried by a Message.
type Kind int

const (
	PutObject Kind = iota
	PutObjectResponse
	GetObject
	GetObjectResponse
	DeleteObject
	DeleteObjectResponse
	ListObjects
	ListObjectsResponse
)

func (k Kind) String() string {
	switch k {
	case PutObject:
		return "PUT_OBJECT"
	case PutObjectResponse:
		return "PUT_OBJECT_RESPONSE"
	case GetObject:
		return "GET_OBJECT"
	case GetObjectResponse:
		return "GET_OBJECT_RESPONSE"
	case DeleteObject:
		return "DELETE_OBJECT"
	case DeleteObjectResponse:
		return "DELETE_OBJECT_RESPONSE"
	case ListObjects:
		return "LIST_OBJECTS"
	case ListObjectsResponse:
		return "LIST_OBJECTS_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// Message is a tagged union over every request/response pair the object
// store's wire protocol supports (spec §3, §6.1). Only the fields relevant
// to Kind are populated; a single struct (rather than an interface per
// variant) keeps handler code free of type assertions and mirrors the
// discriminated-union shape the log's Action type also uses.
type Message struct {
	Kind          Kind
	CorrelationID string

	// PUT_OBJECT / PUT_OBJECT_RESPONSE / DELETE_OBJECT / DELETE_OBJECT_RESPONSE / GET_OBJECT / GET_OBJECT_RESPONSE
	Key       string
	Data      []byte
	Overwrite bool

	// LIST_OBJECTS / LIST_OBJECTS_RESPONSE
	Prefix string
	Keys   []string

	// responses. ErrKind carries the sender's deltaerrors.Kind across the
	// wire alongside the human-readable Err string, so a receiving facade
	// can reconstruct a typed error (NotFound, AlreadyExists, ...) instead
	// of losing the failure's classification to a bare string.
	OK      bool
	Err     string
	ErrKind deltaerrors.Kind
}
