package objectstore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/deltastore/internal/config"
	deltaerrors "github.com/devrev/deltastore/internal/errors"
	"github.com/devrev/deltastore/internal/network"
)

// ObjectStorage is a blocking facade over StoreClient's asynchronous,
// correlation-ID based RPCs. It is the Storage implementation the
// transaction log and transaction manager depend on (spec §4.5, §6.3).
// Every call enforces requestTimeout itself; StoreClient never times out
// on its own.
type ObjectStorage struct {
	client         *StoreClient
	logger         *zap.Logger
	requestTimeout time.Duration
}

// NewObjectStorage constructs an ObjectStorage backed by client, using
// cfg's RequestTimeout (spec §4.6) to bound every call.
func NewObjectStorage(client *StoreClient, cfg config.FacadeConfig, logger *zap.Logger) *ObjectStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ObjectStorage{client: client, logger: logger, requestTimeout: timeout}
}

// awaitResponse blocks on ch until it fires or the timeout elapses. On
// timeout it cancels correlationID's pending entry so a late arrival is
// discarded instead of leaking, and returns a Timeout error.
func (o *ObjectStorage) awaitResponse(correlationID string, ch <-chan network.Message) (network.Message, error) {
	timer := time.NewTimer(o.requestTimeout)
	defer timer.Stop()
	select {
	case msg := <-ch:
		if !msg.OK {
			kind := msg.ErrKind
			if kind == deltaerrors.Unknown {
				kind = deltaerrors.Transport
			}
			return msg, deltaerrors.New(kind, msg.Err, nil)
		}
		return msg, nil
	case <-timer.C:
		o.client.Cancel(correlationID)
		return network.Message{}, deltaerrors.TimeoutError("request timed out after " + o.requestTimeout.String())
	}
}

// WriteObject stores data under key, failing with AlreadyExists if the
// object exists and overwrite is false.
func (o *ObjectStorage) WriteObject(key string, data []byte, overwrite bool) error {
	id, ch := o.client.PutObject(key, data, overwrite)
	_, err := o.awaitResponse(id, ch)
	return err
}

// ReadObject returns key's contents, or a NotFound error if it does not
// exist.
func (o *ObjectStorage) ReadObject(key string) ([]byte, error) {
	id, ch := o.client.GetObject(key)
	msg, err := o.awaitResponse(id, ch)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

// ObjectExists reports whether key exists, translating NotFound into a
// plain false rather than propagating it as an error.
func (o *ObjectStorage) ObjectExists(key string) (bool, error) {
	_, err := o.ReadObject(key)
	if err == nil {
		return true, nil
	}
	if deltaerrors.Is(err, deltaerrors.NotFound) {
		return false, nil
	}
	return false, err
}

// DeleteObject removes key. Deleting an absent key is not an error.
func (o *ObjectStorage) DeleteObject(key string) error {
	id, ch := o.client.DeleteObject(key)
	_, err := o.awaitResponse(id, ch)
	return err
}

// ListObjects returns the union of every key with the given prefix across
// the cluster, bounded by the facade's request timeout.
func (o *ObjectStorage) ListObjects(prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.requestTimeout)
	defer cancel()
	result := <-o.client.ListObjects(ctx, prefix)
	return result.Keys, result.Err
}
