package objectstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	deltaerrors "github.com/devrev/deltastore/internal/errors"
	"github.com/devrev/deltastore/internal/hashring"
	"github.com/devrev/deltastore/internal/metrics"
	"github.com/devrev/deltastore/internal/network"
)

// StoreClient is the asynchronous façade application code uses to talk to
// the partitioned object store. It resolves the target server for a key
// via a HashRing and correlates responses to requests by correlation ID.
type StoreClient struct {
	endpoint network.Endpoint
	bus      *network.MessageBus
	ring     *hashring.HashRing
	logger   *zap.Logger

	pending sync.Map // correlationID string -> chan network.Message
}

// NewStoreClient constructs and registers a StoreClient at endpoint,
// initializing its hash ring with serverEndpoints. virtualNodes overrides
// the ring's default of hashring.VirtualNodesPerServer when positive.
func NewStoreClient(endpoint network.Endpoint, bus *network.MessageBus, serverEndpoints []network.Endpoint, logger *zap.Logger, m *metrics.Metrics, virtualNodes int) *StoreClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	ringOpts := []hashring.Option{hashring.WithLogger(logger), hashring.WithMetrics(m)}
	if virtualNodes > 0 {
		ringOpts = append(ringOpts, hashring.WithVirtualNodes(virtualNodes))
	}
	ring := hashring.New(ringOpts...)
	for _, e := range serverEndpoints {
		ring.AddServer(e)
	}
	c := &StoreClient{endpoint: endpoint, bus: bus, ring: ring, logger: logger}
	bus.RegisterHandler(endpoint, c)
	return c
}

// Shutdown unregisters the client from its bus.
func (c *StoreClient) Shutdown() {
	c.bus.UnregisterHandler(c.endpoint)
}

// AddServer adds server to the client's hash ring.
func (c *StoreClient) AddServer(server network.Endpoint) { c.ring.AddServer(server) }

// RemoveServer removes server from the client's hash ring.
func (c *StoreClient) RemoveServer(server network.Endpoint) { c.ring.RemoveServer(server) }

// TargetServer returns the server that owns key.
func (c *StoreClient) TargetServer(key string) (network.Endpoint, bool) {
	return c.ring.GetServerForKey(key)
}

// register creates a fresh pending-response channel for a new correlation
// ID and returns both.
func (c *StoreClient) register() (string, chan network.Message) {
	id := uuid.NewString()
	ch := make(chan network.Message, 1)
	c.pending.Store(id, ch)
	return id, ch
}

// HandleMessage implements network.Handler: it resolves the pending
// request matching the response's correlation ID, if any. A response whose
// correlation ID is unknown — because Cancel already removed it after a
// facade timeout — is discarded with a warning, per spec §5.
func (c *StoreClient) HandleMessage(msg network.Message, sender network.Endpoint) {
	if msg.CorrelationID == "" {
		c.logger.Warn("received message with empty correlation id", zap.Stringer("kind", msg.Kind))
		return
	}
	v, ok := c.pending.LoadAndDelete(msg.CorrelationID)
	if !ok {
		c.logger.Warn("discarding late or unknown response", zap.String("correlation_id", msg.CorrelationID))
		return
	}
	ch := v.(chan network.Message)
	ch <- msg
}

// Cancel removes correlationID's pending entry without waiting for a
// response, so a subsequent late arrival is discarded rather than leaking
// forever. Called by the ObjectStorage facade when its deadline expires.
func (c *StoreClient) Cancel(correlationID string) {
	c.pending.Delete(correlationID)
}

// PutObject sends a PUT_OBJECT request for key to the server that owns it.
// The client itself imposes no timeout (spec §4.6); it returns the
// correlation ID alongside the response channel so a caller enforcing its
// own deadline (see ObjectStorage) can Cancel cleanly on expiry.
func (c *StoreClient) PutObject(key string, data []byte, overwrite bool) (string, <-chan network.Message) {
	id, ch := c.register()
	target, ok := c.TargetServer(key)
	if !ok {
		c.failImmediately(ch, network.PutObjectResponse, key, id, "no servers available")
		return id, ch
	}
	c.bus.Send(network.Message{
		Kind: network.PutObject, CorrelationID: id, Key: key, Data: data, Overwrite: overwrite,
	}, c.endpoint, target)
	return id, ch
}

// GetObject sends a GET_OBJECT request for key.
func (c *StoreClient) GetObject(key string) (string, <-chan network.Message) {
	id, ch := c.register()
	target, ok := c.TargetServer(key)
	if !ok {
		c.failImmediately(ch, network.GetObjectResponse, key, id, "no servers available")
		return id, ch
	}
	c.bus.Send(network.Message{Kind: network.GetObject, CorrelationID: id, Key: key}, c.endpoint, target)
	return id, ch
}

// DeleteObject sends a DELETE_OBJECT request for key.
func (c *StoreClient) DeleteObject(key string) (string, <-chan network.Message) {
	id, ch := c.register()
	target, ok := c.TargetServer(key)
	if !ok {
		c.failImmediately(ch, network.DeleteObjectResponse, key, id, "no servers available")
		return id, ch
	}
	c.bus.Send(network.Message{Kind: network.DeleteObject, CorrelationID: id, Key: key}, c.endpoint, target)
	return id, ch
}

func (c *StoreClient) failImmediately(ch chan network.Message, kind network.Kind, key, correlationID, reason string) {
	ch <- network.Message{Kind: kind, CorrelationID: correlationID, Key: key, OK: false, Err: reason, ErrKind: deltaerrors.InvalidArgument}
}

// ListResult is the outcome of a fanned-out ListObjects call.
type ListResult struct {
	Keys []string
	Err  error
}

// ListObjects broadcasts a LIST_OBJECTS request to every known server
// (a prefix cannot be routed to a single shard) and returns a channel that
// receives exactly one ListResult once every sub-request has completed or
// ctx is done, whichever comes first. Results are deduplicated; a
// sub-server failure logs a warning and contributes nothing rather than
// failing the whole call. If ctx expires before every server has replied,
// any still-outstanding sub-requests are Cancel'd and the union collected
// so far is returned rather than blocking forever (spec §4.6, §9).
func (c *StoreClient) ListObjects(ctx context.Context, prefix string) <-chan ListResult {
	out := make(chan ListResult, 1)
	servers := c.ring.Servers()
	if len(servers) == 0 {
		out <- ListResult{Keys: nil}
		return out
	}

	subChans := make([]chan network.Message, 0, len(servers))
	ids := make([]string, 0, len(servers))
	for _, server := range servers {
		id, ch := c.register()
		ids = append(ids, id)
		subChans = append(subChans, ch)
		c.bus.Send(network.Message{Kind: network.ListObjects, CorrelationID: id, Prefix: prefix}, c.endpoint, server)
	}

	go func() {
		seen := make(map[string]struct{})
		var union []string
	loop:
		for i, ch := range subChans {
			select {
			case resp := <-ch:
				if !resp.OK {
					c.logger.Warn("list objects sub-request failed",
						zap.String("correlation_id", ids[i]), zap.String("error", resp.Err))
					continue
				}
				for _, k := range resp.Keys {
					if _, dup := seen[k]; !dup {
						seen[k] = struct{}{}
						union = append(union, k)
					}
				}
			case <-ctx.Done():
				c.logger.Warn("list objects deadline exceeded, abandoning outstanding sub-requests",
					zap.String("prefix", prefix), zap.Int("outstanding", len(subChans)-i))
				for _, id := range ids[i:] {
					c.Cancel(id)
				}
				break loop
			}
		}
		out <- ListResult{Keys: union}
	}()

	return out
}
