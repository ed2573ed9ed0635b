// Package objectstore implements the object-store RPC layer: StoreServer
// handles requests against LocalStorage, StoreClient routes requests via
// the hash ring and correlates responses, and ObjectStorage is a blocking
// facade implementing the Storage interface the transaction log consumes
// (spec §4.5, §4.6, §4.7).
package objectstore

import (
	"time"

	"go.uber.org/zap"

	deltaerrors "github.com/devrev/deltastore/internal/errors"
	"github.com/devrev/deltastore/internal/metrics"
	"github.com/devrev/deltastore/internal/network"
	"github.com/devrev/deltastore/internal/storage"
)

// StoreServer is a stateless RPC handler that executes LocalStorage
// operations on behalf of received requests and replies through the
// message bus.
type StoreServer struct {
	endpoint network.Endpoint
	local    *storage.LocalStorage
	bus      *network.MessageBus
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewStoreServer constructs and registers a StoreServer at endpoint.
func NewStoreServer(endpoint network.Endpoint, local *storage.LocalStorage, bus *network.MessageBus, logger *zap.Logger, m *metrics.Metrics) *StoreServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StoreServer{endpoint: endpoint, local: local, bus: bus, logger: logger, metrics: m}
	bus.RegisterHandler(endpoint, s)
	return s
}

// Shutdown unregisters the server from its bus.
func (s *StoreServer) Shutdown() {
	s.bus.UnregisterHandler(s.endpoint)
}

// HandleMessage implements network.Handler.
func (s *StoreServer) HandleMessage(msg network.Message, sender network.Endpoint) {
	switch msg.Kind {
	case network.PutObject:
		s.handlePut(msg, sender)
	case network.GetObject:
		s.handleGet(msg, sender)
	case network.DeleteObject:
		s.handleDelete(msg, sender)
	case network.ListObjects:
		s.handleList(msg, sender)
	default:
		s.logger.Warn("store server received unexpected message kind", zap.Stringer("kind", msg.Kind))
	}
}

func (s *StoreServer) observe(op string, start time.Time, ok bool) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	s.metrics.StoreOpsTotal.WithLabelValues(op, outcome).Inc()
	s.metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *StoreServer) handlePut(msg network.Message, sender network.Endpoint) {
	start := time.Now()
	err := s.local.Put(msg.Key, msg.Data, msg.Overwrite)
	resp := network.Message{
		Kind:          network.PutObjectResponse,
		CorrelationID: msg.CorrelationID,
		Key:           msg.Key,
		OK:            err == nil,
	}
	if err != nil {
		resp.Err = err.Error()
		resp.ErrKind = deltaerrors.KindOf(err)
		s.logger.Warn("put failed", zap.String("key", msg.Key), zap.Error(err))
	}
	s.observe("put", start, err == nil)
	s.bus.Send(resp, s.endpoint, sender)
}

func (s *StoreServer) handleGet(msg network.Message, sender network.Endpoint) {
	start := time.Now()
	data, err := s.local.Get(msg.Key)
	resp := network.Message{
		Kind:          network.GetObjectResponse,
		CorrelationID: msg.CorrelationID,
		Key:           msg.Key,
		OK:            err == nil,
	}
	if err != nil {
		resp.Err = err.Error()
		resp.ErrKind = deltaerrors.KindOf(err)
	} else {
		resp.Data = data
	}
	s.observe("get", start, err == nil)
	s.bus.Send(resp, s.endpoint, sender)
}

func (s *StoreServer) handleDelete(msg network.Message, sender network.Endpoint) {
	start := time.Now()
	err := s.local.Delete(msg.Key)
	resp := network.Message{
		Kind:          network.DeleteObjectResponse,
		CorrelationID: msg.CorrelationID,
		Key:           msg.Key,
		OK:            err == nil,
	}
	if err != nil {
		resp.Err = err.Error()
		resp.ErrKind = deltaerrors.KindOf(err)
		s.logger.Warn("delete failed", zap.String("key", msg.Key), zap.Error(err))
	}
	s.observe("delete", start, err == nil)
	s.bus.Send(resp, s.endpoint, sender)
}

func (s *StoreServer) handleList(msg network.Message, sender network.Endpoint) {
	start := time.Now()
	keys, err := s.local.ListObjects(msg.Prefix)
	resp := network.Message{
		Kind:          network.ListObjectsResponse,
		CorrelationID: msg.CorrelationID,
		Prefix:        msg.Prefix,
		OK:            err == nil,
	}
	if err != nil {
		resp.Err = err.Error()
		resp.ErrKind = deltaerrors.KindOf(err)
		s.logger.Warn("list failed", zap.String("prefix", msg.Prefix), zap.Error(err))
	} else {
		resp.Keys = keys
	}
	s.observe("list", start, err == nil)
	s.bus.Send(resp, s.endpoint, sender)
}
