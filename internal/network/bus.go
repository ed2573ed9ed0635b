package network

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/deltastore/internal/metrics"
)

// Handler processes an inbound Message from sender.
type Handler interface {
	HandleMessage(msg Message, sender Endpoint)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(msg Message, sender Endpoint)

func (f HandlerFunc) HandleMessage(msg Message, sender Endpoint) { f(msg, sender) }

const defaultTickInterval = 100 * time.Millisecond
const stopWait = 5 * time.Second

// MessageBus is a façade around SimulatedNetwork: it maintains the
// Endpoint -> Handler registry and owns the background ticker that drives
// the network (spec §4.2).
type MessageBus struct {
	network *SimulatedNetwork
	logger  *zap.Logger

	mu       sync.RWMutex
	handlers map[Endpoint]Handler

	messageIDCursor uint64

	tickInterval time.Duration
	running      atomic.Bool
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewMessageBus constructs a MessageBus with default tick interval
// (100ms) driving a fresh SimulatedNetwork.
func NewMessageBus(logger *zap.Logger, m *metrics.Metrics) *MessageBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := &MessageBus{
		logger:       logger,
		handlers:     make(map[Endpoint]Handler),
		tickInterval: defaultTickInterval,
	}
	bus.network = NewSimulatedNetwork(bus.deliver, WithLogger(logger), WithMetrics(m))
	return bus
}

// Network exposes the underlying SimulatedNetwork for configuration
// (loss rate, latency, partitions) and for tests that drive ticks manually.
func (b *MessageBus) Network() *SimulatedNetwork { return b.network }

// SetTickInterval configures the wall-clock interval between automatic
// ticks. Only takes effect on the next Start call.
func (b *MessageBus) SetTickInterval(d time.Duration) {
	if d <= 0 {
		panic("tick interval must be positive")
	}
	b.tickInterval = d
}

// RegisterHandler associates handler with endpoint.
func (b *MessageBus) RegisterHandler(endpoint Endpoint, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[endpoint] = handler
}

// UnregisterHandler removes any handler associated with endpoint.
func (b *MessageBus) UnregisterHandler(endpoint Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, endpoint)
}

// Send wraps msg in an Envelope with a fresh monotonically increasing
// message ID and hands it to the network. It is a no-op once the bus has
// been stopped; failures to schedule (loss, partition) are silent, as
// documented by spec §4.2 — observable only by an absent response.
func (b *MessageBus) Send(msg Message, src, dst Endpoint) {
	if !b.running.Load() {
		b.logger.Warn("cannot send message when bus is not running", zap.Stringer("dst", dst))
		return
	}
	id := atomic.AddUint64(&b.messageIDCursor, 1)
	envelope := Envelope{MessageID: id, Source: src, Destination: dst, Payload: msg}
	b.network.Send(envelope)
}

// deliver is the SimulatedNetwork's delivery callback: it looks up the
// destination's handler and invokes it synchronously, recovering from and
// logging any panic so the ticker never dies.
func (b *MessageBus) deliver(envelope Envelope) {
	b.mu.RLock()
	handler, ok := b.handlers[envelope.Destination]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no handler registered for destination", zap.Stringer("destination", envelope.Destination))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked", zap.Any("recovered", r), zap.Stringer("destination", envelope.Destination))
		}
	}()
	handler.HandleMessage(envelope.Payload, envelope.Source)
}

// Start begins the background ticker that periodically calls
// Network().Tick(). Safe to call once; a second call is a no-op.
func (b *MessageBus) Start() {
	if !b.running.CompareAndSwap(false, true) {
		return
	}
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})

	go func() {
		defer close(b.doneCh)
		ticker := time.NewTicker(b.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stopCh:
				return
			case <-ticker.C:
				b.network.Tick()
			}
		}
	}()
	b.logger.Info("message bus started", zap.Duration("tick_interval", b.tickInterval))
}

// TickOnce advances the network by exactly one tick. Intended for
// deterministic tests that don't run the wall-clock ticker.
func (b *MessageBus) TickOnce() int {
	return b.network.Tick()
}

// Stop cancels the ticker and waits up to 5 seconds for it to terminate.
func (b *MessageBus) Stop() {
	if !b.running.CompareAndSwap(true, false) {
		return
	}
	close(b.stopCh)
	select {
	case <-b.doneCh:
	case <-time.After(stopWait):
		b.logger.Warn("message bus stop timed out, forcing shutdown")
	}
	b.logger.Info("message bus stopped")
}

// Reset clears the network state and the message ID counter. Intended for
// reusing one bus instance across independent test scenarios.
func (b *MessageBus) Reset() {
	b.network.Reset()
	atomic.StoreUint64(&b.messageIDCursor, 0)
}
