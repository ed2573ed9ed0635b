package network

import (
	"container/heap"
	"math"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/devrev/deltastore/internal/metrics"
)

// DeliveryCallback is invoked synchronously for each message the
// SimulatedNetwork delivers during a tick.
type DeliveryCallback func(Envelope)

// unordered pair of endpoints, used as a map key for bidirectional
// partitions.
type endpointPair struct {
	a, b Endpoint
}

func newEndpointPair(a, b Endpoint) endpointPair {
	// Order the pair by string so {a,b} and {b,a} hash identically.
	if a.String() > b.String() {
		a, b = b, a
	}
	return endpointPair{a, b}
}

// SimulatedNetwork is a deterministic, tick-driven message transport with
// configurable loss, latency, per-tick bandwidth limits, and bidirectional
// partitions (spec §4.1).
type SimulatedNetwork struct {
	mu sync.Mutex

	currentTick    uint64
	sequenceCursor uint64
	queue          messageHeap

	messageLossRate    float64
	minLatencyTicks    uint64
	maxLatencyTicks    uint64
	maxMessagesPerTick int

	partitions map[endpointPair]struct{}

	callback DeliveryCallback
	rng      *rand.Rand
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a SimulatedNetwork at construction.
type Option func(*SimulatedNetwork)

func WithLogger(logger *zap.Logger) Option {
	return func(n *SimulatedNetwork) { n.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *SimulatedNetwork) { n.metrics = m }
}

// WithRandSource fixes the network's randomness source, for reproducible
// tests of loss rate and latency jitter.
func WithRandSource(rng *rand.Rand) Option {
	return func(n *SimulatedNetwork) { n.rng = rng }
}

// NewSimulatedNetwork constructs a SimulatedNetwork with default settings
// (no loss, zero latency, unbounded bandwidth) that delivers messages via
// callback.
func NewSimulatedNetwork(callback DeliveryCallback, opts ...Option) *SimulatedNetwork {
	n := &SimulatedNetwork{
		maxMessagesPerTick: math.MaxInt32,
		partitions:         make(map[endpointPair]struct{}),
		callback:           callback,
		rng:                rand.New(rand.NewSource(1)),
		logger:             zap.NewNop(),
	}
	heap.Init(&n.queue)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SetMessageLossRate sets the probability, in [0.0, 1.0], that a sent
// message is dropped before scheduling.
func (n *SimulatedNetwork) SetMessageLossRate(rate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messageLossRate = rate
}

// SetLatency sets the inclusive tick range within which a delivered
// message's extra latency is drawn.
func (n *SimulatedNetwork) SetLatency(minTicks, maxTicks uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minLatencyTicks = minTicks
	n.maxLatencyTicks = maxTicks
}

// SetMaxMessagesPerTick bounds how many due messages tick() drains in a
// single call; the rest are rescheduled for the following tick.
func (n *SimulatedNetwork) SetMaxMessagesPerTick(max int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if max <= 0 {
		max = math.MaxInt32
	}
	n.maxMessagesPerTick = max
}

// Disconnect creates a bidirectional partition between a and b: messages in
// either direction are dropped until Reconnect or ReconnectAll.
func (n *SimulatedNetwork) Disconnect(a, b Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partitions[newEndpointPair(a, b)] = struct{}{}
	n.logger.Info("network partition created", zap.Stringer("a", a), zap.Stringer("b", b))
}

// Reconnect removes a specific bidirectional partition.
func (n *SimulatedNetwork) Reconnect(a, b Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.partitions, newEndpointPair(a, b))
}

// ReconnectAll clears every partition.
func (n *SimulatedNetwork) ReconnectAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partitions = make(map[endpointPair]struct{})
	n.logger.Info("all network partitions cleared")
}

// isPartitioned reports whether a and b cannot currently communicate. Must
// be called with n.mu held.
func (n *SimulatedNetwork) isPartitioned(a, b Endpoint) bool {
	_, blocked := n.partitions[newEndpointPair(a, b)]
	return blocked
}

// Send attempts to schedule envelope for delivery. It returns false if the
// message was dropped (partition or random loss), true if it was
// successfully scheduled.
func (n *SimulatedNetwork) Send(envelope Envelope) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isPartitioned(envelope.Source, envelope.Destination) {
		n.recordDrop("partition")
		return false
	}

	if n.messageLossRate > 0 && n.rng.Float64() < n.messageLossRate {
		n.recordDrop("loss")
		return false
	}

	delay := n.minLatencyTicks
	if n.maxLatencyTicks > n.minLatencyTicks {
		delay = n.minLatencyTicks + uint64(n.rng.Int63n(int64(n.maxLatencyTicks-n.minLatencyTicks)+1))
	}
	if delay < 1 {
		delay = 1
	}
	deliveryTick := n.currentTick + delay

	heap.Push(&n.queue, &scheduledMessage{
		envelope:       envelope,
		deliveryTick:   deliveryTick,
		sequenceNumber: n.nextSequence(),
	})

	if n.metrics != nil {
		n.metrics.MessagesSent.Inc()
		n.metrics.QueueDepth.Set(float64(n.queue.Len()))
	}
	return true
}

func (n *SimulatedNetwork) recordDrop(reason string) {
	if n.metrics != nil {
		n.metrics.MessagesDropped.WithLabelValues(reason).Inc()
	}
}

func (n *SimulatedNetwork) nextSequence() uint64 {
	seq := n.sequenceCursor
	n.sequenceCursor++
	return seq
}

// Tick advances simulated time by one and delivers every message due at or
// before the new current tick, up to the configured bandwidth limit.
// Overflow messages are rescheduled for the following tick with a fresh
// sequence number (spec §4.1, §9 "Bandwidth-limit overflow").
func (n *SimulatedNetwork) Tick() int {
	n.mu.Lock()
	n.currentTick++
	tick := n.currentTick

	due := make([]*scheduledMessage, 0)
	for n.queue.Len() > 0 && n.queue[0].deliveryTick <= tick {
		msg := heap.Pop(&n.queue).(*scheduledMessage)
		if len(due) < n.maxMessagesPerTick {
			due = append(due, msg)
		} else {
			heap.Push(&n.queue, &scheduledMessage{
				envelope:       msg.envelope,
				deliveryTick:   tick + 1,
				sequenceNumber: n.nextSequence(),
			})
		}
	}
	if n.metrics != nil {
		n.metrics.QueueDepth.Set(float64(n.queue.Len()))
	}
	n.mu.Unlock()

	delivered := 0
	for _, msg := range due {
		n.mu.Lock()
		stillConnected := !n.isPartitioned(msg.envelope.Source, msg.envelope.Destination)
		n.mu.Unlock()
		if !stillConnected {
			n.recordDrop("partition")
			continue
		}
		n.callback(msg.envelope)
		delivered++
		if n.metrics != nil {
			n.metrics.MessagesDelivered.Inc()
		}
	}
	return delivered
}

// CurrentTick returns the current simulated tick.
func (n *SimulatedNetwork) CurrentTick() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentTick
}

// QueueSize returns the number of messages currently scheduled but not yet
// delivered.
func (n *SimulatedNetwork) QueueSize() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queue.Len()
}

// Reset zeroes the tick counter, clears the queue and partitions, and
// restores default configuration.
func (n *SimulatedNetwork) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.currentTick = 0
	n.sequenceCursor = 0
	n.queue = messageHeap{}
	heap.Init(&n.queue)
	n.partitions = make(map[endpointPair]struct{})
	n.messageLossRate = 0
	n.minLatencyTicks = 0
	n.maxLatencyTicks = 0
	n.maxMessagesPerTick = math.MaxInt32
}
