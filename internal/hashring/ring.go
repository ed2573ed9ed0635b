// Package hashring implements the consistent-hash ring that routes object
// keys to the server that owns them (spec §4.4).
package hashring

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/devrev/deltastore/internal/metrics"
	"github.com/devrev/deltastore/internal/network"
)

// VirtualNodesPerServer is the number of ring positions each physical
// server owns.
const VirtualNodesPerServer = 100

// HashRing maps 64-bit hash values to servers using consistent hashing
// with virtual nodes, so that adding or removing a server reassigns only
// the keys whose ring position falls in the changed arc.
type HashRing struct {
	mu sync.RWMutex

	points   []uint64                       // sorted ring positions
	owners   map[uint64]network.Endpoint    // ring position -> owning server
	vnodes   map[network.Endpoint]map[uint64]struct{} // server -> its ring positions

	virtualNodes int
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// Option configures a HashRing at construction.
type Option func(*HashRing)

func WithLogger(logger *zap.Logger) Option {
	return func(r *HashRing) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *HashRing) { r.metrics = m }
}

// WithVirtualNodes overrides the default of 100 virtual nodes per server.
func WithVirtualNodes(n int) Option {
	return func(r *HashRing) { r.virtualNodes = n }
}

// New constructs an empty HashRing.
func New(opts ...Option) *HashRing {
	r := &HashRing{
		owners:       make(map[uint64]network.Endpoint),
		vnodes:       make(map[network.Endpoint]map[uint64]struct{}),
		virtualNodes: VirtualNodesPerServer,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddServer inserts server's virtual nodes into the ring.
func (r *HashRing) AddServer(server network.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	points := make(map[uint64]struct{}, r.virtualNodes)
	for i := 0; i < r.virtualNodes; i++ {
		h := hashKey(server.String() + "#" + itoa(i))
		r.owners[h] = server
		points[h] = struct{}{}
	}
	r.vnodes[server] = points
	r.rebuildSortedLocked()

	r.logger.Info("server added to hash ring", zap.Stringer("server", server))
	if r.metrics != nil {
		r.metrics.HashRingServers.Set(float64(len(r.vnodes)))
	}
}

// RemoveServer removes every virtual node belonging to server.
func (r *HashRing) RemoveServer(server network.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	points, ok := r.vnodes[server]
	if !ok {
		return
	}
	for h := range points {
		delete(r.owners, h)
	}
	delete(r.vnodes, server)
	r.rebuildSortedLocked()

	r.logger.Info("server removed from hash ring", zap.Stringer("server", server))
	if r.metrics != nil {
		r.metrics.HashRingServers.Set(float64(len(r.vnodes)))
	}
}

// rebuildSortedLocked recomputes the sorted ring position slice. Must be
// called with r.mu held for writing.
func (r *HashRing) rebuildSortedLocked() {
	points := make([]uint64, 0, len(r.owners))
	for h := range r.owners {
		points = append(points, h)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })
	r.points = points
}

// GetServerForKey returns the server owning key: the endpoint at the
// smallest ring position >= hash(key), wrapping around to the first
// position if hash(key) exceeds every position on the ring.
func (r *HashRing) GetServerForKey(key string) (network.Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 {
		return network.Endpoint{}, false
	}
	h := hashKey(key)
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return r.owners[r.points[idx]], true
}

// GetServersForKey walks the ring clockwise from key's position, skipping
// repeated endpoints, until n distinct servers are collected or a full
// revolution occurs.
func (r *HashRing) GetServersForKey(key string, n int) []network.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 || n <= 0 {
		return nil
	}
	h := hashKey(key)
	start := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= h })
	if start == len(r.points) {
		start = 0
	}

	seen := make(map[network.Endpoint]struct{})
	var result []network.Endpoint
	total := len(r.points)
	for i := 0; i < total && len(result) < n; i++ {
		idx := (start + i) % total
		server := r.owners[r.points[idx]]
		if _, ok := seen[server]; !ok {
			seen[server] = struct{}{}
			result = append(result, server)
		}
	}
	return result
}

// Servers returns the current distinct member set of the ring.
func (r *HashRing) Servers() []network.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	servers := make([]network.Endpoint, 0, len(r.vnodes))
	for s := range r.vnodes {
		servers = append(servers, s)
	}
	return servers
}

// ServerCount returns the number of distinct physical servers in the ring.
func (r *HashRing) ServerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vnodes)
}
