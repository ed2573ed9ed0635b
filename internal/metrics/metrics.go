// Package metrics exposes Prometheus instrumentation for a simulated
// deltastore cluster.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector used across deltastore's
// components. It is registered against a caller-supplied registry rather
// than the global default so multiple simulated clusters can coexist in one
// test binary.
type Metrics struct {
	MessagesSent      prometheus.Counter
	MessagesDropped   *prometheus.CounterVec
	MessagesDelivered prometheus.Counter
	QueueDepth        prometheus.Gauge

	StoreOpsTotal   *prometheus.CounterVec
	StoreOpDuration *prometheus.HistogramVec

	HashRingServers prometheus.Gauge

	DeltaLogCommitsTotal   prometheus.Counter
	DeltaLogConflictsTotal prometheus.Counter
	DeltaLogVersion        prometheus.Gauge
}

// New builds a Metrics instance, registering all collectors against reg. If
// reg is nil, a fresh private registry is used and returned as the second
// value.
func New(nodeID string, reg *prometheus.Registry) (*Metrics, *prometheus.Registry) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{"node_id": nodeID}

	m := &Metrics{
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "deltastore",
			Subsystem:   "network",
			Name:        "messages_sent_total",
			Help:        "Total number of messages accepted by the simulated network for scheduling.",
			ConstLabels: labels,
		}),
		MessagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "deltastore",
			Subsystem:   "network",
			Name:        "messages_dropped_total",
			Help:        "Total number of messages dropped, labeled by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		MessagesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "deltastore",
			Subsystem:   "network",
			Name:        "messages_delivered_total",
			Help:        "Total number of messages delivered to a handler.",
			ConstLabels: labels,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "deltastore",
			Subsystem:   "network",
			Name:        "queue_depth",
			Help:        "Number of scheduled messages currently pending delivery.",
			ConstLabels: labels,
		}),
		StoreOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "deltastore",
			Subsystem:   "store",
			Name:        "ops_total",
			Help:        "Total number of StoreServer operations, labeled by op and outcome.",
			ConstLabels: labels,
		}, []string{"op", "outcome"}),
		StoreOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "deltastore",
			Subsystem:   "store",
			Name:        "op_duration_seconds",
			Help:        "StoreServer operation duration in seconds, labeled by op.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"op"}),
		HashRingServers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "deltastore",
			Subsystem:   "hashring",
			Name:        "servers",
			Help:        "Number of physical servers currently in the hash ring.",
			ConstLabels: labels,
		}),
		DeltaLogCommitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "deltastore",
			Subsystem:   "deltalog",
			Name:        "commits_total",
			Help:        "Total number of successful transaction commits.",
			ConstLabels: labels,
		}),
		DeltaLogConflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "deltastore",
			Subsystem:   "deltalog",
			Name:        "conflicts_total",
			Help:        "Total number of OptimisticTxn.CommitWithRetry attempts rejected due to a concurrent modification; conflicts from a plain Commit call are not counted.",
			ConstLabels: labels,
		}),
		DeltaLogVersion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "deltastore",
			Subsystem:   "deltalog",
			Name:        "version",
			Help:        "Latest committed version of the table's transaction log.",
			ConstLabels: labels,
		}),
	}

	return m, reg
}
