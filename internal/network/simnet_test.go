package network_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrev/deltastore/internal/network"
)

func TestSimulatedNetwork_ZeroLatencyDeliversInFIFOOrder(t *testing.T) {
	var delivered []int
	net := network.NewSimulatedNetwork(func(e network.Envelope) {
		delivered = append(delivered, int(e.MessageID))
	})
	net.SetLatency(1, 1)

	a := network.MustEndpoint("a", 1)
	b := network.MustEndpoint("b", 2)
	for i := 1; i <= 5; i++ {
		net.Send(network.Envelope{MessageID: uint64(i), Source: a, Destination: b})
	}

	net.Tick()
	require.Equal(t, []int{1, 2, 3, 4, 5}, delivered)
}

func TestSimulatedNetwork_NoCrossTickReordering(t *testing.T) {
	type delivery struct {
		tick int
		id   int
	}
	var deliveries []delivery
	currentTick := -1
	net := network.NewSimulatedNetwork(func(e network.Envelope) {
		deliveries = append(deliveries, delivery{tick: currentTick, id: int(e.MessageID)})
	}, network.WithRandSource(rand.New(rand.NewSource(42))))
	net.SetLatency(1, 3)

	a := network.MustEndpoint("a", 1)
	b := network.MustEndpoint("b", 2)
	for i := 1; i <= 20; i++ {
		net.Send(network.Envelope{MessageID: uint64(i), Source: a, Destination: b})
	}

	for tick := 0; tick < 10; tick++ {
		currentTick = tick
		net.Tick()
	}

	require.Len(t, deliveries, 20)
	for i := 1; i < len(deliveries); i++ {
		prev, cur := deliveries[i-1], deliveries[i]
		assert.LessOrEqual(t, prev.tick, cur.tick, "delivery tick must never go backwards")
		if prev.tick == cur.tick {
			assert.Less(t, prev.id, cur.id, "within a tick, messages deliver in send order")
		}
	}
}

func TestSimulatedNetwork_PartitionDropsMessages(t *testing.T) {
	delivered := 0
	net := network.NewSimulatedNetwork(func(e network.Envelope) { delivered++ })
	net.SetLatency(1, 1)

	a := network.MustEndpoint("a", 1)
	b := network.MustEndpoint("b", 2)
	net.Disconnect(a, b)
	net.Send(network.Envelope{MessageID: 1, Source: a, Destination: b})
	net.Tick()

	assert.Equal(t, 0, delivered)

	net.Reconnect(a, b)
	net.Send(network.Envelope{MessageID: 2, Source: a, Destination: b})
	net.Tick()
	assert.Equal(t, 1, delivered)
}

func TestSimulatedNetwork_MessageLossRateOneDropsEverything(t *testing.T) {
	delivered := 0
	net := network.NewSimulatedNetwork(func(e network.Envelope) { delivered++ })
	net.SetMessageLossRate(1.0)
	net.SetLatency(1, 1)

	a := network.MustEndpoint("a", 1)
	b := network.MustEndpoint("b", 2)
	for i := 0; i < 10; i++ {
		net.Send(network.Envelope{MessageID: uint64(i), Source: a, Destination: b})
	}
	net.Tick()

	assert.Equal(t, 0, delivered)
}

func TestSimulatedNetwork_BandwidthCapReschedulesOverflow(t *testing.T) {
	var delivered []int
	net := network.NewSimulatedNetwork(func(e network.Envelope) {
		delivered = append(delivered, int(e.MessageID))
	})
	net.SetLatency(1, 1)
	net.SetMaxMessagesPerTick(2)

	a := network.MustEndpoint("a", 1)
	b := network.MustEndpoint("b", 2)
	for i := 1; i <= 5; i++ {
		net.Send(network.Envelope{MessageID: uint64(i), Source: a, Destination: b})
	}

	n := net.Tick()
	assert.Equal(t, 2, n)
	assert.Len(t, delivered, 2)

	for tick := 0; tick < 5 && len(delivered) < 5; tick++ {
		net.Tick()
	}
	assert.Len(t, delivered, 5)
}
