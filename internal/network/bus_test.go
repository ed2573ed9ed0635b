package network_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrev/deltastore/internal/network"
)

type recordingHandler struct {
	received []network.Message
}

func (h *recordingHandler) HandleMessage(msg network.Message, sender network.Endpoint) {
	h.received = append(h.received, msg)
}

func TestMessageBus_DeliversAfterTickOnce(t *testing.T) {
	bus := network.NewMessageBus(nil, nil)
	bus.Network().SetLatency(1, 1)
	bus.SetTickInterval(time.Hour) // keep the background ticker from interfering with TickOnce

	handler := &recordingHandler{}
	dst := network.MustEndpoint("dst", 1)
	src := network.MustEndpoint("src", 2)
	bus.RegisterHandler(dst, handler)

	bus.Start()
	defer bus.Stop()

	bus.Send(network.Message{Kind: network.GetObject, Key: "k"}, src, dst)
	bus.TickOnce()

	require.Len(t, handler.received, 1)
	assert.Equal(t, "k", handler.received[0].Key)
}

func TestMessageBus_SendBeforeStartIsNoOp(t *testing.T) {
	bus := network.NewMessageBus(nil, nil)
	handler := &recordingHandler{}
	dst := network.MustEndpoint("dst", 1)
	src := network.MustEndpoint("src", 2)
	bus.RegisterHandler(dst, handler)

	bus.Send(network.Message{Kind: network.GetObject, Key: "k"}, src, dst)
	assert.Equal(t, 0, bus.Network().QueueSize())
}

func TestMessageBus_UnregisterHandlerStopsDelivery(t *testing.T) {
	bus := network.NewMessageBus(nil, nil)
	bus.Network().SetLatency(1, 1)
	bus.SetTickInterval(time.Hour)

	handler := &recordingHandler{}
	dst := network.MustEndpoint("dst", 1)
	src := network.MustEndpoint("src", 2)
	bus.RegisterHandler(dst, handler)
	bus.UnregisterHandler(dst)

	bus.Start()
	defer bus.Stop()

	bus.Send(network.Message{Kind: network.GetObject, Key: "k"}, src, dst)
	bus.TickOnce()

	assert.Empty(t, handler.received)
}
