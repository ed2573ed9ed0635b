package network

// Envelope wraps a Message with routing and ordering metadata. Immutable
// after construction.
type Envelope struct {
	MessageID   uint64
	Source      Endpoint
	Destination Endpoint
	Payload     Message
}

// scheduledMessage is an Envelope annotated with when it is due for
// delivery and the sequence number used to break ties between messages
// due on the same tick (spec §3, §4.1).
type scheduledMessage struct {
	envelope       Envelope
	deliveryTick   uint64
	sequenceNumber uint64
	index          int // heap.Interface bookkeeping
}

// messageHeap is a container/heap.Interface ordering scheduledMessages by
// (deliveryTick, sequenceNumber) ascending.
type messageHeap []*scheduledMessage

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	if h[i].deliveryTick != h[j].deliveryTick {
		return h[i].deliveryTick < h[j].deliveryTick
	}
	return h[i].sequenceNumber < h[j].sequenceNumber
}

func (h messageHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *messageHeap) Push(x any) {
	item := x.(*scheduledMessage)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
