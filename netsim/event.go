package netsim

// kind discriminates what a scheduled event delivers.
type kind int

const (
	kindMessage kind = iota
	kindHeader
	kindBody
)

// event is one scheduled delivery. Seq is assigned in send order and
// breaks ties between events with the same DeliveryTime, giving the
// heap a total order — Go's container/heap, unlike Python's heapq with
// a custom __lt__, has no notion of insertion-order stability on its
// own.
type event struct {
	deliveryTime float64
	seq          uint64
	sender       string
	receiver     string
	kind         kind
	msg          Message
	header       BlockHeader
	body         BlockBody
}

// eventHeap implements container/heap.Interface ordered by
// (deliveryTime, seq).
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].deliveryTime != h[j].deliveryTime {
		return h[i].deliveryTime < h[j].deliveryTime
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
