// Package routeheap orders unassigned delivery orders by readiness time,
// as a min-heap keyed on readiness. It is used by the
// planner to build a nearest-ready-first warm start before branch and
// bound search begins.
package routeheap

import "container/heap"

// Stop is a single order waiting to be picked up.
type Stop struct {
	OrderIndex int // 1-based index into the problem's order arrays
	Ready      int // readiness offset in minutes
	index      int // heap bookkeeping
}

// Heap is a min-heap of Stops ordered by Ready, ties broken by OrderIndex so
// iteration order is deterministic across runs with identical input.
type Heap struct {
	stops []*Stop
}

func New() *Heap {
	return &Heap{stops: make([]*Stop, 0)}
}

func (h *Heap) Len() int { return len(h.stops) }

func (h *Heap) Less(i, j int) bool {
	if h.stops[i].Ready == h.stops[j].Ready {
		return h.stops[i].OrderIndex < h.stops[j].OrderIndex
	}
	return h.stops[i].Ready < h.stops[j].Ready
}

func (h *Heap) Swap(i, j int) {
	h.stops[i], h.stops[j] = h.stops[j], h.stops[i]
	h.stops[i].index = i
	h.stops[j].index = j
}

func (h *Heap) Push(x interface{}) {
	s := x.(*Stop)
	s.index = len(h.stops)
	h.stops = append(h.stops, s)
}

func (h *Heap) Pop() interface{} {
	old := h.stops
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	s.index = -1
	h.stops = old[:n-1]
	return s
}

// Add pushes a stop onto the heap.
func (h *Heap) Add(orderIndex, ready int) {
	heap.Push(h, &Stop{OrderIndex: orderIndex, Ready: ready})
}

// PopNearest removes and returns the stop with the smallest readiness time.
func (h *Heap) PopNearest() (*Stop, bool) {
	if h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(h).(*Stop), true
}

// Drain returns all remaining stops in readiness order, emptying the heap.
func (h *Heap) Drain() []*Stop {
	out := make([]*Stop, 0, h.Len())
	for h.Len() > 0 {
		s, _ := h.PopNearest()
		out = append(out, s)
	}
	return out
}
