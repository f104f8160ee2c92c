package summarizer

import "container/heap"

// queuedRequest pairs a Request with its submission sequence number so the
// heap can break priority ties FIFO.
type queuedRequest struct {
	req Request
	seq uint64
}

// priorityQueue is a min-heap ordered by (Priority asc, seq asc) — lower
// priority value served first, ties broken by submission order.
type priorityQueue []queuedRequest

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].req.Priority != q[j].req.Priority {
		return q[i].req.Priority < q[j].req.Priority
	}
	return q[i].seq < q[j].seq
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x any) {
	*q = append(*q, x.(queuedRequest))
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

var _ heap.Interface = (*priorityQueue)(nil)
