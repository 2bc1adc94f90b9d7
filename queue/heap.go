package queue

// scheduledHeap is a container/heap.Interface ordering Entry[T] by dueAt,
// earliest first. Callers use container/heap's package functions (heap.Push,
// heap.Pop) rather than these Len/Less/Swap/Push/Pop methods directly.
type scheduledHeap[T any] []*Entry[T]

func (h scheduledHeap[T]) Len() int { return len(h) }

func (h scheduledHeap[T]) Less(i, j int) bool { return h[i].dueAt.Before(h[j].dueAt) }

func (h scheduledHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *scheduledHeap[T]) Push(x any) {
	e := x.(*Entry[T])
	e.heapIndex = len(*h)
	*h = append(*h, e)
}

func (h *scheduledHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
