package container

import "container/heap"

// item 优先队列元素
type item[T any] struct {
	Value    T
	Priority float64 // 越小越优先
	seq      uint64  // 插入序号，优先级相同时先入先出
	index    int
}

// priorityQueue 实现heap.Interface
type priorityQueue[T any] []*item[T]

func (pq priorityQueue[T]) Len() int { return len(pq) }

func (pq priorityQueue[T]) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority < pq[j].Priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue[T]) Push(x any) {
	it := x.(*item[T])
	it.index = len(*pq)
	*pq = append(*pq, it)
}

func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[:n-1]
	return it
}

// PriorityQueue 最小堆优先队列
// 功能：按优先级（如出发时间）取出元素，优先级相同按插入顺序，保证结果确定
type PriorityQueue[T any] struct {
	queue priorityQueue[T]
	seq   uint64
}

// NewPriorityQueue 创建优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{queue: make(priorityQueue[T], 0)}
}

func (q *PriorityQueue[T]) Len() int {
	return len(q.queue)
}

// First 查看优先级最高的元素（不弹出）
func (q *PriorityQueue[T]) First() (T, float64) {
	return q.queue[0].Value, q.queue[0].Priority
}

// HeapPush 加入元素
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	heap.Push(&q.queue, &item[T]{Value: value, Priority: priority, seq: q.seq})
	q.seq++
}

// HeapPop 弹出优先级最高的元素
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	it := heap.Pop(&q.queue).(*item[T])
	return it.Value, it.Priority
}

// PopUntil 弹出所有优先级不大于limit的元素，按出队顺序返回
func (q *PriorityQueue[T]) PopUntil(limit float64) []T {
	out := make([]T, 0)
	for q.Len() > 0 && q.queue[0].Priority <= limit {
		v, _ := q.HeapPop()
		out = append(out, v)
	}
	return out
}

// Values 按堆内存储顺序返回所有元素（无序）
func (q *PriorityQueue[T]) Values() []T {
	out := make([]T, len(q.queue))
	for i, it := range q.queue {
		out[i] = it.Value
	}
	return out
}
