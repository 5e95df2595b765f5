package container

import (
	"fmt"
	"sort"
)

// QueueEntry 占用队列中的一项
// Dist是车头（前端）在路段上的位置，实体占据[Dist-Length, Dist]
type QueueEntry[K comparable] struct {
	ID     K
	Dist   float64
	Length float64
}

// Back 实体尾部位置
func (e QueueEntry[K]) Back() float64 {
	return e.Dist - e.Length
}

// Queue 单个路段（lane/turn）上的有序占用队列
// 功能：按Dist升序保存实体，提供"前方最近实体"查询
// 说明：entries[0]为最后方（rearmost），entries[len-1]为最前方
// 不变量：Dist严格递增，相邻实体区间不重叠，违反时panic
type Queue[K comparable] struct {
	id      string
	entries []QueueEntry[K]
}

const queueEpsilon = 1e-9

// NewQueue 创建空队列，id仅用于日志
func NewQueue[K comparable](id string) *Queue[K] {
	return &Queue[K]{id: id, entries: make([]QueueEntry[K], 0)}
}

func (q *Queue[K]) ID() string {
	return q.id
}

func (q *Queue[K]) Len() int {
	return len(q.entries)
}

// Entries 按Dist升序返回所有实体（只读）
func (q *Queue[K]) Entries() []QueueEntry[K] {
	return q.entries
}

// First 最后方的实体
func (q *Queue[K]) First() (QueueEntry[K], bool) {
	if len(q.entries) == 0 {
		return QueueEntry[K]{}, false
	}
	return q.entries[0], true
}

// Last 最前方的实体
func (q *Queue[K]) Last() (QueueEntry[K], bool) {
	if len(q.entries) == 0 {
		return QueueEntry[K]{}, false
	}
	return q.entries[len(q.entries)-1], true
}

// NextAhead 返回Dist严格大于dist的最近实体，二分查找
func (q *Queue[K]) NextAhead(dist float64) (QueueEntry[K], bool) {
	i := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].Dist > dist
	})
	if i == len(q.entries) {
		return QueueEntry[K]{}, false
	}
	return q.entries[i], true
}

// Get 按ID查找
func (q *Queue[K]) Get(id K) (QueueEntry[K], bool) {
	if i := q.indexOf(id); i >= 0 {
		return q.entries[i], true
	}
	return QueueEntry[K]{}, false
}

// Contains 是否包含ID
func (q *Queue[K]) Contains(id K) bool {
	return q.indexOf(id) >= 0
}

func (q *Queue[K]) indexOf(id K) int {
	for i, e := range q.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Insert 按Dist有序插入
// 功能：插入新实体，检查与前后实体的顺序和区间重叠
// 说明：ID重复、位置相同或区间重叠都属于调用方错误，直接panic
func (q *Queue[K]) Insert(id K, dist, length float64) {
	if q.indexOf(id) >= 0 {
		panic(fmt.Sprintf("queue %s: duplicate entry %v", q.id, id))
	}
	i := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].Dist >= dist
	})
	e := QueueEntry[K]{ID: id, Dist: dist, Length: length}
	q.checkNeighbors(i-1, e, i)
	q.entries = append(q.entries, QueueEntry[K]{})
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = e
}

// Remove 删除实体，不存在时panic
func (q *Queue[K]) Remove(id K) {
	i := q.indexOf(id)
	if i < 0 {
		panic(fmt.Sprintf("queue %s: remove missing entry %v", q.id, id))
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
}

// Update 原地更新实体位置
// 说明：新位置必须仍位于前后实体之间，否则说明出现了超车或碰撞
func (q *Queue[K]) Update(id K, dist float64) {
	i := q.indexOf(id)
	if i < 0 {
		panic(fmt.Sprintf("queue %s: update missing entry %v", q.id, id))
	}
	e := q.entries[i]
	e.Dist = dist
	q.checkNeighbors(i-1, e, i+1)
	q.entries[i] = e
}

// checkNeighbors 检查e放在behind与ahead两个下标之间时是否满足不变量
func (q *Queue[K]) checkNeighbors(behind int, e QueueEntry[K], ahead int) {
	if behind >= 0 {
		b := q.entries[behind]
		if b.Dist >= e.Dist || b.Dist > e.Back()+queueEpsilon {
			panic(fmt.Sprintf("queue %s: %v at %.3f (len %.2f) overlaps %v at %.3f behind it",
				q.id, e.ID, e.Dist, e.Length, b.ID, b.Dist))
		}
	}
	if ahead < len(q.entries) {
		a := q.entries[ahead]
		if e.Dist >= a.Dist || e.Dist > a.Back()+queueEpsilon {
			panic(fmt.Sprintf("queue %s: %v at %.3f overlaps %v at %.3f (len %.2f) ahead of it",
				q.id, e.ID, e.Dist, a.ID, a.Dist, a.Length))
		}
	}
}

// Clone 深拷贝，用于构建每步的快照
func (q *Queue[K]) Clone() *Queue[K] {
	entries := make([]QueueEntry[K], len(q.entries))
	copy(entries, q.entries)
	return &Queue[K]{id: q.id, entries: entries}
}

// Validate 全量检查顺序与区间不重叠
func (q *Queue[K]) Validate() error {
	for i := 1; i < len(q.entries); i++ {
		b, a := q.entries[i-1], q.entries[i]
		if b.Dist >= a.Dist {
			return fmt.Errorf("queue %s: %v at %.3f not behind %v at %.3f", q.id, b.ID, b.Dist, a.ID, a.Dist)
		}
		if b.Dist > a.Back()+queueEpsilon {
			return fmt.Errorf("queue %s: %v at %.3f overlaps %v back %.3f", q.id, b.ID, b.Dist, a.ID, a.Back())
		}
	}
	return nil
}
