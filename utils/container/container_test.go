package container_test

import (
	"testing"

	"github.com/mshenfield/abstreet/utils/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueInit(t *testing.T) {
	q := container.NewQueue[int]("empty")
	_, ok := q.First()
	assert.False(t, ok)
	_, ok = q.Last()
	assert.False(t, ok)
	_, ok = q.NextAhead(0)
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
	assert.NoError(t, q.Validate())
}

func TestQueueOperation(t *testing.T) {
	q := container.NewQueue[int]("lane 1")
	// 插入顺序与位置顺序无关
	q.Insert(2, 30, 5)
	q.Insert(1, 50, 5)
	q.Insert(3, 10, 5)
	assert.Equal(t, 3, q.Len())

	first, ok := q.First()
	require.True(t, ok)
	assert.Equal(t, 3, first.ID)
	last, ok := q.Last()
	require.True(t, ok)
	assert.Equal(t, 1, last.ID)

	// 前方最近
	e, ok := q.NextAhead(10)
	require.True(t, ok)
	assert.Equal(t, 2, e.ID)
	e, ok = q.NextAhead(29.9)
	require.True(t, ok)
	assert.Equal(t, 2, e.ID)
	e, ok = q.NextAhead(30)
	require.True(t, ok)
	assert.Equal(t, 1, e.ID)
	_, ok = q.NextAhead(50)
	assert.False(t, ok)

	// 原地更新
	q.Update(3, 24)
	e, ok = q.Get(3)
	require.True(t, ok)
	assert.Equal(t, 24.0, e.Dist)
	assert.Equal(t, 19.0, e.Back())

	q.Remove(2)
	assert.False(t, q.Contains(2))
	e, ok = q.NextAhead(24)
	require.True(t, ok)
	assert.Equal(t, 1, e.ID)
	assert.NoError(t, q.Validate())
}

func TestQueueInvariant(t *testing.T) {
	q := container.NewQueue[int]("lane 2")
	q.Insert(1, 20, 5)
	// 区间重叠
	assert.Panics(t, func() { q.Insert(2, 17, 5) })
	assert.Panics(t, func() { q.Insert(3, 22, 5) })
	// 位置相同
	assert.Panics(t, func() { q.Insert(4, 20, 5) })
	// 重复ID
	assert.Panics(t, func() { q.Insert(1, 40, 5) })
	// 刚好贴合是允许的
	q.Insert(5, 15, 5)
	// 超车
	assert.Panics(t, func() { q.Update(5, 21) })
	assert.Panics(t, func() { q.Remove(9) })
	assert.Equal(t, 2, q.Len())
}

func TestQueueClone(t *testing.T) {
	q := container.NewQueue[int]("lane 3")
	q.Insert(1, 10, 4)
	c := q.Clone()
	q.Update(1, 12)
	q.Insert(2, 30, 4)
	e, _ := c.Get(1)
	assert.Equal(t, 10.0, e.Dist)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "lane 3", c.ID())
}

func TestPriorityQueue(t *testing.T) {
	pq := container.NewPriorityQueue[string]()
	pq.HeapPush("c", 3)
	pq.HeapPush("a", 1)
	pq.HeapPush("b1", 2)
	pq.HeapPush("b2", 2)
	v, p := pq.First()
	assert.Equal(t, "a", v)
	assert.Equal(t, 1.0, p)

	assert.Equal(t, []string{"a", "b1", "b2"}, pq.PopUntil(2))
	assert.Equal(t, 1, pq.Len())
	v, p = pq.HeapPop()
	assert.Equal(t, "c", v)
	assert.Equal(t, 3.0, p)
	assert.Empty(t, pq.PopUntil(100))
}

type testItem struct {
	container.IncrementalItemBase
	id int
}

func TestIncrementalArray(t *testing.T) {
	a := container.NewIncrementalArray[*testItem]()
	items := make([]*testItem, 5)
	for i := range items {
		items[i] = &testItem{id: i}
		a.Add(items[i])
	}
	assert.Equal(t, 0, a.Len())
	assert.True(t, a.Pending())
	a.Prepare()
	assert.Equal(t, 5, a.Len())
	assert.False(t, a.Pending())

	// 删多于增
	a.Remove(items[1])
	a.Remove(items[4])
	a.Remove(items[2])
	a.Add(&testItem{id: 5})
	a.Prepare()
	assert.Equal(t, 3, a.Len())
	ids := make([]int, 0)
	for i, x := range a.Data() {
		assert.Equal(t, i, x.Index())
		ids = append(ids, x.id)
	}
	assert.ElementsMatch(t, []int{0, 3, 5}, ids)

	sorted := container.SortedBy(a.Data(), func(x *testItem) int { return x.id })
	assert.Equal(t, 0, sorted[0].id)
	assert.Equal(t, 5, sorted[2].id)
}
