package container

import (
	"cmp"
	"slices"
)

// IIncrementalItem 支持增量更新的元素接口
// 说明：元素自己记录在数组中的下标，删除时O(1)定位
type IIncrementalItem interface {
	Index() int
	SetIndex(index int)
}

// IncrementalItemBase 可嵌入的下标实现
type IncrementalItemBase struct {
	index int
}

func (b *IncrementalItemBase) Index() int {
	return b.index
}

func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray 增量数组
// 功能：Add/Remove先进入缓冲，Prepare时统一生效
// 说明：模拟步内新增或结束的实体在下一步开始时才改变活跃集合，
// 保证同一步内遍历的集合不变
type IncrementalArray[T IIncrementalItem] struct {
	data   []T
	add    []T
	remove []T
}

// NewIncrementalArray 创建增量数组
func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make([]T, 0),
	}
}

func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 当前已生效的元素（存储顺序，非有序）
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Pending 是否有尚未生效的增删
func (a *IncrementalArray[T]) Pending() bool {
	return len(a.add) > 0 || len(a.remove) > 0
}

// Add 增加元素（等到Prepare时才会真正增加）
func (a *IncrementalArray[T]) Add(value T) {
	a.add = append(a.add, value)
}

// Remove 删除元素（等到Prepare时才会真正删除）
func (a *IncrementalArray[T]) Remove(value T) {
	a.remove = append(a.remove, value)
}

// Prepare 执行增量操作
// 算法说明：
// 1. 用新增元素填补被删除元素的位置
// 2. 新增多于删除时追加到末尾，删除多于新增时从末尾搬移元素填补空位
func (a *IncrementalArray[T]) Prepare() {
	if len(a.add) >= len(a.remove) {
		for i, x := range a.remove {
			ind := x.Index()
			a.data[ind] = a.add[i]
			a.data[ind].SetIndex(ind)
		}
		rest := a.add[len(a.remove):]
		for i, x := range rest {
			x.SetIndex(len(a.data) + i)
		}
		a.data = append(a.data, rest...)
	} else {
		for i, x := range a.add {
			ind := a.remove[i].Index()
			a.data[ind] = x
			a.data[ind].SetIndex(ind)
		}
		// 剩余待删除项按下标从大到小处理，避免搬移到已删除的位置
		rest := slices.Clone(a.remove[len(a.add):])
		slices.SortFunc(rest, func(x, y T) int { return cmp.Compare(y.Index(), x.Index()) })
		for _, x := range rest {
			ind := x.Index()
			last := len(a.data) - 1
			if ind != last {
				a.data[ind] = a.data[last]
				a.data[ind].SetIndex(ind)
			}
			a.data = a.data[:last]
		}
	}
	a.add = a.add[:0]
	a.remove = a.remove[:0]
}

// SortedBy 返回按key升序排列的副本
func SortedBy[T any, K cmp.Ordered](data []T, key func(T) K) []T {
	out := slices.Clone(data)
	slices.SortFunc(out, func(x, y T) int { return cmp.Compare(key(x), key(y)) })
	return out
}
