package entity

import (
	"github.com/mshenfield/abstreet/utils/container"
)

// AgentQueue 路段占用队列
type AgentQueue = container.Queue[AgentID]

// AgentQueueEntry 占用队列中的一项
type AgentQueueEntry = container.QueueEntry[AgentID]

// NewAgentQueue 为路段创建占用队列
func NewAgentQueue(on Traversable) *AgentQueue {
	return container.NewQueue[AgentID](on.String())
}

// AgentView 每步开始时单个智能体的只读快照
type AgentView struct {
	ID      AgentID
	On      Traversable
	Dist    float64
	Speed   float64
	Length  float64
	Vehicle *Vehicle // 行人为nil
}

// WorldView 每步开始时全体智能体的只读快照
// 功能：决策阶段只读取快照，使所有智能体基于同一个上一时刻状态做出反应，与遍历顺序无关
type WorldView struct {
	agents map[AgentID]AgentView
	queues map[Traversable]*AgentQueue
}

// NewWorldView 创建空快照
func NewWorldView() *WorldView {
	return &WorldView{
		agents: make(map[AgentID]AgentView),
		queues: make(map[Traversable]*AgentQueue),
	}
}

// AddAgent 记录智能体快照
func (w *WorldView) AddAgent(v AgentView) {
	w.agents[v.ID] = v
}

// SetQueue 记录路段队列（拷贝）
func (w *WorldView) SetQueue(on Traversable, q *AgentQueue) {
	if q.Len() == 0 {
		return
	}
	w.queues[on] = q.Clone()
}

// Agent 查询智能体快照
func (w *WorldView) Agent(id AgentID) (AgentView, bool) {
	v, ok := w.agents[id]
	return v, ok
}

// Len 快照中的智能体数量
func (w *WorldView) Len() int {
	return len(w.agents)
}

// NextAgentAhead 路段上位置dist前方最近的智能体
func (w *WorldView) NextAgentAhead(on Traversable, dist float64) (AgentView, bool) {
	q, ok := w.queues[on]
	if !ok {
		return AgentView{}, false
	}
	e, ok := q.NextAhead(dist)
	if !ok {
		return AgentView{}, false
	}
	return w.mustAgent(e.ID), true
}

// Rearmost 路段上最后方的智能体
func (w *WorldView) Rearmost(on Traversable) (AgentView, bool) {
	q, ok := w.queues[on]
	if !ok {
		return AgentView{}, false
	}
	e, ok := q.First()
	if !ok {
		return AgentView{}, false
	}
	return w.mustAgent(e.ID), true
}

func (w *WorldView) mustAgent(id AgentID) AgentView {
	v, ok := w.agents[id]
	if !ok {
		panic("world view: queue references unknown " + id.String())
	}
	return v
}
