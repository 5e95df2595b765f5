package trip

import (
	"fmt"

	"github.com/mshenfield/abstreet/entity"
)

// State 行程生命周期状态
type State int

const (
	StateNotStarted State = iota // 首段智能体尚未进入路网
	StateInProgress
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		panic(fmt.Sprintf("bad trip state %d", int(s)))
	}
}

// Trip 一次多段出行
// 功能：记录当前出行段与执行该段的智能体
// 说明：live为false表示当前段的智能体已分配但尚未进入路网（出行方式切换中）
type Trip struct {
	id    entity.TripID
	spec  entity.TripSpec
	state State

	leg   int
	agent entity.AgentID
	live  bool

	ped entity.PedestrianID // 该行程所有步行段共用的行人ID

	startTime float64
	endTime   float64
	reason    string
}

func (t *Trip) String() string {
	return fmt.Sprintf("Trip{id=%d %v leg=%d/%d %v}", t.id, t.state, t.leg, len(t.spec.Legs), t.agent)
}

// ID 行程ID
func (t *Trip) ID() entity.TripID {
	return t.id
}

// State 行程状态
func (t *Trip) State() State {
	return t.state
}

// Leg 当前出行段序号
func (t *Trip) Leg() int {
	return t.leg
}

// CurrentLeg 当前出行段，步行段的行人ID已填好
func (t *Trip) CurrentLeg() entity.TripLeg {
	leg := t.spec.Legs[t.leg]
	if leg.Mode == entity.LegWalk {
		leg.Ped = t.ped
	}
	return leg
}

// Remaining 从当前段开始尚未完成的出行段
func (t *Trip) Remaining() []entity.TripLeg {
	return t.spec.Legs[t.leg:]
}

// Agent 当前出行段的智能体，以及它是否已在路网中
func (t *Trip) Agent() (entity.AgentID, bool) {
	return t.agent, t.live
}

// Duration 已结束行程的用时
func (t *Trip) Duration() (float64, bool) {
	if t.state != StateDone && t.state != StateAborted {
		return 0, false
	}
	return t.endTime - t.startTime, true
}

// Reason 放弃原因
func (t *Trip) Reason() string {
	return t.reason
}

func (t *Trip) finished() bool {
	return t.state == StateDone || t.state == StateAborted
}

// agentOf 执行第i段的智能体
func (t *Trip) agentOf(i int) entity.AgentID {
	leg := t.spec.Legs[i]
	leg.Ped = t.ped
	return leg.Agent()
}
