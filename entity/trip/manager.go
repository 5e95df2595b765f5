package trip

import (
	"fmt"

	"github.com/mshenfield/abstreet/entity"
	"github.com/samber/lo"
)

// Manager 行程管理（TripManager）
// 功能：维护每个行程的生命周期 NotStarted -> InProgress(leg i) -> ... -> Done，
// 任意进行中的行程可转入Aborted
// 说明：只通过AgentID引用Driving/Walking中的智能体，从不持有它们
type Manager struct {
	trips []*Trip // 下标即TripID

	agents map[entity.AgentID]*Trip      // 当前段智能体 -> 行程
	peds   map[entity.PedestrianID]*Trip // 行人ID归属，行人ID不跨行程复用
	next   entity.PedestrianID           // 下一个候选的自动分配行人ID
	events []entity.TripEvent
}

func NewManager() *Manager {
	return &Manager{
		trips:  make([]*Trip, 0),
		agents: make(map[entity.AgentID]*Trip),
		peds:   make(map[entity.PedestrianID]*Trip),
		next:   1,
		events: make([]entity.TripEvent, 0),
	}
}

// Get 根据ID获取行程，如果不存在则panic
func (mgr *Manager) Get(id entity.TripID) *Trip {
	if t, err := mgr.GetOrError(id); err != nil {
		log.Panic(err)
		return nil
	} else {
		return t
	}
}

// GetOrError 根据ID获取行程，如果不存在则返回error
func (mgr *Manager) GetOrError(id entity.TripID) (*Trip, error) {
	if id < 0 || int(id) >= len(mgr.trips) {
		return nil, fmt.Errorf("no id %d in trip data", id)
	}
	return mgr.trips[id], nil
}

// validate 检查出行段的衔接
// 1. 相邻两段方式必须不同
// 2. 驾驶段之后的步行段要求车辆停车（指定车位或沿车道找车位）
// 3. 步行段之后的驾驶段必须从停放车辆出发
// 4. 所有步行段的行人ID一致（未指定为0）
func validate(spec entity.TripSpec) (entity.PedestrianID, error) {
	if len(spec.Legs) == 0 {
		return 0, fmt.Errorf("trip has no legs")
	}
	ped := entity.PedestrianID(0)
	for i, leg := range spec.Legs {
		switch leg.Mode {
		case entity.LegWalk:
			if leg.Ped != 0 {
				if ped != 0 && ped != leg.Ped {
					return 0, fmt.Errorf("leg %d: walk legs use peds %d and %d", i, ped, leg.Ped)
				}
				ped = leg.Ped
			}
		case entity.LegDrive:
		default:
			return 0, fmt.Errorf("leg %d: bad mode %d", i, int(leg.Mode))
		}
		if i == 0 {
			continue
		}
		prev := spec.Legs[i-1]
		if prev.Mode == leg.Mode {
			return 0, fmt.Errorf("legs %d and %d are both %v", i-1, i, leg.Mode)
		}
		if prev.Mode == entity.LegDrive && prev.Route.Goal.Kind == entity.GoalEnd {
			return 0, fmt.Errorf("leg %d: car %d vanishes at the end of its path before walking", i-1, prev.Vehicle.ID)
		}
		if leg.Mode == entity.LegDrive && leg.FromSpot == nil {
			return 0, fmt.Errorf("leg %d: drive after walking must start from a parked car", i)
		}
	}
	return ped, nil
}

// allocPed 分配一个未被使用的行人ID
func (mgr *Manager) allocPed() entity.PedestrianID {
	for {
		id := mgr.next
		mgr.next++
		if _, ok := mgr.peds[id]; !ok {
			return id
		}
	}
}

// NewTrip 创建一个尚未开始的行程
// 返回：行程ID，以及首段智能体
// 说明：调用方负责在出发时间把首段交给Driving或Walking
func (mgr *Manager) NewTrip(spec entity.TripSpec) (entity.TripID, entity.AgentID, error) {
	ped, err := validate(spec)
	if err != nil {
		return 0, entity.AgentID{}, err
	}
	if ped != 0 {
		if other, ok := mgr.peds[ped]; ok {
			return 0, entity.AgentID{}, fmt.Errorf("ped %d already belongs to trip %d", ped, other.id)
		}
	}
	t := &Trip{
		id:    entity.TripID(len(mgr.trips)),
		spec:  spec,
		state: StateNotStarted,
	}
	if lo.ContainsBy(spec.Legs, func(l entity.TripLeg) bool { return l.Mode == entity.LegWalk }) {
		if ped == 0 {
			ped = mgr.allocPed()
		}
		t.ped = ped
	}
	agent := t.agentOf(0)
	if other, ok := mgr.agents[agent]; ok {
		return 0, entity.AgentID{}, fmt.Errorf("%v already belongs to trip %d", agent, other.id)
	}
	if t.ped != 0 {
		mgr.peds[t.ped] = t
	}
	t.agent = agent
	mgr.agents[agent] = t
	mgr.trips = append(mgr.trips, t)
	log.Debugf("new %v starting at %v", t, spec.Start)
	return t.id, agent, nil
}

func (mgr *Manager) emit(t *Trip, kind entity.TripEventKind, time float64) {
	mgr.events = append(mgr.events, entity.TripEvent{
		Trip:   t.id,
		Kind:   kind,
		Time:   time,
		Leg:    t.leg,
		Mode:   t.spec.Legs[t.leg].Mode,
		Agent:  t.agent,
		Reason: t.reason,
	})
}

// owner 智能体所属行程，不存在时panic
func (mgr *Manager) owner(agent entity.AgentID) *Trip {
	t, ok := mgr.agents[agent]
	if !ok {
		log.Panicf("%v does not belong to any trip", agent)
	}
	return t
}

// AgentStarted 当前段的智能体进入路网
func (mgr *Manager) AgentStarted(agent entity.AgentID, time float64) {
	t := mgr.owner(agent)
	if t.live {
		log.Panicf("%v of trip %d started twice", agent, t.id)
	}
	if t.state == StateNotStarted {
		t.state = StateInProgress
		t.startTime = time
		mgr.emit(t, entity.TripEventStarted, time)
	}
	t.live = true
	mgr.emit(t, entity.TripEventLegStarted, time)
}

// LegFinished 当前段结束
// 返回：下一段（步行段已填好行人ID）；已是最后一段时行程结束，返回false
// 说明：返回下一段时行程处于出行方式切换中，直到下一段智能体进入路网
func (mgr *Manager) LegFinished(agent entity.AgentID, time float64) (entity.TripLeg, bool) {
	t := mgr.owner(agent)
	if !t.live {
		log.Panicf("%v of trip %d finished a leg before starting", agent, t.id)
	}
	mgr.emit(t, entity.TripEventLegDone, time)
	delete(mgr.agents, agent)
	t.live = false
	if t.leg == len(t.spec.Legs)-1 {
		t.state = StateDone
		t.endTime = time
		mgr.emit(t, entity.TripEventDone, time)
		log.Debugf("trip %d done at %v", t.id, time)
		return entity.TripLeg{}, false
	}
	t.leg++
	t.agent = t.agentOf(t.leg)
	if other, ok := mgr.agents[t.agent]; ok {
		log.Panicf("trip %d: next %v already belongs to trip %d", t.id, t.agent, other.id)
	}
	mgr.agents[t.agent] = t
	return t.CurrentLeg(), true
}

// AbortTrip 放弃智能体所属的行程
// 说明：首段无法出发时行程从NotStarted直接转为Aborted，开始与结束时间均记为time
func (mgr *Manager) AbortTrip(agent entity.AgentID, time float64, reason string) {
	t := mgr.owner(agent)
	delete(mgr.agents, agent)
	if t.state == StateNotStarted {
		t.startTime = time
	}
	t.state = StateAborted
	t.live = false
	t.endTime = time
	t.reason = reason
	mgr.emit(t, entity.TripEventAborted, time)
	log.Warnf("trip %d aborted at %v: %s", t.id, time, reason)
}

// RemainingLegs 智能体所属行程从当前段起尚未完成的各段
func (mgr *Manager) RemainingLegs(agent entity.AgentID) []entity.TripLeg {
	return mgr.owner(agent).Remaining()
}

// AgentToTrip 路网中智能体所属的行程
func (mgr *Manager) AgentToTrip(agent entity.AgentID) (entity.TripID, bool) {
	t, ok := mgr.agents[agent]
	if !ok || !t.live {
		return 0, false
	}
	return t.id, true
}

// TripToAgent 行程当前的智能体
// 说明：尚未开始的行程视为不存在；切换出行方式期间返回ModeChange
func (mgr *Manager) TripToAgent(id entity.TripID) entity.TripResult {
	t, err := mgr.GetOrError(id)
	if err != nil {
		return entity.TripResult{Kind: entity.TripResultDoesntExist}
	}
	switch t.state {
	case StateNotStarted:
		return entity.TripResult{Kind: entity.TripResultDoesntExist}
	case StateInProgress:
		if t.live {
			return entity.TripResult{Kind: entity.TripResultOk, Agent: t.agent}
		}
		return entity.TripResult{Kind: entity.TripResultModeChange}
	default:
		return entity.TripResult{Kind: entity.TripResultDone}
	}
}

// State 行程状态与当前段序号
func (mgr *Manager) State(id entity.TripID) (State, int, bool) {
	t, err := mgr.GetOrError(id)
	if err != nil {
		return 0, 0, false
	}
	return t.state, t.leg, true
}

// CountByState 统计各状态行程数
func (mgr *Manager) CountByState() map[State]int {
	return lo.CountValuesBy(mgr.trips, func(t *Trip) State { return t.state })
}

// Len 行程总数
func (mgr *Manager) Len() int {
	return len(mgr.trips)
}

// Unfinished 尚未结束的行程数
func (mgr *Manager) Unfinished() int {
	return lo.CountBy(mgr.trips, func(t *Trip) bool { return !t.finished() })
}

// DrainEvents 取出并清空累积的行程事件
func (mgr *Manager) DrainEvents() []entity.TripEvent {
	out := mgr.events
	mgr.events = make([]entity.TripEvent, 0)
	return out
}
