package junction

import (
	"cmp"
	"slices"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/junction/trafficlight"
	"github.com/mshenfield/abstreet/entity/roadmap"
	"github.com/mshenfield/abstreet/utils/config"
	"github.com/samber/lo"
)

// Request 等待放行的转向请求
type Request struct {
	Agent entity.AgentID
	Turn  entity.TurnID
	Since float64 // 首次请求时间
}

// Grant 已放行的转向
type Grant struct {
	Agent entity.AgentID
	Turn  entity.TurnID
}

// compareRequest 先到先得：按首次请求时间，相同时按AgentID
func compareRequest(a, b Request) int {
	if c := cmp.Compare(a.Since, b.Since); c != 0 {
		return c
	}
	return entity.CompareAgentID(a.Agent, b.Agent)
}

// turnSignal 最大压力法读取的转向视图，压力为该转向上的等待请求数
type turnSignal struct {
	j         *Junction
	turn      entity.TurnID
	crosswalk bool
}

func (t *turnSignal) IsCrosswalk() bool {
	return t.crosswalk
}

func (t *turnSignal) Pressure() float64 {
	n := 0
	for _, r := range t.j.waiting {
		if r.Turn == t.turn {
			n++
		}
	}
	return float64(n)
}

// Junction 单个路口的控制状态
// 功能：维护已放行转向集合与等待队列，按路口控制方式决定是否放行
type Junction struct {
	inter *roadmap.Intersection
	m     *roadmap.Map
	dwell float64 // 停车让行的最短等待时间

	accepted map[entity.AgentID]entity.TurnID
	waiting  map[entity.AgentID]Request

	trafficLight ITrafficLight // 仅信号路口非空
}

func newJunction(m *roadmap.Map, inter *roadmap.Intersection, rc *config.RuntimeConfig) *Junction {
	j := &Junction{
		inter:    inter,
		m:        m,
		dwell:    rc.StopSignDwell,
		accepted: make(map[entity.AgentID]entity.TurnID),
		waiting:  make(map[entity.AgentID]Request),
	}
	program := inter.Signal()
	if inter.Control() != roadmap.ControlSignal || program == nil {
		return j
	}
	if rc.Signal == config.SignalMaxPressure {
		turns := lo.Map(inter.Turns(), func(t entity.TurnID, _ int) trafficlight.ITurn {
			return &turnSignal{j: j, turn: t, crosswalk: m.Turn(t).IsCrosswalk()}
		})
		phases := lo.Map(program.Phases, func(p *mapv2.Phase, _ int) []mapv2.LightState {
			return p.States
		})
		j.trafficLight = trafficlight.NewMaxPressureTrafficLight(int32(inter.ID()), turns, phases, trafficlight.DefaultMaxPressureOptions)
	} else {
		tl := trafficlight.NewLocalTrafficLight(int32(inter.ID()), len(inter.Turns()))
		if err := tl.Set(program); err != nil {
			log.Panicf("set fixed program error: %v", err)
		}
		j.trafficLight = tl
	}
	return j
}

// ID 获取路口ID
func (j *Junction) ID() entity.IntersectionID {
	return j.inter.ID()
}

// Control 路口控制方式
func (j *Junction) Control() roadmap.ControlType {
	return j.inter.Control()
}

// TrafficLight 信号灯读取接口，非信号路口为nil
func (j *Junction) TrafficLight() ITrafficLightGetter {
	if j.trafficLight == nil {
		return nil
	}
	return j.trafficLight
}

func (j *Junction) prepare() {
	if j.trafficLight != nil {
		j.trafficLight.Prepare()
	}
}

func (j *Junction) update(dt float64) {
	if j.trafficLight != nil {
		j.trafficLight.Update(dt)
	}
}

// lightState 转向当前灯色
func (j *Junction) lightState(turn entity.TurnID) mapv2.LightState {
	idx, _ := j.inter.TurnIndex(turn)
	return j.trafficLight.State(idx)
}

// conflictsAccepted 是否与其他智能体已放行的转向冲突
func (j *Junction) conflictsAccepted(agent entity.AgentID, turn entity.TurnID) bool {
	for other, t := range j.accepted {
		if other != agent && j.inter.Conflicts(turn, t) {
			return true
		}
	}
	return false
}

// blockedByEarlier 是否有更早到达且转向冲突的等待请求
func (j *Junction) blockedByEarlier(req Request) bool {
	for _, w := range j.waiting {
		if w.Agent != req.Agent && compareRequest(w, req) < 0 && j.inter.Conflicts(req.Turn, w.Turn) {
			return true
		}
	}
	return false
}

// requestTurn 请求进入转向
// 算法说明：
// 1. 已放行的转向直接返回true（放行保持到离开转向）
// 2. 记录等待请求，首次请求时间用于先到先得排序
// 3. 按控制方式判断：
//   - 无控制：不与已放行转向冲突，且没有更早到达的冲突请求
//   - 停车让行：同上，非优先转向还需等待满dwell
//   - 信号：当前为绿灯，且不与已放行转向冲突
//
// 4. 放行后校验已放行转向两两不冲突
func (j *Junction) requestTurn(agent entity.AgentID, turn entity.TurnID, time float64) bool {
	if t, ok := j.accepted[agent]; ok {
		if t == turn {
			return true
		}
		log.Panicf("junction %d: %v requests %v while holding %v", j.ID(), agent, turn, t)
	}
	req, ok := j.waiting[agent]
	if !ok || req.Turn != turn {
		req = Request{Agent: agent, Turn: turn, Since: time}
		j.waiting[agent] = req
	}
	granted := false
	switch j.inter.Control() {
	case roadmap.ControlUncontrolled:
		granted = !j.conflictsAccepted(agent, turn) && !j.blockedByEarlier(req)
	case roadmap.ControlStopSign:
		waited := j.m.Turn(turn).IsPriority() || time-req.Since >= j.dwell
		granted = waited && !j.conflictsAccepted(agent, turn) && !j.blockedByEarlier(req)
	case roadmap.ControlSignal:
		granted = j.lightState(turn) == mapv2.LightState_LIGHT_STATE_GREEN && !j.conflictsAccepted(agent, turn)
	default:
		log.Panicf("junction %d: bad control type %v", j.ID(), j.inter.Control())
	}
	if !granted {
		return false
	}
	delete(j.waiting, agent)
	j.accepted[agent] = turn
	j.validate()
	log.Debugf("junction %d: grant %v to %v at %v", j.ID(), turn, agent, time)
	return true
}

// turnFinished 智能体离开转向，释放放行
func (j *Junction) turnFinished(agent entity.AgentID, turn entity.TurnID) {
	if t, ok := j.accepted[agent]; !ok || t != turn {
		log.Panicf("junction %d: %v finished %v which was not granted", j.ID(), agent, turn)
	}
	delete(j.accepted, agent)
}

// cancel 智能体被移除时撤销等待请求，已放行的转向不受影响
func (j *Junction) cancel(agent entity.AgentID) {
	delete(j.waiting, agent)
}

// validate 已放行转向两两不冲突
func (j *Junction) validate() {
	grants := j.Accepted()
	for a := 0; a < len(grants); a++ {
		for b := a + 1; b < len(grants); b++ {
			if j.inter.Conflicts(grants[a].Turn, grants[b].Turn) {
				log.Panicf("junction %d: conflicting grants %v (%v) and %v (%v)",
					j.ID(), grants[a].Turn, grants[a].Agent, grants[b].Turn, grants[b].Agent)
			}
		}
	}
}

// Accepted 已放行的转向，按AgentID升序
func (j *Junction) Accepted() []Grant {
	out := make([]Grant, 0, len(j.accepted))
	for a, t := range j.accepted {
		out = append(out, Grant{Agent: a, Turn: t})
	}
	slices.SortFunc(out, func(a, b Grant) int { return entity.CompareAgentID(a.Agent, b.Agent) })
	return out
}

// Waiting 等待中的请求，按先到先得顺序
func (j *Junction) Waiting() []Request {
	out := lo.Values(j.waiting)
	slices.SortFunc(out, compareRequest)
	return out
}
