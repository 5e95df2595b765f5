package walking

import (
	"fmt"
	"math"

	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/roadmap"
	"github.com/mshenfield/abstreet/utils/config"
	"github.com/mshenfield/abstreet/utils/container"
	"github.com/mshenfield/abstreet/utils/randengine"
)

const minWalkV = 0.5 // 最小步行速度（米/秒）

// Manager 步行状态（WalkingSimState）
// 功能：行人以固定速度沿人行道行走，在人行道末端等待人行横道放行
// 说明：行人之间不互相阻挡，按PedestrianID升序推进以保证路口请求顺序确定
type Manager struct {
	m  *roadmap.Map
	rc *config.RuntimeConfig

	peds   map[entity.PedestrianID]*pedestrian
	active *container.IncrementalArray[*pedestrian]

	pending    *container.PriorityQueue[*pedestrian]
	pendingIDs map[entity.PedestrianID]struct{}

	// 各路段上的行人
	on map[entity.Traversable]map[entity.PedestrianID]struct{}

	time float64
}

// NewManager 创建步行状态，startTime为仿真起始时间
func NewManager(m *roadmap.Map, rc *config.RuntimeConfig, startTime float64) *Manager {
	return &Manager{
		m:          m,
		rc:         rc,
		peds:       make(map[entity.PedestrianID]*pedestrian),
		active:     container.NewIncrementalArray[*pedestrian](),
		pending:    container.NewPriorityQueue[*pedestrian](),
		pendingIDs: make(map[entity.PedestrianID]struct{}),
		on:         make(map[entity.Traversable]map[entity.PedestrianID]struct{}),
		time:       startTime,
	}
}

// SpawnPed 加入一个待出发的行人
// 说明：路径首尾必须分别是起点与终点所在的人行道，中间由人行横道连接
func (mgr *Manager) SpawnPed(
	id entity.PedestrianID, start, goal entity.SidewalkSpot, path entity.WalkPath, startTime float64,
) error {
	if _, ok := mgr.peds[id]; ok {
		return fmt.Errorf("ped %d is already walking", id)
	}
	if _, ok := mgr.pendingIDs[id]; ok {
		return fmt.Errorf("ped %d is already waiting to spawn", id)
	}
	if err := mgr.validatePath(id, start, goal, path); err != nil {
		return err
	}
	engine := randengine.ForAgent(mgr.rc.Seed, int32(entity.AgentKindPedestrian), int32(id))
	p := &pedestrian{
		id:        id,
		start:     start,
		goal:      goal,
		path:      path,
		startTime: startTime,
		walkingV:  max(mgr.rc.WalkingSpeed*engine.Noise(mgr.rc.WalkingSpeedNoise), minWalkV),
		s:         start.Dist,
	}
	mgr.pending.HeapPush(p, startTime)
	mgr.pendingIDs[id] = struct{}{}
	log.Debugf("ped %d: spawn at %v from %v to %v", id, startTime, start, goal)
	return nil
}

func (mgr *Manager) validatePath(
	id entity.PedestrianID, start, goal entity.SidewalkSpot, path entity.WalkPath,
) error {
	steps := path.Steps
	if len(steps)%2 == 0 {
		return fmt.Errorf("ped %d: path of %d steps must start and end on a sidewalk", id, len(steps))
	}
	for i, step := range steps {
		if (i%2 == 0) != step.On.IsLane() {
			return fmt.Errorf("ped %d: path must alternate sidewalks and crosswalks, got %v at %d", id, step.On, i)
		}
		if step.On.IsLane() {
			l, err := mgr.m.LaneOrError(step.On.Lane)
			if err != nil {
				return fmt.Errorf("ped %d: %w", id, err)
			}
			if l.Type() != roadmap.LaneTypeSidewalk {
				return fmt.Errorf("ped %d: %v is a %v lane", id, step.On, l.Type())
			}
			continue
		}
		t, err := mgr.m.TurnOrError(step.On.Turn)
		if err != nil {
			return fmt.Errorf("ped %d: %w", id, err)
		}
		if !t.IsCrosswalk() {
			return fmt.Errorf("ped %d: %v is not a crosswalk", id, step.On)
		}
		from, to := step.On.Turn.Src, step.On.Turn.Dst
		if !step.Forward {
			from, to = to, from
		}
		if steps[i-1].On.Lane != from || steps[i+1].On.Lane != to {
			return fmt.Errorf("ped %d: %v does not connect %v and %v", id, step.On, steps[i-1].On, steps[i+1].On)
		}
	}
	first, last := steps[0], steps[len(steps)-1]
	if first.On != entity.OnLane(start.Sidewalk) || last.On != entity.OnLane(goal.Sidewalk) {
		return fmt.Errorf("ped %d: path from %v to %v does not match %v and %v", id, first.On, last.On, start, goal)
	}
	for _, s := range []entity.SidewalkSpot{start, goal} {
		if l := mgr.m.Length(entity.OnLane(s.Sidewalk)); s.Dist < 0 || s.Dist > l {
			return fmt.Errorf("ped %d: %v out of sidewalk length %v", id, s, l)
		}
	}
	if len(steps) == 1 && (goal.Dist-start.Dist)*direction(first) < 0 {
		return fmt.Errorf("ped %d: goal %v is behind start %v", id, goal, start)
	}
	return nil
}

func direction(step entity.WalkStep) float64 {
	if step.Forward {
		return 1
	}
	return -1
}

func (mgr *Manager) enter(p *pedestrian) {
	set, ok := mgr.on[p.on()]
	if !ok {
		set = make(map[entity.PedestrianID]struct{})
		mgr.on[p.on()] = set
	}
	set[p.id] = struct{}{}
}

func (mgr *Manager) leave(p *pedestrian) {
	delete(mgr.on[p.on()], p.id)
}

// StepIfNeeded 推进到time，time不晚于上次推进的时间时不做任何事
// 返回：本步产生的事件，按发生顺序
func (mgr *Manager) StepIfNeeded(time float64, junctions entity.IIntersectionManager) []entity.Event {
	if time <= mgr.time {
		return nil
	}
	dt := time - mgr.time
	mgr.time = time

	events := make([]entity.Event, 0)
	ready := container.SortedBy(mgr.pending.PopUntil(time), func(p *pedestrian) entity.PedestrianID { return p.id })
	for _, p := range ready {
		delete(mgr.pendingIDs, p.id)
		mgr.peds[p.id] = p
		mgr.active.Add(p)
		mgr.enter(p)
		events = append(events, entity.Event{Kind: entity.EventAgentStarted, Agent: p.agent(), Time: time})
	}
	mgr.active.Prepare()

	peds := container.SortedBy(mgr.active.Data(), func(p *pedestrian) entity.PedestrianID { return p.id })
	for _, p := range peds {
		if ev, done := mgr.update(p, time, dt, junctions); done {
			events = append(events, ev)
		}
	}
	mgr.active.Prepare()
	return events
}

// update 推进单个行人
// 算法说明：
// 1. 本步可行走距离为 v*dt
// 2. 在最后一段上到达终点则结束
// 3. 走到路段末端时，如果下一段是人行横道则请求放行，未放行时原地等待
// 4. 离开人行横道时释放放行
func (mgr *Manager) update(
	p *pedestrian, time, dt float64, junctions entity.IIntersectionManager,
) (entity.Event, bool) {
	budget := p.walkingV * dt
	for {
		if p.atLast() {
			toGoal := (p.goal.Dist - p.s) * direction(p.step())
			if budget < toGoal {
				p.advance(budget)
				p.waiting = false
				return entity.Event{}, false
			}
			p.s = p.goal.Dist
			return mgr.arrive(p, time, junctions), true
		}
		length := mgr.m.Length(p.on())
		toEnd := p.remaining(length)
		if budget < toEnd {
			p.advance(budget)
			p.waiting = false
			return entity.Event{}, false
		}
		budget -= toEnd
		p.s = length - entryS(p.step(), length)

		next := p.path.Steps[p.stepIdx+1]
		if next.On.IsTurn() && !p.holdsAny {
			if !junctions.RequestTurn(p.agent(), next.On.Turn, time) {
				p.waiting = true
				return entity.Event{}, false
			}
			p.held, p.holdsAny = next.On.Turn, true
		}
		if p.on().IsTurn() {
			junctions.TurnFinished(p.agent(), p.held)
			p.holdsAny = false
		}
		mgr.leave(p)
		p.stepIdx++
		p.s = entryS(next, mgr.m.Length(next.On))
		mgr.enter(p)
	}
}

// arrive 到达终点，离开仿真
func (mgr *Manager) arrive(p *pedestrian, time float64, junctions entity.IIntersectionManager) entity.Event {
	mgr.leave(p)
	if p.holdsAny {
		junctions.TurnFinished(p.agent(), p.held)
		p.holdsAny = false
	}
	junctions.CancelRequests(p.agent())
	delete(mgr.peds, p.id)
	mgr.active.Remove(p)
	if p.goal.Spot != nil {
		log.Debugf("ped %d: reached %v", p.id, *p.goal.Spot)
		return entity.Event{Kind: entity.EventPedReachedSpot, Agent: p.agent(), Time: time, Spot: *p.goal.Spot}
	}
	log.Debugf("ped %d: reached %v", p.id, p.goal)
	return entity.Event{Kind: entity.EventPedReachedEnd, Agent: p.agent(), Time: time}
}

// heading 行走方向，逆几何方向行走时反向
func (mgr *Manager) heading(p *pedestrian) float64 {
	h := mgr.m.DirectionAt(p.on(), p.s)
	if !p.step().Forward {
		h += math.Pi
		if h > math.Pi {
			h -= 2 * math.Pi
		}
	}
	return h
}
