package driving

import (
	"fmt"

	"git.fiblab.net/general/common/v2/mathutil"
	"git.fiblab.net/general/common/v2/parallel"
	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/roadmap"
	"github.com/mshenfield/abstreet/utils/config"
	"github.com/mshenfield/abstreet/utils/container"
	"github.com/mshenfield/abstreet/utils/randengine"
	"github.com/samber/lo"
)

// Manager 行车状态（DrivingSimState）
// 功能：维护所有行驶中车辆及各路段的占用队列，按步推进车辆
// 说明：每步先基于快照为所有车辆做出决策，再按CarID升序应用，结果与遍历顺序无关
type Manager struct {
	m  *roadmap.Map
	rc *config.RuntimeConfig

	cars   map[entity.CarID]*car
	active *container.IncrementalArray[*car]

	// 尚未进入路网的车辆，按出发时间排序
	pending    *container.PriorityQueue[*car]
	pendingIDs map[entity.CarID]*car

	queues map[entity.Traversable]*entity.AgentQueue
	// 本步开始时各路段上的跨段车尾
	tails map[entity.Traversable][]tail

	time float64 // 最后一次推进到的时间
}

// decision 决策阶段的结果
type decision struct {
	v      float64 // 本步结束时的速度
	travel float64 // 本步行驶距离
}

// NewManager 创建行车状态，startTime为仿真起始时间
func NewManager(m *roadmap.Map, rc *config.RuntimeConfig, startTime float64) *Manager {
	return &Manager{
		m:          m,
		rc:         rc,
		cars:       make(map[entity.CarID]*car),
		active:     container.NewIncrementalArray[*car](),
		pending:    container.NewPriorityQueue[*car](),
		pendingIDs: make(map[entity.CarID]*car),
		queues:     make(map[entity.Traversable]*entity.AgentQueue),
		tails:      make(map[entity.Traversable][]tail),
		time:       startTime,
	}
}

func (mgr *Manager) queue(on entity.Traversable) *entity.AgentQueue {
	q, ok := mgr.queues[on]
	if !ok {
		q = entity.NewAgentQueue(on)
		mgr.queues[on] = q
	}
	return q
}

// SpawnCar 加入一辆待出发的车辆
// 功能：校验车辆与路径后放入待出发队列，到达出发时间且起点空闲时进入路网
// 说明：目标车位必须由调用方预先预留，在车辆进入路网时检查
func (mgr *Manager) SpawnCar(vehicle entity.Vehicle, router entity.Router, startTime, startDist float64) error {
	if err := vehicle.Validate(); err != nil {
		return err
	}
	if _, ok := mgr.cars[vehicle.ID]; ok {
		return fmt.Errorf("car %d is already driving", vehicle.ID)
	}
	if _, ok := mgr.pendingIDs[vehicle.ID]; ok {
		return fmt.Errorf("car %d is already waiting to spawn", vehicle.ID)
	}
	if err := mgr.validateRoute(vehicle, router, startDist); err != nil {
		return err
	}
	engine := randengine.ForAgent(mgr.rc.Seed, int32(entity.AgentKindCar), int32(vehicle.ID))
	c := &car{
		vehicle:     vehicle,
		maxV:        vehicle.MaxSpeed * engine.Noise(mgr.rc.SpeedNoise),
		router:      router,
		startTime:   startTime,
		dist:        startDist,
		searchSince: -1,
	}
	mgr.pending.HeapPush(c, startTime)
	mgr.pendingIDs[vehicle.ID] = c
	log.Debugf("car %d: spawn at %v, %d traversables, %v", vehicle.ID, startTime, len(router.Path), router.Goal)
	return nil
}

// TargetsSpot 以该车位为目的地的车辆（含待出发车辆）
func (mgr *Manager) TargetsSpot(spot entity.ParkingSpot) (entity.CarID, bool) {
	for id, c := range mgr.pendingIDs {
		if g := c.router.Goal; g.Kind == entity.GoalParkingSpot && g.Spot == spot {
			return id, true
		}
	}
	for id, c := range mgr.cars {
		if c.target != nil && *c.target == spot {
			return id, true
		}
	}
	return 0, false
}

// validateRoute 检查路径交替为车道与转向且首尾相接，起点与目的地合法
func (mgr *Manager) validateRoute(vehicle entity.Vehicle, r entity.Router, startDist float64) error {
	path := r.Path
	if len(path)%2 == 0 {
		return fmt.Errorf("car %d: path of %d traversables must start and end on a lane", vehicle.ID, len(path))
	}
	for i, on := range path {
		if (i%2 == 0) != on.IsLane() {
			return fmt.Errorf("car %d: path must alternate lanes and turns, got %v at %d", vehicle.ID, on, i)
		}
		if on.IsLane() {
			l, err := mgr.m.LaneOrError(on.Lane)
			if err != nil {
				return fmt.Errorf("car %d: %w", vehicle.ID, err)
			}
			if l.Type() != roadmap.LaneTypeDriving {
				return fmt.Errorf("car %d: %v is a %v lane", vehicle.ID, on, l.Type())
			}
			if i > 0 && path[i-1].Turn.Dst != on.Lane {
				return fmt.Errorf("car %d: %v does not lead to %v", vehicle.ID, path[i-1], on)
			}
			continue
		}
		t, err := mgr.m.TurnOrError(on.Turn)
		if err != nil {
			return fmt.Errorf("car %d: %w", vehicle.ID, err)
		}
		if t.IsCrosswalk() {
			return fmt.Errorf("car %d: %v is a crosswalk", vehicle.ID, on)
		}
		if on.Turn.Src != path[i-1].Lane {
			return fmt.Errorf("car %d: %v does not start from %v", vehicle.ID, on, path[i-1])
		}
	}
	if first := mgr.m.Length(path[0]); startDist < vehicle.Length || startDist > first {
		return fmt.Errorf("car %d: start dist %v out of [%v, %v]", vehicle.ID, startDist, vehicle.Length, first)
	}
	last := path[len(path)-1]
	switch r.Goal.Kind {
	case entity.GoalParkingSpot, entity.GoalParkOnLane:
		lane := r.Goal.Lane
		if r.Goal.Kind == entity.GoalParkingSpot {
			lane = r.Goal.Spot.Lane
		}
		l, err := mgr.m.LaneOrError(lane)
		if err != nil {
			return fmt.Errorf("car %d: %w", vehicle.ID, err)
		}
		if l.Type() != roadmap.LaneTypeParking || l.DrivingLane() != last.Lane {
			return fmt.Errorf("car %d: %v is not a parking lane beside %v", vehicle.ID, l, last)
		}
		if r.Goal.Kind == entity.GoalParkingSpot && (r.Goal.Spot.Idx < 0 || r.Goal.Spot.Idx >= l.ParkingCapacity()) {
			return fmt.Errorf("car %d: %v does not exist", vehicle.ID, r.Goal.Spot)
		}
	case entity.GoalEnd:
		if r.Goal.Dist < 0 || r.Goal.Dist > mgr.m.Length(last) {
			return fmt.Errorf("car %d: end dist %v out of %v", vehicle.ID, r.Goal.Dist, last)
		}
		if len(path) == 1 && r.Goal.Dist < startDist {
			return fmt.Errorf("car %d: end dist %v is behind start %v", vehicle.ID, r.Goal.Dist, startDist)
		}
	default:
		return fmt.Errorf("car %d: bad goal kind %d", vehicle.ID, r.Goal.Kind)
	}
	return nil
}

// StepIfNeeded 推进到time，time不晚于上次推进的时间时不做任何事
// 算法说明：
// 1. 到达出发时间且起点空闲（包括其他车辆的车尾）的车辆进入路网
// 2. 构建快照，所有车辆只基于快照计算加速度与行驶距离
// 3. 按CarID升序应用：移动、更新占用队列、释放已离开的转向、处理到达、请求下一个转向
// 返回：本步产生的事件，按发生顺序
func (mgr *Manager) StepIfNeeded(
	time float64, parking entity.IParkingManager, junctions entity.IIntersectionManager,
) []entity.Event {
	if time <= mgr.time {
		return nil
	}
	dt := time - mgr.time
	mgr.time = time

	mgr.tails = mgr.buildTails()
	events := mgr.activate(time, parking)
	cars := container.SortedBy(mgr.active.Data(), func(c *car) entity.CarID { return c.id() })
	view, maxLength := mgr.snapshot(cars)
	decisions := parallel.GoMap(cars, func(c *car) decision {
		return mgr.decide(c, view, maxLength, dt)
	})
	for i, c := range cars {
		if ev, ok := mgr.apply(c, decisions[i], time, dt, parking, junctions); ok {
			events = append(events, ev)
		}
	}
	mgr.active.Prepare()
	return events
}

// activate 到达出发时间的车辆按CarID顺序进入路网，起点被占用的车辆顺延到下一步
func (mgr *Manager) activate(time float64, parking entity.IParkingManager) []entity.Event {
	ready := container.SortedBy(mgr.pending.PopUntil(time), func(c *car) entity.CarID { return c.id() })
	events := make([]entity.Event, 0)
	blocked := make([]*car, 0)
	for _, c := range ready {
		if !mgr.startFree(c) {
			blocked = append(blocked, c)
			continue
		}
		delete(mgr.pendingIDs, c.id())
		mgr.resolveGoal(c, parking)
		mgr.queue(c.on()).Insert(c.agent(), c.dist, c.vehicle.Length)
		mgr.cars[c.id()] = c
		mgr.active.Add(c)
		events = append(events, entity.Event{Kind: entity.EventAgentStarted, Agent: c.agent(), Time: time})
		log.Debugf("car %d: enter %v", c.id(), c.position())
	}
	for _, c := range blocked {
		mgr.pending.HeapPush(c, c.startTime)
	}
	mgr.active.Prepare()
	return events
}

// startFree 起点区间（含最小车距）上没有其他车辆
func (mgr *Manager) startFree(c *car) bool {
	back, front := c.dist-c.vehicle.Length-c.vehicle.MinGap, c.dist+c.vehicle.MinGap
	if t, ok := mgr.tailOn(c.on()); ok && t.back < front {
		return false
	}
	q, ok := mgr.queues[c.on()]
	if !ok {
		return true
	}
	for _, e := range q.Entries() {
		if e.Dist > back && e.Back() < front {
			return false
		}
	}
	return true
}

// buildTails 车头已离开、车尾仍在的路段，按CarID顺序收集
func (mgr *Manager) buildTails() map[entity.Traversable][]tail {
	out := make(map[entity.Traversable][]tail)
	for _, c := range container.SortedBy(mgr.active.Data(), func(c *car) entity.CarID { return c.id() }) {
		overhang := c.vehicle.Length - c.dist
		for i := c.pathIdx - 1; i >= 0 && overhang > distEpsilon; i-- {
			on := c.router.Path[i]
			length := mgr.m.Length(on)
			out[on] = append(out[on], tail{agent: c.agent(), back: max(length-overhang, 0), speed: c.v})
			overhang -= length
		}
	}
	return out
}

// tailOn 路段上最靠后的跨段车尾
func (mgr *Manager) tailOn(on entity.Traversable) (tail, bool) {
	ts := mgr.tails[on]
	if len(ts) == 0 {
		return tail{}, false
	}
	return lo.MinBy(ts, func(a, b tail) bool { return a.back < b.back }), true
}

// resolveGoal 进入路网时确定终点车道上的目标位置
func (mgr *Manager) resolveGoal(c *car, parking entity.IParkingManager) {
	last := c.router.Path[c.lastIdx()]
	goal := c.router.Goal
	switch goal.Kind {
	case entity.GoalParkingSpot:
		if state := parking.SpotState(goal.Spot); state != entity.SpotReserved {
			log.Panicf("car %d: target %v is %v, not reserved", c.id(), goal.Spot, state)
		}
		spot := goal.Spot
		c.target = &spot
		c.goalDist = parking.SpotToDrivingPos(spot, c.vehicle, last.Lane).Dist
		if c.onLast() && c.goalDist < c.dist {
			log.Panicf("car %d: target %v at %v is behind start %v", c.id(), spot, c.goalDist, c.dist)
		}
	case entity.GoalParkOnLane:
		c.goalDist = mgr.m.Length(last)
	case entity.GoalEnd:
		c.goalDist = goal.Dist
	}
}

// snapshot 构建本步快照，同时返回最长车长用于判断跨路段的车尾
func (mgr *Manager) snapshot(cars []*car) (*entity.WorldView, float64) {
	view := entity.NewWorldView()
	maxLength := 0.
	for _, c := range cars {
		vehicle := c.vehicle
		view.AddAgent(entity.AgentView{
			ID:      c.agent(),
			On:      c.on(),
			Dist:    c.dist,
			Speed:   c.v,
			Length:  vehicle.Length,
			Vehicle: &vehicle,
		})
		maxLength = max(maxLength, vehicle.Length)
	}
	for on, q := range mgr.queues {
		view.SetQueue(on, q)
	}
	return view, maxLength
}

// decide 决策阶段，只读快照
// 算法说明：
// 1. 当前路段上的前车与跨段车尾：IDM跟车
// 2. 沿路径向前扫描：后续路段最后方的车辆与车尾（车尾可能仍在更早的路段上）、未获放行转向的停止线、终点
// 3. 取所有约束中最小的加速度
// 4. 运动学硬约束：行驶距离不超过 到前车车尾的距离-最小车距、停止线与终点
func (mgr *Manager) decide(c *car, view *entity.WorldView, maxLength, dt float64) decision {
	ctl := newController(c, dt)
	cur := c.on()
	targetV := min(c.maxV, mgr.m.SpeedLimit(cur))
	ac := Action{A: mathutil.INF}
	ac.Update(Action{A: ctl.free(targetV)})
	maxTravel := mathutil.INF

	if leader, ok := view.NextAgentAhead(cur, c.dist); ok {
		gap := leader.Dist - leader.Length - c.dist
		ac.Update(Action{A: ctl.follow(targetV, leader.Speed, gap)})
		maxTravel = min(maxTravel, gap-c.vehicle.MinGap)
	}
	if t, ok := mgr.tailOn(cur); ok {
		gap := t.back - c.dist
		ac.Update(Action{A: ctl.follow(targetV, t.speed, gap)})
		maxTravel = min(maxTravel, gap-c.vehicle.MinGap)
	}
	if c.onLast() {
		gap := c.goalDist - c.dist
		ac.Update(Action{A: ctl.stop(gap, targetV)})
		maxTravel = min(maxTravel, gap)
	} else {
		viewDistance := max(c.v*viewTime, minViewDistance)
		cum := mgr.m.Length(cur) - c.dist
		wall := false
		for k := c.pathIdx + 1; k <= c.lastIdx(); k++ {
			// 更远路段上车辆的车尾最多向后伸出maxLength
			if cum-maxLength > min(maxTravel+c.vehicle.MinGap, viewDistance) {
				break
			}
			on := c.router.Path[k]
			if rear, ok := view.Rearmost(on); ok {
				gap := cum + rear.Dist - rear.Length
				ac.Update(Action{A: ctl.follow(targetV, rear.Speed, gap)})
				maxTravel = min(maxTravel, gap-c.vehicle.MinGap)
			}
			if t, ok := mgr.tailOn(on); ok {
				gap := cum + t.back
				ac.Update(Action{A: ctl.follow(targetV, t.speed, gap)})
				maxTravel = min(maxTravel, gap-c.vehicle.MinGap)
			}
			if !wall && on.IsTurn() && !c.holds(k) {
				wall = true
				ac.Update(Action{A: ctl.stop(cum, targetV)})
				maxTravel = min(maxTravel, cum)
			}
			if k == c.lastIdx() {
				gap := cum + c.goalDist
				ac.Update(Action{A: ctl.stop(gap, targetV)})
				maxTravel = min(maxTravel, gap)
				break
			}
			cum += mgr.m.Length(on)
		}
	}

	if maxTravel < distEpsilon {
		return decision{}
	}
	v, d := computeVAndDistance(c.v, ac.A, dt)
	v = min(v, c.maxV)
	if d > maxTravel {
		d = maxTravel
		v = min(max(d/dt, 0), v)
	}
	return decision{v: v, travel: d}
}

// apply 应用阶段，按CarID升序调用
// 返回：车辆离开路网时的事件
func (mgr *Manager) apply(
	c *car, d decision, time, dt float64, parking entity.IParkingManager, junctions entity.IIntersectionManager,
) (entity.Event, bool) {
	old := c.on()
	c.v = d.v
	c.dist += d.travel
	for {
		length := mgr.m.Length(c.on())
		if c.dist <= length {
			break
		}
		next := c.pathIdx + 1
		if c.onLast() || c.router.Path[next].IsTurn() && !c.holds(next) {
			if c.dist > length+distEpsilon {
				log.Panicf("car %d: pass the end of %v at %v without a grant", c.id(), c.on(), c.dist)
			}
			c.dist = length
			break
		}
		c.dist -= length
		c.pathIdx = next
	}
	if now := c.on(); now != old {
		mgr.queue(old).Remove(c.agent())
		mgr.queue(now).Insert(c.agent(), c.dist, c.vehicle.Length)
	} else if d.travel > 0 {
		mgr.queue(now).Update(c.agent(), c.dist)
	}
	mgr.releaseTurns(c, junctions)
	if c.onLast() {
		if ev, done := mgr.handleGoal(c, time, parking); done {
			mgr.remove(c, junctions)
			return ev, true
		}
		return entity.Event{}, false
	}
	mgr.requestTurn(c, time, dt, junctions)
	return entity.Event{}, false
}

// releaseTurns 车尾离开转向后释放放行
func (mgr *Manager) releaseTurns(c *car, junctions entity.IIntersectionManager) {
	kept := c.held[:0]
	for _, h := range c.held {
		if mgr.backPassed(c, h.idx) {
			junctions.TurnFinished(c.agent(), h.turn)
		} else {
			kept = append(kept, h)
		}
	}
	c.held = kept
}

// backPassed 车尾是否已越过路径中第idx段
func (mgr *Manager) backPassed(c *car, idx int) bool {
	if c.pathIdx <= idx {
		return false
	}
	back := c.dist - c.vehicle.Length
	for i := c.pathIdx - 1; i > idx; i-- {
		back += mgr.m.Length(c.router.Path[i])
	}
	return back >= 0
}

// handleGoal 处理终点车道上的寻位与到达
// 说明：找不到空车位时按配置策略原地等待重试或放弃，只考虑车头前方的车位
func (mgr *Manager) handleGoal(c *car, time float64, parking entity.IParkingManager) (entity.Event, bool) {
	goal := c.router.Goal
	if goal.Kind == entity.GoalParkOnLane && c.target == nil && !mgr.searchSpot(c, parking) {
		if c.searchSince < 0 {
			c.searchSince = time
			log.Debugf("car %d: no free spot on lane %d, %v", c.id(), goal.Lane, mgr.rc.ParkingPolicy)
		}
		if mgr.rc.ParkingPolicy == config.ParkingAbort || time-c.searchSince >= mgr.rc.MaxSearchTime {
			log.Warnf("car %d: give up parking on lane %d after %.1fs", c.id(), goal.Lane, time-c.searchSince)
			return entity.Event{
				Kind:   entity.EventAgentAborted,
				Agent:  c.agent(),
				Time:   time,
				Reason: fmt.Sprintf("no free parking spot on lane %d", goal.Lane),
			}, true
		}
		return entity.Event{}, false
	}
	if c.goalDist-c.dist > closeToEnd {
		return entity.Event{}, false
	}
	switch goal.Kind {
	case entity.GoalParkingSpot, entity.GoalParkOnLane:
		spot := *c.target
		parking.AddParkedCar(entity.ParkedCar{Vehicle: c.vehicle, Spot: spot})
		log.Debugf("car %d: parked at %v", c.id(), spot)
		return entity.Event{Kind: entity.EventCarParked, Agent: c.agent(), Time: time, Spot: spot}, true
	case entity.GoalEnd:
		log.Debugf("car %d: reached end %v", c.id(), c.position())
		return entity.Event{Kind: entity.EventCarReachedEnd, Agent: c.agent(), Time: time}, true
	default:
		log.Panicf("car %d: bad goal kind %d", c.id(), goal.Kind)
		return entity.Event{}, false
	}
}

// searchSpot 在停车车道上预留车头前方第一个空车位
func (mgr *Manager) searchSpot(c *car, parking entity.IParkingManager) bool {
	lane := c.router.Path[c.lastIdx()].Lane
	for _, s := range parking.GetFreeSpots(c.router.Goal.Lane) {
		pos := parking.SpotToDrivingPos(s, c.vehicle, lane)
		if pos.Dist < c.dist {
			continue
		}
		parking.ReserveSpot(s)
		spot := s
		c.target = &spot
		c.goalDist = pos.Dist
		log.Debugf("car %d: reserved %v after searching", c.id(), spot)
		return true
	}
	return false
}

// requestTurn 接近车道末端时请求下一个转向
// 说明：只有车道最前方且前方没有跨段车尾的车辆请求，且目标车道需有容纳本车的空间，避免堵塞路口
func (mgr *Manager) requestTurn(c *car, time, dt float64, junctions entity.IIntersectionManager) {
	next := c.pathIdx + 1
	if !c.on().IsLane() || c.holds(next) {
		return
	}
	turn := c.router.Path[next].Turn
	if c.holdsAt(turn.Parent) {
		return
	}
	toEnd := mgr.m.Length(c.on()) - c.dist
	brake := c.v*c.v/2/-c.vehicle.UsualBrakingA + c.v*dt + c.vehicle.MinGap + requestSlack
	if toEnd > brake {
		return
	}
	if e, ok := mgr.queue(c.on()).Last(); !ok || e.ID != c.agent() {
		return
	}
	if _, ok := mgr.tailOn(c.on()); ok {
		return
	}
	if !mgr.hasRoom(c, turn) {
		return
	}
	if junctions.RequestTurn(c.agent(), turn, time) {
		c.held = append(c.held, heldTurn{idx: next, turn: turn})
	}
}

// hasRoom 目标车道末尾能否容纳转向上的车辆与本车
func (mgr *Manager) hasRoom(c *car, turn entity.TurnID) bool {
	need := c.vehicle.Length + c.vehicle.MinGap
	if q, ok := mgr.queues[entity.OnTurn(turn)]; ok {
		for _, e := range q.Entries() {
			need += e.Length + c.vehicle.MinGap
		}
	}
	dst := entity.OnLane(turn.Dst)
	free := mgr.m.Length(dst)
	if q, ok := mgr.queues[dst]; ok {
		if e, ok := q.First(); ok {
			free = e.Back()
		}
	}
	if t, ok := mgr.tailOn(dst); ok {
		free = min(free, t.back)
	}
	return free >= min(need, mgr.m.Length(dst))
}

// remove 车辆离开路网，释放所有放行与请求
func (mgr *Manager) remove(c *car, junctions entity.IIntersectionManager) {
	mgr.queue(c.on()).Remove(c.agent())
	for _, h := range c.held {
		junctions.TurnFinished(c.agent(), h.turn)
	}
	c.held = nil
	junctions.CancelRequests(c.agent())
	delete(mgr.cars, c.id())
	mgr.active.Remove(c)
}
