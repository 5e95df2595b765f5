package roadmap

import (
	"fmt"
	"slices"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/parallel"
	"github.com/mshenfield/abstreet/entity"
	"github.com/samber/lo"
)

// Map 不可变的静态路网
// 功能：车道、转向、路口的拓扑与几何，模拟核心只读
type Map struct {
	lanes         map[entity.LaneID]*Lane
	laneIDs       []entity.LaneID
	turns         map[entity.TurnID]*Turn
	intersections map[entity.IntersectionID]*Intersection
	interIDs      []entity.IntersectionID
}

type laneResult struct {
	lane *Lane
	err  error
}

// New 根据路网描述构建地图
// 算法说明：
// 1. 并行构建车道几何
// 2. 校验停车车道关联的行车道与人行道
// 3. 构建路口转向，计算冲突表（几何冲突+显式声明）
// 4. 信号路口生成固定相位程序
func New(spec MapSpec) (*Map, error) {
	m := &Map{
		lanes:         make(map[entity.LaneID]*Lane),
		turns:         make(map[entity.TurnID]*Turn),
		intersections: make(map[entity.IntersectionID]*Intersection),
	}
	results := parallel.GoMap(spec.Lanes, func(s LaneSpec) laneResult {
		l, err := newLane(s)
		return laneResult{lane: l, err: err}
	})
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if _, ok := m.lanes[r.lane.id]; ok {
			return nil, fmt.Errorf("duplicate lane id %d", r.lane.id)
		}
		m.lanes[r.lane.id] = r.lane
	}
	m.laneIDs = lo.Keys(m.lanes)
	slices.Sort(m.laneIDs)

	for _, id := range m.laneIDs {
		l := m.lanes[id]
		if l.typ != LaneTypeParking {
			continue
		}
		if d, ok := m.lanes[l.drivingLane]; !ok || d.typ != LaneTypeDriving {
			return nil, fmt.Errorf("parking lane %d: driving_lane %d is not a driving lane", id, l.drivingLane)
		}
		if s, ok := m.lanes[l.sidewalk]; !ok || s.typ != LaneTypeSidewalk {
			return nil, fmt.Errorf("parking lane %d: sidewalk %d is not a sidewalk", id, l.sidewalk)
		}
	}

	for _, is := range spec.Intersections {
		if err := m.addIntersection(is); err != nil {
			return nil, err
		}
	}
	m.interIDs = lo.Keys(m.intersections)
	slices.Sort(m.interIDs)
	log.Debugf("map built: %d lanes, %d turns, %d intersections", len(m.lanes), len(m.turns), len(m.intersections))
	return m, nil
}

func (m *Map) addIntersection(spec IntersectionSpec) error {
	id := entity.IntersectionID(spec.ID)
	if _, ok := m.intersections[id]; ok {
		return fmt.Errorf("duplicate intersection id %d", id)
	}
	control, err := parseControlType(spec.Control)
	if err != nil {
		return fmt.Errorf("intersection %d: %w", id, err)
	}
	inter := &Intersection{
		id:        id,
		control:   control,
		turns:     make([]entity.TurnID, 0, len(spec.Turns)),
		turnIndex: make(map[entity.TurnID]int),
		conflicts: make(map[entity.TurnID]map[entity.TurnID]struct{}),
	}
	turns := make([]*Turn, 0, len(spec.Turns))
	for _, ts := range spec.Turns {
		src, ok := m.lanes[entity.LaneID(ts.Src)]
		if !ok {
			return fmt.Errorf("intersection %d: turn from unknown lane %d", id, ts.Src)
		}
		dst, ok := m.lanes[entity.LaneID(ts.Dst)]
		if !ok {
			return fmt.Errorf("intersection %d: turn to unknown lane %d", id, ts.Dst)
		}
		t, err := newTurn(id, ts, src, dst)
		if err != nil {
			return err
		}
		if _, ok := m.turns[t.id]; ok {
			return fmt.Errorf("duplicate %v", t.id)
		}
		if err := m.linkLanes(t, src, dst); err != nil {
			return err
		}
		m.turns[t.id] = t
		turns = append(turns, t)
		inter.turns = append(inter.turns, t.id)
	}
	slices.SortFunc(inter.turns, entity.CompareTurnID)
	for k, t := range inter.turns {
		inter.turnIndex[t] = k
	}
	for a := 0; a < len(turns); a++ {
		for b := a + 1; b < len(turns); b++ {
			if turns[a].geometryConflicts(turns[b]) {
				inter.addConflict(turns[a].id, turns[b].id)
			}
		}
	}
	for _, c := range spec.Conflicts {
		a := entity.TurnID{Parent: id, Src: entity.LaneID(c.A.Src), Dst: entity.LaneID(c.A.Dst)}
		b := entity.TurnID{Parent: id, Src: entity.LaneID(c.B.Src), Dst: entity.LaneID(c.B.Dst)}
		if !inter.HasTurn(a) || !inter.HasTurn(b) {
			return fmt.Errorf("intersection %d: conflict between unknown turns %v and %v", id, a, b)
		}
		inter.addConflict(a, b)
	}
	if control == ControlSignal {
		if err := inter.buildSignal(spec.Phases); err != nil {
			return err
		}
	} else if len(spec.Phases) > 0 {
		return fmt.Errorf("intersection %d: phases given for %v control", id, control)
	}
	m.intersections[id] = inter
	return nil
}

// linkLanes 记录车道两端所在路口，一条车道的一端只能属于一个路口
func (m *Map) linkLanes(t *Turn, src, dst *Lane) error {
	parent := t.id.Parent
	if t.crosswalk {
		// 人行道双向通行，两端都可能接入人行横道，不记录端点
		return nil
	}
	if src.hasDst && src.dst != parent {
		return fmt.Errorf("lane %d ends at both intersection %d and %d", src.id, src.dst, parent)
	}
	if dst.hasSrc && dst.src != parent {
		return fmt.Errorf("lane %d starts at both intersection %d and %d", dst.id, dst.src, parent)
	}
	src.dst, src.hasDst = parent, true
	dst.src, dst.hasSrc = parent, true
	return nil
}

// Lane 查找车道，如果不存在则panic
func (m *Map) Lane(id entity.LaneID) *Lane {
	l, err := m.LaneOrError(id)
	if err != nil {
		log.Panic(err)
	}
	return l
}

// LaneOrError 查找车道，如果不存在则返回error
func (m *Map) LaneOrError(id entity.LaneID) (*Lane, error) {
	if l, ok := m.lanes[id]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("lane %d not found", id)
}

// Lanes 所有车道ID，升序
func (m *Map) Lanes() []entity.LaneID {
	return m.laneIDs
}

// Turn 查找转向，如果不存在则panic
func (m *Map) Turn(id entity.TurnID) *Turn {
	t, err := m.TurnOrError(id)
	if err != nil {
		log.Panic(err)
	}
	return t
}

// TurnOrError 查找转向，如果不存在则返回error
func (m *Map) TurnOrError(id entity.TurnID) (*Turn, error) {
	if t, ok := m.turns[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%v not found", id)
}

// Intersection 查找路口，如果不存在则panic
func (m *Map) Intersection(id entity.IntersectionID) *Intersection {
	i, err := m.IntersectionOrError(id)
	if err != nil {
		log.Panic(err)
	}
	return i
}

// IntersectionOrError 查找路口，如果不存在则返回error
func (m *Map) IntersectionOrError(id entity.IntersectionID) (*Intersection, error) {
	if i, ok := m.intersections[id]; ok {
		return i, nil
	}
	return nil, fmt.Errorf("intersection %d not found", id)
}

// Intersections 所有路口ID，升序
func (m *Map) Intersections() []entity.IntersectionID {
	return m.interIDs
}

func (m *Map) geom(on entity.Traversable) *polyline {
	switch on.Kind {
	case entity.TraversableLane:
		return &m.Lane(on.Lane).geom
	case entity.TraversableTurn:
		return &m.Turn(on.Turn).geom
	default:
		log.Panicf("bad traversable %v", on)
		return nil
	}
}

// Length 路段长度
func (m *Map) Length(on entity.Traversable) float64 {
	return m.geom(on).length
}

// SpeedLimit 路段限速
func (m *Map) SpeedLimit(on entity.Traversable) float64 {
	if on.IsLane() {
		return m.Lane(on.Lane).maxSpeed
	}
	return m.Turn(on.Turn).maxSpeed
}

// PositionAt 路段上dist处的坐标
func (m *Map) PositionAt(on entity.Traversable, dist float64) geometry.Point {
	return m.geom(on).positionAt(dist)
}

// DirectionAt 路段上dist处的切向角度
func (m *Map) DirectionAt(on entity.Traversable, dist float64) float64 {
	return m.geom(on).directionAt(dist)
}

// Slice 截取路段上[from, to]之间的折线
func (m *Map) Slice(on entity.Traversable, from, to float64) []geometry.Point {
	return m.geom(on).slice(from, to)
}

// Conflicts 两个转向是否冲突，不同路口的转向不冲突
func (m *Map) Conflicts(a, b entity.TurnID) bool {
	if a.Parent != b.Parent {
		return false
	}
	return m.Intersection(a.Parent).Conflicts(a, b)
}

// ParkingCapacity 车道车位数，非停车车道为0
func (m *Map) ParkingCapacity(lane entity.LaneID) int {
	return m.Lane(lane).ParkingCapacity()
}
