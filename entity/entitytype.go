package entity

import (
	"cmp"
	"fmt"
)

// 地图与智能体ID
type (
	LaneID         int32
	IntersectionID int32
	CarID          int32
	PedestrianID   int32
	TripID         int32
)

// AgentKind 智能体类型
type AgentKind int

const (
	AgentKindCar AgentKind = iota
	AgentKindPedestrian
)

// AgentID 智能体ID，车辆与行人的带标签联合
// 说明：每个智能体恰好属于一个trip，排序规则为(Kind, ID)
type AgentID struct {
	Kind AgentKind
	ID   int32
}

func CarAgent(id CarID) AgentID {
	return AgentID{Kind: AgentKindCar, ID: int32(id)}
}

func PedAgent(id PedestrianID) AgentID {
	return AgentID{Kind: AgentKindPedestrian, ID: int32(id)}
}

// Car 如果是车辆则返回车辆ID
func (a AgentID) Car() (CarID, bool) {
	return CarID(a.ID), a.Kind == AgentKindCar
}

// Ped 如果是行人则返回行人ID
func (a AgentID) Ped() (PedestrianID, bool) {
	return PedestrianID(a.ID), a.Kind == AgentKindPedestrian
}

func (a AgentID) String() string {
	switch a.Kind {
	case AgentKindCar:
		return fmt.Sprintf("car %d", a.ID)
	case AgentKindPedestrian:
		return fmt.Sprintf("ped %d", a.ID)
	default:
		panic(fmt.Sprintf("bad agent kind %d", a.Kind))
	}
}

// CompareAgentID 先比较类型再比较ID
func CompareAgentID(a, b AgentID) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// TurnID 路口内连接两条车道的转向
type TurnID struct {
	Parent IntersectionID
	Src    LaneID
	Dst    LaneID
}

func (t TurnID) String() string {
	return fmt.Sprintf("turn %d(%d->%d)", t.Parent, t.Src, t.Dst)
}

func CompareTurnID(a, b TurnID) int {
	if c := cmp.Compare(a.Parent, b.Parent); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Src, b.Src); c != 0 {
		return c
	}
	return cmp.Compare(a.Dst, b.Dst)
}

// TraversableKind 路段类型
type TraversableKind int

const (
	TraversableLane TraversableKind = iota
	TraversableTurn
)

// Traversable 智能体当前所在的线性路段：车道或转向
type Traversable struct {
	Kind TraversableKind
	Lane LaneID
	Turn TurnID
}

func OnLane(id LaneID) Traversable {
	return Traversable{Kind: TraversableLane, Lane: id}
}

func OnTurn(id TurnID) Traversable {
	return Traversable{Kind: TraversableTurn, Turn: id}
}

func (t Traversable) IsLane() bool {
	return t.Kind == TraversableLane
}

func (t Traversable) IsTurn() bool {
	return t.Kind == TraversableTurn
}

func (t Traversable) String() string {
	switch t.Kind {
	case TraversableLane:
		return fmt.Sprintf("lane %d", t.Lane)
	case TraversableTurn:
		return t.Turn.String()
	default:
		panic(fmt.Sprintf("bad traversable kind %d", t.Kind))
	}
}

// CompareTraversable 车道在前，转向在后
func CompareTraversable(a, b Traversable) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if a.Kind == TraversableLane {
		return cmp.Compare(a.Lane, b.Lane)
	}
	return CompareTurnID(a.Turn, b.Turn)
}

// Position 路段上的位置
type Position struct {
	On   Traversable
	Dist float64
}

func (p Position) String() string {
	return fmt.Sprintf("%v@%.2f", p.On, p.Dist)
}

// Vehicle 车辆物理参数，在一段驾驶行程中保持不变
type Vehicle struct {
	ID            CarID
	Length        float64 // 车长（米）
	MaxSpeed      float64 // 最大速度（米/秒）
	MaxA          float64 // 最大加速度（米/秒²）
	UsualBrakingA float64 // 一般减速度，负数
	MaxBrakingA   float64 // 最大减速度，负数
	MinGap        float64 // 停车时与前车的最小间距（米）
	Headway       float64 // 安全车头时距（秒）
}

// Validate 检查车辆参数的合法性
func (v Vehicle) Validate() error {
	switch {
	case v.Length <= 0:
		return fmt.Errorf("vehicle %d: length %v must be positive", v.ID, v.Length)
	case v.MaxSpeed <= 0:
		return fmt.Errorf("vehicle %d: max speed %v must be positive", v.ID, v.MaxSpeed)
	case v.MaxA <= 0:
		return fmt.Errorf("vehicle %d: max acceleration %v must be positive", v.ID, v.MaxA)
	case v.UsualBrakingA >= 0 || v.MaxBrakingA > v.UsualBrakingA:
		return fmt.Errorf("vehicle %d: braking acceleration usual=%v max=%v must be negative and max <= usual",
			v.ID, v.UsualBrakingA, v.MaxBrakingA)
	case v.MinGap < 0 || v.Headway < 0:
		return fmt.Errorf("vehicle %d: min gap %v and headway %v must not be negative", v.ID, v.MinGap, v.Headway)
	}
	return nil
}

// DefaultVehicle 常见小汽车参数
func DefaultVehicle(id CarID) Vehicle {
	return Vehicle{
		ID:            id,
		Length:        5,
		MaxSpeed:      50 / 3.6,
		MaxA:          3,
		UsualBrakingA: -4.5,
		MaxBrakingA:   -10,
		MinGap:        1,
		Headway:       1.5,
	}
}

// ParkingSpot 停车位，由(车道, 序号)唯一确定
type ParkingSpot struct {
	Lane LaneID
	Idx  int
}

func (s ParkingSpot) String() string {
	return fmt.Sprintf("spot %d#%d", s.Lane, s.Idx)
}

// SpotState 停车位状态
type SpotState int

const (
	SpotFree SpotState = iota
	SpotReserved
	SpotOccupied
)

func (s SpotState) String() string {
	switch s {
	case SpotFree:
		return "free"
	case SpotReserved:
		return "reserved"
	case SpotOccupied:
		return "occupied"
	default:
		panic(fmt.Sprintf("bad spot state %d", int(s)))
	}
}

// ParkedCar 停在某个车位上的车辆，仅在停放期间存在
type ParkedCar struct {
	Vehicle Vehicle
	Spot    ParkingSpot
}
