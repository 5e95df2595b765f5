package entity

import "fmt"

// GoalKind 驾驶目的地类型
type GoalKind int

const (
	// 停入已预留的车位
	GoalParkingSpot GoalKind = iota
	// 到达后在指定停车车道上寻找空车位
	GoalParkOnLane
	// 到达路径终点的指定位置后离开仿真（如地图边界）
	GoalEnd
)

// DrivingGoal 驾驶行程的目的地
type DrivingGoal struct {
	Kind GoalKind
	Spot ParkingSpot // GoalParkingSpot
	Lane LaneID      // GoalParkOnLane：停车车道
	Dist float64     // GoalEnd：终点车道上的位置
}

func ParkAtSpot(spot ParkingSpot) DrivingGoal {
	return DrivingGoal{Kind: GoalParkingSpot, Spot: spot}
}

func ParkOnLane(lane LaneID) DrivingGoal {
	return DrivingGoal{Kind: GoalParkOnLane, Lane: lane}
}

func EndAt(dist float64) DrivingGoal {
	return DrivingGoal{Kind: GoalEnd, Dist: dist}
}

func (g DrivingGoal) String() string {
	switch g.Kind {
	case GoalParkingSpot:
		return fmt.Sprintf("park at %v", g.Spot)
	case GoalParkOnLane:
		return fmt.Sprintf("park on lane %d", g.Lane)
	case GoalEnd:
		return fmt.Sprintf("end at %.2f", g.Dist)
	default:
		panic(fmt.Sprintf("bad goal kind %d", g.Kind))
	}
}

// Router 预先计算好的驾驶路径
// 说明：Path按行驶顺序交替为车道与转向，首项为起点车道，末项为终点车道
type Router struct {
	Path []Traversable
	Goal DrivingGoal
}

// WalkStep 步行路径中的一段，Forward表示沿几何方向行走
type WalkStep struct {
	On      Traversable
	Forward bool
}

// WalkPath 预先计算好的步行路径
type WalkPath struct {
	Steps []WalkStep
}

// SidewalkSpot 人行道上的位置，Spot非空时表示该位置对应的停车位
type SidewalkSpot struct {
	Sidewalk LaneID
	Dist     float64
	Spot     *ParkingSpot
}

func (s SidewalkSpot) String() string {
	if s.Spot != nil {
		return fmt.Sprintf("sidewalk %d@%.2f(%v)", s.Sidewalk, s.Dist, *s.Spot)
	}
	return fmt.Sprintf("sidewalk %d@%.2f", s.Sidewalk, s.Dist)
}

// LegMode 出行段方式
type LegMode int

const (
	LegWalk LegMode = iota
	LegDrive
)

func (m LegMode) String() string {
	switch m {
	case LegWalk:
		return "walk"
	case LegDrive:
		return "drive"
	default:
		panic(fmt.Sprintf("bad leg mode %d", int(m)))
	}
}

// TripLeg 出行中的一段
type TripLeg struct {
	Mode LegMode

	// 步行段
	Ped   PedestrianID // 为0时由TripManager分配，同一trip的步行段复用同一个行人
	Start SidewalkSpot
	Goal  SidewalkSpot
	Walk  WalkPath

	// 驾驶段
	Vehicle   Vehicle
	Route     Router
	StartDist float64      // 在路径首条车道上的起始位置（车头）
	FromSpot  *ParkingSpot // 非空时从该车位上的停放车辆出发，起点由车位投影得到
}

// WalkLeg 构造步行段
func WalkLeg(start, goal SidewalkSpot, path WalkPath) TripLeg {
	return TripLeg{Mode: LegWalk, Start: start, Goal: goal, Walk: path}
}

// DriveLeg 构造从道路上出发的驾驶段
func DriveLeg(vehicle Vehicle, route Router, startDist float64) TripLeg {
	return TripLeg{Mode: LegDrive, Vehicle: vehicle, Route: route, StartDist: startDist}
}

// DriveFromSpotLeg 构造从停放车辆出发的驾驶段
func DriveFromSpotLeg(vehicle Vehicle, spot ParkingSpot, route Router) TripLeg {
	return TripLeg{Mode: LegDrive, Vehicle: vehicle, Route: route, FromSpot: &spot}
}

// Agent 执行该段的智能体，步行段需已分配行人ID
func (l TripLeg) Agent() AgentID {
	if l.Mode == LegDrive {
		return CarAgent(l.Vehicle.ID)
	}
	return PedAgent(l.Ped)
}

// TripSpec 一次出行
type TripSpec struct {
	Start float64 // 出发时间
	Legs  []TripLeg
}
