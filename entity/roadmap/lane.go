package roadmap

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/mshenfield/abstreet/entity"
	"github.com/samber/lo"
)

const (
	DefaultMaxSpeed   = 50 / 3.6 // 未指定限速时的默认值（米/秒）
	ParkingSpotLength = 8.0      // 单个路边车位长度（米）
)

// LaneType 车道类型
type LaneType int

const (
	LaneTypeDriving LaneType = iota
	LaneTypeParking
	LaneTypeSidewalk
)

func (t LaneType) String() string {
	switch t {
	case LaneTypeDriving:
		return "driving"
	case LaneTypeParking:
		return "parking"
	case LaneTypeSidewalk:
		return "sidewalk"
	default:
		panic(fmt.Sprintf("bad lane type %d", int(t)))
	}
}

func parseLaneType(s string) (LaneType, error) {
	switch s {
	case "driving":
		return LaneTypeDriving, nil
	case "parking":
		return LaneTypeParking, nil
	case "sidewalk":
		return LaneTypeSidewalk, nil
	default:
		return 0, fmt.Errorf("unknown lane type %q", s)
	}
}

// Lane 静态车道
// 功能：车道几何、类型与限速；停车车道额外记录关联的行车道与人行道
type Lane struct {
	id       entity.LaneID
	typ      LaneType
	maxSpeed float64
	geom     polyline

	src, dst    entity.IntersectionID // 起点/终点所在路口，由转向推断
	hasSrc      bool
	hasDst      bool
	drivingLane entity.LaneID // 停车车道专用
	sidewalk    entity.LaneID // 停车车道专用
}

func newLane(spec LaneSpec) (*Lane, error) {
	typ, err := parseLaneType(spec.Type)
	if err != nil {
		return nil, fmt.Errorf("lane %d: %w", spec.ID, err)
	}
	geom, err := newPolyline(spec.Line)
	if err != nil {
		return nil, fmt.Errorf("lane %d: %w", spec.ID, err)
	}
	l := &Lane{
		id:       entity.LaneID(spec.ID),
		typ:      typ,
		maxSpeed: spec.MaxSpeed,
		geom:     geom,
	}
	if l.maxSpeed <= 0 {
		l.maxSpeed = DefaultMaxSpeed
	}
	if typ == LaneTypeParking {
		if spec.DrivingLane == nil || spec.Sidewalk == nil {
			return nil, fmt.Errorf("parking lane %d needs driving_lane and sidewalk", spec.ID)
		}
		l.drivingLane = entity.LaneID(*spec.DrivingLane)
		l.sidewalk = entity.LaneID(*spec.Sidewalk)
	}
	return l, nil
}

func (l *Lane) String() string {
	return fmt.Sprintf("Lane{id=%d, type=%v, length=%.2f}", l.id, l.typ, l.geom.length)
}

func (l *Lane) ID() entity.LaneID {
	return l.id
}

func (l *Lane) Type() LaneType {
	return l.typ
}

func (l *Lane) Length() float64 {
	return l.geom.length
}

func (l *Lane) MaxSpeed() float64 {
	return l.maxSpeed
}

func (l *Lane) Line() []geometry.Point {
	return l.geom.line
}

// SrcIntersection 车道起点所在路口
func (l *Lane) SrcIntersection() (entity.IntersectionID, bool) {
	return l.src, l.hasSrc
}

// DstIntersection 车道终点所在路口
func (l *Lane) DstIntersection() (entity.IntersectionID, bool) {
	return l.dst, l.hasDst
}

// DrivingLane 停车车道对应的行车道
func (l *Lane) DrivingLane() entity.LaneID {
	if l.typ != LaneTypeParking {
		log.Panicf("%v is not a parking lane", l)
	}
	return l.drivingLane
}

// Sidewalk 停车车道对应的人行道
func (l *Lane) Sidewalk() entity.LaneID {
	if l.typ != LaneTypeParking {
		log.Panicf("%v is not a parking lane", l)
	}
	return l.sidewalk
}

// ParkingCapacity 车位数，非停车车道为0
func (l *Lane) ParkingCapacity() int {
	if l.typ != LaneTypeParking {
		return 0
	}
	return int(math.Floor(l.geom.length/ParkingSpotLength + 1e-9))
}

// ProjectFromLane 将相邻车道上的s坐标投影到本车道
func (l *Lane) ProjectFromLane(other *Lane, otherS float64) float64 {
	return l.ProjectToLane(other.PositionAt(otherS))
}

// PositionAt 将本车道s坐标转换为xy坐标
func (l *Lane) PositionAt(s float64) geometry.Point {
	return l.geom.positionAt(s)
}

// DirectionAt 根据本车道s坐标计算切向角度
func (l *Lane) DirectionAt(s float64) float64 {
	return l.geom.directionAt(s)
}

// ProjectToLane 将xy坐标投影到车道折线上，计算出对应的s坐标
func (l *Lane) ProjectToLane(pos geometry.Point) float64 {
	s := geometry.GetClosestPolylineSToPoint2D(l.geom.line, l.geom.lengths, pos)
	return lo.Clamp(s, 0, l.Length())
}
