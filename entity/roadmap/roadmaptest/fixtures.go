// Package roadmaptest 提供测试用的小型路网
package roadmaptest

import (
	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/roadmap"
)

// 十字路口示例路网
//
//	                 4 (北向出口)
//	                 |
//	 1 (东向入口) ---+--- 2 (东向出口)
//	 8 (短停车道)    |    5 (停车车道)
//	 7 (西侧人行道)~~|~~ 6 (东侧人行道)
//	                 |
//	                 3 (北向入口)
const (
	Center entity.IntersectionID = 0

	LaneEastIn      entity.LaneID = 1
	LaneEastOut     entity.LaneID = 2
	LaneNorthIn     entity.LaneID = 3
	LaneNorthOut    entity.LaneID = 4
	LaneParking     entity.LaneID = 5
	SidewalkEast    entity.LaneID = 6
	SidewalkWest    entity.LaneID = 7
	LaneTinyParking entity.LaneID = 8

	ApproachLength = 90.0 // 入口与出口车道长度
	PhaseDuration  = 30.0
)

var (
	TurnEast      = entity.TurnID{Parent: Center, Src: LaneEastIn, Dst: LaneEastOut}
	TurnNorth     = entity.TurnID{Parent: Center, Src: LaneNorthIn, Dst: LaneNorthOut}
	TurnCrosswalk = entity.TurnID{Parent: Center, Src: SidewalkWest, Dst: SidewalkEast}
)

func pt(x, y float64) roadmap.PointSpec {
	return roadmap.PointSpec{X: x, Y: y}
}

func id(v entity.LaneID) *int32 {
	x := int32(v)
	return &x
}

// CrossSpec 十字路口路网描述，control为路口控制方式
// 信号控制时：相位0放行东向直行与人行横道，相位1放行北向直行，各30秒
func CrossSpec(control string) roadmap.MapSpec {
	spec := roadmap.MapSpec{
		Lanes: []roadmap.LaneSpec{
			{ID: int32(LaneEastIn), Type: "driving", Line: []roadmap.PointSpec{pt(-100, 0), pt(-10, 0)}},
			{ID: int32(LaneEastOut), Type: "driving", Line: []roadmap.PointSpec{pt(10, 0), pt(100, 0)}},
			{ID: int32(LaneNorthIn), Type: "driving", Line: []roadmap.PointSpec{pt(0, -100), pt(0, -10)}},
			{ID: int32(LaneNorthOut), Type: "driving", Line: []roadmap.PointSpec{pt(0, 10), pt(0, 100)}},
			{
				ID: int32(LaneParking), Type: "parking", Line: []roadmap.PointSpec{pt(10, -3), pt(100, -3)},
				DrivingLane: id(LaneEastOut), Sidewalk: id(SidewalkEast),
			},
			{ID: int32(SidewalkEast), Type: "sidewalk", Line: []roadmap.PointSpec{pt(10, -6), pt(100, -6)}},
			{ID: int32(SidewalkWest), Type: "sidewalk", Line: []roadmap.PointSpec{pt(-100, -6), pt(-10, -6)}},
			{
				ID: int32(LaneTinyParking), Type: "parking", Line: []roadmap.PointSpec{pt(-100, -3), pt(-95, -3)},
				DrivingLane: id(LaneEastIn), Sidewalk: id(SidewalkWest),
			},
		},
		Intersections: []roadmap.IntersectionSpec{
			{
				ID:      int32(Center),
				Control: control,
				Turns: []roadmap.TurnSpec{
					{Src: int32(LaneEastIn), Dst: int32(LaneEastOut)},
					{Src: int32(LaneNorthIn), Dst: int32(LaneNorthOut)},
					{Src: int32(SidewalkWest), Dst: int32(SidewalkEast), Line: []roadmap.PointSpec{pt(-10, -6), pt(10, -6)}},
				},
			},
		},
	}
	if control == "signal" {
		spec.Intersections[0].Phases = []roadmap.PhaseSpec{
			{
				Duration: PhaseDuration,
				Green: []roadmap.TurnRef{
					{Src: int32(LaneEastIn), Dst: int32(LaneEastOut)},
					{Src: int32(SidewalkWest), Dst: int32(SidewalkEast)},
				},
			},
			{
				Duration: PhaseDuration,
				Green:    []roadmap.TurnRef{{Src: int32(LaneNorthIn), Dst: int32(LaneNorthOut)}},
			},
		}
	}
	return spec
}

// MustCross 构建十字路口路网，失败时panic
func MustCross(control string) *roadmap.Map {
	m, err := roadmap.New(CrossSpec(control))
	if err != nil {
		panic(err)
	}
	return m
}

// EastRoute 东向直行路径：入口车道 -> 转向 -> 出口车道
func EastRoute() []entity.Traversable {
	return []entity.Traversable{
		entity.OnLane(LaneEastIn), entity.OnTurn(TurnEast), entity.OnLane(LaneEastOut),
	}
}

// NorthRoute 北向直行路径
func NorthRoute() []entity.Traversable {
	return []entity.Traversable{
		entity.OnLane(LaneNorthIn), entity.OnTurn(TurnNorth), entity.OnLane(LaneNorthOut),
	}
}

// CrosswalkPath 从西侧人行道经人行横道到东侧人行道
func CrosswalkPath() entity.WalkPath {
	return entity.WalkPath{Steps: []entity.WalkStep{
		{On: entity.OnLane(SidewalkWest), Forward: true},
		{On: entity.OnTurn(TurnCrosswalk), Forward: true},
		{On: entity.OnLane(SidewalkEast), Forward: true},
	}}
}
