package roadmap

import (
	"fmt"

	"github.com/mshenfield/abstreet/entity"
)

// Turn 路口内连接两条车道的转向
// 说明：两端都是人行道时为人行横道，两端都是行车道时为机动车转向
type Turn struct {
	id        entity.TurnID
	crosswalk bool
	priority  bool
	maxSpeed  float64
	geom      polyline
}

func newTurn(parent entity.IntersectionID, spec TurnSpec, src, dst *Lane) (*Turn, error) {
	id := entity.TurnID{Parent: parent, Src: src.id, Dst: dst.id}
	var crosswalk bool
	switch {
	case src.typ == LaneTypeDriving && dst.typ == LaneTypeDriving:
	case src.typ == LaneTypeSidewalk && dst.typ == LaneTypeSidewalk:
		crosswalk = true
	default:
		return nil, fmt.Errorf("%v connects %v lane to %v lane", id, src.typ, dst.typ)
	}
	points := spec.Line
	if len(points) == 0 {
		if crosswalk {
			// 人行横道没有显式几何时取两条人行道最近的端点
			points = closestEnds(src, dst)
		} else {
			a, b := src.geom.last(), dst.geom.first()
			points = []PointSpec{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}}
		}
	}
	geom, err := newPolyline(points)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", id, err)
	}
	return &Turn{
		id:        id,
		crosswalk: crosswalk,
		priority:  spec.Priority,
		maxSpeed:  min(src.maxSpeed, dst.maxSpeed),
		geom:      geom,
	}, nil
}

func closestEnds(src, dst *Lane) []PointSpec {
	best := []PointSpec{}
	bestD := -1.0
	for _, a := range []int{0, len(src.geom.line) - 1} {
		for _, b := range []int{0, len(dst.geom.line) - 1} {
			pa, pb := src.geom.line[a], dst.geom.line[b]
			d := (pa.X-pb.X)*(pa.X-pb.X) + (pa.Y-pb.Y)*(pa.Y-pb.Y)
			if bestD < 0 || d < bestD {
				bestD = d
				best = []PointSpec{{X: pa.X, Y: pa.Y}, {X: pb.X, Y: pb.Y}}
			}
		}
	}
	return best
}

func (t *Turn) String() string {
	return fmt.Sprintf("Turn{%v, length=%.2f}", t.id, t.geom.length)
}

func (t *Turn) ID() entity.TurnID {
	return t.id
}

func (t *Turn) IsCrosswalk() bool {
	return t.crosswalk
}

// IsPriority 停车让行路口中无需停车即可通行
func (t *Turn) IsPriority() bool {
	return t.priority
}

func (t *Turn) Length() float64 {
	return t.geom.length
}

func (t *Turn) MaxSpeed() float64 {
	return t.maxSpeed
}

// geometryConflicts 基于几何判断两个转向是否冲突
// 规则：同一转向不冲突；两条人行横道不冲突；同一来源车道不冲突；同一去向车道冲突；折线相交冲突
func (t *Turn) geometryConflicts(o *Turn) bool {
	switch {
	case t.id == o.id:
		return false
	case t.crosswalk && o.crosswalk:
		return false
	case t.id.Src == o.id.Src:
		return false
	case t.id.Dst == o.id.Dst:
		return true
	}
	return t.geom.intersects(&o.geom)
}
