package roadmap

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
)

// polyline 车道/转向共用的折线几何
type polyline struct {
	line       []geometry.Point             // 折线点
	lengths    []float64                    // 各点对应的累计长度
	directions []geometry.PolylineDirection // 每一段的方向（atan2）
	length     float64
}

func newPolyline(points []PointSpec) (polyline, error) {
	if len(points) < 2 {
		return polyline{}, fmt.Errorf("polyline needs at least 2 points, got %d", len(points))
	}
	p := polyline{
		line: lo.Map(points, func(pt PointSpec, _ int) geometry.Point {
			return geometry.Point{X: pt.X, Y: pt.Y}
		}),
	}
	p.lengths = geometry.GetPolylineLengths2D(p.line)
	p.length = p.lengths[len(p.lengths)-1]
	if p.length <= 0 {
		return polyline{}, fmt.Errorf("polyline has zero length")
	}
	p.directions = geometry.GetPolylineDirections(p.line)
	return p, nil
}

func (p *polyline) clamp(s float64) float64 {
	if s < 0 || s > p.length {
		log.Debugf("polyline s %v out of range{0,%v}", s, p.length)
		s = lo.Clamp(s, 0, p.length)
	}
	return s
}

// positionAt 将s坐标转换为xy坐标
func (p *polyline) positionAt(s float64) geometry.Point {
	s = p.clamp(s)
	i := sort.SearchFloat64s(p.lengths, s)
	if i == 0 {
		return p.line[0]
	}
	sHigh, sLow := p.lengths[i], p.lengths[i-1]
	if sHigh == sLow {
		return p.line[i]
	}
	k := (s - sLow) / (sHigh - sLow)
	if k < 0 || k > 1 {
		log.Panicf("polyline: positionAt(), bad k %v. sHigh=%f, sLow=%f, s=%f", k, sHigh, sLow, s)
	}
	return geometry.Blend(p.line[i-1], p.line[i], k)
}

// directionAt 根据s坐标计算切向角度
func (p *polyline) directionAt(s float64) float64 {
	s = p.clamp(s)
	if i := sort.SearchFloat64s(p.lengths, s); i == 0 {
		return p.directions[0].Direction
	} else {
		return p.directions[i-1].Direction
	}
}

// slice 截取[from, to]之间的折线
func (p *polyline) slice(from, to float64) []geometry.Point {
	from, to = p.clamp(from), p.clamp(to)
	if from > to {
		from, to = to, from
	}
	out := []geometry.Point{p.positionAt(from)}
	for i, s := range p.lengths {
		if s > from && s < to {
			out = append(out, p.line[i])
		}
	}
	return append(out, p.positionAt(to))
}

func (p *polyline) first() geometry.Point {
	return p.line[0]
}

func (p *polyline) last() geometry.Point {
	return p.line[len(p.line)-1]
}

// intersects 两条折线是否相交（含端点接触与共线重叠）
func (p *polyline) intersects(o *polyline) bool {
	for i := 1; i < len(p.line); i++ {
		for j := 1; j < len(o.line); j++ {
			if segmentsIntersect(p.line[i-1], p.line[i], o.line[j-1], o.line[j]) {
				return true
			}
		}
	}
	return false
}

const geomEpsilon = 1e-9

func orientation(a, b, c geometry.Point) int {
	v := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	switch {
	case v > geomEpsilon:
		return 1
	case v < -geomEpsilon:
		return -1
	default:
		return 0
	}
}

func onSegment(a, b, c geometry.Point) bool {
	return min(a.X, b.X)-geomEpsilon <= c.X && c.X <= max(a.X, b.X)+geomEpsilon &&
		min(a.Y, b.Y)-geomEpsilon <= c.Y && c.Y <= max(a.Y, b.Y)+geomEpsilon
}

func segmentsIntersect(p1, p2, q1, q2 geometry.Point) bool {
	o1 := orientation(p1, p2, q1)
	o2 := orientation(p1, p2, q2)
	o3 := orientation(q1, q2, p1)
	o4 := orientation(q1, q2, p2)
	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(p1, p2, q1)) ||
		(o2 == 0 && onSegment(p1, p2, q2)) ||
		(o3 == 0 && onSegment(q1, q2, p1)) ||
		(o4 == 0 && onSegment(q1, q2, p2))
}
