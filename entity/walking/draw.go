package walking

import (
	"cmp"
	"slices"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/mshenfield/abstreet/entity"
	"github.com/samber/lo"
)

func (mgr *Manager) drawPed(p *pedestrian) entity.DrawPedestrianInput {
	return entity.DrawPedestrianInput{
		ID:      p.id,
		On:      p.on(),
		Pos:     mgr.m.PositionAt(p.on(), p.s),
		Heading: mgr.heading(p),
		Waiting: p.waiting,
	}
}

func sortDraws(out []entity.DrawPedestrianInput) []entity.DrawPedestrianInput {
	slices.SortFunc(out, func(a, b entity.DrawPedestrianInput) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// GetAllDrawPeds 所有步行中行人的绘制数据，按行人ID升序
func (mgr *Manager) GetAllDrawPeds() []entity.DrawPedestrianInput {
	return sortDraws(lo.MapToSlice(mgr.peds, func(_ entity.PedestrianID, p *pedestrian) entity.DrawPedestrianInput {
		return mgr.drawPed(p)
	}))
}

// GetDrawPedsOn 路段上行人的绘制数据，按行人ID升序
func (mgr *Manager) GetDrawPedsOn(on entity.Traversable) []entity.DrawPedestrianInput {
	return sortDraws(lo.MapToSlice(mgr.on[on], func(id entity.PedestrianID, _ struct{}) entity.DrawPedestrianInput {
		return mgr.drawPed(mgr.peds[id])
	}))
}

// sliceAlong 沿行走方向截取折线
func (mgr *Manager) sliceAlong(step entity.WalkStep, from, to float64) []geometry.Point {
	pts := mgr.m.Slice(step.On, min(from, to), max(from, to))
	if !step.Forward {
		pts = lo.Reverse(pts)
	}
	return pts
}

// TraceRoute 行人从当前位置到终点的剩余路线
func (mgr *Manager) TraceRoute(id entity.PedestrianID) ([]geometry.Point, bool) {
	p, ok := mgr.peds[id]
	if !ok {
		return nil, false
	}
	pieces := make([][]geometry.Point, 0)
	for i := p.stepIdx; i < len(p.path.Steps); i++ {
		step := p.path.Steps[i]
		length := mgr.m.Length(step.On)
		from := entryS(step, length)
		if i == p.stepIdx {
			from = p.s
		}
		to := length - entryS(step, length)
		if i == len(p.path.Steps)-1 {
			to = p.goal.Dist
		}
		pieces = append(pieces, mgr.sliceAlong(step, from, to))
	}
	return lo.Flatten(pieces), true
}

// PedPosition 行人当前位置
func (mgr *Manager) PedPosition(id entity.PedestrianID) (entity.Position, bool) {
	p, ok := mgr.peds[id]
	if !ok {
		return entity.Position{}, false
	}
	return p.position(), true
}

// IsWaiting 行人是否在等待人行横道放行
func (mgr *Manager) IsWaiting(id entity.PedestrianID) bool {
	p, ok := mgr.peds[id]
	return ok && p.waiting
}

// Count 步行中与待出发的行人数
func (mgr *Manager) Count() (active, pending int) {
	return len(mgr.peds), mgr.pending.Len()
}

// Validate 检查行人位置合法且路段索引一致
func (mgr *Manager) Validate() {
	n := 0
	for on, set := range mgr.on {
		for id := range set {
			p, ok := mgr.peds[id]
			if !ok || p.on() != on {
				log.Panicf("walking: %v lists stale ped %d", on, id)
			}
			n++
		}
	}
	if n != len(mgr.peds) {
		log.Panicf("walking: %d peds but %d indexed", len(mgr.peds), n)
	}
	for _, p := range mgr.peds {
		if l := mgr.m.Length(p.on()); p.s < 0 || p.s > l {
			log.Panicf("walking: ped %d at %v outside [0, %v]", p.id, p.position(), l)
		}
	}
}
