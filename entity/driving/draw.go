package driving

import (
	"cmp"
	"slices"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/mshenfield/abstreet/entity"
	"github.com/samber/lo"
)

// body 车尾到车头的折线，车身可能跨越之前的路段
func (mgr *Manager) body(c *car) [][]geometry.Point {
	pieces := make([][]geometry.Point, 0, 2)
	rest := c.vehicle.Length
	idx, front := c.pathIdx, c.dist
	for {
		on := c.router.Path[idx]
		if front-rest >= 0 || idx == 0 {
			pieces = append(pieces, mgr.m.Slice(on, max(front-rest, 0), front))
			break
		}
		pieces = append(pieces, mgr.m.Slice(on, 0, front))
		rest -= front
		idx--
		front = mgr.m.Length(c.router.Path[idx])
	}
	return lo.Reverse(pieces)
}

func (mgr *Manager) drawCar(c *car) entity.DrawCarInput {
	on := c.on()
	status := entity.CarMoving
	if c.v == 0 {
		status = entity.CarStuck
	}
	return entity.DrawCarInput{
		ID:      c.id(),
		On:      on,
		Front:   mgr.m.PositionAt(on, c.dist),
		Heading: mgr.m.DirectionAt(on, c.dist),
		Body:    lo.Flatten(mgr.body(c)),
		Length:  c.vehicle.Length,
		Speed:   c.v,
		Status:  status,
	}
}

func sortDraws(out []entity.DrawCarInput) []entity.DrawCarInput {
	slices.SortFunc(out, func(a, b entity.DrawCarInput) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// GetAllDrawCars 所有行驶中车辆的绘制数据，按车辆ID升序
func (mgr *Manager) GetAllDrawCars() []entity.DrawCarInput {
	return sortDraws(lo.MapToSlice(mgr.cars, func(_ entity.CarID, c *car) entity.DrawCarInput {
		return mgr.drawCar(c)
	}))
}

// GetDrawCarsOn 车头位于路段上的车辆的绘制数据，按车辆ID升序
func (mgr *Manager) GetDrawCarsOn(on entity.Traversable) []entity.DrawCarInput {
	q, ok := mgr.queues[on]
	if !ok {
		return []entity.DrawCarInput{}
	}
	return sortDraws(lo.Map(q.Entries(), func(e entity.AgentQueueEntry, _ int) entity.DrawCarInput {
		id, _ := e.ID.Car()
		return mgr.drawCar(mgr.cars[id])
	}))
}

// TraceRoute 车辆从当前位置到目标位置的剩余路线
func (mgr *Manager) TraceRoute(id entity.CarID) ([]geometry.Point, bool) {
	c, ok := mgr.cars[id]
	if !ok {
		return nil, false
	}
	pieces := make([][]geometry.Point, 0, len(c.router.Path)-c.pathIdx)
	for i := c.pathIdx; i <= c.lastIdx(); i++ {
		on := c.router.Path[i]
		from, to := 0., mgr.m.Length(on)
		if i == c.pathIdx {
			from = c.dist
		}
		if i == c.lastIdx() {
			to = c.goalDist
		}
		pieces = append(pieces, mgr.m.Slice(on, from, max(from, to)))
	}
	return lo.Flatten(pieces), true
}

// CarPosition 车辆车头的当前位置
func (mgr *Manager) CarPosition(id entity.CarID) (entity.Position, bool) {
	c, ok := mgr.cars[id]
	if !ok {
		return entity.Position{}, false
	}
	return c.position(), true
}

// CarSpeed 车辆当前速度
func (mgr *Manager) CarSpeed(id entity.CarID) (float64, bool) {
	c, ok := mgr.cars[id]
	if !ok {
		return 0, false
	}
	return c.v, true
}

// Count 行驶中与待出发的车辆数
func (mgr *Manager) Count() (active, pending int) {
	return len(mgr.cars), mgr.pending.Len()
}

// QueueOn 路段占用队列（只读），无车辆时返回false
func (mgr *Manager) QueueOn(on entity.Traversable) (*entity.AgentQueue, bool) {
	q, ok := mgr.queues[on]
	if !ok || q.Len() == 0 {
		return nil, false
	}
	return q, true
}

// Validate 检查所有占用队列有序不重叠，且与车辆状态一致
func (mgr *Manager) Validate() {
	n := 0
	for on, q := range mgr.queues {
		if err := q.Validate(); err != nil {
			log.Panicf("driving: %v", err)
		}
		for _, e := range q.Entries() {
			id, ok := e.ID.Car()
			c, exist := mgr.cars[id]
			if !ok || !exist || c.on() != on || c.dist != e.Dist {
				log.Panicf("driving: queue %v has stale entry %v at %v", on, e.ID, e.Dist)
			}
			n++
		}
	}
	if n != len(mgr.cars) {
		log.Panicf("driving: %d cars but %d queue entries", len(mgr.cars), n)
	}
	// 车头不能越过其他车辆留在同一路段上的车尾
	for on, ts := range mgr.buildTails() {
		q, ok := mgr.queues[on]
		if !ok {
			continue
		}
		for _, t := range ts {
			for _, e := range q.Entries() {
				if e.ID != t.agent && e.Dist > t.back+distEpsilon {
					log.Panicf("driving: %v at %v overlaps the tail of %v from %v on %v", e.ID, e.Dist, t.agent, t.back, on)
				}
			}
		}
	}
}
