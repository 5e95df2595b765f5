package driving

import (
	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/utils/container"
)

// heldTurn 已获得放行、车尾尚未离开的转向
type heldTurn struct {
	idx  int // 在路径中的下标
	turn entity.TurnID
}

// tail 车头已进入后续路段时留在该路段末尾的车身，覆盖[back, 路段长度]
type tail struct {
	agent entity.AgentID
	back  float64
	speed float64
}

// car 行驶中的车辆
type car struct {
	container.IncrementalItemBase

	vehicle   entity.Vehicle
	maxV      float64 // 加入随机扰动后的最高速度
	router    entity.Router
	startTime float64

	pathIdx int     // 当前所在路段在路径中的下标
	dist    float64 // 车头在当前路段上的位置
	v       float64

	goalDist    float64             // 车头在终点车道上的目标位置
	target      *entity.ParkingSpot // 已预留的目标车位
	searchSince float64             // 开始等待空车位的时间，<0表示未开始

	held []heldTurn
}

func (c *car) id() entity.CarID {
	return c.vehicle.ID
}

func (c *car) agent() entity.AgentID {
	return entity.CarAgent(c.vehicle.ID)
}

func (c *car) on() entity.Traversable {
	return c.router.Path[c.pathIdx]
}

func (c *car) lastIdx() int {
	return len(c.router.Path) - 1
}

func (c *car) onLast() bool {
	return c.pathIdx == c.lastIdx()
}

// holds 路径中第idx段（转向）是否已获得放行
func (c *car) holds(idx int) bool {
	for _, h := range c.held {
		if h.idx == idx {
			return true
		}
	}
	return false
}

// holdsAt 是否持有该路口的放行
func (c *car) holdsAt(parent entity.IntersectionID) bool {
	for _, h := range c.held {
		if h.turn.Parent == parent {
			return true
		}
	}
	return false
}

func (c *car) position() entity.Position {
	return entity.Position{On: c.on(), Dist: c.dist}
}
