package walking

import (
	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/utils/container"
)

// pedestrian 步行中的行人
type pedestrian struct {
	container.IncrementalItemBase

	id        entity.PedestrianID
	start     entity.SidewalkSpot
	goal      entity.SidewalkSpot
	path      entity.WalkPath
	startTime float64
	walkingV  float64 // 行走速度（米/秒）

	stepIdx int
	s       float64 // 在当前路段几何上的位置
	waiting bool    // 在人行道末端等待人行横道放行

	held     entity.TurnID // 已放行的人行横道
	holdsAny bool
}

func (p *pedestrian) agent() entity.AgentID {
	return entity.PedAgent(p.id)
}

func (p *pedestrian) step() entity.WalkStep {
	return p.path.Steps[p.stepIdx]
}

func (p *pedestrian) on() entity.Traversable {
	return p.step().On
}

func (p *pedestrian) atLast() bool {
	return p.stepIdx == len(p.path.Steps)-1
}

// remaining 沿行走方向到路段终点的距离
func (p *pedestrian) remaining(length float64) float64 {
	if p.step().Forward {
		return length - p.s
	}
	return p.s
}

// advance 沿行走方向前进ds
func (p *pedestrian) advance(ds float64) {
	if p.step().Forward {
		p.s += ds
	} else {
		p.s -= ds
	}
}

// entryS 进入路段时的位置
func entryS(step entity.WalkStep, length float64) float64 {
	if step.Forward {
		return 0
	}
	return length
}

func (p *pedestrian) position() entity.Position {
	return entity.Position{On: p.on(), Dist: p.s}
}
