package roadmap

import (
	"fmt"
	"slices"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/mshenfield/abstreet/entity"
)

// ControlType 路口控制方式
type ControlType int

const (
	ControlUncontrolled ControlType = iota
	ControlStopSign
	ControlSignal
)

func (c ControlType) String() string {
	switch c {
	case ControlUncontrolled:
		return "uncontrolled"
	case ControlStopSign:
		return "stop_sign"
	case ControlSignal:
		return "signal"
	default:
		panic(fmt.Sprintf("bad control type %d", int(c)))
	}
}

func parseControlType(s string) (ControlType, error) {
	switch s {
	case "", "uncontrolled":
		return ControlUncontrolled, nil
	case "stop_sign":
		return ControlStopSign, nil
	case "signal":
		return ControlSignal, nil
	default:
		return 0, fmt.Errorf("unknown control type %q", s)
	}
}

// Intersection 静态路口
// 功能：记录控制方式、转向集合（按TurnID排序）、转向冲突表与固定相位信号程序
// 说明：信号程序每个相位的States[i]对应Turns()[i]
type Intersection struct {
	id        entity.IntersectionID
	control   ControlType
	turns     []entity.TurnID
	turnIndex map[entity.TurnID]int
	conflicts map[entity.TurnID]map[entity.TurnID]struct{}
	signal    *mapv2.TrafficLight
}

func (i *Intersection) String() string {
	return fmt.Sprintf("Intersection{id=%d, control=%v, turns=%d}", i.id, i.control, len(i.turns))
}

func (i *Intersection) ID() entity.IntersectionID {
	return i.id
}

func (i *Intersection) Control() ControlType {
	return i.control
}

// Turns 路口内所有转向，按TurnID升序
func (i *Intersection) Turns() []entity.TurnID {
	return i.turns
}

// TurnIndex 转向在Turns()中的下标
func (i *Intersection) TurnIndex(t entity.TurnID) (int, bool) {
	idx, ok := i.turnIndex[t]
	return idx, ok
}

// HasTurn 转向是否属于本路口
func (i *Intersection) HasTurn(t entity.TurnID) bool {
	_, ok := i.turnIndex[t]
	return ok
}

// Conflicts 两个转向是否冲突（对称）
func (i *Intersection) Conflicts(a, b entity.TurnID) bool {
	_, ok := i.conflicts[a][b]
	return ok
}

// ConflictingTurns 与t冲突的转向，按TurnID升序
func (i *Intersection) ConflictingTurns(t entity.TurnID) []entity.TurnID {
	out := make([]entity.TurnID, 0, len(i.conflicts[t]))
	for o := range i.conflicts[t] {
		out = append(out, o)
	}
	slices.SortFunc(out, entity.CompareTurnID)
	return out
}

// Signal 固定相位信号程序，非信号路口为nil
func (i *Intersection) Signal() *mapv2.TrafficLight {
	return i.signal
}

func (i *Intersection) addConflict(a, b entity.TurnID) {
	if a == b {
		return
	}
	if i.conflicts[a] == nil {
		i.conflicts[a] = make(map[entity.TurnID]struct{})
	}
	if i.conflicts[b] == nil {
		i.conflicts[b] = make(map[entity.TurnID]struct{})
	}
	i.conflicts[a][b] = struct{}{}
	i.conflicts[b][a] = struct{}{}
}

// buildSignal 将相位描述转换为信号程序
func (i *Intersection) buildSignal(phases []PhaseSpec) error {
	if len(phases) == 0 {
		return fmt.Errorf("signal intersection %d has no phases", i.id)
	}
	tl := &mapv2.TrafficLight{JunctionId: int32(i.id)}
	for pi, p := range phases {
		if p.Duration <= 0 {
			return fmt.Errorf("intersection %d phase %d: duration %v must be positive", i.id, pi, p.Duration)
		}
		states := make([]mapv2.LightState, len(i.turns))
		for k := range states {
			states[k] = mapv2.LightState_LIGHT_STATE_RED
		}
		set := func(refs []TurnRef, state mapv2.LightState) error {
			for _, r := range refs {
				t := entity.TurnID{Parent: i.id, Src: entity.LaneID(r.Src), Dst: entity.LaneID(r.Dst)}
				k, ok := i.turnIndex[t]
				if !ok {
					return fmt.Errorf("intersection %d phase %d: unknown %v", i.id, pi, t)
				}
				states[k] = state
			}
			return nil
		}
		if err := set(p.Green, mapv2.LightState_LIGHT_STATE_GREEN); err != nil {
			return err
		}
		if err := set(p.Yellow, mapv2.LightState_LIGHT_STATE_YELLOW); err != nil {
			return err
		}
		tl.Phases = append(tl.Phases, &mapv2.Phase{Duration: p.Duration, States: states})
	}
	i.signal = tl
	return nil
}
