package entity

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
)

// EventKind Driving/Walking每步产生的事件
type EventKind int

const (
	EventAgentStarted   EventKind = iota // 智能体进入路网
	EventCarParked                       // 车辆停入车位
	EventCarReachedEnd                   // 车辆到达终点并离开
	EventPedReachedSpot                  // 行人到达停车位对应的人行道位置
	EventPedReachedEnd                   // 行人到达终点
	EventAgentAborted                    // 策略性放弃（如找不到车位）
)

func (k EventKind) String() string {
	switch k {
	case EventAgentStarted:
		return "started"
	case EventCarParked:
		return "car parked"
	case EventCarReachedEnd:
		return "car reached end"
	case EventPedReachedSpot:
		return "ped reached spot"
	case EventPedReachedEnd:
		return "ped reached end"
	case EventAgentAborted:
		return "aborted"
	default:
		panic(fmt.Sprintf("bad event kind %d", int(k)))
	}
}

// Event 行程段事件，交由Sim转发给TripManager
type Event struct {
	Kind   EventKind
	Agent  AgentID
	Time   float64
	Spot   ParkingSpot // EventCarParked/EventPedReachedSpot
	Reason string      // EventAgentAborted
}

func (e Event) String() string {
	return fmt.Sprintf("Event{%v %v t=%.2f}", e.Kind, e.Agent, e.Time)
}

// TripResultKind trip_to_agent查询结果类型
type TripResultKind int

const (
	TripResultOk          TripResultKind = iota // 当前智能体存在
	TripResultModeChange                        // 正在切换出行方式，智能体尚未出现
	TripResultDone                              // 已结束（完成或放弃）
	TripResultDoesntExist                       // 不存在或尚未开始
)

// TripResult trip_to_agent查询结果，只有Kind为TripResultOk时Agent有效
type TripResult struct {
	Kind  TripResultKind
	Agent AgentID
}

func (r TripResult) String() string {
	switch r.Kind {
	case TripResultOk:
		return fmt.Sprintf("Ok(%v)", r.Agent)
	case TripResultModeChange:
		return "ModeChange"
	case TripResultDone:
		return "TripDone"
	case TripResultDoesntExist:
		return "TripDoesntExist"
	default:
		panic(fmt.Sprintf("bad trip result kind %d", int(r.Kind)))
	}
}

// TripEventKind 行程状态变化，用于输出
type TripEventKind int

const (
	TripEventStarted TripEventKind = iota
	TripEventLegStarted
	TripEventLegDone
	TripEventDone
	TripEventAborted
)

func (k TripEventKind) String() string {
	switch k {
	case TripEventStarted:
		return "started"
	case TripEventLegStarted:
		return "leg_started"
	case TripEventLegDone:
		return "leg_done"
	case TripEventDone:
		return "done"
	case TripEventAborted:
		return "aborted"
	default:
		panic(fmt.Sprintf("bad trip event kind %d", int(k)))
	}
}

// TripEvent 一条行程状态变化记录
type TripEvent struct {
	Trip   TripID
	Kind   TripEventKind
	Time   float64
	Leg    int
	Mode   LegMode
	Agent  AgentID
	Reason string
}

// CarStatus 车辆绘制状态
type CarStatus int

const (
	CarMoving CarStatus = iota
	CarStuck            // 停止等待（前车或路口）
	CarParked
)

// DrawCarInput 渲染所需的车辆数据
type DrawCarInput struct {
	ID      CarID
	On      Traversable
	Front   geometry.Point
	Heading float64          // 弧度，atan2
	Body    []geometry.Point // 车尾到车头的折线（停车时为车位中线）
	Length  float64
	Speed   float64
	Status  CarStatus
}

// DrawPedestrianInput 渲染所需的行人数据
type DrawPedestrianInput struct {
	ID      PedestrianID
	On      Traversable
	Pos     geometry.Point
	Heading float64
	Waiting bool
}
