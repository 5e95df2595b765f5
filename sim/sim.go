package sim

import (
	"errors"
	"fmt"

	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/driving"
	"github.com/mshenfield/abstreet/entity/junction"
	"github.com/mshenfield/abstreet/entity/parking"
	"github.com/mshenfield/abstreet/entity/roadmap"
	"github.com/mshenfield/abstreet/entity/trip"
	"github.com/mshenfield/abstreet/entity/walking"
	"github.com/mshenfield/abstreet/utils/config"
)

// ErrLegSpawn 首段无法出发，行程已记为放弃
var ErrLegSpawn = errors.New("first leg cannot start")

// Sim 仿真核心
// 功能：持有全部状态，按固定顺序推进信号、车辆与行人，并把出行段事件转交给行程管理
// 说明：停车与路口状态只在推进时以接口形式依次借给Driving与Walking
type Sim struct {
	m  *roadmap.Map
	rc *config.RuntimeConfig

	parking   *parking.Manager
	junctions *junction.Manager
	driving   *driving.Manager
	walking   *walking.Manager
	trips     *trip.Manager

	time float64
}

// New 创建仿真，起始时间为配置的起始步
func New(m *roadmap.Map, rc *config.RuntimeConfig) *Sim {
	start := float64(rc.C.Step.Start) * rc.C.Step.Interval
	s := &Sim{
		m:         m,
		rc:        rc,
		parking:   parking.NewManager(m),
		junctions: junction.NewManager(m, rc),
		driving:   driving.NewManager(m, rc, start),
		walking:   walking.NewManager(m, rc, start),
		trips:     trip.NewManager(),
		time:      start,
	}
	log.Infof("new sim at %v: %d lanes, %d intersections", start, len(m.Lanes()), len(m.Intersections()))
	return s
}

// Map 静态地图
func (s *Sim) Map() *roadmap.Map {
	return s.m
}

// Time 最近一次推进到的时间
func (s *Sim) Time() float64 {
	return s.time
}

// SeedParkedCar 在空闲车位上放置一辆停放车辆，用于初始化场景
func (s *Sim) SeedParkedCar(vehicle entity.Vehicle, spot entity.ParkingSpot) error {
	if err := vehicle.Validate(); err != nil {
		return err
	}
	if err := s.checkSpot(spot); err != nil {
		return err
	}
	if state := s.parking.SpotState(spot); state != entity.SpotFree {
		return fmt.Errorf("seed car %d: %v is %v", vehicle.ID, spot, state)
	}
	if other, ok := s.parking.LookupCar(vehicle.ID); ok {
		return fmt.Errorf("seed car %d: already parked at %v", vehicle.ID, other.Spot)
	}
	s.parking.ReserveSpot(spot)
	s.parking.AddParkedCar(entity.ParkedCar{Vehicle: vehicle, Spot: spot})
	return nil
}

// checkSpot 车位存在
func (s *Sim) checkSpot(spot entity.ParkingSpot) error {
	if _, err := s.m.LaneOrError(spot.Lane); err != nil {
		return err
	}
	if c := s.m.ParkingCapacity(spot.Lane); spot.Idx < 0 || spot.Idx >= c {
		return fmt.Errorf("%v does not exist, lane %d has %d spots", spot, spot.Lane, c)
	}
	return nil
}

// SpawnCar 加入一次单段驾驶出行
func (s *Sim) SpawnCar(vehicle entity.Vehicle, router entity.Router, startTime, startDist float64) (entity.TripID, error) {
	return s.SpawnTrip(entity.TripSpec{
		Start: startTime,
		Legs:  []entity.TripLeg{entity.DriveLeg(vehicle, router, startDist)},
	})
}

// SpawnPed 加入一次单段步行出行
func (s *Sim) SpawnPed(
	id entity.PedestrianID, start, goal entity.SidewalkSpot, path entity.WalkPath, startTime float64,
) (entity.TripID, error) {
	leg := entity.WalkLeg(start, goal, path)
	leg.Ped = id
	return s.SpawnTrip(entity.TripSpec{Start: startTime, Legs: []entity.TripLeg{leg}})
}

// SpawnTrip 加入一次多段出行，首段在出发时间交给Driving或Walking
// 说明：以车位为目的地的驾驶段需调用方事先ReserveSpot；首段无法出发时行程立即转为Aborted，
// 释放各段预留的车位，并返回error
func (s *Sim) SpawnTrip(spec entity.TripSpec) (entity.TripID, error) {
	id, agent, err := s.trips.NewTrip(spec)
	if err != nil {
		return 0, err
	}
	if err := s.spawnLeg(s.trips.Get(id).CurrentLeg(), spec.Start); err != nil {
		s.abort(agent, spec.Start, err.Error())
		return id, fmt.Errorf("trip %d: %w: %w", id, ErrLegSpawn, err)
	}
	return id, nil
}

// ReserveSpot 为之后出发的车辆预留目标车位
func (s *Sim) ReserveSpot(spot entity.ParkingSpot) error {
	if err := s.checkSpot(spot); err != nil {
		return err
	}
	if state := s.parking.SpotState(spot); state != entity.SpotFree {
		return fmt.Errorf("reserve %v: spot is %v", spot, state)
	}
	s.parking.ReserveSpot(spot)
	return nil
}

// UnreserveSpot 取消尚无车辆驶向的预留
func (s *Sim) UnreserveSpot(spot entity.ParkingSpot) error {
	if err := s.checkSpot(spot); err != nil {
		return err
	}
	if state := s.parking.SpotState(spot); state != entity.SpotReserved {
		return fmt.Errorf("unreserve %v: spot is %v", spot, state)
	}
	if car, ok := s.driving.TargetsSpot(spot); ok {
		return fmt.Errorf("unreserve %v: car %d is heading there", spot, car)
	}
	s.parking.UnreserveSpot(spot)
	return nil
}

// spawnLeg 把出行段交给对应的状态
// 算法说明：
// 1. 步行段直接加入Walking
// 2. 从停放车辆出发的驾驶段：校验车位上的车辆，起点由车位投影到行车道得到；车辆进入路网时才离开车位
// 3. 目的地为指定车位时该车位必须已预留
func (s *Sim) spawnLeg(leg entity.TripLeg, startTime float64) error {
	if leg.Mode == entity.LegWalk {
		return s.walking.SpawnPed(leg.Ped, leg.Start, leg.Goal, leg.Walk, startTime)
	}
	vehicle, startDist := leg.Vehicle, leg.StartDist
	if leg.FromSpot != nil {
		if err := s.checkSpot(*leg.FromSpot); err != nil {
			return err
		}
		p, ok := s.parking.CarAt(*leg.FromSpot)
		if !ok || p.Vehicle.ID != vehicle.ID {
			return fmt.Errorf("car %d is not parked at %v", vehicle.ID, *leg.FromSpot)
		}
		path := leg.Route.Path
		if len(path) == 0 || !path[0].IsLane() || s.m.Lane(p.Spot.Lane).DrivingLane() != path[0].Lane {
			return fmt.Errorf("car %d: path must start on the driving lane beside %v", vehicle.ID, p.Spot)
		}
		vehicle = p.Vehicle
		startDist = s.parking.SpotToDrivingPos(p.Spot, vehicle, path[0].Lane).Dist
	}
	if goal := leg.Route.Goal; goal.Kind == entity.GoalParkingSpot {
		if err := s.checkSpot(goal.Spot); err != nil {
			return err
		}
		if state := s.parking.SpotState(goal.Spot); state != entity.SpotReserved {
			return fmt.Errorf("car %d: target %v is %v, not reserved", vehicle.ID, goal.Spot, state)
		}
		if other, ok := s.driving.TargetsSpot(goal.Spot); ok {
			return fmt.Errorf("car %d: target %v is already taken by car %d", vehicle.ID, goal.Spot, other)
		}
	}
	return s.driving.SpawnCar(vehicle, leg.Route, startTime, startDist)
}

// abort 放弃行程，并释放尚未出发的各段预留的车位
func (s *Sim) abort(agent entity.AgentID, time float64, reason string) {
	legs := s.trips.RemainingLegs(agent)
	s.trips.AbortTrip(agent, time, reason)
	for _, l := range legs {
		if l.Mode != entity.LegDrive || l.Route.Goal.Kind != entity.GoalParkingSpot {
			continue
		}
		spot := l.Route.Goal.Spot
		if s.checkSpot(spot) != nil || s.parking.SpotState(spot) != entity.SpotReserved {
			continue
		}
		if _, ok := s.driving.TargetsSpot(spot); ok {
			continue
		}
		s.parking.UnreserveSpot(spot)
		log.Debugf("release %v of aborted %v", spot, agent)
	}
}

// unpark 从车位出发的车辆进入路网后离开车位
func (s *Sim) unpark(agent entity.AgentID) {
	id, ok := agent.Car()
	if !ok {
		return
	}
	leg := s.trips.RemainingLegs(agent)[0]
	if leg.FromSpot == nil {
		return
	}
	p, ok := s.parking.CarAt(*leg.FromSpot)
	if !ok || p.Vehicle.ID != id {
		log.Panicf("car %d started from %v but it is not parked there", id, *leg.FromSpot)
	}
	s.parking.RemoveParkedCar(p)
}

// StepIfNeeded 推进到time，time不晚于上次推进的时间时不做任何事
// 算法说明：
// 1. 推进并发布信号灯状态
// 2. Driving推进，借用停车与路口状态
// 3. Walking推进，借用路口状态
// 4. 按发生顺序把事件交给行程管理，结束的出行段衔接下一段（下一步开始）
func (s *Sim) StepIfNeeded(time float64) {
	if time <= s.time {
		return
	}
	dt := time - s.time
	s.time = time

	s.junctions.Update(dt)
	s.junctions.Prepare()
	events := s.driving.StepIfNeeded(time, s.parking, s.junctions)
	events = append(events, s.walking.StepIfNeeded(time, s.junctions)...)
	for _, e := range events {
		s.handle(e)
	}
}

// handle 处理单个出行段事件
func (s *Sim) handle(e entity.Event) {
	switch e.Kind {
	case entity.EventAgentStarted:
		s.trips.AgentStarted(e.Agent, e.Time)
		s.unpark(e.Agent)
	case entity.EventAgentAborted:
		s.abort(e.Agent, e.Time, e.Reason)
	case entity.EventCarParked, entity.EventCarReachedEnd, entity.EventPedReachedSpot, entity.EventPedReachedEnd:
		next, ok := s.trips.LegFinished(e.Agent, e.Time)
		if !ok {
			return
		}
		if e.Kind == entity.EventCarParked && next.Mode == entity.LegWalk {
			// 沿车道找到的车位事先未知，步行段从实际车位出发
			if from := s.parking.SpotToSidewalkPos(e.Spot); from.Sidewalk == next.Start.Sidewalk {
				next.Start = from
			}
		}
		if err := s.spawnLeg(next, e.Time); err != nil {
			s.abort(next.Agent(), e.Time, err.Error())
		}
	default:
		log.Panicf("bad event %v", e)
	}
}

// Validate 检查各状态的不变量，违反时panic
func (s *Sim) Validate() {
	s.driving.Validate()
	s.walking.Validate()
	s.junctions.Validate()
}
