package sim

import (
	"cmp"
	"fmt"
	"slices"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/roadmap"
	"github.com/mshenfield/abstreet/entity/trip"
)

// GetAllDrawCars 行驶中与停放的车辆，按车辆ID升序
func (s *Sim) GetAllDrawCars() []entity.DrawCarInput {
	out := append(s.driving.GetAllDrawCars(), s.parking.GetAllDrawCars()...)
	slices.SortFunc(out, func(a, b entity.DrawCarInput) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// GetDrawCarsOn 路段上的车辆，停车车道由停车状态回答
func (s *Sim) GetDrawCarsOn(on entity.Traversable) []entity.DrawCarInput {
	if on.IsLane() && s.m.Lane(on.Lane).Type() == roadmap.LaneTypeParking {
		return s.parking.GetDrawCars(on.Lane)
	}
	return s.driving.GetDrawCarsOn(on)
}

// GetAllDrawPeds 所有步行中的行人
func (s *Sim) GetAllDrawPeds() []entity.DrawPedestrianInput {
	return s.walking.GetAllDrawPeds()
}

// GetDrawPedsOn 路段上的行人
func (s *Sim) GetDrawPedsOn(on entity.Traversable) []entity.DrawPedestrianInput {
	return s.walking.GetDrawPedsOn(on)
}

// GetFreeSpots 车道上的空闲车位
func (s *Sim) GetFreeSpots(lane entity.LaneID) []entity.ParkingSpot {
	return s.parking.GetFreeSpots(lane)
}

// SpotToDrivingPos 车位对应的行车道位置
func (s *Sim) SpotToDrivingPos(spot entity.ParkingSpot, vehicle entity.Vehicle) entity.Position {
	return s.parking.SpotToDrivingPos(spot, vehicle, s.m.Lane(spot.Lane).DrivingLane())
}

// SpotToSidewalkPos 车位对应的人行道位置
func (s *Sim) SpotToSidewalkPos(spot entity.ParkingSpot) entity.SidewalkSpot {
	return s.parking.SpotToSidewalkPos(spot)
}

// AgentToTrip 路网中智能体所属的行程
func (s *Sim) AgentToTrip(agent entity.AgentID) (entity.TripID, bool) {
	return s.trips.AgentToTrip(agent)
}

// TripToAgent 行程当前的智能体
func (s *Sim) TripToAgent(id entity.TripID) entity.TripResult {
	return s.trips.TripToAgent(id)
}

// TripState 行程状态与当前段序号
func (s *Sim) TripState(id entity.TripID) (trip.State, int, bool) {
	return s.trips.State(id)
}

// TraceRoute 智能体剩余路线，智能体不在路网中时返回nil
func (s *Sim) TraceRoute(agent entity.AgentID) []geometry.Point {
	var pts []geometry.Point
	var ok bool
	switch agent.Kind {
	case entity.AgentKindCar:
		pts, ok = s.driving.TraceRoute(entity.CarID(agent.ID))
	case entity.AgentKindPedestrian:
		pts, ok = s.walking.TraceRoute(entity.PedestrianID(agent.ID))
	}
	if !ok {
		return nil
	}
	return pts
}

// DrainTripEvents 取出并清空累积的行程事件
func (s *Sim) DrainTripEvents() []entity.TripEvent {
	return s.trips.DrainEvents()
}

// Unfinished 尚未结束的行程数
func (s *Sim) Unfinished() int {
	return s.trips.Unfinished()
}

// Summary 当前状态概要
func (s *Sim) Summary() string {
	cars, carsPending := s.driving.Count()
	peds, pedsPending := s.walking.Count()
	trips := s.trips.CountByState()
	spots := s.parking.CountByState()
	return fmt.Sprintf(
		"t=%.1f cars=%d(+%d) peds=%d(+%d) parked=%d reserved=%d trips: %d done, %d aborted, %d unfinished",
		s.time, cars, carsPending, peds, pedsPending,
		spots[entity.SpotOccupied], spots[entity.SpotReserved],
		trips[trip.StateDone], trips[trip.StateAborted], s.trips.Unfinished(),
	)
}
