package parking

import (
	"cmp"
	"slices"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/roadmap"
	"github.com/samber/lo"
)

// spot 单个车位的运行时状态
type spot struct {
	state entity.SpotState
	car   *entity.ParkedCar // 仅state为SpotOccupied时非空
}

// Manager 停车状态（ParkingSimState）
// 功能：按车道维护车位的空闲/预留/占用状态，是车位状态唯一的写入方
// 说明：预留先于占用，防止两辆车同时以同一个空车位为目标
type Manager struct {
	m     *roadmap.Map
	lanes map[entity.LaneID][]spot
	cars  map[entity.CarID]entity.ParkingSpot
}

// NewManager 根据地图中所有停车车道的容量创建车位
func NewManager(m *roadmap.Map) *Manager {
	mgr := &Manager{
		m:     m,
		lanes: make(map[entity.LaneID][]spot),
		cars:  make(map[entity.CarID]entity.ParkingSpot),
	}
	for _, id := range m.Lanes() {
		if c := m.ParkingCapacity(id); c > 0 {
			mgr.lanes[id] = make([]spot, c)
		}
	}
	log.Debugf("parking: %d lanes with spots", len(mgr.lanes))
	return mgr
}

func (mgr *Manager) get(s entity.ParkingSpot) *spot {
	spots, ok := mgr.lanes[s.Lane]
	if !ok || s.Idx < 0 || s.Idx >= len(spots) {
		log.Panicf("parking: %v does not exist", s)
	}
	return &spots[s.Idx]
}

// GetFreeSpots 车道上既未预留也未占用的车位，按序号升序
// 说明：非停车车道或容量为0的车道返回空序列
func (mgr *Manager) GetFreeSpots(lane entity.LaneID) []entity.ParkingSpot {
	if _, err := mgr.m.LaneOrError(lane); err != nil {
		log.Panicf("parking: get free spots: %v", err)
	}
	out := make([]entity.ParkingSpot, 0)
	for i, s := range mgr.lanes[lane] {
		if s.state == entity.SpotFree {
			out = append(out, entity.ParkingSpot{Lane: lane, Idx: i})
		}
	}
	return out
}

// SpotState 车位状态
func (mgr *Manager) SpotState(s entity.ParkingSpot) entity.SpotState {
	return mgr.get(s).state
}

// ReserveSpot 预留车位，已预留或已占用时panic
func (mgr *Manager) ReserveSpot(s entity.ParkingSpot) {
	sp := mgr.get(s)
	if sp.state != entity.SpotFree {
		log.Panicf("parking: reserve %v which is already %v", s, sp.state)
	}
	sp.state = entity.SpotReserved
}

// UnreserveSpot 取消预留，车位必须处于预留状态
func (mgr *Manager) UnreserveSpot(s entity.ParkingSpot) {
	sp := mgr.get(s)
	if sp.state != entity.SpotReserved {
		log.Panicf("parking: unreserve %v which is %v", s, sp.state)
	}
	sp.state = entity.SpotFree
}

// AddParkedCar 预留车位转为占用并绑定车辆
// 说明：车位未预留、已被占用或车辆已停在别处都会panic
func (mgr *Manager) AddParkedCar(p entity.ParkedCar) {
	sp := mgr.get(p.Spot)
	if sp.state != entity.SpotReserved {
		log.Panicf("parking: add %v at %v which is %v, not reserved", p.Vehicle.ID, p.Spot, sp.state)
	}
	if other, ok := mgr.cars[p.Vehicle.ID]; ok {
		log.Panicf("parking: car %d is already parked at %v", p.Vehicle.ID, other)
	}
	car := p
	sp.state = entity.SpotOccupied
	sp.car = &car
	mgr.cars[p.Vehicle.ID] = p.Spot
	log.Debugf("parking: car %d parked at %v", p.Vehicle.ID, p.Spot)
}

// RemoveParkedCar 车辆离开车位，车位恢复空闲
func (mgr *Manager) RemoveParkedCar(p entity.ParkedCar) {
	sp := mgr.get(p.Spot)
	if sp.state != entity.SpotOccupied || sp.car.Vehicle.ID != p.Vehicle.ID {
		log.Panicf("parking: remove car %d from %v which is %v", p.Vehicle.ID, p.Spot, sp.state)
	}
	sp.state = entity.SpotFree
	sp.car = nil
	delete(mgr.cars, p.Vehicle.ID)
}

// CarAt 车位上停放的车辆
func (mgr *Manager) CarAt(s entity.ParkingSpot) (entity.ParkedCar, bool) {
	sp := mgr.get(s)
	if sp.car == nil {
		return entity.ParkedCar{}, false
	}
	return *sp.car, true
}

// LookupCar 车辆停放的车位
func (mgr *Manager) LookupCar(id entity.CarID) (entity.ParkedCar, bool) {
	s, ok := mgr.cars[id]
	if !ok {
		return entity.ParkedCar{}, false
	}
	return *mgr.get(s).car, true
}

// GetParkedCars 车道上的停放车辆，按车位序号升序
func (mgr *Manager) GetParkedCars(lane entity.LaneID) []entity.ParkedCar {
	out := make([]entity.ParkedCar, 0)
	for _, s := range mgr.lanes[lane] {
		if s.car != nil {
			out = append(out, *s.car)
		}
	}
	return out
}

// GetAllParkedCars 所有停放车辆，按车辆ID升序
func (mgr *Manager) GetAllParkedCars() []entity.ParkedCar {
	ids := lo.Keys(mgr.cars)
	slices.Sort(ids)
	return lo.Map(ids, func(id entity.CarID, _ int) entity.ParkedCar {
		return *mgr.get(mgr.cars[id]).car
	})
}

// CountByState 统计各状态车位数量
func (mgr *Manager) CountByState() map[entity.SpotState]int {
	out := map[entity.SpotState]int{}
	for _, spots := range mgr.lanes {
		for _, s := range spots {
			out[s.state]++
		}
	}
	return out
}

// spotDist 车位前端在停车车道上的位置
func spotDist(s entity.ParkingSpot) float64 {
	return float64(s.Idx+1) * roadmap.ParkingSpotLength
}

// SpotToDrivingPos 车位对应的行车道位置（车头），纯几何查询
// 说明：按比例投影到行车道，并保证车身完整落在行车道上
func (mgr *Manager) SpotToDrivingPos(
	s entity.ParkingSpot, vehicle entity.Vehicle, drivingLane entity.LaneID,
) entity.Position {
	parking := mgr.m.Lane(s.Lane)
	driving := mgr.m.Lane(drivingLane)
	if driving.Type() != roadmap.LaneTypeDriving {
		log.Panicf("parking: %v is not a driving lane", driving)
	}
	dist := driving.ProjectFromLane(parking, spotDist(s))
	dist = min(max(dist, vehicle.Length), driving.Length())
	return entity.Position{On: entity.OnLane(drivingLane), Dist: dist}
}

// SpotToSidewalkPos 车位对应的人行道位置（车位中点的投影）
func (mgr *Manager) SpotToSidewalkPos(s entity.ParkingSpot) entity.SidewalkSpot {
	parking := mgr.m.Lane(s.Lane)
	sidewalk := mgr.m.Lane(parking.Sidewalk())
	dist := sidewalk.ProjectFromLane(parking, spotDist(s)-roadmap.ParkingSpotLength/2)
	spot := s
	return entity.SidewalkSpot{Sidewalk: sidewalk.ID(), Dist: dist, Spot: &spot}
}

func (mgr *Manager) drawCar(p entity.ParkedCar) entity.DrawCarInput {
	lane := mgr.m.Lane(p.Spot.Lane)
	front := spotDist(p.Spot)
	back := front - roadmap.ParkingSpotLength
	// 车身在车位内居中
	pad := max(roadmap.ParkingSpotLength-p.Vehicle.Length, 0) / 2
	return entity.DrawCarInput{
		ID:      p.Vehicle.ID,
		On:      entity.OnLane(p.Spot.Lane),
		Front:   lane.PositionAt(front - pad),
		Heading: lane.DirectionAt(front - pad),
		Body:    mgr.m.Slice(entity.OnLane(p.Spot.Lane), back+pad, front-pad),
		Length:  p.Vehicle.Length,
		Status:  entity.CarParked,
	}
}

// GetDrawCars 车道上停放车辆的绘制数据
func (mgr *Manager) GetDrawCars(lane entity.LaneID) []entity.DrawCarInput {
	return lo.Map(mgr.GetParkedCars(lane), func(p entity.ParkedCar, _ int) entity.DrawCarInput {
		return mgr.drawCar(p)
	})
}

// GetAllDrawCars 所有停放车辆的绘制数据，按车辆ID升序
func (mgr *Manager) GetAllDrawCars() []entity.DrawCarInput {
	out := parallel.GoMap(mgr.GetAllParkedCars(), mgr.drawCar)
	slices.SortFunc(out, func(a, b entity.DrawCarInput) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
