package parking_test

import (
	"testing"

	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/parking"
	fx "github.com/mshenfield/abstreet/entity/roadmap/roadmaptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *parking.Manager {
	return parking.NewManager(fx.MustCross("uncontrolled"))
}

func TestFreeSpots(t *testing.T) {
	mgr := newManager()
	free := mgr.GetFreeSpots(fx.LaneParking)
	require.Len(t, free, 11)
	for i, s := range free {
		assert.Equal(t, entity.ParkingSpot{Lane: fx.LaneParking, Idx: i}, s)
	}
	// 容量为0或非停车车道返回空序列
	assert.Empty(t, mgr.GetFreeSpots(fx.LaneTinyParking))
	assert.Empty(t, mgr.GetFreeSpots(fx.LaneEastIn))
	assert.Panics(t, func() { mgr.GetFreeSpots(99) })
}

func TestReserveAndPark(t *testing.T) {
	mgr := newManager()
	s := entity.ParkingSpot{Lane: fx.LaneParking, Idx: 3}
	car := entity.ParkedCar{Vehicle: entity.DefaultVehicle(7), Spot: s}

	// 未预留不能停入
	assert.Panics(t, func() { mgr.AddParkedCar(car) })

	mgr.ReserveSpot(s)
	assert.Equal(t, entity.SpotReserved, mgr.SpotState(s))
	assert.Len(t, mgr.GetFreeSpots(fx.LaneParking), 10)
	assert.NotContains(t, mgr.GetFreeSpots(fx.LaneParking), s)
	// 重复预留
	assert.Panics(t, func() { mgr.ReserveSpot(s) })

	mgr.AddParkedCar(car)
	assert.Equal(t, entity.SpotOccupied, mgr.SpotState(s))
	assert.Len(t, mgr.GetFreeSpots(fx.LaneParking), 10)
	// 占用后不能再预留或停入
	assert.Panics(t, func() { mgr.ReserveSpot(s) })
	assert.Panics(t, func() { mgr.AddParkedCar(car) })

	got, ok := mgr.CarAt(s)
	require.True(t, ok)
	assert.Equal(t, entity.CarID(7), got.Vehicle.ID)
	got, ok = mgr.LookupCar(7)
	require.True(t, ok)
	assert.Equal(t, s, got.Spot)
	assert.Len(t, mgr.GetParkedCars(fx.LaneParking), 1)

	// 同一辆车不能同时停在两个车位
	other := entity.ParkingSpot{Lane: fx.LaneParking, Idx: 4}
	mgr.ReserveSpot(other)
	assert.Panics(t, func() { mgr.AddParkedCar(entity.ParkedCar{Vehicle: car.Vehicle, Spot: other}) })
	mgr.UnreserveSpot(other)
	assert.Equal(t, entity.SpotFree, mgr.SpotState(other))

	mgr.RemoveParkedCar(car)
	assert.Equal(t, entity.SpotFree, mgr.SpotState(s))
	_, ok = mgr.LookupCar(7)
	assert.False(t, ok)
	assert.Len(t, mgr.GetFreeSpots(fx.LaneParking), 11)
	assert.Panics(t, func() { mgr.RemoveParkedCar(car) })
}

func TestBadSpot(t *testing.T) {
	mgr := newManager()
	assert.Panics(t, func() { mgr.ReserveSpot(entity.ParkingSpot{Lane: fx.LaneParking, Idx: 11}) })
	assert.Panics(t, func() { mgr.ReserveSpot(entity.ParkingSpot{Lane: fx.LaneTinyParking, Idx: 0}) })
	assert.Panics(t, func() { mgr.UnreserveSpot(entity.ParkingSpot{Lane: fx.LaneParking, Idx: 0}) })
}

func TestCountByState(t *testing.T) {
	mgr := newManager()
	mgr.ReserveSpot(entity.ParkingSpot{Lane: fx.LaneParking, Idx: 0})
	mgr.ReserveSpot(entity.ParkingSpot{Lane: fx.LaneParking, Idx: 1})
	mgr.AddParkedCar(entity.ParkedCar{Vehicle: entity.DefaultVehicle(1), Spot: entity.ParkingSpot{Lane: fx.LaneParking, Idx: 1}})
	counts := mgr.CountByState()
	assert.Equal(t, 9, counts[entity.SpotFree])
	assert.Equal(t, 1, counts[entity.SpotReserved])
	assert.Equal(t, 1, counts[entity.SpotOccupied])
}

func TestSpotPositions(t *testing.T) {
	mgr := newManager()
	v := entity.DefaultVehicle(1)
	pos := mgr.SpotToDrivingPos(entity.ParkingSpot{Lane: fx.LaneParking, Idx: 2}, v, fx.LaneEastOut)
	assert.Equal(t, entity.OnLane(fx.LaneEastOut), pos.On)
	assert.InDelta(t, 24, pos.Dist, 1e-9)

	// 第一个车位的投影不足一个车长时向前调整
	pos = mgr.SpotToDrivingPos(entity.ParkingSpot{Lane: fx.LaneParking, Idx: 0}, entity.Vehicle{Length: 10}, fx.LaneEastOut)
	assert.InDelta(t, 10, pos.Dist, 1e-9)

	assert.Panics(t, func() {
		mgr.SpotToDrivingPos(entity.ParkingSpot{Lane: fx.LaneParking, Idx: 0}, v, fx.SidewalkEast)
	})

	sw := mgr.SpotToSidewalkPos(entity.ParkingSpot{Lane: fx.LaneParking, Idx: 2})
	assert.Equal(t, fx.SidewalkEast, sw.Sidewalk)
	assert.InDelta(t, 20, sw.Dist, 1e-9)
	require.NotNil(t, sw.Spot)
	assert.Equal(t, 2, sw.Spot.Idx)

	// 纯查询不改变状态
	assert.Len(t, mgr.GetFreeSpots(fx.LaneParking), 11)
}

func TestDrawParkedCars(t *testing.T) {
	mgr := newManager()
	for _, id := range []entity.CarID{5, 2} {
		s := entity.ParkingSpot{Lane: fx.LaneParking, Idx: int(id)}
		mgr.ReserveSpot(s)
		mgr.AddParkedCar(entity.ParkedCar{Vehicle: entity.DefaultVehicle(id), Spot: s})
	}
	all := mgr.GetAllDrawCars()
	require.Len(t, all, 2)
	assert.Equal(t, entity.CarID(2), all[0].ID)
	assert.Equal(t, entity.CarParked, all[0].Status)
	// 车位2: [16, 24]，5米车身居中 -> [17.5, 22.5]，车道起点x=10
	assert.InDelta(t, 32.5, all[0].Front.X, 1e-9)
	assert.InDelta(t, -3, all[0].Front.Y, 1e-9)
	require.Len(t, all[0].Body, 2)
	assert.InDelta(t, 27.5, all[0].Body[0].X, 1e-9)

	assert.Len(t, mgr.GetDrawCars(fx.LaneParking), 2)
	assert.Empty(t, mgr.GetDrawCars(fx.LaneEastOut))
}
