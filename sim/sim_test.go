package sim_test

import (
	"testing"

	"github.com/mshenfield/abstreet/entity"
	fx "github.com/mshenfield/abstreet/entity/roadmap/roadmaptest"
	"github.com/mshenfield/abstreet/entity/trip"
	"github.com/mshenfield/abstreet/sim"
	"github.com/mshenfield/abstreet/utils/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSim(control string, rc *config.RuntimeConfig) *sim.Sim {
	return sim.New(fx.MustCross(control), rc)
}

// run 推进n步，每步检查不变量
func run(t *testing.T, s *sim.Sim, n int, each func()) {
	for i := 0; i < n; i++ {
		s.StepIfNeeded(s.Time() + 1)
		s.Validate()
		if each != nil {
			each()
		}
	}
}

func eastSidewalk(dist float64) entity.SidewalkSpot {
	return entity.SidewalkSpot{Sidewalk: fx.SidewalkEast, Dist: dist}
}

func alongEast(forward bool) entity.WalkPath {
	return entity.WalkPath{Steps: []entity.WalkStep{{On: entity.OnLane(fx.SidewalkEast), Forward: forward}}}
}

// compress 去掉连续重复
func compress(results []entity.TripResult) []entity.TripResult {
	out := make([]entity.TripResult, 0)
	for _, r := range results {
		if len(out) == 0 || out[len(out)-1] != r {
			out = append(out, r)
		}
	}
	return out
}

func TestDriveParkWalk(t *testing.T) {
	s := newSim("uncontrolled", config.DefaultRuntimeConfig())
	spot := entity.ParkingSpot{Lane: fx.LaneParking, Idx: 3}
	free := len(s.GetFreeSpots(fx.LaneParking))

	drive := entity.DriveLeg(entity.DefaultVehicle(1), entity.Router{Path: fx.EastRoute(), Goal: entity.ParkAtSpot(spot)}, 40)
	walk := entity.WalkLeg(s.SpotToSidewalkPos(spot), eastSidewalk(80), alongEast(true))
	require.NoError(t, s.ReserveSpot(spot))
	id, err := s.SpawnTrip(entity.TripSpec{Start: 0, Legs: []entity.TripLeg{drive, walk}})
	require.NoError(t, err)
	assert.Len(t, s.GetFreeSpots(fx.LaneParking), free-1)
	assert.Equal(t, entity.TripResultDoesntExist, s.TripToAgent(id).Kind)

	results := make([]entity.TripResult, 0)
	run(t, s, 120, func() {
		results = append(results, s.TripToAgent(id))
		assert.NotContains(t, s.GetFreeSpots(fx.LaneParking), spot)
		assert.Len(t, s.GetFreeSpots(fx.LaneParking), free-1)
	})
	seq := compress(results)
	require.Len(t, seq, 4)
	assert.Equal(t, entity.TripResult{Kind: entity.TripResultOk, Agent: entity.CarAgent(1)}, seq[0])
	assert.Equal(t, entity.TripResultModeChange, seq[1].Kind)
	assert.Equal(t, entity.TripResultOk, seq[2].Kind)
	assert.Equal(t, entity.AgentKindPedestrian, seq[2].Agent.Kind)
	assert.Equal(t, entity.TripResultDone, seq[3].Kind)

	state, leg, ok := s.TripState(id)
	require.True(t, ok)
	assert.Equal(t, trip.StateDone, state)
	assert.Equal(t, 1, leg)

	parked := s.GetDrawCarsOn(entity.OnLane(fx.LaneParking))
	require.Len(t, parked, 1)
	assert.Equal(t, entity.CarID(1), parked[0].ID)
	assert.Equal(t, entity.CarParked, parked[0].Status)
	assert.Len(t, s.GetAllDrawCars(), 1)
	assert.Empty(t, s.GetAllDrawPeds())

	kinds := lo.Map(s.DrainTripEvents(), func(e entity.TripEvent, _ int) entity.TripEventKind { return e.Kind })
	assert.Equal(t, []entity.TripEventKind{
		entity.TripEventStarted, entity.TripEventLegStarted, entity.TripEventLegDone,
		entity.TripEventLegStarted, entity.TripEventLegDone, entity.TripEventDone,
	}, kinds)
}

func TestWalkToCarAndDrive(t *testing.T) {
	s := newSim("uncontrolled", config.DefaultRuntimeConfig())
	spot := entity.ParkingSpot{Lane: fx.LaneParking, Idx: 1}
	require.NoError(t, s.SeedParkedCar(entity.DefaultVehicle(9), spot))
	free := len(s.GetFreeSpots(fx.LaneParking))

	walk := entity.WalkLeg(eastSidewalk(40), s.SpotToSidewalkPos(spot), alongEast(false))
	drive := entity.DriveFromSpotLeg(entity.DefaultVehicle(9), spot, entity.Router{
		Path: []entity.Traversable{entity.OnLane(fx.LaneEastOut)},
		Goal: entity.EndAt(85),
	})
	id, err := s.SpawnTrip(entity.TripSpec{Start: 2, Legs: []entity.TripLeg{walk, drive}})
	require.NoError(t, err)

	sawCar := false
	run(t, s, 80, func() {
		if r := s.TripToAgent(id); r.Kind == entity.TripResultOk && r.Agent == entity.CarAgent(9) {
			sawCar = true
			assert.NotNil(t, s.TraceRoute(r.Agent))
		}
	})
	assert.True(t, sawCar)
	assert.Equal(t, entity.TripResultDone, s.TripToAgent(id).Kind)
	// 车辆离开后车位恢复空闲
	assert.Len(t, s.GetFreeSpots(fx.LaneParking), free+1)
	assert.Empty(t, s.GetAllDrawCars())
	assert.Nil(t, s.TraceRoute(entity.CarAgent(9)))
	assert.Zero(t, s.Unfinished())
}

func TestLeaveSpotOnActivation(t *testing.T) {
	s := newSim("uncontrolled", config.DefaultRuntimeConfig())
	spot := entity.ParkingSpot{Lane: fx.LaneParking, Idx: 1}
	require.NoError(t, s.SeedParkedCar(entity.DefaultVehicle(9), spot))

	id, err := s.SpawnTrip(entity.TripSpec{Start: 10, Legs: []entity.TripLeg{
		entity.DriveFromSpotLeg(entity.DefaultVehicle(9), spot, entity.Router{
			Path: []entity.Traversable{entity.OnLane(fx.LaneEastOut)}, Goal: entity.EndAt(85),
		}),
	}})
	require.NoError(t, err)

	// 出发前车辆仍停在车位上
	checkParked := func() {
		assert.NotContains(t, s.GetFreeSpots(fx.LaneParking), spot)
		assert.Error(t, s.ReserveSpot(spot))
		cars := s.GetDrawCarsOn(entity.OnLane(fx.LaneParking))
		require.Len(t, cars, 1)
		assert.Equal(t, entity.CarID(9), cars[0].ID)
		assert.Equal(t, entity.CarParked, cars[0].Status)
		assert.Equal(t, entity.TripResultDoesntExist, s.TripToAgent(id).Kind)
	}
	checkParked()
	run(t, s, 9, checkParked)

	started := false
	run(t, s, 10, func() {
		if s.TripToAgent(id).Kind != entity.TripResultOk {
			return
		}
		started = true
		assert.Contains(t, s.GetFreeSpots(fx.LaneParking), spot)
		cars := lo.Filter(s.GetAllDrawCars(), func(c entity.DrawCarInput, _ int) bool { return c.ID == 9 })
		require.Len(t, cars, 1)
		assert.NotEqual(t, entity.CarParked, cars[0].Status)
	})
	assert.True(t, started)
}

func TestNoFreeSpot(t *testing.T) {
	rc := config.DefaultRuntimeConfig()
	rc.ParkingPolicy = config.ParkingAbort
	s := newSim("uncontrolled", rc)
	for i := 0; i < 11; i++ {
		require.NoError(t, s.SeedParkedCar(entity.DefaultVehicle(entity.CarID(100+i)), entity.ParkingSpot{Lane: fx.LaneParking, Idx: i}))
	}
	require.Empty(t, s.GetFreeSpots(fx.LaneParking))

	id, err := s.SpawnCar(entity.DefaultVehicle(1), entity.Router{Path: fx.EastRoute(), Goal: entity.ParkOnLane(fx.LaneParking)}, 0, 40)
	require.NoError(t, err)
	run(t, s, 60, nil)

	state, _, _ := s.TripState(id)
	assert.Equal(t, trip.StateAborted, state)
	assert.Equal(t, entity.TripResultDone, s.TripToAgent(id).Kind)
	events := s.DrainTripEvents()
	assert.Equal(t, entity.TripEventAborted, events[len(events)-1].Kind)
	assert.Contains(t, events[len(events)-1].Reason, "no free parking spot")
}

func TestSpawnErrors(t *testing.T) {
	s := newSim("uncontrolled", config.DefaultRuntimeConfig())
	// 容量为0的车道没有车位
	assert.Empty(t, s.GetFreeSpots(fx.LaneTinyParking))
	assert.Error(t, s.SeedParkedCar(entity.DefaultVehicle(1), entity.ParkingSpot{Lane: fx.LaneTinyParking, Idx: 0}))

	spot := entity.ParkingSpot{Lane: fx.LaneParking, Idx: 0}
	require.NoError(t, s.SeedParkedCar(entity.DefaultVehicle(1), spot))
	assert.Error(t, s.SeedParkedCar(entity.DefaultVehicle(2), spot))
	assert.Error(t, s.SeedParkedCar(entity.DefaultVehicle(1), entity.ParkingSpot{Lane: fx.LaneParking, Idx: 1}))

	// 目标车位已被占用，行程立即放弃
	id, err := s.SpawnCar(entity.DefaultVehicle(3), entity.Router{Path: fx.EastRoute(), Goal: entity.ParkAtSpot(spot)}, 0, 40)
	assert.ErrorIs(t, err, sim.ErrLegSpawn)
	state, _, _ := s.TripState(id)
	assert.Equal(t, trip.StateAborted, state)

	// 目标车位未预留
	target := entity.ParkingSpot{Lane: fx.LaneParking, Idx: 5}
	_, err = s.SpawnCar(entity.DefaultVehicle(5), entity.Router{Path: fx.EastRoute(), Goal: entity.ParkAtSpot(target)}, 0, 40)
	assert.ErrorIs(t, err, sim.ErrLegSpawn)
	assert.Contains(t, s.GetFreeSpots(fx.LaneParking), target)

	require.NoError(t, s.ReserveSpot(target))
	assert.Error(t, s.ReserveSpot(target))
	assert.Error(t, s.ReserveSpot(spot))
	assert.NotContains(t, s.GetFreeSpots(fx.LaneParking), target)
	// 出发失败时释放预留
	_, err = s.SpawnCar(entity.DefaultVehicle(5), entity.Router{Path: fx.NorthRoute(), Goal: entity.ParkAtSpot(target)}, 0, 40)
	assert.ErrorIs(t, err, sim.ErrLegSpawn)
	assert.Contains(t, s.GetFreeSpots(fx.LaneParking), target)
	assert.Error(t, s.UnreserveSpot(target))

	// 已有车辆驶向的车位不能取消预留
	require.NoError(t, s.ReserveSpot(target))
	_, err = s.SpawnCar(entity.DefaultVehicle(6), entity.Router{Path: fx.EastRoute(), Goal: entity.ParkAtSpot(target)}, 0, 40)
	require.NoError(t, err)
	assert.Error(t, s.UnreserveSpot(target))
	// 同一车位不能作为两辆车的目的地
	_, err = s.SpawnCar(entity.DefaultVehicle(7), entity.Router{Path: fx.EastRoute(), Goal: entity.ParkAtSpot(target)}, 0, 20)
	assert.ErrorIs(t, err, sim.ErrLegSpawn)

	other := entity.ParkingSpot{Lane: fx.LaneParking, Idx: 6}
	require.NoError(t, s.ReserveSpot(other))
	require.NoError(t, s.UnreserveSpot(other))
	assert.Contains(t, s.GetFreeSpots(fx.LaneParking), other)
	assert.Error(t, s.ReserveSpot(entity.ParkingSpot{Lane: fx.LaneParking, Idx: 11}))

	// 车位上不是这辆车
	_, err = s.SpawnTrip(entity.TripSpec{Legs: []entity.TripLeg{
		entity.DriveFromSpotLeg(entity.DefaultVehicle(4), spot, entity.Router{
			Path: []entity.Traversable{entity.OnLane(fx.LaneEastOut)}, Goal: entity.EndAt(85),
		}),
	}})
	assert.Error(t, err)
}

func TestIdempotentStep(t *testing.T) {
	s := newSim("signal", config.DefaultRuntimeConfig())
	_, err := s.SpawnCar(entity.DefaultVehicle(1), entity.Router{Path: fx.EastRoute(), Goal: entity.EndAt(80)}, 0, 40)
	require.NoError(t, err)
	run(t, s, 3, nil)
	before, summary := s.GetAllDrawCars(), s.Summary()
	s.StepIfNeeded(s.Time())
	s.StepIfNeeded(s.Time() - 1)
	assert.Equal(t, before, s.GetAllDrawCars())
	assert.Equal(t, summary, s.Summary())
}

func TestDeterminism(t *testing.T) {
	scenario := func() *sim.Sim {
		rc := config.DefaultRuntimeConfig()
		rc.SpeedNoise = 0.2
		rc.WalkingSpeedNoise = 0.2
		s := newSim("signal", rc)
		for i := 0; i < 4; i++ {
			_, err := s.SpawnCar(entity.DefaultVehicle(entity.CarID(i+1)),
				entity.Router{Path: fx.EastRoute(), Goal: entity.EndAt(80)}, float64(i*3), 20)
			require.NoError(t, err)
			_, err = s.SpawnCar(entity.DefaultVehicle(entity.CarID(i+11)),
				entity.Router{Path: fx.NorthRoute(), Goal: entity.EndAt(80)}, float64(i*3), 20)
			require.NoError(t, err)
		}
		_, err := s.SpawnPed(1, entity.SidewalkSpot{Sidewalk: fx.SidewalkWest, Dist: 60}, eastSidewalk(20), fx.CrosswalkPath(), 0)
		require.NoError(t, err)
		return s
	}
	a, b := scenario(), scenario()
	for i := 0; i < 90; i++ {
		a.StepIfNeeded(float64(i + 1))
		b.StepIfNeeded(float64(i + 1))
		require.Equal(t, a.GetAllDrawCars(), b.GetAllDrawCars())
		require.Equal(t, a.GetAllDrawPeds(), b.GetAllDrawPeds())
	}
	assert.Equal(t, a.DrainTripEvents(), b.DrainTripEvents())
}
