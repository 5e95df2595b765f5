package trip_test

import (
	"testing"

	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/trip"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vehicle(id entity.CarID) entity.Vehicle {
	return entity.DefaultVehicle(id)
}

var spot = entity.ParkingSpot{Lane: 5, Idx: 2}

// walk -> drive -> walk
func parkAndWalk(car entity.CarID) entity.TripSpec {
	walk := entity.WalkLeg(entity.SidewalkSpot{Sidewalk: 6}, entity.SidewalkSpot{Sidewalk: 6, Dist: 10, Spot: &spot}, entity.WalkPath{})
	drive := entity.DriveFromSpotLeg(vehicle(car), spot, entity.Router{Goal: entity.ParkOnLane(5)})
	back := entity.WalkLeg(entity.SidewalkSpot{Sidewalk: 6, Dist: 20}, entity.SidewalkSpot{Sidewalk: 6, Dist: 40}, entity.WalkPath{})
	return entity.TripSpec{Start: 0, Legs: []entity.TripLeg{walk, drive, back}}
}

func kinds(events []entity.TripEvent) []entity.TripEventKind {
	return lo.Map(events, func(e entity.TripEvent, _ int) entity.TripEventKind { return e.Kind })
}

func TestLifecycle(t *testing.T) {
	mgr := trip.NewManager()
	id, first, err := mgr.NewTrip(parkAndWalk(7))
	require.NoError(t, err)
	ped, ok := first.Ped()
	require.True(t, ok)

	assert.Equal(t, entity.TripResultDoesntExist, mgr.TripToAgent(id).Kind)
	_, ok = mgr.AgentToTrip(first)
	assert.False(t, ok)
	assert.Len(t, mgr.RemainingLegs(first), 3)

	mgr.AgentStarted(first, 1)
	assert.Equal(t, entity.TripResult{Kind: entity.TripResultOk, Agent: first}, mgr.TripToAgent(id))
	got, ok := mgr.AgentToTrip(first)
	require.True(t, ok)
	assert.Equal(t, id, got)

	next, ok := mgr.LegFinished(first, 10)
	require.True(t, ok)
	assert.Equal(t, entity.LegDrive, next.Mode)
	assert.Equal(t, entity.TripResultModeChange, mgr.TripToAgent(id).Kind)
	// 切换方式期间仍可查到尚未完成的各段
	remaining := mgr.RemainingLegs(entity.CarAgent(7))
	require.Len(t, remaining, 2)
	assert.Equal(t, next, remaining[0])
	_, ok = mgr.AgentToTrip(first)
	assert.False(t, ok)

	car := entity.CarAgent(7)
	mgr.AgentStarted(car, 11)
	assert.Equal(t, entity.TripResult{Kind: entity.TripResultOk, Agent: car}, mgr.TripToAgent(id))

	next, ok = mgr.LegFinished(car, 50)
	require.True(t, ok)
	assert.Equal(t, entity.LegWalk, next.Mode)
	assert.Equal(t, ped, next.Ped)

	mgr.AgentStarted(first, 51)
	state, leg, ok := mgr.State(id)
	require.True(t, ok)
	assert.Equal(t, trip.StateInProgress, state)
	assert.Equal(t, 2, leg)

	_, ok = mgr.LegFinished(first, 80)
	assert.False(t, ok)
	assert.Equal(t, entity.TripResultDone, mgr.TripToAgent(id).Kind)
	d, ok := mgr.Get(id).Duration()
	require.True(t, ok)
	assert.Equal(t, 79., d)
	assert.Zero(t, mgr.Unfinished())

	assert.Equal(t, []entity.TripEventKind{
		entity.TripEventStarted, entity.TripEventLegStarted, entity.TripEventLegDone,
		entity.TripEventLegStarted, entity.TripEventLegDone,
		entity.TripEventLegStarted, entity.TripEventLegDone, entity.TripEventDone,
	}, kinds(mgr.DrainEvents()))
	assert.Empty(t, mgr.DrainEvents())
}

func TestAbort(t *testing.T) {
	mgr := trip.NewManager()
	id, car, err := mgr.NewTrip(entity.TripSpec{Legs: []entity.TripLeg{
		entity.DriveLeg(vehicle(1), entity.Router{Goal: entity.ParkOnLane(5)}, 10),
	}})
	require.NoError(t, err)
	mgr.AgentStarted(car, 0)
	mgr.AbortTrip(car, 30, "no free parking spot")

	assert.Equal(t, entity.TripResultDone, mgr.TripToAgent(id).Kind)
	assert.Equal(t, "no free parking spot", mgr.Get(id).Reason())
	assert.Equal(t, map[trip.State]int{trip.StateAborted: 1}, mgr.CountByState())
	events := mgr.DrainEvents()
	assert.Equal(t, entity.TripEventAborted, events[len(events)-1].Kind)
	assert.Panics(t, func() { mgr.LegFinished(car, 31) })

	// 放弃后车辆ID可被新的行程使用
	_, _, err = mgr.NewTrip(entity.TripSpec{Legs: []entity.TripLeg{
		entity.DriveLeg(vehicle(1), entity.Router{Goal: entity.EndAt(10)}, 10),
	}})
	assert.NoError(t, err)
}

func TestPedAllocation(t *testing.T) {
	mgr := trip.NewManager()
	walk := func(ped entity.PedestrianID) entity.TripSpec {
		leg := entity.WalkLeg(entity.SidewalkSpot{Sidewalk: 6}, entity.SidewalkSpot{Sidewalk: 6, Dist: 5}, entity.WalkPath{})
		leg.Ped = ped
		return entity.TripSpec{Legs: []entity.TripLeg{leg}}
	}
	_, a, err := mgr.NewTrip(walk(1))
	require.NoError(t, err)
	assert.Equal(t, entity.PedAgent(1), a)

	_, b, err := mgr.NewTrip(walk(0))
	require.NoError(t, err)
	assert.Equal(t, entity.PedAgent(2), b)

	_, _, err = mgr.NewTrip(walk(2))
	assert.Error(t, err)
	assert.Equal(t, 2, mgr.Len())
}

func TestBadTrips(t *testing.T) {
	mgr := trip.NewManager()
	w := entity.WalkLeg(entity.SidewalkSpot{Sidewalk: 6}, entity.SidewalkSpot{Sidewalk: 6, Dist: 5}, entity.WalkPath{})
	d := entity.DriveLeg(vehicle(1), entity.Router{Goal: entity.ParkOnLane(5)}, 10)
	end := entity.DriveLeg(vehicle(1), entity.Router{Goal: entity.EndAt(10)}, 10)

	for name, legs := range map[string][]entity.TripLeg{
		"empty":          nil,
		"walk walk":      {w, w},
		"vanish":         {end, w},
		"drive not from": {w, d},
	} {
		_, _, err := mgr.NewTrip(entity.TripSpec{Legs: legs})
		assert.Error(t, err, name)
	}
	assert.Zero(t, mgr.Len())
	assert.Equal(t, entity.TripResultDoesntExist, mgr.TripToAgent(3).Kind)
	assert.Panics(t, func() { mgr.AgentStarted(entity.CarAgent(1), 0) })
}
