package walking_test

import (
	"math"
	"testing"

	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/junction"
	"github.com/mshenfield/abstreet/entity/roadmap"
	fx "github.com/mshenfield/abstreet/entity/roadmap/roadmaptest"
	"github.com/mshenfield/abstreet/entity/walking"
	"github.com/mshenfield/abstreet/utils/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type world struct {
	m   *roadmap.Map
	jm  *junction.Manager
	wm  *walking.Manager
	now float64
}

func newWorld(control string) *world {
	m := fx.MustCross(control)
	rc := config.DefaultRuntimeConfig()
	return &world{m: m, jm: junction.NewManager(m, rc), wm: walking.NewManager(m, rc, 0)}
}

func (w *world) step() []entity.Event {
	w.now++
	w.jm.Update(1)
	w.jm.Prepare()
	events := w.wm.StepIfNeeded(w.now, w.jm)
	w.wm.Validate()
	w.jm.Validate()
	return events
}

func (w *world) runUntil(n int, kind entity.EventKind) (entity.Event, bool) {
	for i := 0; i < n; i++ {
		for _, e := range w.step() {
			if e.Kind == kind {
				return e, true
			}
		}
	}
	return entity.Event{}, false
}

func west(dist float64) entity.SidewalkSpot {
	return entity.SidewalkSpot{Sidewalk: fx.SidewalkWest, Dist: dist}
}

func east(dist float64) entity.SidewalkSpot {
	return entity.SidewalkSpot{Sidewalk: fx.SidewalkEast, Dist: dist}
}

func TestCrossStreet(t *testing.T) {
	w := newWorld("uncontrolled")
	require.NoError(t, w.wm.SpawnPed(1, west(80), east(10), fx.CrosswalkPath(), 0))

	e, ok := w.runUntil(60, entity.EventPedReachedEnd)
	require.True(t, ok)
	assert.Equal(t, entity.PedAgent(1), e.Agent)
	// 10 + 20 + 10 米，1.34米/秒
	assert.InDelta(t, 40/config.DefaultWalkingSpeed, e.Time, 1)
	assert.Empty(t, w.jm.AcceptedTurns(fx.Center))
	active, pending := w.wm.Count()
	assert.Zero(t, active)
	assert.Zero(t, pending)
}

func TestWaitForCrosswalk(t *testing.T) {
	w := newWorld("uncontrolled")
	car := entity.CarAgent(1)
	require.True(t, w.jm.RequestTurn(car, fx.TurnNorth, 0))
	require.NoError(t, w.wm.SpawnPed(1, west(85), east(10), fx.CrosswalkPath(), 0))

	for i := 0; i < 6; i++ {
		w.step()
	}
	assert.True(t, w.wm.IsWaiting(1))
	pos, ok := w.wm.PedPosition(1)
	require.True(t, ok)
	assert.Equal(t, entity.OnLane(fx.SidewalkWest), pos.On)
	assert.InDelta(t, fx.ApproachLength, pos.Dist, 1e-9)
	draws := w.wm.GetDrawPedsOn(entity.OnLane(fx.SidewalkWest))
	require.Len(t, draws, 1)
	assert.True(t, draws[0].Waiting)
	require.Len(t, w.jm.WaitingRequests(fx.Center), 1)

	w.jm.TurnFinished(car, fx.TurnNorth)
	w.step()
	pos, _ = w.wm.PedPosition(1)
	assert.Equal(t, entity.OnTurn(fx.TurnCrosswalk), pos.On)
	assert.False(t, w.wm.IsWaiting(1))
	assert.True(t, w.jm.IsGranted(entity.PedAgent(1), fx.TurnCrosswalk))
	assert.Len(t, w.wm.GetDrawPedsOn(entity.OnTurn(fx.TurnCrosswalk)), 1)
	assert.Empty(t, w.wm.GetDrawPedsOn(entity.OnLane(fx.SidewalkWest)))

	// 人行横道上行人持有放行，冲突的北向转向不能放行
	assert.False(t, w.jm.RequestTurn(car, fx.TurnNorth, w.now))
}

func TestReachSpot(t *testing.T) {
	w := newWorld("uncontrolled")
	spot := entity.ParkingSpot{Lane: fx.LaneParking, Idx: 3}
	goal := east(30)
	goal.Spot = &spot
	path := entity.WalkPath{Steps: []entity.WalkStep{{On: entity.OnLane(fx.SidewalkEast), Forward: true}}}
	require.NoError(t, w.wm.SpawnPed(1, east(10), goal, path, 2))

	w.step()
	active, pending := w.wm.Count()
	assert.Zero(t, active)
	assert.Equal(t, 1, pending)

	e, ok := w.runUntil(30, entity.EventPedReachedSpot)
	require.True(t, ok)
	assert.Equal(t, spot, e.Spot)
}

func TestWalkBackward(t *testing.T) {
	w := newWorld("uncontrolled")
	path := entity.WalkPath{Steps: []entity.WalkStep{{On: entity.OnLane(fx.SidewalkEast), Forward: false}}}
	require.NoError(t, w.wm.SpawnPed(1, east(50), east(40), path, 0))

	w.step()
	draws := w.wm.GetAllDrawPeds()
	require.Len(t, draws, 1)
	assert.InDelta(t, math.Pi, draws[0].Heading, 1e-9)
	pos, _ := w.wm.PedPosition(1)
	assert.InDelta(t, 50-config.DefaultWalkingSpeed, pos.Dist, 1e-9)

	trace, ok := w.wm.TraceRoute(1)
	require.True(t, ok)
	assert.Equal(t, draws[0].Pos, trace[0])
	assert.Equal(t, w.m.PositionAt(entity.OnLane(fx.SidewalkEast), 40), trace[len(trace)-1])

	_, ok = w.runUntil(10, entity.EventPedReachedEnd)
	assert.True(t, ok)
	_, ok = w.wm.TraceRoute(1)
	assert.False(t, ok)
}

func TestSpawnErrors(t *testing.T) {
	w := newWorld("uncontrolled")
	backward := fx.CrosswalkPath()
	backward.Steps[1].Forward = false
	single := func(on entity.LaneID, forward bool) entity.WalkPath {
		return entity.WalkPath{Steps: []entity.WalkStep{{On: entity.OnLane(on), Forward: forward}}}
	}
	assert.Error(t, w.wm.SpawnPed(1, west(10), east(10), backward, 0))
	assert.Error(t, w.wm.SpawnPed(1, west(10), east(10), entity.WalkPath{}, 0))
	assert.Error(t, w.wm.SpawnPed(1, west(10), west(20), single(fx.LaneEastIn, true), 0))
	assert.Error(t, w.wm.SpawnPed(1, east(30), east(20), single(fx.SidewalkEast, true), 0))
	assert.Error(t, w.wm.SpawnPed(1, east(95), east(20), single(fx.SidewalkEast, false), 0))
	assert.Error(t, w.wm.SpawnPed(1, west(10), west(20), single(fx.SidewalkEast, true), 0))

	require.NoError(t, w.wm.SpawnPed(1, east(10), east(20), single(fx.SidewalkEast, true), 0))
	assert.Error(t, w.wm.SpawnPed(1, east(10), east(20), single(fx.SidewalkEast, true), 0))
}

func TestIdempotentStep(t *testing.T) {
	w := newWorld("uncontrolled")
	require.NoError(t, w.wm.SpawnPed(1, west(10), east(10), fx.CrosswalkPath(), 0))
	w.step()
	before, _ := w.wm.PedPosition(1)
	assert.Nil(t, w.wm.StepIfNeeded(w.now, w.jm))
	after, _ := w.wm.PedPosition(1)
	assert.Equal(t, before, after)
}
