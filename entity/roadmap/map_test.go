package roadmap_test

import (
	"math"
	"testing"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/mshenfield/abstreet/entity"
	"github.com/mshenfield/abstreet/entity/roadmap"
	fx "github.com/mshenfield/abstreet/entity/roadmap/roadmaptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapBuild(t *testing.T) {
	m := fx.MustCross("stop_sign")
	assert.Len(t, m.Lanes(), 8)
	assert.Equal(t, []entity.IntersectionID{fx.Center}, m.Intersections())

	l := m.Lane(fx.LaneEastIn)
	assert.Equal(t, roadmap.LaneTypeDriving, l.Type())
	assert.InDelta(t, fx.ApproachLength, l.Length(), 1e-9)
	assert.InDelta(t, roadmap.DefaultMaxSpeed, l.MaxSpeed(), 1e-9)
	dst, ok := l.DstIntersection()
	assert.True(t, ok)
	assert.Equal(t, fx.Center, dst)
	_, ok = l.SrcIntersection()
	assert.False(t, ok)

	_, err := m.LaneOrError(99)
	assert.Error(t, err)
	assert.Panics(t, func() { m.Lane(99) })
	_, err = m.TurnOrError(entity.TurnID{Parent: fx.Center, Src: fx.LaneEastIn, Dst: fx.LaneNorthOut})
	assert.Error(t, err)

	turn := m.Turn(fx.TurnEast)
	assert.InDelta(t, 20, turn.Length(), 1e-9)
	assert.False(t, turn.IsCrosswalk())
	assert.True(t, m.Turn(fx.TurnCrosswalk).IsCrosswalk())
}

func TestParkingCapacity(t *testing.T) {
	m := fx.MustCross("uncontrolled")
	assert.Equal(t, 11, m.ParkingCapacity(fx.LaneParking))
	assert.Equal(t, 0, m.ParkingCapacity(fx.LaneTinyParking))
	assert.Equal(t, 0, m.ParkingCapacity(fx.LaneEastIn))
	assert.Equal(t, fx.LaneEastOut, m.Lane(fx.LaneParking).DrivingLane())
	assert.Equal(t, fx.SidewalkEast, m.Lane(fx.LaneParking).Sidewalk())
	assert.Panics(t, func() { m.Lane(fx.LaneEastIn).Sidewalk() })
}

func TestConflicts(t *testing.T) {
	m := fx.MustCross("stop_sign")
	assert.True(t, m.Conflicts(fx.TurnEast, fx.TurnNorth))
	assert.True(t, m.Conflicts(fx.TurnNorth, fx.TurnEast))
	assert.True(t, m.Conflicts(fx.TurnNorth, fx.TurnCrosswalk))
	assert.False(t, m.Conflicts(fx.TurnEast, fx.TurnCrosswalk))
	assert.False(t, m.Conflicts(fx.TurnEast, fx.TurnEast))

	inter := m.Intersection(fx.Center)
	assert.Equal(t, []entity.TurnID{fx.TurnEast, fx.TurnNorth, fx.TurnCrosswalk}, inter.Turns())
	assert.Equal(t, []entity.TurnID{fx.TurnEast, fx.TurnCrosswalk}, inter.ConflictingTurns(fx.TurnNorth))
	assert.Nil(t, inter.Signal())
}

func TestExplicitConflict(t *testing.T) {
	spec := fx.CrossSpec("stop_sign")
	spec.Intersections[0].Conflicts = []roadmap.ConflictSpec{{
		A: roadmap.TurnRef{Src: int32(fx.LaneEastIn), Dst: int32(fx.LaneEastOut)},
		B: roadmap.TurnRef{Src: int32(fx.SidewalkWest), Dst: int32(fx.SidewalkEast)},
	}}
	m, err := roadmap.New(spec)
	require.NoError(t, err)
	assert.True(t, m.Conflicts(fx.TurnEast, fx.TurnCrosswalk))

	spec.Intersections[0].Conflicts[0].B.Dst = 99
	_, err = roadmap.New(spec)
	assert.Error(t, err)
}

func TestSignalProgram(t *testing.T) {
	m := fx.MustCross("signal")
	tl := m.Intersection(fx.Center).Signal()
	require.NotNil(t, tl)
	require.Len(t, tl.Phases, 2)
	assert.Equal(t, []mapv2.LightState{
		mapv2.LightState_LIGHT_STATE_GREEN,
		mapv2.LightState_LIGHT_STATE_RED,
		mapv2.LightState_LIGHT_STATE_GREEN,
	}, tl.Phases[0].States)
	assert.Equal(t, fx.PhaseDuration, tl.Phases[1].Duration)
}

func TestBadSpecs(t *testing.T) {
	spec := fx.CrossSpec("roundabout")
	_, err := roadmap.New(spec)
	assert.Error(t, err)

	spec = fx.CrossSpec("uncontrolled")
	spec.Lanes = append(spec.Lanes, spec.Lanes[0])
	_, err = roadmap.New(spec)
	assert.Error(t, err)

	spec = fx.CrossSpec("uncontrolled")
	spec.Intersections[0].Turns = append(spec.Intersections[0].Turns,
		roadmap.TurnSpec{Src: int32(fx.LaneEastIn), Dst: int32(fx.SidewalkEast)})
	_, err = roadmap.New(spec)
	assert.Error(t, err)

	spec = fx.CrossSpec("signal")
	spec.Intersections[0].Phases[0].Duration = 0
	_, err = roadmap.New(spec)
	assert.Error(t, err)
}

func TestGeometryQueries(t *testing.T) {
	m := fx.MustCross("uncontrolled")
	on := entity.OnLane(fx.LaneNorthIn)
	p := m.PositionAt(on, 40)
	assert.InDelta(t, 0, p.X, 1e-9)
	assert.InDelta(t, -60, p.Y, 1e-9)
	assert.InDelta(t, math.Pi/2, m.DirectionAt(on, 40), 1e-9)

	// 越界位置截断到端点
	p = m.PositionAt(on, 1000)
	assert.InDelta(t, -10, p.Y, 1e-9)

	body := m.Slice(entity.OnLane(fx.LaneEastIn), 30, 35)
	require.Len(t, body, 2)
	assert.InDelta(t, -70, body[0].X, 1e-9)
	assert.InDelta(t, -65, body[1].X, 1e-9)

	assert.InDelta(t, 20, m.Length(entity.OnTurn(fx.TurnNorth)), 1e-9)
	assert.InDelta(t, roadmap.DefaultMaxSpeed, m.SpeedLimit(entity.OnTurn(fx.TurnNorth)), 1e-9)
	assert.InDelta(t, 45, m.Lane(fx.LaneEastOut).ProjectFromLane(m.Lane(fx.LaneParking), 45), 1e-9)
}
