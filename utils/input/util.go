package input

import (
	"fmt"

	"github.com/mshenfield/abstreet/entity"
	"github.com/samber/lo"
)

// SpotResolver 把车位换算为人行道位置
type SpotResolver interface {
	SpotToSidewalkPos(spot entity.ParkingSpot) entity.SidewalkSpot
}

func (v VehicleSpec) toVehicle() entity.Vehicle {
	out := entity.DefaultVehicle(entity.CarID(v.ID))
	set := func(dst *float64, src float64) {
		if src != 0 {
			*dst = src
		}
	}
	set(&out.Length, v.Length)
	set(&out.MaxSpeed, v.MaxSpeed)
	set(&out.MaxA, v.MaxA)
	set(&out.UsualBrakingA, v.UsualBrakingA)
	set(&out.MaxBrakingA, v.MaxBrakingA)
	set(&out.MinGap, v.MinGap)
	set(&out.Headway, v.Headway)
	return out
}

func (s SpotSpec) toSpot() entity.ParkingSpot {
	return entity.ParkingSpot{Lane: entity.LaneID(s.Lane), Idx: s.Idx}
}

func (s StepSpec) toTraversable() (entity.Traversable, error) {
	switch {
	case s.Lane != nil && s.Turn == nil:
		return entity.OnLane(entity.LaneID(*s.Lane)), nil
	case s.Turn != nil && s.Lane == nil:
		return entity.OnTurn(entity.TurnID{
			Parent: entity.IntersectionID(s.Turn.Parent),
			Src:    entity.LaneID(s.Turn.Src),
			Dst:    entity.LaneID(s.Turn.Dst),
		}), nil
	default:
		return entity.Traversable{}, fmt.Errorf("step must have exactly one of lane and turn: %+v", s)
	}
}

func (s SidewalkSpotSpec) toSidewalkSpot(r SpotResolver) entity.SidewalkSpot {
	if s.AtSpot != nil {
		return r.SpotToSidewalkPos(s.AtSpot.toSpot())
	}
	return entity.SidewalkSpot{Sidewalk: entity.LaneID(s.Sidewalk), Dist: s.Dist}
}

func (g GoalSpec) toGoal() (entity.DrivingGoal, error) {
	n := lo.CountBy([]bool{g.Spot != nil, g.ParkOnLane != nil, g.End != nil}, func(b bool) bool { return b })
	if n != 1 {
		return entity.DrivingGoal{}, fmt.Errorf("goal must have exactly one of spot, park_on_lane and end")
	}
	switch {
	case g.Spot != nil:
		return entity.ParkAtSpot(g.Spot.toSpot()), nil
	case g.ParkOnLane != nil:
		return entity.ParkOnLane(entity.LaneID(*g.ParkOnLane)), nil
	default:
		return entity.EndAt(*g.End), nil
	}
}

func (w *WalkSpec) toLeg(r SpotResolver) (entity.TripLeg, error) {
	steps := make([]entity.WalkStep, 0, len(w.Path))
	for i, s := range w.Path {
		on, err := s.toTraversable()
		if err != nil {
			return entity.TripLeg{}, fmt.Errorf("walk step %d: %w", i, err)
		}
		steps = append(steps, entity.WalkStep{On: on, Forward: !s.Backward})
	}
	leg := entity.WalkLeg(w.Start.toSidewalkSpot(r), w.Goal.toSidewalkSpot(r), entity.WalkPath{Steps: steps})
	leg.Ped = entity.PedestrianID(w.Ped)
	return leg, nil
}

func (d *DriveSpec) toLeg() (entity.TripLeg, error) {
	path := make([]entity.Traversable, 0, len(d.Path))
	for i, s := range d.Path {
		on, err := s.toTraversable()
		if err != nil {
			return entity.TripLeg{}, fmt.Errorf("drive step %d: %w", i, err)
		}
		path = append(path, on)
	}
	goal, err := d.Goal.toGoal()
	if err != nil {
		return entity.TripLeg{}, err
	}
	router := entity.Router{Path: path, Goal: goal}
	if d.FromSpot != nil {
		return entity.DriveFromSpotLeg(d.Vehicle.toVehicle(), d.FromSpot.toSpot(), router), nil
	}
	return entity.DriveLeg(d.Vehicle.toVehicle(), router, d.StartDist), nil
}

// Parked 初始停放车辆
func (in *Input) Parked() []entity.ParkedCar {
	return lo.Map(in.ParkedCars, func(p ParkedCarSpec, _ int) entity.ParkedCar {
		return entity.ParkedCar{Vehicle: p.Vehicle.toVehicle(), Spot: p.Spot.toSpot()}
	})
}

// TripSpecs 转换出行计划，车位相关的人行道位置由r换算
func (in *Input) TripSpecs(r SpotResolver) ([]entity.TripSpec, error) {
	out := make([]entity.TripSpec, 0, len(in.Trips))
	for i, t := range in.Trips {
		legs := make([]entity.TripLeg, 0, len(t.Legs))
		for j, l := range t.Legs {
			var leg entity.TripLeg
			var err error
			switch {
			case l.Walk != nil && l.Drive == nil:
				leg, err = l.Walk.toLeg(r)
			case l.Drive != nil && l.Walk == nil:
				leg, err = l.Drive.toLeg()
			default:
				err = fmt.Errorf("leg must have exactly one of walk and drive")
			}
			if err != nil {
				return nil, fmt.Errorf("trip %d leg %d: %w", i, j, err)
			}
			legs = append(legs, leg)
		}
		out = append(out, entity.TripSpec{Start: t.Start, Legs: legs})
	}
	return out, nil
}
