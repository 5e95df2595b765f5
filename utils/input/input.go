package input

import (
	"fmt"
	"os"

	"github.com/mshenfield/abstreet/entity/roadmap"
	"gopkg.in/yaml.v2"
)

// Input 场景输入
// 功能：路网描述、初始停放车辆与出行计划，由一个YAML文件给出
type Input struct {
	Map        roadmap.MapSpec `yaml:"map"`
	ParkedCars []ParkedCarSpec `yaml:"parked_cars,omitempty"`
	Trips      []TripSpec      `yaml:"trips,omitempty"`
}

// VehicleSpec 车辆参数，未给出的数值使用entity.DefaultVehicle
type VehicleSpec struct {
	ID            int32   `yaml:"id"`
	Length        float64 `yaml:"length,omitempty"`
	MaxSpeed      float64 `yaml:"max_speed,omitempty"`
	MaxA          float64 `yaml:"max_a,omitempty"`
	UsualBrakingA float64 `yaml:"usual_braking_a,omitempty"`
	MaxBrakingA   float64 `yaml:"max_braking_a,omitempty"`
	MinGap        float64 `yaml:"min_gap,omitempty"`
	Headway       float64 `yaml:"headway,omitempty"`
}

// SpotSpec 停车位
type SpotSpec struct {
	Lane int32 `yaml:"lane"`
	Idx  int   `yaml:"idx"`
}

// ParkedCarSpec 初始停放的车辆
type ParkedCarSpec struct {
	Vehicle VehicleSpec `yaml:"vehicle"`
	Spot    SpotSpec    `yaml:"spot"`
}

// TurnSpec 按所属路口与(src, dst)引用转向
type TurnSpec struct {
	Parent int32 `yaml:"parent"`
	Src    int32 `yaml:"src"`
	Dst    int32 `yaml:"dst"`
}

// StepSpec 路径中的一段，lane与turn二选一
// 步行路径中backward表示逆几何方向行走
type StepSpec struct {
	Lane     *int32    `yaml:"lane,omitempty"`
	Turn     *TurnSpec `yaml:"turn,omitempty"`
	Backward bool      `yaml:"backward,omitempty"`
}

// SidewalkSpotSpec 人行道位置，给出at_spot时取该车位对应的人行道位置
type SidewalkSpotSpec struct {
	Sidewalk int32     `yaml:"sidewalk,omitempty"`
	Dist     float64   `yaml:"dist,omitempty"`
	AtSpot   *SpotSpec `yaml:"at_spot,omitempty"`
}

// GoalSpec 驾驶目的地，三选一
type GoalSpec struct {
	Spot       *SpotSpec `yaml:"spot,omitempty"`         // 停入指定车位
	ParkOnLane *int32    `yaml:"park_on_lane,omitempty"` // 在停车车道上找车位
	End        *float64  `yaml:"end,omitempty"`          // 到达终点车道的位置后离开
}

// WalkSpec 步行段
type WalkSpec struct {
	Ped   int32            `yaml:"ped,omitempty"` // 为0时自动分配
	Start SidewalkSpotSpec `yaml:"start"`
	Goal  SidewalkSpotSpec `yaml:"goal"`
	Path  []StepSpec       `yaml:"path"`
}

// DriveSpec 驾驶段，from_spot非空时从该车位上的停放车辆出发
type DriveSpec struct {
	Vehicle   VehicleSpec `yaml:"vehicle"`
	Path      []StepSpec  `yaml:"path"`
	Goal      GoalSpec    `yaml:"goal"`
	StartDist float64     `yaml:"start_dist,omitempty"`
	FromSpot  *SpotSpec   `yaml:"from_spot,omitempty"`
}

// LegSpec 出行段，walk与drive二选一
type LegSpec struct {
	Walk  *WalkSpec  `yaml:"walk,omitempty"`
	Drive *DriveSpec `yaml:"drive,omitempty"`
}

// TripSpec 一次出行
type TripSpec struct {
	Start float64   `yaml:"start"`
	Legs  []LegSpec `yaml:"legs"`
}

// Load 读取场景文件
func Load(path string) (*Input, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(file)
}

// Parse 解析场景YAML，不允许未知字段
func Parse(data []byte) (*Input, error) {
	var in Input
	if err := yaml.UnmarshalStrict(data, &in); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	log.Infof("scenario: %d lanes, %d intersections, %d parked cars, %d trips",
		len(in.Map.Lanes), len(in.Map.Intersections), len(in.ParkedCars), len(in.Trips))
	return &in, nil
}

// BuildMap 构建路网
func (in *Input) BuildMap() (*roadmap.Map, error) {
	m, err := roadmap.New(in.Map)
	if err != nil {
		return nil, fmt.Errorf("build map: %w", err)
	}
	return m, nil
}
