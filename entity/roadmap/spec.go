package roadmap

// 地图描述，可直接由YAML反序列化

// PointSpec 平面坐标
type PointSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// LaneSpec 车道描述
type LaneSpec struct {
	ID       int32       `yaml:"id"`
	Type     string      `yaml:"type"` // driving | parking | sidewalk
	Line     []PointSpec `yaml:"line"`
	MaxSpeed float64     `yaml:"max_speed,omitempty"` // 为0时使用默认限速

	// 停车车道专用：进出车位使用的行车道与人行道
	DrivingLane *int32 `yaml:"driving_lane,omitempty"`
	Sidewalk    *int32 `yaml:"sidewalk,omitempty"`
}

// TurnRef 路口内按(src, dst)引用转向
type TurnRef struct {
	Src int32 `yaml:"src"`
	Dst int32 `yaml:"dst"`
}

// TurnSpec 转向描述，Line为空时取src终点到dst起点的直线
type TurnSpec struct {
	Src      int32       `yaml:"src"`
	Dst      int32       `yaml:"dst"`
	Line     []PointSpec `yaml:"line,omitempty"`
	Priority bool        `yaml:"priority,omitempty"` // 停车让行路口中的优先通行转向
}

// PhaseSpec 信号相位：Green中的转向为绿灯，Yellow中的为黄灯，其余为红灯
type PhaseSpec struct {
	Duration float64   `yaml:"duration"`
	Green    []TurnRef `yaml:"green"`
	Yellow   []TurnRef `yaml:"yellow,omitempty"`
}

// ConflictSpec 额外声明的冲突转向对
type ConflictSpec struct {
	A TurnRef `yaml:"a"`
	B TurnRef `yaml:"b"`
}

// IntersectionSpec 路口描述
type IntersectionSpec struct {
	ID        int32          `yaml:"id"`
	Control   string         `yaml:"control"` // signal | stop_sign | uncontrolled
	Turns     []TurnSpec     `yaml:"turns"`
	Phases    []PhaseSpec    `yaml:"phases,omitempty"`
	Conflicts []ConflictSpec `yaml:"conflicts,omitempty"`
}

// MapSpec 整个路网
type MapSpec struct {
	Lanes         []LaneSpec         `yaml:"lanes"`
	Intersections []IntersectionSpec `yaml:"intersections"`
}
