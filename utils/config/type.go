package config

// Input 指定模拟器所有输入数据的配置项
// 功能：场景文件包含路网描述、初始停放车辆与出行计划
type Input struct {
	Map string `yaml:"map"` // 场景文件路径（YAML）
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
// 说明：控制仿真的时间范围、步长和精度
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// Parking 找不到空车位时的处理策略
type Parking struct {
	Policy        string  `yaml:"policy,omitempty"`          // circle（原地等待重试）| abort（直接放弃）
	MaxSearchTime float64 `yaml:"max_search_time,omitempty"` // circle策略下最长等待时间，超时后放弃出行
}

// Control 模拟器控制配置
// 功能：定义仿真系统的核心控制参数
type Control struct {
	Step    ControlStep `yaml:"step"`
	Parking Parking     `yaml:"parking,omitempty"`
	// 停车让行路口非优先转向的最短停车等待时间，nil表示使用默认值
	StopSignDwell *float64 `yaml:"stop_sign_dwell,omitempty"`
	// 信号路口控制方式：fixed（固定相位，默认）| max_pressure（最大压力法）
	Signal            string  `yaml:"signal,omitempty"`
	SpeedNoise        float64 `yaml:"speed_noise,omitempty"`         // 车辆最高速度的相对扰动幅度
	WalkingSpeed      float64 `yaml:"walking_speed,omitempty"`       // 步行速度（m/s）
	WalkingSpeedNoise float64 `yaml:"walking_speed_noise,omitempty"` // 步行速度的相对扰动幅度
	Seed              uint64  `yaml:"seed,omitempty"`                // 随机数种子偏移量
}

// Output 输出配置
type Output struct {
	SQLite string `yaml:"sqlite,omitempty"` // 出行事件数据库路径，为空则不输出
}

// Config YAML配置文件的根结构
// 功能：定义整个仿真系统的配置结构
// 说明：包含输入、控制、输出等所有配置项
type Config struct {
	Input   Input   `yaml:"input"`            // 输入
	Control Control `yaml:"control"`          // 模拟过程控制
	Output  Output  `yaml:"output,omitempty"` // 输出
}
