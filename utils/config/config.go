package config

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

const (
	DefaultMaxSearchTime = 300.0
	DefaultStopSignDwell = 1.0
	DefaultWalkingSpeed  = 1.34
)

// ParkingPolicy 找不到空车位时的处理策略
type ParkingPolicy int

const (
	ParkingCircle ParkingPolicy = iota // 原地等待并每步重试，超过MaxSearchTime后放弃
	ParkingAbort                       // 立即放弃出行
)

func (p ParkingPolicy) String() string {
	switch p {
	case ParkingCircle:
		return "circle"
	case ParkingAbort:
		return "abort"
	default:
		panic(fmt.Sprintf("bad parking policy %d", int(p)))
	}
}

// SignalMode 信号路口控制方式
type SignalMode int

const (
	SignalFixed SignalMode = iota
	SignalMaxPressure
)

func (m SignalMode) String() string {
	switch m {
	case SignalFixed:
		return "fixed"
	case SignalMaxPressure:
		return "max_pressure"
	default:
		panic(fmt.Sprintf("bad signal mode %d", int(m)))
	}
}

// RuntimeConfig 运行时配置
// 功能：将YAML配置转换为运行时可用的配置对象，填充默认值并解析枚举
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置

	ParkingPolicy     ParkingPolicy
	MaxSearchTime     float64
	StopSignDwell     float64
	Signal            SignalMode
	SpeedNoise        float64
	WalkingSpeed      float64
	WalkingSpeedNoise float64
	Seed              uint64
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 算法说明：
// 1. 解析停车策略与信号控制方式
// 2. 未指定的数值项使用默认值
// 3. 校验数值范围
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	c := config.Control
	rc := &RuntimeConfig{
		All:               config,
		C:                 c,
		MaxSearchTime:     c.Parking.MaxSearchTime,
		StopSignDwell:     DefaultStopSignDwell,
		SpeedNoise:        c.SpeedNoise,
		WalkingSpeed:      c.WalkingSpeed,
		WalkingSpeedNoise: c.WalkingSpeedNoise,
		Seed:              c.Seed,
	}
	switch c.Parking.Policy {
	case "", "circle":
		rc.ParkingPolicy = ParkingCircle
	case "abort":
		rc.ParkingPolicy = ParkingAbort
	default:
		return nil, fmt.Errorf("unknown parking policy %q", c.Parking.Policy)
	}
	switch c.Signal {
	case "", "fixed":
		rc.Signal = SignalFixed
	case "max_pressure":
		rc.Signal = SignalMaxPressure
	default:
		return nil, fmt.Errorf("unknown signal mode %q", c.Signal)
	}
	if rc.MaxSearchTime == 0 {
		rc.MaxSearchTime = DefaultMaxSearchTime
	}
	if c.StopSignDwell != nil {
		rc.StopSignDwell = *c.StopSignDwell
	}
	if rc.WalkingSpeed == 0 {
		rc.WalkingSpeed = DefaultWalkingSpeed
	}
	if rc.MaxSearchTime < 0 || rc.StopSignDwell < 0 || rc.WalkingSpeed < 0 {
		return nil, fmt.Errorf("negative value in control config: %+v", c)
	}
	if rc.SpeedNoise < 0 || rc.SpeedNoise >= 1 || rc.WalkingSpeedNoise < 0 || rc.WalkingSpeedNoise >= 1 {
		return nil, fmt.Errorf("speed noise must be in [0, 1)")
	}
	if c.Step.Interval < 0 {
		return nil, fmt.Errorf("step interval %v must not be negative", c.Step.Interval)
	}
	return rc, nil
}

// DefaultRuntimeConfig 全部使用默认值的运行时配置
func DefaultRuntimeConfig() *RuntimeConfig {
	rc, err := NewRuntimeConfig(Config{Control: Control{Step: ControlStep{Total: 1, Interval: 1}}})
	if err != nil {
		panic(err)
	}
	return rc
}

// Parse 解析YAML配置，不允许未知字段
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("config file load err: %w", err)
	}
	if c.Input.Map == "" {
		return Config{}, fmt.Errorf("input.map must be specified")
	}
	if c.Control.Step.Interval <= 0 {
		return Config{}, fmt.Errorf("control.step.interval must be positive")
	}
	return c, nil
}
