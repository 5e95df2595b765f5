package config_test

import (
	"testing"

	"github.com/mshenfield/abstreet/utils/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c, err := config.Parse([]byte(`
input:
  map: data/cross.yaml
control:
  step: {start: 10, total: 100, interval: 0.5}
  parking: {policy: abort}
  stop_sign_dwell: 0
  signal: max_pressure
  speed_noise: 0.1
output:
  sqlite: out.db
`))
	require.NoError(t, err)
	assert.Equal(t, "data/cross.yaml", c.Input.Map)
	assert.Equal(t, "out.db", c.Output.SQLite)

	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	assert.Equal(t, config.ParkingAbort, rc.ParkingPolicy)
	assert.Equal(t, config.SignalMaxPressure, rc.Signal)
	assert.Equal(t, "max_pressure", rc.Signal.String())
	// 显式给出的0不被默认值覆盖
	assert.Zero(t, rc.StopSignDwell)
	assert.Equal(t, config.DefaultMaxSearchTime, rc.MaxSearchTime)
	assert.Equal(t, config.DefaultWalkingSpeed, rc.WalkingSpeed)
	assert.Equal(t, 0.1, rc.SpeedNoise)
	assert.Equal(t, int32(10), rc.C.Step.Start)
}

func TestDefaults(t *testing.T) {
	rc := config.DefaultRuntimeConfig()
	assert.Equal(t, config.ParkingCircle, rc.ParkingPolicy)
	assert.Equal(t, "circle", rc.ParkingPolicy.String())
	assert.Equal(t, config.SignalFixed, rc.Signal)
	assert.Equal(t, config.DefaultStopSignDwell, rc.StopSignDwell)
	assert.Equal(t, 1.0, rc.C.Step.Interval)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unknown field": "input: {map: a.yaml}\ncontrol: {step: {interval: 1}}\nfoo: 1\n",
		"no map":        "control: {step: {interval: 1}}\n",
		"no interval":   "input: {map: a.yaml}\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestRuntimeConfigErrors(t *testing.T) {
	base := config.Config{Control: config.Control{Step: config.ControlStep{Total: 1, Interval: 1}}}
	cases := map[string]func(c *config.Config){
		"policy":        func(c *config.Config) { c.Control.Parking.Policy = "teleport" },
		"signal":        func(c *config.Config) { c.Control.Signal = "random" },
		"negative time": func(c *config.Config) { c.Control.Parking.MaxSearchTime = -1 },
		"noise":         func(c *config.Config) { c.Control.SpeedNoise = 1 },
		"walking noise": func(c *config.Config) { c.Control.WalkingSpeedNoise = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			_, err := config.NewRuntimeConfig(c)
			assert.Error(t, err)
		})
	}
}
