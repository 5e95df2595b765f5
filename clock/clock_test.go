package clock_test

import (
	"testing"

	"github.com/mshenfield/abstreet/clock"
	"github.com/mshenfield/abstreet/utils/config"
	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 3600, Total: 3, Interval: 1})
	assert.Equal(t, 3600.0, c.T)
	assert.Equal(t, "01:00:00", c.String())

	steps := 0
	for c.Next() {
		steps++
	}
	assert.Equal(t, 3, steps)
	assert.True(t, c.Done())
	assert.Equal(t, 3603.0, c.T)
	h, m, s := c.GetHourMinuteSecond()
	assert.Equal(t, 1, h)
	assert.Equal(t, 0, m)
	assert.InDelta(t, 3.0, s, 1e-9)

	c.Init()
	assert.Equal(t, int32(3600), c.Step)
}

func TestHalfSecondSteps(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 0, Total: 4, Interval: 0.5})
	for c.Next() {
	}
	assert.Equal(t, 2.0, c.T)
}
