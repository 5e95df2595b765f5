package randengine_test

import (
	"testing"

	"github.com/mshenfield/abstreet/utils/randengine"
	"github.com/stretchr/testify/assert"
)

func TestForAgentReproducible(t *testing.T) {
	a := randengine.ForAgent(7, 0, 42)
	b := randengine.ForAgent(7, 0, 42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Noise(0.2), b.Noise(0.2))
	}
	// 车辆与行人同ID时使用不同的序列
	car, ped := randengine.ForAgent(7, 0, 42), randengine.ForAgent(7, 1, 42)
	assert.NotEqual(t, car.Float64(), ped.Float64())
}

func TestNoiseRange(t *testing.T) {
	e := randengine.New(1)
	assert.Equal(t, 1.0, e.Noise(0))
	for i := 0; i < 1000; i++ {
		n := e.Noise(0.1)
		assert.GreaterOrEqual(t, n, 0.9)
		assert.Less(t, n, 1.1)
	}
}
