package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enrichFixture() []Record {
	return []Record{
		rec("B", 2*time.Minute, ptr(30), 0),
		rec("A", 1*time.Minute, ptr(20), 0),
		rec("A", 0, ptr(10), 0),
		rec("A", 2*time.Minute, ptr(30), 0),
		rec("B", 1*time.Minute, ptr(60), 0),
	}
}

func TestLagFeatures(t *testing.T) {
	out := LagFeatures(enrichFixture(), ColSpeed, []int{1, 2})
	require.Len(t, out, 5)
	assert.Equal(t, "A", out[0].TrainID)
	assert.Equal(t, 10.0, *out[0].Speed)

	assert.True(t, math.IsNaN(out[0].Extra["speed_lag_1"]))
	assert.Equal(t, 10.0, out[1].Extra["speed_lag_1"])
	assert.Equal(t, 20.0, out[2].Extra["speed_lag_1"])
	assert.Equal(t, 10.0, out[2].Extra["speed_lag_2"])

	// Lags never cross train boundaries.
	assert.Equal(t, "B", out[3].TrainID)
	assert.True(t, math.IsNaN(out[3].Extra["speed_lag_1"]))
	assert.Equal(t, 60.0, out[4].Extra["speed_lag_1"])
}

func TestRollingFeatures(t *testing.T) {
	in := enrichFixture()
	out := RollingFeatures(in, ColSpeed, []int{2})
	assert.Nil(t, in[0].Extra, "input untouched")

	assert.Equal(t, 10.0, out[0].Extra[RollingMeanColumn(ColSpeed, 2)])
	assert.True(t, math.IsNaN(out[0].Extra[RollingStdColumn(ColSpeed, 2)]))
	assert.Equal(t, 15.0, out[1].Extra["speed_rolling_mean_2"])
	assert.InDelta(t, math.Sqrt(50), out[1].Extra["speed_rolling_std_2"], 1e-9)
	assert.Equal(t, 25.0, out[2].Extra["speed_rolling_mean_2"])
	assert.Equal(t, 45.0, out[4].Extra["speed_rolling_mean_2"])

	v, ok := out[2].Value("speed_rolling_mean_2")
	assert.True(t, ok)
	assert.Equal(t, 25.0, v)
}
