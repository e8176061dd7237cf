package libc_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hazyhaar/heavenos/libc"
)

func TestFminFmaxIgnoreNan(t *testing.T) {
	assert.Equal(t, 3.0, libc.Fmin(math.NaN(), 3.0))
	assert.Equal(t, 3.0, libc.Fmax(math.NaN(), 3.0))
	assert.Equal(t, 2.0, libc.Fmin(2.0, 5.0))
	assert.Equal(t, 5.0, libc.Fmax(2.0, 5.0))
}

func TestIsnanIsinf(t *testing.T) {
	assert.True(t, libc.Isnan(math.NaN()))
	assert.False(t, libc.Isnan(1.0))
	assert.True(t, libc.Isinf(math.Inf(1)))
	assert.True(t, libc.Isinf(math.Inf(-1)))
}

func TestBasicMathFunctions(t *testing.T) {
	assert.InDelta(t, 2.0, libc.Sqrt(4.0), 1e-9)
	assert.InDelta(t, 8.0, libc.Pow(2, 3), 1e-9)
	assert.Equal(t, 3.0, libc.Floor(3.7))
	assert.Equal(t, 4.0, libc.Ceil(3.2))
	assert.InDelta(t, 1.0, libc.Fabs(-1.0), 1e-9)
}
