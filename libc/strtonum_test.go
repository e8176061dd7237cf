package libc_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hazyhaar/heavenos/libc"
)

func TestStrtolBasic(t *testing.T) {
	assert.EqualValues(t, 42, libc.Strtol(cstring("42"), 10))
	assert.EqualValues(t, -42, libc.Strtol(cstring("  -42"), 10))
	assert.EqualValues(t, 255, libc.Strtol(cstring("0xff"), 0))
	assert.EqualValues(t, 8, libc.Strtol(cstring("010"), 0))
}

func TestStrtolSaturatesOnOverflow(t *testing.T) {
	assert.EqualValues(t, math.MaxInt64, libc.Strtol(cstring("99999999999999999999999"), 10))
	assert.EqualValues(t, math.MinInt64, libc.Strtol(cstring("-99999999999999999999999"), 10))
}

func TestStrtolNoDigitsReturnsZero(t *testing.T) {
	assert.EqualValues(t, 0, libc.Strtol(cstring("   abc"), 10))
}

func TestStrtoulBasic(t *testing.T) {
	assert.EqualValues(t, 42, libc.Strtoul(cstring("42"), 10))
	assert.EqualValues(t, math.MaxUint64, libc.Strtoul(cstring("999999999999999999999999"), 10))
}

func TestAtoiAndAtof(t *testing.T) {
	assert.Equal(t, 123, libc.Atoi(cstring("123")))
	assert.InDelta(t, 3.14, libc.Atof(cstring("3.14")), 1e-9)
	assert.InDelta(t, -2.5, libc.Atof(cstring("-2.5")), 1e-9)
}

func TestStrtodWithExponent(t *testing.T) {
	v, consumed := libc.Strtod(cstring("6.022e23trailing"))
	assert.InEpsilon(t, 6.022e23, v, 1e-6)
	assert.Equal(t, len("6.022e23"), consumed)
}

func TestStrtodRejectsNonNumeric(t *testing.T) {
	v, consumed := libc.Strtod(cstring("notanumber"))
	assert.Zero(t, v)
	assert.Zero(t, consumed)
}

func TestAbs64HandlesIntMin(t *testing.T) {
	assert.Equal(t, int64(math.MinInt64), libc.Abs64(math.MinInt64))
	assert.Equal(t, int64(5), libc.Abs64(-5))
	assert.Equal(t, int64(5), libc.Abs64(5))
}
