// Math shims over the standard library's math package, exposed under
// C names so the engine's float routines link against something with
// libm's signatures rather than Go's.
package libc

import "math"

func Fabs(x float64) float64 { return math.Abs(x) }
func Fmod(x, y float64) float64 { return math.Mod(x, y) }
func Floor(x float64) float64   { return math.Floor(x) }
func Ceil(x float64) float64    { return math.Ceil(x) }
func Sqrt(x float64) float64    { return math.Sqrt(x) }
func Log(x float64) float64     { return math.Log(x) }
func Log2(x float64) float64    { return math.Log2(x) }
func Log10(x float64) float64   { return math.Log10(x) }
func Exp(x float64) float64     { return math.Exp(x) }
func Pow(x, y float64) float64  { return math.Pow(x, y) }
func Ldexp(frac float64, exp int) float64 { return math.Ldexp(frac, exp) }
func Frexp(x float64) (frac float64, exp int) { return math.Frexp(x) }
func Sin(x float64) float64  { return math.Sin(x) }
func Cos(x float64) float64  { return math.Cos(x) }
func Tan(x float64) float64  { return math.Tan(x) }
func Asin(x float64) float64 { return math.Asin(x) }
func Acos(x float64) float64 { return math.Acos(x) }
func Atan(x float64) float64 { return math.Atan(x) }
func Atan2(y, x float64) float64 { return math.Atan2(y, x) }

// Fmin and Fmax follow IEEE 754 / C99 fmin/fmax: if exactly one argument
// is NaN, the other (non-NaN) argument is returned instead of NaN, which
// is the detail that differs from a plain ternary comparison.
func Fmin(x, y float64) float64 {
	if math.IsNaN(x) {
		return y
	}
	if math.IsNaN(y) {
		return x
	}
	return math.Min(x, y)
}

func Fmax(x, y float64) float64 {
	if math.IsNaN(x) {
		return y
	}
	if math.IsNaN(y) {
		return x
	}
	return math.Max(x, y)
}

func Isnan(x float64) bool { return math.IsNaN(x) }
func Isinf(x float64) bool { return math.IsInf(x, 0) }

// Abs64 mirrors C's abs/labs/llabs: abs(INT_MIN) is itself undefined
// behavior in C since the magnitude overflows; this returns INT_MIN
// unchanged rather than panicking or wrapping past it, the same
// saturate-in-place choice glibc's implementations make in practice.
func Abs64(x int64) int64 {
	if x == math.MinInt64 {
		return x
	}
	if x < 0 {
		return -x
	}
	return x
}
