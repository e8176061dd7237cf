package vfs

import (
	"errors"
	"time"
)

// SleepClock abstracts the TSC-calibrated time source xSleep/xCurrentTime
// busy-wait against, the same Now() seam nvme.Clock gives the
// driver's own deadline loops — kept as a separate interface here (rather
// than importing nvme.Clock) so vfs doesn't need to depend on nvme's
// Pause() hint, which has no meaning for a sleep loop.
type SleepClock interface {
	Now() time.Time
}

// MaxSleepMicros clamps xSleep requests, per spec §4.6 ("Clamped to a
// configurable maximum").
var MaxSleepMicros uint64 = 10 * 1_000_000 // 10s

// XSleep busy-waits against the clock for the requested duration, clamped
// to MaxSleepMicros (spec §4.6's xSleep contract).
func (b *VfsBridge) XSleep(microseconds uint64) {
	if microseconds > MaxSleepMicros {
		microseconds = MaxSleepMicros
	}
	deadline := b.clock.Now().Add(time.Duration(microseconds) * time.Microsecond)
	for b.clock.Now().Before(deadline) {
	}
}

// julianDayUnixEpochMillis is the Julian day number of the Unix epoch
// (1970-01-01T00:00:00Z), in milliseconds: 2440587.5 days * 86400000.
const julianDayUnixEpochMillis = 210866760000000

// XCurrentTimeInt64 returns Julian-day milliseconds derived from the
// clock, per spec §4.6. The engine tolerates coarse resolution, so a
// host wall clock (or, on real hardware, TSC calibrated against an
// optional RTC read at boot) is an acceptable source.
func (b *VfsBridge) XCurrentTimeInt64() int64 {
	return b.clock.Now().UnixMilli() + julianDayUnixEpochMillis
}

// XCurrentTime is the floating-point-days form some VFS callers expect.
func (b *VfsBridge) XCurrentTime() float64 {
	return float64(b.XCurrentTimeInt64()) / 86400000.0
}

// RandomSource abstracts the hardware RNG (RDRAND on real x86_64
// hardware). Overridable the same way mem/cacheops.go's clflush is, since
// a test host has no RDRAND-equivalent to issue through this seam.
type RandomSource interface {
	Read(buf []byte) error
}

// ErrRNGFailure is returned (and, per spec §4.6, treated as fatal rather
// than papered over with a zero-fill) when the hardware RNG source fails.
var ErrRNGFailure = errors.New("vfs: hardware RNG read failed")

// XRandomness fills buf with n bytes from the hardware RNG. On failure
// the buffer is left untouched (spec §4.6: "on RNG failure, treat as
// fatal (not zero-fill)").
func (b *VfsBridge) XRandomness(n int, buf []byte) Code {
	if err := b.rng.Read(buf[:n]); err != nil {
		return IoErr
	}
	return Ok
}
