package vfs

// UnimplementedRNG is the default RandomSource: a freestanding build with
// no RDRAND wiring yet fails closed rather than silently returning
// zeroed/predictable bytes, per spec §4.6's "on RNG failure, treat as
// fatal" policy. Bootstrap code on real hardware replaces this with an
// RDRAND-backed source before the VFS bridge is handed to the SQL engine.
type UnimplementedRNG struct{}

// Read always fails.
func (UnimplementedRNG) Read([]byte) error {
	return ErrRNGFailure
}
