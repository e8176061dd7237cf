package nvme

import (
	"sync/atomic"
	"unsafe"
)

// volatileLoad32/volatileStore32/volatileLoad64/volatileStore64 are the
// non-reorderable MMIO accessors spec §9 requires ("wrap BAR0 as a region
// accessed through explicit volatile loads/stores; never through ordinary
// memory operations"). sync/atomic's Load/Store are the closest portable
// Go primitive with that guarantee; a freestanding build may instead
// lower these to bare MOV-with-compiler-barrier the way biscuit's runtime
// intrinsics do for Rdtsc, but the call sites in regs.go never change.
func volatileLoad32(addr unsafe.Pointer) uint32 {
	return atomic.LoadUint32((*uint32)(addr))
}

func volatileStore32(addr unsafe.Pointer, v uint32) {
	atomic.StoreUint32((*uint32)(addr), v)
}

func volatileLoad64(addr unsafe.Pointer) uint64 {
	return atomic.LoadUint64((*uint64)(addr))
}

func volatileStore64(addr unsafe.Pointer, v uint64) {
	atomic.StoreUint64((*uint64)(addr), v)
}
