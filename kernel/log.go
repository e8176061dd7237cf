package kernel

import "fmt"

// Logf writes a console line tagged with the subsystem name. There is no
// host stderr on bare metal, so this is the only sink: it mirrors the
// teacher's bare fmt.Printf calls in mem.Phys_init and fs.Bdev_block_t.Read
// ("Reserved %v pages (%vMB)\n", "WARNING: %v %v\n") rather than reaching
// for a structured logging library that has nowhere to write.
func Logf(subsystem, format string, args ...interface{}) {
	fmt.Printf("["+subsystem+"] "+format+"\n", args...)
}

// Warnf writes a WARNING-tagged console line.
func Warnf(subsystem, format string, args ...interface{}) {
	fmt.Printf("["+subsystem+"] WARNING: "+format+"\n", args...)
}
