package storage

import (
	"fmt"

	"github.com/hazyhaar/heavenos/kernel"
	"github.com/hazyhaar/heavenos/nvme"
)

// NamespaceRecorder snapshots the block allocator's and NVMe driver's
// running counters into the namespace table's path-addressable rows, per
// SPEC_FULL.md's supplemented "block read/write statistics" feature: the
// agentic control loop (spec §1) reads driver and allocator health by
// querying paths under /stats rather than through a networked metrics
// exporter, which stays out of scope.
type NamespaceRecorder struct {
	engine Engine
}

// NewNamespaceRecorder wraps engine for periodic stats snapshots.
func NewNamespaceRecorder(engine Engine) *NamespaceRecorder {
	return &NamespaceRecorder{engine: engine}
}

// Snapshot writes one row per counter under /stats/storage and /stats/nvme.
// Failures are logged and swallowed, mirroring AuditRecorder: a stats write
// must never turn an otherwise-successful xSync into a failed one.
func (r *NamespaceRecorder) Snapshot(ba *BlockAllocator, drv *nvme.Driver) {
	r.put("/stats/storage/allocs", ba.Allocs.Get())
	r.put("/stats/storage/frees", ba.Frees.Get())
	r.put("/stats/nvme/commands_issued", drv.CommandsIssued.Get())
	r.put("/stats/nvme/read_retries", drv.ReadRetries.Get())
	r.put("/stats/nvme/write_retries", drv.WriteRetries.Get())
}

func (r *NamespaceRecorder) put(path string, value int64) {
	stmt := fmt.Sprintf(
		"INSERT INTO namespace(path, kind, value) VALUES (%q, 'counter', %d) "+
			"ON CONFLICT(path) DO UPDATE SET value = excluded.value",
		path, value)
	if err := r.engine.Exec(stmt); err != nil {
		kernel.Warnf("storage", "namespace stats write failed for %s: %v", path, err)
	}
}
