package storage

import (
	"fmt"

	"github.com/hazyhaar/heavenos/kernel"
	"github.com/hazyhaar/heavenos/mem"
	"github.com/hazyhaar/heavenos/nvme"
)

// Engine is the narrow surface Bootstrap needs from the embedded SQL
// engine: the ability to execute a DDL/DML statement. The engine's own
// parser/planner/bytecode are an opaque collaborator (out of scope); this
// interface is the only contract Bootstrap depends on, the way
// storage.Disk_i in biscuit's teacher code lets fs/ talk to a disk without
// knowing whether it's AHCI, NVMe, or a RAM disk underneath.
type Engine interface {
	Exec(stmt string) error
}

const (
	createNamespaceTable = `CREATE TABLE IF NOT EXISTS namespace (path TEXT PRIMARY KEY, kind TEXT, value BLOB)`
	createAuditTable     = `CREATE TABLE IF NOT EXISTS audit (seq INTEGER PRIMARY KEY, wall_time_ms INTEGER, bitmap_dirty INTEGER, file_table_dirty INTEGER)`
)

// Bootstrap implements spec §4.6's bootstrap decision: on first mount of
// a disk whose LBA 0 does not carry the expected magic, format, flush,
// open the engine, create namespace/audit tables, flush again. On a disk
// that already carries a valid superblock, it just loads.
func Bootstrap(pages *mem.PhysPages, drv *nvme.Driver, totalBlocks uint64, engine Engine) (*BlockAllocator, *FileTable, error) {
	ba, ft, err := tryLoad(pages, drv)
	if err == nil {
		kernel.Logf("storage", "mounted existing volume: %d blocks", ba.totalBlocks)
		return ba, ft, nil
	}

	kernel.Logf("storage", "no valid superblock found (%v), formatting fresh volume", err)
	ba, ft, err = Format(pages, drv, totalBlocks)
	if err != nil {
		return nil, nil, err
	}

	if err := engine.Exec(createNamespaceTable); err != nil {
		return nil, nil, err
	}
	if err := engine.Exec(createAuditTable); err != nil {
		return nil, nil, err
	}
	if err := drv.Flush(); err != nil {
		return nil, nil, err
	}
	return ba, ft, nil
}

// tryLoad wraps Load, treating any error (corrupt magic, version, or I/O
// failure on the very first read) as "needs format" rather than
// distinguishing among them: only a fresh format recovers from any of
// those on an otherwise-untouched disk.
func tryLoad(pages *mem.PhysPages, drv *nvme.Driver) (*BlockAllocator, *FileTable, error) {
	return Load(pages, drv)
}

// AuditRecorder appends one row to the audit table per xSync barrier
// (SPEC_FULL.md's supplemented audit trail), giving the higher-level
// namespace a queryable history of when commits landed and what metadata
// they carried, without requiring anything from the out-of-scope
// scripting VM or network stack.
type AuditRecorder struct {
	engine Engine
	seq    uint64
}

// NewAuditRecorder wraps engine for use from VfsBridge.XSync.
func NewAuditRecorder(engine Engine) *AuditRecorder {
	return &AuditRecorder{engine: engine}
}

// RecordSync inserts one audit row. Failures are logged, not propagated:
// an audit-trail write is not part of the durability contract xSync makes
// to the engine, so it must never turn a successful sync into a failed one.
func (r *AuditRecorder) RecordSync(wallTimeMs int64, bitmapDirty, fileTableDirty bool) {
	r.seq++
	stmt := auditInsert(r.seq, wallTimeMs, bitmapDirty, fileTableDirty)
	if err := r.engine.Exec(stmt); err != nil {
		kernel.Warnf("storage", "audit insert failed (seq %d): %v", r.seq, err)
	}
}

func auditInsert(seq uint64, wallTimeMs int64, bitmapDirty, fileTableDirty bool) string {
	return fmt.Sprintf(
		"INSERT INTO audit(seq, wall_time_ms, bitmap_dirty, file_table_dirty) VALUES (%d, %d, %d, %d)",
		seq, wallTimeMs, boolInt(bitmapDirty), boolInt(fileTableDirty))
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
