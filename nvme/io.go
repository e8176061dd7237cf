package nvme

import (
	"math"

	"github.com/hazyhaar/heavenos/mem"
)

// maxBlocksPerCommand is the largest block count a single NVMe Read/Write
// command can express in its zero-based CDW12 NLB field (16 bits, minus
// one since the field is encoded as count-1).
const maxBlocksPerCommand = math.MaxUint16 + 1

// maxPRPListPages is the most pages one command's PRPs can address without
// chaining list pages together: the page PRP1 covers directly, plus one
// 8-byte pointer per remaining page in the single 4 KiB list page BuildPRP
// allocates (spec §4.3's PRP list layout never chains list pages).
const maxPRPListPages = 1 + mem.PageSize/8

// maxChunkBlocks returns the largest block count one command may cover,
// the minimum of the NLB field's limit, what a single PRP list page can
// address, and the controller's advertised Maximum Data Transfer Size
// (mdts, decoded at Identify time) when the controller reports one. The
// result is rounded down to a whole number of pages' worth of blocks so
// successive chunks' PRP base addresses stay page-aligned, which is what
// BuildPRP's page-at-a-time list addressing assumes.
func (d *Driver) maxChunkBlocks() uint64 {
	blocksPerPage := uint64(mem.PageSize) / uint64(d.BlockSize)
	if blocksPerPage == 0 {
		blocksPerPage = 1
	}

	limit := uint64(maxBlocksPerCommand)
	if prpLimit := uint64(maxPRPListPages) * blocksPerPage; prpLimit < limit {
		limit = prpLimit
	}
	if d.mdts > 0 {
		if mdtsLimit := (uint64(1) << d.mdts) * blocksPerPage; mdtsLimit < limit {
			limit = mdtsLimit
		}
	}

	limit -= limit % blocksPerPage
	if limit == 0 {
		limit = blocksPerPage
	}
	return limit
}

// ReadBlocks issues a Read command (or several, chunked) covering
// [startLBA, startLBA+count) into buf, a DmaBuf sized count*BlockSize built
// by the caller (the VFS bridge owns buffer lifetime per spec §4.2). If
// requested block_count exceeds u16::MAX, the transfer is split into
// successive commands presenting a single logical result — any
// sub-command failure fails the whole call (spec §4.3 "oversize chunking").
func (d *Driver) ReadBlocks(startLBA uint64, count uint64, buf mem.DmaBuf) error {
	return d.transfer(startLBA, count, buf, false)
}

// WriteBlocks is ReadBlocks' write counterpart.
func (d *Driver) WriteBlocks(startLBA uint64, count uint64, buf mem.DmaBuf) error {
	return d.transfer(startLBA, count, buf, true)
}

func (d *Driver) transfer(startLBA uint64, count uint64, buf mem.DmaBuf, isWrite bool) error {
	if uint64(buf.Len()) != count*uint64(d.BlockSize) {
		panic("nvme: transfer buffer does not match count*BlockSize")
	}

	maxChunk := d.maxChunkBlocks()
	lba := startLBA
	off := 0
	remaining := count
	for remaining > 0 {
		chunk := remaining
		if chunk > maxChunk {
			chunk = maxChunk
		}
		chunkBytes := int(chunk) * int(d.BlockSize)

		prp1, prp2, list, err := BuildPRP(d.pages, buf.Phys()+mem.PhysAddr(off), chunkBytes)
		if err != nil {
			return err
		}

		opcode := uint8(OpRead)
		if isWrite {
			opcode = OpWrite
		}
		e := SQEntry{
			Opcode: opcode,
			NSID:   d.NSID,
			PRP1:   prp1,
			PRP2:   prp2,
			CDW10:  uint32(lba),
			CDW11:  uint32(lba >> 32),
			CDW12:  uint32(chunk - 1),
		}
		_, err = d.SubmitAndWait(e, isWrite)
		if list.Len() > 0 {
			list.Release()
		}
		if err != nil {
			return err
		}

		lba += chunk
		off += chunkBytes
		remaining -= chunk
	}
	return nil
}

// Flush issues an NVMe Flush command (opcode 0x00, per spec §6) against
// the driver's namespace.
func (d *Driver) Flush() error {
	e := SQEntry{Opcode: OpFlush, NSID: d.NSID}
	_, err := d.SubmitAndWait(e, false)
	return err
}
