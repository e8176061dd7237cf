package nvme

import (
	"encoding/binary"

	"github.com/hazyhaar/heavenos/mem"
)

// BuildPRP constructs the PRP1/PRP2 fields for a transfer of phys (the
// physical base of the first page) spanning length bytes, per spec §4.3:
//
//   - ≤ 4 KiB:                    prp1 = phys, prp2 = 0
//   - ≤ 8 KiB, two contig pages:  prp1 = phys, prp2 = phys + 4096
//   - larger:                     prp1 = phys of first page, prp2 = physical
//     base of a PRP-list page holding one 64-bit entry per remaining page
//
// The PRP-list page, when needed, is allocated from pages and returned
// so the caller can hold it (and release it) for the command's lifetime —
// "allocated from a DMA buffer held for the duration of the command."
func BuildPRP(pages *mem.PhysPages, phys mem.PhysAddr, length int) (prp1, prp2 uint64, listBuf mem.DmaBuf, err error) {
	if length <= 0 {
		panic("nvme: BuildPRP with non-positive length")
	}

	npages := (length + mem.PageSize - 1) / mem.PageSize
	prp1 = uint64(phys)

	switch {
	case npages <= 1:
		return prp1, 0, mem.DmaBuf{}, nil
	case npages == 2:
		return prp1, uint64(phys) + mem.PageSize, mem.DmaBuf{}, nil
	default:
		listBuf, err = mem.Alloc(pages, mem.PageSize)
		if err != nil {
			return 0, 0, mem.DmaBuf{}, err
		}
		buf := listBuf.Bytes()
		for i := 1; i < npages; i++ {
			entryPhys := uint64(phys) + uint64(i)*mem.PageSize
			binary.LittleEndian.PutUint64(buf[(i-1)*8:], entryPhys)
		}
		listBuf.FlushCache()
		return prp1, uint64(listBuf.Phys()), listBuf, nil
	}
}
