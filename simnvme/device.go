package simnvme

import (
	"encoding/binary"
	"sync/atomic"
	"time"
	"unsafe"

	gonvme "github.com/dswarbrick/go-nvme"

	"github.com/hazyhaar/heavenos/kernel"
	"github.com/hazyhaar/heavenos/mem"
	"github.com/hazyhaar/heavenos/nvme"
)

// Register byte offsets, mirrored from nvme/regs.go — duplicated here
// rather than imported because they're unexported, and kept in step with
// the real register map by hand (queue_test.go pins only the SQ/CQ entry
// sizes, not these offsets).
const (
	regCAP  = 0x00
	regCC   = 0x14
	regCSTS = 0x1C
	regAQA  = 0x24
	regASQ  = 0x28
	regACQ  = 0x30
)

const doorbellStride = 4 // DSTRD=0

// Device simulates an NVMe controller's register-level behavior plus its
// view of "physical memory" (Phys) and namespace media (Media), so that
// nvme.Driver's bring-up, PRP construction, and polling loop all exercise
// real code paths against a device that isn't real hardware.
type Device struct {
	Regs  *Arena // BAR0
	Phys  *Arena // stands in for the HHDM-mapped physical address space
	Media *Arena // namespace backing store

	BlockSize uint32
	NumBlocks uint64

	stop chan struct{}

	adminSQ, adminCQ         uint64
	adminDepth               uint32
	adminSQHead, adminCQTail uint32
	adminPhase               uint16

	ioSQ, ioCQ         uint64
	ioDepth            uint32
	ioSQHead, ioCQTail uint32
	ioPhase            uint16
	ioReady            bool

	stallIO int32 // atomic: when nonzero, the I/O queue's CQ phase bit never flips
}

// NewDevice builds a simulated controller with regsSize bytes of register
// space, physSize bytes of addressable "physical memory," and a namespace
// of numBlocks*blockSize bytes.
func NewDevice(regsSize, physSize int, blockSize uint32, numBlocks uint64) (*Device, error) {
	regs, err := NewArena(regsSize)
	if err != nil {
		return nil, err
	}
	phys, err := NewArena(physSize)
	if err != nil {
		regs.Close()
		return nil, err
	}
	media, err := NewArena(int(uint64(blockSize) * numBlocks))
	if err != nil {
		regs.Close()
		phys.Close()
		return nil, err
	}

	d := &Device{
		Regs: regs, Phys: phys, Media: media,
		BlockSize: blockSize, NumBlocks: numBlocks,
		adminPhase: 1, ioPhase: 1,
		stop: make(chan struct{}),
	}
	// CAP: MQES=255 (bits 15:0), DSTRD=0 (bits 35:32), TO=60 (60*500ms = 30 s, bits 31:24).
	binary.LittleEndian.PutUint64(regs.Data[regCAP:], uint64(255)|uint64(60)<<24)
	return d, nil
}

// NewDeviceWithImageFile is NewDevice with the namespace media backed by a
// real file at imagePath instead of anonymous memory, so writes persist
// after Close — the path cmd/mkdisk uses to author a disk image on the
// host's filesystem through the same driver and storage.Format code the
// kernel runs at first mount.
func NewDeviceWithImageFile(regsSize, physSize int, blockSize uint32, numBlocks uint64, imagePath string) (*Device, error) {
	regs, err := NewArena(regsSize)
	if err != nil {
		return nil, err
	}
	phys, err := NewArena(physSize)
	if err != nil {
		regs.Close()
		return nil, err
	}
	media, err := NewFileArena(imagePath, int(uint64(blockSize)*numBlocks))
	if err != nil {
		regs.Close()
		phys.Close()
		return nil, err
	}

	d := &Device{
		Regs: regs, Phys: phys, Media: media,
		BlockSize: blockSize, NumBlocks: numBlocks,
		adminPhase: 1, ioPhase: 1,
		stop: make(chan struct{}),
	}
	binary.LittleEndian.PutUint64(regs.Data[regCAP:], uint64(255)|uint64(60)<<24)
	return d, nil
}

// Bar returns the nvme.Bar view of this device's register space, for
// nvme.Bringup to drive exactly as it would a real BAR0 mapping.
func (d *Device) Bar() nvme.Bar {
	return nvme.NewBar(d.Regs.Base)
}

// PhysPages is a convenience constructor for the mem.PhysPages the test
// driver allocates DmaBufs from: it spans this device's Phys arena with
// HHDMOffset aliased to the arena's base, so a DmaBuf's Phys() value is
// directly usable as an index into Phys.Data by the device-side command
// processing in this file.
func (d *Device) PhysPages() (base uintptr, nframes uint64) {
	return d.Phys.Base, uint64(len(d.Phys.Data)) / mem.PageSize
}

// StallIO makes the simulated controller stop draining the I/O submission
// queue entirely, so a command published there never posts a completion —
// the "stall the CQ phase bit" fault spec §8's timeout scenario calls for.
// The admin queue keeps working, since identify/bring-up isn't what stalls
// on a real unresponsive controller in that scenario.
func (d *Device) StallIO(stall bool) {
	v := int32(0)
	if stall {
		v = 1
	}
	atomic.StoreInt32(&d.stallIO, v)
}

// Run starts the device's background poll loop, which watches CC/doorbell
// registers the way real controller firmware watches its own MMIO
// interface. Stop with Close.
func (d *Device) Run() {
	go d.loop()
}

// Close stops the poll loop and releases all three arenas.
func (d *Device) Close() {
	close(d.stop)
	d.Regs.Close()
	d.Phys.Close()
	d.Media.Close()
}

func ptr32(a *Arena, off uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(uintptr(unsafeBase(a.Data)) + off))
}

func (d *Device) reg32(off uintptr) uint32 {
	return atomic.LoadUint32(ptr32(d.Regs, off))
}

func (d *Device) setReg32(off uintptr, v uint32) {
	atomic.StoreUint32(ptr32(d.Regs, off), v)
}

func (d *Device) reg64(off uintptr) uint64 {
	return binary.LittleEndian.Uint64(d.Regs.Data[off:])
}

func (d *Device) loop() {
	ticker := time.NewTicker(50 * time.Microsecond)
	defer ticker.Stop()
	enabled := false
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
		}

		cc := d.reg32(regCC)
		switch {
		case cc&1 != 0 && !enabled:
			d.adminDepth = (d.reg32(regAQA) & 0xFFFF) + 1
			d.adminSQ = d.reg64(regASQ)
			d.adminCQ = d.reg64(regACQ)
			d.setReg32(regCSTS, 1)
			enabled = true
		case cc&1 == 0 && enabled:
			d.setReg32(regCSTS, 0)
			enabled = false
		}
		if !enabled {
			continue
		}

		d.pollSQ(true)
		if d.ioReady && atomic.LoadInt32(&d.stallIO) == 0 {
			d.pollSQ(false)
		}
	}
}

func (d *Device) dbOffset(qid uint32, isSQ bool) uintptr {
	if isSQ {
		return 0x1000 + uintptr(2*qid)*doorbellStride
	}
	return 0x1000 + uintptr(2*qid+1)*doorbellStride
}

// pollSQ drains newly published entries from the admin or I/O submission
// queue and posts one completion per entry, the simulator-side mirror of
// nvme.QueuePair.publish/pollOnce.
func (d *Device) pollSQ(isAdmin bool) {
	qid := uint32(1)
	if isAdmin {
		qid = 0
	}
	tail := d.reg32(d.dbOffset(qid, true))

	head := &d.adminSQHead
	base := d.adminSQ
	depth := d.adminDepth
	if !isAdmin {
		head = &d.ioSQHead
		base = d.ioSQ
		depth = d.ioDepth
	}
	if depth == 0 {
		return
	}

	for *head != tail {
		off := base + uint64(*head)*64
		entry := d.Phys.Data[off : off+64]
		d.execute(isAdmin, entry)
		*head = (*head + 1) % depth
	}
}

func (d *Device) execute(isAdmin bool, entry []byte) {
	opcode := entry[0]
	cid := binary.LittleEndian.Uint16(entry[2:])
	prp1 := binary.LittleEndian.Uint64(entry[24:])
	prp2 := binary.LittleEndian.Uint64(entry[32:])
	cdw10 := binary.LittleEndian.Uint32(entry[40:])
	cdw11 := binary.LittleEndian.Uint32(entry[44:])
	cdw12 := binary.LittleEndian.Uint32(entry[48:])

	if isAdmin {
		switch opcode {
		case 0x06: // Identify
			d.doIdentify(cdw10, prp1)
		case 0x05: // Create I/O Completion Queue
			d.ioCQ = prp1
			d.ioDepth = (cdw10 >> 16) + 1
		case 0x01: // Create I/O Submission Queue
			d.ioSQ = prp1
			if d.ioCQ != 0 {
				d.ioReady = true
			}
		}
	} else {
		switch opcode {
		case 0x00: // Flush: media is always "durable" in this simulator
		case 0x02: // Read
			d.doTransfer(cdw10, cdw11, cdw12, prp1, prp2, false)
		case 0x01: // Write
			d.doTransfer(cdw10, cdw11, cdw12, prp1, prp2, true)
		}
	}

	d.postCompletion(isAdmin, cid, 0)
}

func (d *Device) doIdentify(cdw10 uint32, prp1 uint64) {
	buf := d.Phys.Data[prp1 : prp1+4096]
	for i := range buf {
		buf[i] = 0
	}
	if cdw10&0xFF == 1 {
		ctrl := gonvme.NVMeController{
			VendorID:    0x1b36,
			ModelNumber: "simnvme virtual controller",
		}
		kernel.Logf("simnvme", "identify controller: vendor=%#04x model=%q", ctrl.VendorID, ctrl.ModelNumber)
		binary.LittleEndian.PutUint16(buf[0:], ctrl.VendorID)
		copy(buf[4:24], []byte("SIMDEV0000000000    "))
		copy(buf[24:64], []byte(ctrl.ModelNumber+"                            "))
		buf[77] = 6 // Mdts = 6 -> 2^6 = 64 pages max transfer
		return
	}
	binary.LittleEndian.PutUint64(buf[0:], d.NumBlocks)  // Nsze
	binary.LittleEndian.PutUint64(buf[8:], d.NumBlocks)  // Ncap
	binary.LittleEndian.PutUint64(buf[16:], d.NumBlocks) // Nuse
	buf[25] = 0                                          // Nlbaf
	buf[26] = 0                                          // Flbas -> lbaf[0]
	shift := uint8(0)
	for bs := d.BlockSize; bs > 1; bs >>= 1 {
		shift++
	}
	buf[128+2] = shift // lbaf[0].DataSize at offset 128
}

// doTransfer copies between Media (at lba*BlockSize) and the PRP-addressed
// buffer(s) in Phys, in the direction isWrite indicates.
func (d *Device) doTransfer(cdw10, cdw11, cdw12 uint32, prp1, prp2 uint64, isWrite bool) {
	lba := uint64(cdw10) | uint64(cdw11)<<32
	nlb := uint64(cdw12&0xFFFF) + 1
	length := int(nlb * uint64(d.BlockSize))

	mediaOff := lba * uint64(d.BlockSize)
	mediaBuf := d.Media.Data[mediaOff : mediaOff+uint64(length)]

	npages := (length + pageSize - 1) / pageSize
	written := 0
	writeChunk := func(phys uint64, n int) {
		chunk := d.Phys.Data[phys : phys+uint64(n)]
		if isWrite {
			copy(mediaBuf[written:written+n], chunk)
		} else {
			copy(chunk, mediaBuf[written:written+n])
		}
		written += n
	}

	switch {
	case npages <= 1:
		writeChunk(prp1, length)
	case npages == 2:
		writeChunk(prp1, pageSize)
		writeChunk(prp2, length-pageSize)
	default:
		writeChunk(prp1, pageSize)
		remaining := length - pageSize
		listOff := 0
		for remaining > 0 {
			entryPhys := binary.LittleEndian.Uint64(d.Phys.Data[prp2+uint64(listOff*8):])
			n := pageSize
			if remaining < n {
				n = remaining
			}
			writeChunk(entryPhys, n)
			remaining -= n
			listOff++
		}
	}
}

const pageSize = 4096

func (d *Device) postCompletion(isAdmin bool, cid uint16, status uint16) {
	tail := &d.adminCQTail
	base := d.adminCQ
	phase := &d.adminPhase
	depth := d.adminDepth
	qid := uint32(0)
	if !isAdmin {
		tail = &d.ioCQTail
		base = d.ioCQ
		phase = &d.ioPhase
		depth = d.ioDepth
		qid = 1
	}

	off := base + uint64(*tail)*16
	entry := d.Phys.Data[off : off+16]
	binary.LittleEndian.PutUint32(entry[0:], 0)
	binary.LittleEndian.PutUint16(entry[12:], cid)
	binary.LittleEndian.PutUint16(entry[14:], (status<<1)|(*phase&1))

	*tail++
	if *tail == depth {
		*tail = 0
		*phase ^= 1
	}
	d.setReg32(d.dbOffset(qid, false), *tail)
}
