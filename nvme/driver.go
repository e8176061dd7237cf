package nvme

import (
	"errors"
	"time"

	"github.com/hazyhaar/heavenos/kernel"
	"github.com/hazyhaar/heavenos/mem"
)

// DefaultTimeout is the TSC-deadline budget for a single command, per spec
// §4.3 ("default 30 seconds").
const DefaultTimeout = 30 * time.Second

// Clock abstracts the TSC-calibrated deadline check so the driver can be
// driven by a host wall clock in tests (simnvme) and by a real
// TSC-calibrated source in the freestanding build, the same seam
// mem.clflush and pci.PortIO use for hardware primitives this module
// cannot exercise directly on a test host.
type Clock interface {
	Now() time.Time
	Pause() // hint to the CPU that we're spin-waiting (PAUSE instruction)
}

// Driver owns the admin queue pair, one I/O queue pair, the BAR0 window,
// and the namespace geometry discovered during bring-up.
type Driver struct {
	bar   Bar
	pages *mem.PhysPages
	clock Clock

	doorbellStride uint32
	timeout        time.Duration

	admin *QueuePair
	io    *QueuePair

	NSID      uint32
	BlockSize uint32
	NumBlocks uint64
	mdts      uint8 // Maximum Data Transfer Size, 2^mdts * CAP.MPSMIN pages

	// Counters, per SPEC_FULL.md's supplemented audit trail.
	CommandsIssued kernel.Counter_t
	ReadRetries    kernel.Counter_t
	WriteRetries   kernel.Counter_t
}

// Bringup performs the sequence in spec §4.3 steps 2-7: map BAR0 (the
// caller already did this and hands in the resulting Bar), reset the
// controller, program AQA/ASQ/ACQ, enable the controller, Identify, and
// create one I/O queue pair.
func Bringup(bar Bar, pages *mem.PhysPages, clock Clock, adminDepth, ioDepth uint32) (*Driver, error) {
	d := &Driver{bar: bar, pages: pages, clock: clock, timeout: DefaultTimeout}

	capReg := bar.Read64(regCAP)
	d.doorbellStride = capDoorbellStride(capReg)
	if mq := capMQES(capReg); adminDepth > mq || ioDepth > mq {
		adminDepth, ioDepth = kernel.Min(adminDepth, mq), kernel.Min(ioDepth, mq)
	}

	if err := d.reset(); err != nil {
		return nil, err
	}

	admin, err := NewQueuePair(pages, bar, 0, adminDepth, d.doorbellStride)
	if err != nil {
		return nil, err
	}
	d.admin = admin

	aqa := uint32(adminDepth-1) | uint32(adminDepth-1)<<16
	bar.Write32(regAQA, aqa)
	bar.Write64(regASQ, uint64(admin.SQBase()))
	bar.Write64(regACQ, uint64(admin.CQBase()))

	cc := uint32(ccEN | ccCSSNVM | ccMPS_4K | ccIOSQES | ccIOCQES)
	bar.Write32(regCC, cc)
	if err := d.waitCSTS(cstsRDY, true); err != nil {
		return nil, err
	}

	if err := d.identify(); err != nil {
		return nil, err
	}

	io, err := NewQueuePair(pages, bar, 1, ioDepth, d.doorbellStride)
	if err != nil {
		return nil, err
	}
	if err := d.createIOQueues(io); err != nil {
		return nil, err
	}
	d.io = io

	return d, nil
}

// reset drives CC.EN to 0 and spins until CSTS.RDY clears (spec §4.3 step 3).
func (d *Driver) reset() error {
	cc := d.bar.Read32(regCC)
	d.bar.Write32(regCC, cc&^ccEN)
	return d.waitCSTS(cstsRDY, false)
}

func (d *Driver) waitCSTS(bit uint32, want bool) error {
	deadline := d.clock.Now().Add(d.timeout)
	for {
		csts := d.bar.Read32(regCSTS)
		if csts&cstsCFS != 0 {
			return ErrIoError
		}
		if (csts&bit != 0) == want {
			return nil
		}
		if !d.clock.Now().Before(deadline) {
			return ErrTimeout
		}
		d.clock.Pause()
	}
}

// identify issues Identify Controller (CNS=1) then Identify Namespace
// (CNS=0, NSID=1), per spec §4.3 step 6.
func (d *Driver) identify() error {
	buf, err := mem.Alloc(d.pages, identifyBufferSize)
	if err != nil {
		return err
	}
	defer buf.Release()

	e := SQEntry{Opcode: OpIdentify, NSID: 0, PRP1: uint64(buf.Phys()), CDW10: 1}
	if _, err := d.submitAndWaitOn(d.admin, e, false); err != nil {
		return err
	}
	buf.InvalidateCache()
	ctrl := decodeIdentifyController(buf.Bytes())
	d.mdts = ctrl.Mdts

	e = SQEntry{Opcode: OpIdentify, NSID: 1, PRP1: uint64(buf.Phys()), CDW10: 0}
	if _, err := d.submitAndWaitOn(d.admin, e, false); err != nil {
		return err
	}
	buf.InvalidateCache()
	ns := decodeIdentifyNamespace(buf.Bytes())

	d.NSID = 1
	d.BlockSize = ns.BlockSize()
	d.NumBlocks = ns.Nuse
	return nil
}

// createIOQueues issues Create I/O Completion Queue then Create I/O
// Submission Queue for the single I/O pair (spec §4.3 step 7, ordering
// matters: the CQ must exist before a SQ can reference it).
func (d *Driver) createIOQueues(io *QueuePair) error {
	cqCmd := SQEntry{
		Opcode: OpCreateIOCQ,
		PRP1:   uint64(io.CQBase()),
		CDW10:  uint32(io.Depth-1)<<16 | uint32(io.ID),
		CDW11:  1, // physically contiguous, interrupts disabled (polled)
	}
	if _, err := d.submitAndWaitOn(d.admin, cqCmd, false); err != nil {
		return err
	}

	sqCmd := SQEntry{
		Opcode: OpCreateIOSQ,
		PRP1:   uint64(io.SQBase()),
		CDW10:  uint32(io.Depth-1)<<16 | uint32(io.ID),
		CDW11:  uint32(io.ID)<<16 | 1, // associated CQID, physically contiguous
	}
	_, err := d.submitAndWaitOn(d.admin, sqCmd, false)
	return err
}

// WithTimeout overrides the default per-command deadline budget. Exposed so
// tests can exercise the timeout path on a human timescale rather than
// waiting out DefaultTimeout; production bring-up never calls it.
func (d *Driver) WithTimeout(t time.Duration) *Driver {
	d.timeout = t
	return d
}

// Pages returns the physical page allocator the driver allocates its queue
// and Identify buffers from, so callers (the VFS bridge, tests) share the
// same allocator rather than racing a second bitmap over the same frames.
func (d *Driver) Pages() *mem.PhysPages {
	return d.pages
}

// SubmitAndWait builds and submits a read/write/flush command on the I/O
// queue pair and blocks until completion or timeout, per spec §4.3's
// submit_and_wait contract. isWrite selects the IoRead/IoWrite mapping for
// a data-transfer-error status.
func (d *Driver) SubmitAndWait(e SQEntry, isWrite bool) (CQEntry, error) {
	return d.submitAndWaitOn(d.io, e, isWrite)
}

// submitAndWaitOn submits e and waits for its completion, then — per spec
// §4.3's status table and §7's error taxonomy — retries a data-transfer
// error exactly once before letting it surface: a single bad completion
// isn't distinguished from a transient one at this layer, but a second
// failure on the same command is treated as real. ReadRetries/WriteRetries
// count retries actually attempted, not first-attempt failures.
func (d *Driver) submitAndWaitOn(q *QueuePair, e SQEntry, isWrite bool) (CQEntry, error) {
	cqe, err := d.submitOnce(q, e, isWrite)
	if err == nil || (!errors.Is(err, ErrIoRead) && !errors.Is(err, ErrIoWrite)) {
		return cqe, err
	}

	if errors.Is(err, ErrIoRead) {
		d.ReadRetries.Inc()
	} else {
		d.WriteRetries.Inc()
	}
	return d.submitOnce(q, e, isWrite)
}

// submitOnce performs one submit/poll/deadline cycle for e, per spec §4.3's
// submit_and_wait steps 1-3.
func (d *Driver) submitOnce(q *QueuePair, e SQEntry, isWrite bool) (CQEntry, error) {
	d.CommandsIssued.Inc()
	q.publish(e)

	deadline := d.clock.Now().Add(d.timeout)
	for {
		if cqe, ok := q.pollOnce(); ok {
			if err := mapStatus(cqe, isWrite); err != nil {
				return cqe, err
			}
			return cqe, nil
		}
		if !d.clock.Now().Before(deadline) {
			return CQEntry{}, ErrTimeout
		}
		d.clock.Pause()
	}
}
