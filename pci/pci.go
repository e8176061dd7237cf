// Package pci implements enough of x86 PCI configuration-space access to
// find the NVMe controller: bus/device/function enumeration over the
// legacy CONFIG_ADDRESS/CONFIG_DATA I/O ports, and BAR decoding. The
// teacher's own pci package (biscuit/src/pci) kept only its disk-queue
// request types (olddiski.go) in this retrieval pack — the CAM scan itself
// is written fresh here, grounded on the 0xCF8/0xCFC access pattern visible
// in the PCI config-space emulation of the pack's VMM examples
// (bobuhiro11/gokvm's machine.go), which implements the guest-visible side
// of the same mechanism this driver reads from.
package pci

import "fmt"

// CONFIG_ADDRESS and CONFIG_DATA are the legacy PCI configuration access
// mechanism #1 I/O ports (see the Linux kernel's arch/x86/pci/direct.c).
const (
	configAddressPort = 0xCF8
	configDataPort    = 0xCFC
)

// PortIO abstracts the IN/OUT instructions needed to drive the legacy CAM.
// A freestanding build supplies an implementation backed by the real IN/OUT
// instructions (via a compiler intrinsic, the same seam biscuit's runtime
// uses for Rdtsc/Get_phys); tests supply an in-memory fake.
type PortIO interface {
	Out32(port uint16, val uint32)
	In32(port uint16) uint32
}

// Addr identifies a PCI function.
type Addr struct {
	Bus, Device, Function uint8
}

func (a Addr) configAddress(offset uint8) uint32 {
	return 1<<31 |
		uint32(a.Bus)<<16 |
		uint32(a.Device)<<11 |
		uint32(a.Function)<<8 |
		uint32(offset&0xFC)
}

// Device describes a discovered PCI function's identity and BARs.
type Device struct {
	Addr       Addr
	VendorID   uint16
	DeviceID   uint16
	ClassCode  uint8 // byte 2 of the class code (base class)
	SubClass   uint8
	ProgIF     uint8
	BAR        [6]uint32
	HeaderType uint8
}

// String renders a device the way lspci would, for console logging during
// bring-up.
func (d Device) String() string {
	return fmt.Sprintf("%02x:%02x.%x [%04x:%04x] class %02x%02x%02x",
		d.Addr.Bus, d.Addr.Device, d.Addr.Function,
		d.VendorID, d.DeviceID, d.ClassCode, d.SubClass, d.ProgIF)
}

// readConfig32 reads a 32-bit register at the given byte offset.
func readConfig32(io PortIO, addr Addr, offset uint8) uint32 {
	io.Out32(configAddressPort, addr.configAddress(offset))
	return io.In32(configDataPort)
}

// NvmeClassCode identifies "Mass storage controller, NVM, NVMe I/O
// controller" (class 01, subclass 08, prog-if 02) per spec §4.3 step 1.
const (
	NvmeBaseClass = 0x01
	NvmeSubClass  = 0x08
	NvmeProgIF    = 0x02
)

// FindNVMeController scans every bus/device/function for a device matching
// class 01:08:02, returning the first match. Absence of any such device is
// not modeled as an error here: the caller (bring-up sequence) decides
// whether a missing controller is fatal.
func FindNVMeController(io PortIO) (Device, bool) {
	for bus := 0; bus < 256; bus++ {
		for dev := 0; dev < 32; dev++ {
			// Function 0 always exists if the device is present; probe it
			// first to decide whether to probe functions 1-7.
			a := Addr{Bus: uint8(bus), Device: uint8(dev), Function: 0}
			idreg := readConfig32(io, a, 0x00)
			vendor := uint16(idreg)
			if vendor == 0xFFFF {
				continue
			}
			htreg := readConfig32(io, a, 0x0C)
			headerType := uint8(htreg >> 16)
			nfuncs := 1
			if headerType&0x80 != 0 {
				nfuncs = 8
			}
			for fn := 0; fn < nfuncs; fn++ {
				a := Addr{Bus: uint8(bus), Device: uint8(dev), Function: uint8(fn)}
				if d, ok := probeFunction(io, a); ok {
					if d.ClassCode == NvmeBaseClass && d.SubClass == NvmeSubClass && d.ProgIF == NvmeProgIF {
						return d, true
					}
				}
			}
		}
	}
	return Device{}, false
}

func probeFunction(io PortIO, a Addr) (Device, bool) {
	idreg := readConfig32(io, a, 0x00)
	vendor := uint16(idreg)
	if vendor == 0xFFFF {
		return Device{}, false
	}
	classReg := readConfig32(io, a, 0x08)
	htreg := readConfig32(io, a, 0x0C)

	d := Device{
		Addr:       a,
		VendorID:   vendor,
		DeviceID:   uint16(idreg >> 16),
		ProgIF:     uint8(classReg >> 8),
		SubClass:   uint8(classReg >> 16),
		ClassCode:  uint8(classReg >> 24),
		HeaderType: uint8(htreg >> 16),
	}
	for i := range d.BAR {
		d.BAR[i] = readConfig32(io, a, uint8(0x10+4*i))
	}
	return d, true
}

// BAR0Phys decodes BAR0 as a 64-bit memory BAR (NVMe controllers always
// expose their register set as a 64-bit prefetchable memory BAR per the
// NVMe base spec). Bit 0 of a memory BAR is 0; bits 2:1 == 10b mean a
// 64-bit BAR whose upper half is the next BAR slot.
func BAR0Phys(d Device) uint64 {
	lo := d.BAR[0] &^ 0xF
	is64 := (d.BAR[0]>>1)&0x3 == 0x2
	if !is64 {
		return uint64(lo)
	}
	hi := d.BAR[1]
	return uint64(hi)<<32 | uint64(lo)
}
