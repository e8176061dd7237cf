// Command mkdisk authors a HeavenOS disk image on the host filesystem: it
// reads a YAML layout descriptor, brings up a simulated NVMe controller
// backed by a real image file, and formats it through storage.Format —
// the same entry point the kernel itself calls on an unrecognized
// superblock at first mount (storage.Bootstrap). Running it ahead of time
// lets an image ship pre-formatted instead of paying the format cost on
// first boot.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hazyhaar/heavenos/kernel"
	"github.com/hazyhaar/heavenos/mem"
	"github.com/hazyhaar/heavenos/nvme"
	"github.com/hazyhaar/heavenos/simnvme"
	"github.com/hazyhaar/heavenos/storage"
)

// hostClock drives nvme.Driver's bring-up and polling timeouts from the
// host wall clock; there's no PAUSE instruction to issue from a host
// binary so Pause is a no-op, matching nvme's own test harnesses.
type hostClock struct{}

func (hostClock) Now() time.Time { return time.Now() }
func (hostClock) Pause()         {}

func run(descriptorPath string) error {
	d, err := loadDescriptor(descriptorPath)
	if err != nil {
		return err
	}

	bitmapBytes := (d.TotalBlocks + 7) / 8
	physSize := int(bitmapBytes) + 4*int(storage.BlockSize) + (1 << 20)
	physSize = int(roundup(uint64(physSize), mem.PageSize))

	dev, err := simnvme.NewDeviceWithImageFile(0x2000, physSize, d.BlockSize, d.TotalBlocks, d.ImagePath)
	if err != nil {
		return fmt.Errorf("mkdisk: creating simulated device: %w", err)
	}
	defer dev.Close()
	dev.Run()

	base, nframes := dev.PhysPages()
	mem.SetHHDMOffset(base)
	pages := mem.NewPhysPages(mem.PhysAddr(0), nframes, nil)

	drv, err := nvme.Bringup(dev.Bar(), pages, hostClock{}, 16, 16)
	if err != nil {
		return fmt.Errorf("mkdisk: bringing up simulated controller: %w", err)
	}

	_, _, err = storage.Format(drv.Pages(), drv, d.TotalBlocks)
	if err != nil {
		return fmt.Errorf("mkdisk: formatting volume: %w", err)
	}

	kernel.Logf("mkdisk", "formatted %s: %d blocks of %d bytes, reserved files: %v",
		d.ImagePath, d.TotalBlocks, d.BlockSize, d.ReservedFiles)
	return nil
}

func roundup(n, align uint64) uint64 {
	return (n + align - 1) / align * align
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: mkdisk <layout.yaml>\n")
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
