// Package p2a reaches the AHB through the PCIe-to-AHB window of the BMC's
// VGA function, as seen from the host.
package p2a

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/internal/mmio"
)

const (
	Name = "p2a"

	vendorASPEED = "0x1a03"
	deviceVGA    = "0x2000"

	// Layout of BAR1.
	barSize      = 0x20000
	regEnable    = 0xf000
	regRemap     = 0xf004
	dataWindow   = 0x10000
	windowMask   = 0xffff
	enableBridge = 1
)

// SysfsPCIDevices is a variable so tests can point it at a fake tree.
var SysfsPCIDevices = "/sys/bus/pci/devices"

// Bus drives the P2A window. Accesses outside the current 64KiB AHB window
// reprogram the remap register first.
type Bus struct {
	mu     sync.Mutex
	f      *os.File
	bar    *mmio.Window
	remap  uint32
	mapped bool
}

var _ ahb.AHB = (*Bus)(nil)

func (b *Bus) Kind() ahb.Kind { return ahb.KindP2A }

func (b *Bus) seek(addr uint32) (uint32, error) {
	base := addr &^ windowMask
	if !b.mapped || b.remap != base {
		if err := b.bar.Write32(regRemap, base); err != nil {
			return 0, err
		}
		b.remap, b.mapped = base, true
	}
	return dataWindow + addr&windowMask, nil
}

func (b *Bus) Read32(addr uint32) (uint32, error) {
	if err := ahb.CheckAligned(addr); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	off, err := b.seek(addr)
	if err != nil {
		return 0, err
	}
	return b.bar.Read32(off)
}

func (b *Bus) Write32(addr, val uint32) error {
	if err := ahb.CheckAligned(addr); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	off, err := b.seek(addr)
	if err != nil {
		return err
	}
	return b.bar.Write32(off, val)
}

// Driver attaches to the first ASPEED VGA function found in sysfs.
type Driver struct {
	bridge.Base
}

var _ bridge.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{Base: bridge.Base{DriverName: Name}}
}

func readAttr(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// FindDevice returns the sysfs directory of the BMC's VGA function.
func FindDevice() (string, bool) {
	entries, err := os.ReadDir(SysfsPCIDevices)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		dir := filepath.Join(SysfsPCIDevices, e.Name())
		if readAttr(dir, "vendor") == vendorASPEED && readAttr(dir, "device") == deviceVGA {
			return dir, true
		}
	}
	return "", false
}

// Probe attaches with no arguments, or with `p2a`, when the host can see
// the BMC's VGA function.
func (d *Driver) Probe(args []string) (ahb.AHB, error) {
	if _, ok := bridge.Requested(Name, args); !ok && len(args) > 0 {
		return nil, nil
	}
	dir, ok := FindDevice()
	if !ok {
		return nil, nil
	}

	f, err := os.OpenFile(filepath.Join(dir, "resource1"), os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("p2a: %w", err)
	}
	bar, err := mmio.Map(f, 0, barSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("p2a: %w", err)
	}
	if err := bar.Write32(regEnable, enableBridge); err != nil {
		bar.Unmap()
		f.Close()
		return nil, fmt.Errorf("p2a: enable bridge: %w", err)
	}
	return &Bus{f: f, bar: bar}, nil
}

func (d *Driver) Destroy(a ahb.AHB) error {
	b, ok := a.(*Bus)
	if !ok {
		return fmt.Errorf("p2a: foreign handle %T", a)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	uerr := b.bar.Unmap()
	if err := b.f.Close(); err != nil {
		return err
	}
	return uerr
}
