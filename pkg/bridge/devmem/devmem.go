// Package devmem reaches the AHB through /dev/mem when running on the BMC
// itself.
package devmem

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/internal/mmio"
)

const (
	Name = "devmem"

	windowSize = 64 << 10
)

// Paths are variables so tests can point them at ordinary files.
var (
	MemPath        = "/dev/mem"
	CompatiblePath = "/proc/device-tree/compatible"
)

// Bus maps 64KiB windows of physical memory on demand.
type Bus struct {
	mu      sync.Mutex
	f       *os.File
	windows map[uint32]*mmio.Window
}

var _ ahb.AHB = (*Bus)(nil)

func (b *Bus) Kind() ahb.Kind { return ahb.KindDevmem }

func (b *Bus) window(addr uint32) (*mmio.Window, uint32, error) {
	base := addr &^ (windowSize - 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[base]; ok {
		return w, addr - base, nil
	}
	w, err := mmio.Map(b.f, int64(base), windowSize)
	if err != nil {
		return nil, 0, err
	}
	b.windows[base] = w
	return w, addr - base, nil
}

func (b *Bus) Read32(addr uint32) (uint32, error) {
	if err := ahb.CheckAligned(addr); err != nil {
		return 0, err
	}
	w, off, err := b.window(addr)
	if err != nil {
		return 0, err
	}
	return w.Read32(off)
}

func (b *Bus) Write32(addr, val uint32) error {
	if err := ahb.CheckAligned(addr); err != nil {
		return err
	}
	w, off, err := b.window(addr)
	if err != nil {
		return err
	}
	return w.Write32(off, val)
}

func (b *Bus) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for base, w := range b.windows {
		if err := w.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.windows, base)
	}
	if err := b.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Driver attaches when the host is an ASPEED BMC.
type Driver struct {
	bridge.Base
}

var _ bridge.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{Base: bridge.Base{DriverName: Name}}
}

func onBMC() bool {
	data, err := os.ReadFile(CompatiblePath)
	if err != nil {
		return false
	}
	for _, c := range strings.Split(string(data), "\x00") {
		if strings.HasPrefix(c, "aspeed,ast") {
			return true
		}
	}
	return false
}

// Probe attaches with no arguments, or with `devmem`, when running on an
// ASPEED BMC.
func (d *Driver) Probe(args []string) (ahb.AHB, error) {
	if _, ok := bridge.Requested(Name, args); !ok && len(args) > 0 {
		return nil, nil
	}
	if !onBMC() {
		return nil, nil
	}

	f, err := os.OpenFile(MemPath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("devmem: %w", err)
	}
	return &Bus{f: f, windows: make(map[uint32]*mmio.Window)}, nil
}

func (d *Driver) Destroy(a ahb.AHB) error {
	b, ok := a.(*Bus)
	if !ok {
		return fmt.Errorf("devmem: foreign handle %T", a)
	}
	return b.close()
}
