// Package l2a reaches the AHB through LPC firmware cycles decoded by the
// BMC's LPC-to-AHB bridge. The host chipset exposes the LPC firmware space
// at a platform specific physical address which must be given explicitly:
//
//	l2a <physical-base>
//
// The BMC side is expected to decode the window onto the APB peripheral
// region starting at AHB 0x1e600000, which holds the SCU and watchdogs.
package l2a

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/internal/mmio"
)

const (
	Name = "l2a"

	AHBBase    uint32 = 0x1e600000
	WindowSize        = 2 << 20
)

// MemPath is a variable so tests can point it at an ordinary file.
var MemPath = "/dev/mem"

// ErrOutsideWindow is returned for AHB addresses the LPC window cannot reach.
var ErrOutsideWindow = errors.New("l2a: address outside LPC window")

type Bus struct {
	f   *os.File
	win *mmio.Window
}

var _ ahb.AHB = (*Bus)(nil)

func (b *Bus) Kind() ahb.Kind { return ahb.KindL2A }

func (b *Bus) offset(addr uint32) (uint32, error) {
	if err := ahb.CheckAligned(addr); err != nil {
		return 0, err
	}
	if addr < AHBBase || addr-AHBBase >= WindowSize {
		return 0, fmt.Errorf("%w: 0x%08x", ErrOutsideWindow, addr)
	}
	return addr - AHBBase, nil
}

func (b *Bus) Read32(addr uint32) (uint32, error) {
	off, err := b.offset(addr)
	if err != nil {
		return 0, err
	}
	return b.win.Read32(off)
}

func (b *Bus) Write32(addr, val uint32) error {
	off, err := b.offset(addr)
	if err != nil {
		return err
	}
	return b.win.Write32(off, val)
}

// Driver only attaches when explicitly requested.
type Driver struct {
	bridge.Base
}

var _ bridge.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{Base: bridge.Base{DriverName: Name}}
}

func (d *Driver) Probe(args []string) (ahb.AHB, error) {
	rest, ok := bridge.Requested(Name, args)
	if !ok {
		return nil, nil
	}
	if len(rest) < 1 {
		return nil, fmt.Errorf("l2a: usage: l2a <physical-base>")
	}
	phys, err := strconv.ParseUint(rest[0], 0, 64)
	if err != nil {
		return nil, fmt.Errorf("l2a: invalid physical base %q: %w", rest[0], err)
	}

	f, err := os.OpenFile(MemPath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("l2a: %w", err)
	}
	win, err := mmio.Map(f, int64(phys), WindowSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("l2a: %w", err)
	}
	return &Bus{f: f, win: win}, nil
}

func (d *Driver) Destroy(a ahb.AHB) error {
	b, ok := a.(*Bus)
	if !ok {
		return fmt.Errorf("l2a: foreign handle %T", a)
	}
	uerr := b.win.Unmap()
	if err := b.f.Close(); err != nil {
		return err
	}
	return uerr
}
