// Package ilpc reaches the AHB through the SuperIO iLPC2AHB logical device,
// using x86 port IO from the host.
package ilpc

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
)

const (
	Name = "ilpc"

	sioIndex = 0x2e
	sioData  = 0x2f

	sioUnlock = 0xa5
	sioLock   = 0xaa

	regLDN    = 0x07
	regEnable = 0x30
	ldnILPC   = 0x0d

	regAddr    = 0xf0 // 0xf0..0xf3, MSB first
	regData    = 0xf4 // 0xf4..0xf7, MSB first
	regLength  = 0xf8
	regTrigger = 0xfe

	length32     = 0x02
	triggerWrite = 0xcf
)

// PortPath is a variable so tests can substitute the port device.
var PortPath = "/dev/port"

// ErrDisabled is returned when the iLPC2AHB device is turned off on the BMC.
var ErrDisabled = errors.New("ilpc: iLPC2AHB logical device is disabled")

// PortIO performs byte-wide x86 port accesses.
type PortIO interface {
	Inb(port uint16) (byte, error)
	Outb(port uint16, val byte) error
	Close() error
}

// devPort reads and writes /dev/port, where the file offset is the port.
type devPort struct {
	fd int
}

func (p devPort) Inb(port uint16) (byte, error) {
	buf := []byte{0}
	n, err := unix.Pread(p.fd, buf, int64(port))
	if err != nil {
		return 0, fmt.Errorf("inb 0x%x: %w", port, err)
	}
	if n != 1 {
		return 0, fmt.Errorf("inb 0x%x: short read", port)
	}
	return buf[0], nil
}

func (p devPort) Outb(port uint16, val byte) error {
	n, err := unix.Pwrite(p.fd, []byte{val}, int64(port))
	if err != nil {
		return fmt.Errorf("outb 0x%x: %w", port, err)
	}
	if n != 1 {
		return fmt.Errorf("outb 0x%x: short write", port)
	}
	return nil
}

func (p devPort) Close() error { return unix.Close(p.fd) }

// Bus issues AHB cycles through the SuperIO configuration space.
type Bus struct {
	mu sync.Mutex
	io PortIO
}

var _ ahb.AHB = (*Bus)(nil)

// NewBus returns a bus on io. It does not check the logical device state.
func NewBus(io PortIO) *Bus {
	return &Bus{io: io}
}

func (b *Bus) Kind() ahb.Kind { return ahb.KindILPC }

func (b *Bus) writeReg(reg, val byte) error {
	if err := b.io.Outb(sioIndex, reg); err != nil {
		return err
	}
	return b.io.Outb(sioData, val)
}

func (b *Bus) readReg(reg byte) (byte, error) {
	if err := b.io.Outb(sioIndex, reg); err != nil {
		return 0, err
	}
	return b.io.Inb(sioData)
}

// session unlocks the SuperIO and selects the iLPC2AHB device for the
// duration of fn.
func (b *Bus) session(fn func() error) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < 2; i++ {
		if err := b.io.Outb(sioIndex, sioUnlock); err != nil {
			return fmt.Errorf("ilpc: unlock superio: %w", err)
		}
	}
	defer func() {
		if lerr := b.io.Outb(sioIndex, sioLock); lerr != nil && err == nil {
			err = fmt.Errorf("ilpc: lock superio: %w", lerr)
		}
	}()

	if err := b.writeReg(regLDN, ldnILPC); err != nil {
		return fmt.Errorf("ilpc: select device: %w", err)
	}
	return fn()
}

func (b *Bus) setAddr(addr uint32) error {
	for i := 0; i < 4; i++ {
		if err := b.writeReg(regAddr+byte(i), byte(addr>>(24-8*i))); err != nil {
			return err
		}
	}
	return b.writeReg(regLength, length32)
}

func (b *Bus) Read32(addr uint32) (uint32, error) {
	if err := ahb.CheckAligned(addr); err != nil {
		return 0, err
	}
	var val uint32
	err := b.session(func() error {
		if err := b.setAddr(addr); err != nil {
			return err
		}
		if _, err := b.readReg(regTrigger); err != nil {
			return err
		}
		for i := 0; i < 4; i++ {
			v, err := b.readReg(regData + byte(i))
			if err != nil {
				return err
			}
			val = val<<8 | uint32(v)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ilpc: read 0x%08x: %w", addr, err)
	}
	return val, nil
}

func (b *Bus) Write32(addr, val uint32) error {
	if err := ahb.CheckAligned(addr); err != nil {
		return err
	}
	err := b.session(func() error {
		if err := b.setAddr(addr); err != nil {
			return err
		}
		for i := 0; i < 4; i++ {
			if err := b.writeReg(regData+byte(i), byte(val>>(24-8*i))); err != nil {
				return err
			}
		}
		return b.writeReg(regTrigger, triggerWrite)
	})
	if err != nil {
		return fmt.Errorf("ilpc: write 0x%08x: %w", addr, err)
	}
	return nil
}

// Enabled reports whether the iLPC2AHB logical device is turned on.
func (b *Bus) Enabled() (bool, error) {
	var en byte
	err := b.session(func() error {
		var err error
		en, err = b.readReg(regEnable)
		return err
	})
	return en&1 == 1, err
}

// Driver attaches through /dev/port when the logical device is enabled.
type Driver struct {
	bridge.Base

	// Open returns the port accessor. Defaults to opening PortPath.
	Open func() (PortIO, error)
}

var _ bridge.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{Base: bridge.Base{DriverName: Name}}
}

func openDevPort() (PortIO, error) {
	fd, err := unix.Open(PortPath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", PortPath, err)
	}
	return devPort{fd: fd}, nil
}

// Probe attaches with no arguments, or with `ilpc`.
func (d *Driver) Probe(args []string) (ahb.AHB, error) {
	if _, ok := bridge.Requested(Name, args); !ok && len(args) > 0 {
		return nil, nil
	}

	open := d.Open
	if open == nil {
		open = openDevPort
	}
	io, err := open()
	if err != nil {
		return nil, fmt.Errorf("ilpc: %w", err)
	}

	b := NewBus(io)
	en, err := b.Enabled()
	if err != nil {
		io.Close()
		return nil, fmt.Errorf("ilpc: %w", err)
	}
	if !en {
		io.Close()
		return nil, ErrDisabled
	}
	return b, nil
}

func (d *Driver) Destroy(a ahb.AHB) error {
	b, ok := a.(*Bus)
	if !ok {
		return fmt.Errorf("ilpc: foreign handle %T", a)
	}
	return b.io.Close()
}
