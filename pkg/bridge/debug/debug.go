// Package debug reaches the AHB through the BMC's debug UART.
//
// The bridge is only used when requested explicitly:
//
//	debug <tty> [password]
package debug

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
)

const (
	Name = "debug"

	DefaultPassword = "ASPEED"
	BaudRate        = 115200
	ReadTimeout     = 2 * time.Second
)

// Bus is an AHB handle backed by a debug console.
type Bus struct {
	*Console
	port io.Closer
}

var _ ahb.AHB = (*Bus)(nil)

func (b *Bus) Kind() ahb.Kind { return ahb.KindDebug }

// OpenFunc opens the serial device at path.
type OpenFunc func(path string) (io.ReadWriteCloser, error)

func openSerial(path string) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// Driver implements the debug UART bridge, including release and reinit.
type Driver struct {
	bridge.Base

	// Open defaults to opening a serial port at BaudRate 8N1.
	Open OpenFunc
}

var (
	_ bridge.Driver        = (*Driver)(nil)
	_ bridge.Releaser      = (*Driver)(nil)
	_ bridge.Reinitializer = (*Driver)(nil)
)

func New() *Driver {
	return &Driver{Base: bridge.Base{DriverName: Name}}
}

func (d *Driver) Probe(args []string) (ahb.AHB, error) {
	rest, ok := bridge.Requested(Name, args)
	if !ok {
		return nil, nil
	}
	if len(rest) < 1 {
		return nil, fmt.Errorf("debug: usage: debug <tty> [password]")
	}
	path, password := rest[0], DefaultPassword
	if len(rest) > 1 {
		password = rest[1]
	}

	open := d.Open
	if open == nil {
		open = openSerial
	}
	port, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("debug: open %s: %w", path, err)
	}

	b := &Bus{Console: NewConsole(port, password), port: port}
	if err := b.Enter(); err != nil {
		port.Close()
		return nil, err
	}
	return b, nil
}

func bus(a ahb.AHB) (*Bus, error) {
	b, ok := a.(*Bus)
	if !ok {
		return nil, fmt.Errorf("debug: foreign handle %T", a)
	}
	return b, nil
}

func (d *Driver) Destroy(a ahb.AHB) error {
	b, err := bus(a)
	if err != nil {
		return err
	}
	xerr := b.Exit()
	if err := b.port.Close(); err != nil {
		return err
	}
	return xerr
}

// Release leaves debug mode so the UART can be used as a console again.
func (d *Driver) Release(a ahb.AHB) error {
	b, err := bus(a)
	if err != nil {
		return err
	}
	return b.Exit()
}

// Reinit re-enters debug mode after Release.
func (d *Driver) Reinit(a ahb.AHB) error {
	b, err := bus(a)
	if err != nil {
		return err
	}
	return b.Enter()
}
