package bridge

import (
	"errors"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
)

// Driver produces AHB handles for one transport.
//
// Probe returns (nil, nil) when the transport is not present or was not
// requested by args; an error is reserved for a transport that was found but
// could not be brought up. Destroy releases everything Probe acquired and is
// only ever called with a handle this driver returned.
type Driver interface {
	Name() string
	Disabled() bool
	Probe(args []string) (ahb.AHB, error)
	Destroy(a ahb.AHB) error
}

// Releaser is implemented by drivers that can temporarily hand the
// transport back to the SoC without destroying the handle.
type Releaser interface {
	Release(a ahb.AHB) error
}

// Reinitializer is implemented by drivers that can re-establish a
// previously released transport.
type Reinitializer interface {
	Reinit(a ahb.AHB) error
}

// ErrNotFound is returned when a driver name is not registered.
var ErrNotFound = errors.New("bridge: driver not found")

// Base carries the name and default enablement shared by all drivers.
type Base struct {
	DriverName    string
	DisabledByDef bool
}

func (b Base) Name() string   { return b.DriverName }
func (b Base) Disabled() bool { return b.DisabledByDef }

// Requested reports whether args explicitly select the named bridge, and
// returns the remaining arguments.
func Requested(name string, args []string) ([]string, bool) {
	if len(args) == 0 || args[0] != name {
		return nil, false
	}
	return args[1:], true
}
