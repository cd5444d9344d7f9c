package clk

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/soc"
)

// Clock names a gateable clock domain.
type Clock int

const (
	// ARM is the BMC's own CPU core.
	ARM Clock = iota
)

func (c Clock) String() string {
	switch c {
	case ARM:
		return "arm"
	default:
		return fmt.Sprintf("clock(%d)", int(c))
	}
}

// ErrUnsupported is returned for clocks or SoC generations the controller
// cannot drive.
var ErrUnsupported = errors.New("clk: unsupported")

// The ARM core is halted through the hardware strap "disable CPU" bit.
// G4 writes SCU070 directly. G5 and G6 have write-1-to-set and
// write-1-to-clear register pairs.
const (
	scuStrapG4      = soc.SCUBase + 0x70
	scuStrapSetG5   = soc.SCUBase + 0x70
	scuStrapClearG5 = soc.SCUBase + 0x7c
	scuStrapSetG6   = soc.SCUBase + 0x500
	scuStrapClearG6 = soc.SCUBase + 0x504

	strapDisableARM uint32 = 1 << 0
)

// Clk controls clock domains on one SoC.
type Clk struct {
	soc *soc.SoC
}

// Init binds a clock controller to s.
func Init(s *soc.SoC) (*Clk, error) {
	switch s.Generation() {
	case soc.G4, soc.G5, soc.G6:
		return &Clk{soc: s}, nil
	default:
		return nil, fmt.Errorf("%w: generation %s", ErrUnsupported, s.Generation())
	}
}

// Disable gates c.
func (k *Clk) Disable(c Clock) error {
	if c != ARM {
		return fmt.Errorf("%w: clock %s", ErrUnsupported, c)
	}
	return k.strap(true)
}

// Enable ungates c.
func (k *Clk) Enable(c Clock) error {
	if c != ARM {
		return fmt.Errorf("%w: clock %s", ErrUnsupported, c)
	}
	return k.strap(false)
}

// Gated reports whether c is currently gated. The strap reads back through
// SCU070 on G4 and G5 and through SCU500 on G6.
func (k *Clk) Gated(c Clock) (bool, error) {
	if c != ARM {
		return false, fmt.Errorf("%w: clock %s", ErrUnsupported, c)
	}
	reg := scuStrapG4
	if k.soc.Generation() == soc.G6 {
		reg = scuStrapSetG6
	}
	v, err := k.soc.AHB().Read32(reg)
	if err != nil {
		return false, fmt.Errorf("read strap: %w", err)
	}
	return v&strapDisableARM != 0, nil
}

func (k *Clk) strap(halt bool) (err error) {
	if err := k.soc.UnlockSCU(); err != nil {
		return fmt.Errorf("unlock scu: %w", err)
	}
	defer func() {
		if lerr := k.soc.LockSCU(); lerr != nil && err == nil {
			err = fmt.Errorf("lock scu: %w", lerr)
		}
	}()

	bus := k.soc.AHB()
	switch k.soc.Generation() {
	case soc.G4:
		var v uint32
		if halt {
			v = strapDisableARM
		}
		return ahb.Modify32(bus, scuStrapG4, strapDisableARM, v)
	case soc.G5:
		if halt {
			return bus.Write32(scuStrapSetG5, strapDisableARM)
		}
		return bus.Write32(scuStrapClearG5, strapDisableARM)
	default:
		if halt {
			return bus.Write32(scuStrapSetG6, strapDisableARM)
		}
		return bus.Write32(scuStrapClearG6, strapDisableARM)
	}
}

// Destroy releases the controller. Gated clocks are left as they are.
func (k *Clk) Destroy() {
	k.soc = nil
}
