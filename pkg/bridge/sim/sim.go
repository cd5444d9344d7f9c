// Package sim registers a bridge backed by a simulated SoC. It is disabled
// by default; enable it with --enable sim to exercise commands without
// hardware.
package sim

import (
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	ahbsim "github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb/sim"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/soc"
)

const (
	Name = "sim"

	// DefaultRevision is an AST2500-A2.
	DefaultRevision uint32 = 0x04030303

	scuRevG5 = soc.SCUBase + 0x7c
	scuRevG6 = soc.SCUBase + 0x04

	// Hardware strap set/clear pairs. On G5 the clear register reads back
	// the silicon revision.
	scuStrapSetG5   = soc.SCUBase + 0x70
	scuStrapClearG5 = soc.SCUBase + 0x7c
	scuStrapSetG6   = soc.SCUBase + 0x500
	scuStrapClearG6 = soc.SCUBase + 0x504
)

// Driver creates simulated buses preloaded with a silicon revision.
type Driver struct {
	bridge.Base
}

var _ bridge.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{Base: bridge.Base{DriverName: Name, DisabledByDef: true}}
}

// Probe attaches when no other bridge was requested, or when args are
// `sim [revision]`.
func (d *Driver) Probe(args []string) (ahb.AHB, error) {
	rest, ok := bridge.Requested(Name, args)
	if !ok && len(args) > 0 {
		return nil, nil
	}

	rev := DefaultRevision
	if len(rest) > 0 {
		v, err := strconv.ParseUint(rest[0], 0, 32)
		if err != nil {
			return nil, fmt.Errorf("sim: invalid revision %q: %w", rest[0], err)
		}
		rev = uint32(v)
	}
	return NewBus(rev)
}

// NewBus returns a simulated bus whose SCU reports rev. On G5 and G6 the
// strap set/clear register pair is emulated; G4 straps are plain memory.
func NewBus(rev uint32) (*ahbsim.Bus, error) {
	m, ok := soc.LookupRevision(rev)
	if !ok {
		return nil, fmt.Errorf("sim: %w: 0x%08x", soc.ErrUnknownModel, rev)
	}
	bus := ahbsim.New(ahb.KindSim)
	switch m.Generation {
	case soc.G6:
		bus.Poke(scuRevG6, rev)
		bus.OnAccess = strapPair(bus, scuStrapSetG6, scuStrapClearG6, 0)
	case soc.G5:
		bus.Poke(scuRevG5, rev)
		bus.OnAccess = strapPair(bus, scuStrapSetG5, scuStrapClearG5, rev)
	default:
		bus.Poke(scuRevG5, rev)
	}
	return bus, nil
}

// strapPair emulates a write-1-to-set / write-1-to-clear register pair. The
// set register reads back the strap and the clear register always reads
// readback.
func strapPair(bus *ahbsim.Bus, set, clear, readback uint32) ahbsim.AccessHook {
	var strap uint32
	return func(op ahbsim.Op, addr, val uint32) error {
		if op != ahbsim.OpWrite {
			return nil
		}
		switch addr {
		case set:
			strap |= val
		case clear:
			strap &^= val
		default:
			return nil
		}
		bus.Poke(set, strap)
		bus.Poke(clear, readback)
		return nil
	}
}

func (d *Driver) Destroy(a ahb.AHB) error {
	if _, ok := a.(*ahbsim.Bus); !ok {
		return fmt.Errorf("sim: foreign handle %T", a)
	}
	return nil
}
