package clk

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb/sim"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/soc"
)

func probe(t *testing.T, revReg, rev uint32) (*sim.Bus, *soc.SoC) {
	t.Helper()
	bus := sim.New(ahb.KindILPC)
	bus.Poke(revReg, rev)
	s, err := soc.Probe(bus)
	if err != nil {
		t.Fatalf("soc.Probe: %v", err)
	}
	return bus, s
}

func expectWrites(t *testing.T, bus *sim.Bus, want []sim.Access) {
	t.Helper()
	got := bus.Writes()
	if len(got) != len(want) {
		t.Fatalf("writes = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i].Addr != want[i].Addr || got[i].Val != want[i].Val {
			t.Fatalf("write %d = 0x%08x <- 0x%08x, want 0x%08x <- 0x%08x",
				i, got[i].Addr, got[i].Val, want[i].Addr, want[i].Val)
		}
	}
}

func w(addr, val uint32) sim.Access { return sim.Access{Op: sim.OpWrite, Addr: addr, Val: val} }

func TestGateARMG5(t *testing.T) {
	bus, s := probe(t, soc.SCUBase+0x7c, 0x04030303)
	k, err := Init(s)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer k.Destroy()

	if err := k.Disable(ARM); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if err := k.Enable(ARM); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	expectWrites(t, bus, []sim.Access{
		w(soc.SCUBase, soc.SCUKey),
		w(soc.SCUBase+0x70, 1),
		w(soc.SCUBase, 0),
		w(soc.SCUBase, soc.SCUKey),
		w(soc.SCUBase+0x7c, 1),
		w(soc.SCUBase, 0),
	})
}

func TestGateARMG4PreservesStrap(t *testing.T) {
	bus, s := probe(t, soc.SCUBase+0x7c, 0x02010303)
	bus.Poke(soc.SCUBase+0x70, 0xf0001002)

	k, err := Init(s)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := k.Disable(ARM); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if got := bus.Peek(soc.SCUBase + 0x70); got != 0xf0001003 {
		t.Fatalf("strap after Disable = 0x%08x", got)
	}
	if err := k.Enable(ARM); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if got := bus.Peek(soc.SCUBase + 0x70); got != 0xf0001002 {
		t.Fatalf("strap after Enable = 0x%08x", got)
	}
}

func TestGateARMG6(t *testing.T) {
	bus, s := probe(t, soc.SCUBase+0x04, 0x05030303)
	k, err := Init(s)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := k.Disable(ARM); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if err := k.Enable(ARM); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	expectWrites(t, bus, []sim.Access{
		w(soc.SCUBase, soc.SCUKey),
		w(soc.SCUBase+0x500, 1),
		w(soc.SCUBase, 0),
		w(soc.SCUBase, soc.SCUKey),
		w(soc.SCUBase+0x504, 1),
		w(soc.SCUBase, 0),
	})
}

func TestUnsupportedClock(t *testing.T) {
	_, s := probe(t, soc.SCUBase+0x7c, 0x04030303)
	k, err := Init(s)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := k.Disable(Clock(7)); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Disable(7) = %v, want ErrUnsupported", err)
	}
}

func TestSCULockedAfterFailedWrite(t *testing.T) {
	bus, s := probe(t, soc.SCUBase+0x7c, 0x04030303)
	boom := errors.New("nak")
	bus.FailAt(soc.SCUBase+0x70, boom)

	k, err := Init(s)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := k.Disable(ARM); !errors.Is(err, boom) {
		t.Fatalf("Disable = %v, want nak", err)
	}
	if got := bus.Peek(soc.SCUBase); got != 0 {
		t.Fatalf("SCU left unlocked: 0x%08x", got)
	}
}

func TestGated(t *testing.T) {
	tests := []struct {
		name   string
		revReg uint32
		rev    uint32
		strap  uint32
	}{
		{"g4", soc.SCUBase + 0x7c, 0x02010303, soc.SCUBase + 0x70},
		{"g5", soc.SCUBase + 0x7c, 0x04030303, soc.SCUBase + 0x70},
		{"g6", soc.SCUBase + 0x04, 0x05030303, soc.SCUBase + 0x500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, s := probe(t, tt.revReg, tt.rev)
			k, err := Init(s)
			if err != nil {
				t.Fatalf("Init: %v", err)
			}

			if gated, err := k.Gated(ARM); err != nil || gated {
				t.Fatalf("Gated = %v, %v; want false", gated, err)
			}
			bus.Poke(tt.strap, 0x80000001)
			if gated, err := k.Gated(ARM); err != nil || !gated {
				t.Fatalf("Gated = %v, %v; want true", gated, err)
			}
			if _, err := k.Gated(Clock(3)); !errors.Is(err, ErrUnsupported) {
				t.Fatalf("Gated(3) = %v, want ErrUnsupported", err)
			}
		})
	}
}
