package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/reset"
)

func TestRegisterOrder(t *testing.T) {
	r := bridge.NewRegistry()
	Register(r)

	var names []string
	_ = r.ForEach(func(d bridge.Driver) error {
		names = append(names, d.Name())
		return nil
	})
	want := []string{"sim", "debug", "l2a", "p2a", "ilpc", "devmem"}
	if len(names) != len(want) {
		t.Fatalf("drivers = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("drivers = %v, want %v", names, want)
		}
	}

	sim, _ := r.Lookup("sim")
	if !r.Disabled(sim) {
		t.Fatalf("sim driver must be disabled by default")
	}
}

// Only the sim driver is enabled, so the whole reset runs against the
// simulated SoC.
func TestSimulatedResetEndToEnd(t *testing.T) {
	r := bridge.NewRegistry()
	Register(r)
	_ = r.ForEach(func(d bridge.Driver) error {
		return r.SetEnabled(d.Name(), d.Name() == "sim")
	})

	c := reset.Hardware(r)
	var slept time.Duration
	c.Sleep = func(d time.Duration) { slept = d }

	if err := reset.New(c).Run(context.Background(), []string{"soc", "wdt2", "sim"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if slept <= 0 {
		t.Fatalf("reset did not wait for the SoC to settle")
	}
}

func TestSimulatedResetUnknownWatchdog(t *testing.T) {
	r := bridge.NewRegistry()
	Register(r)
	_ = r.ForEach(func(d bridge.Driver) error {
		return r.SetEnabled(d.Name(), d.Name() == "sim")
	})

	c := reset.Hardware(r)
	c.Sleep = func(time.Duration) { t.Fatalf("slept after a failed reset") }
	if err := reset.New(c).Run(context.Background(), []string{"soc", "wdt9", "sim"}); err == nil {
		t.Fatalf("expected wdt9 to be rejected on an AST2500")
	}
}
