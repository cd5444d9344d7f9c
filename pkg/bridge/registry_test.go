package bridge

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
)

type stubDriver struct {
	Base
}

func (stubDriver) Probe([]string) (ahb.AHB, error) { return nil, nil }
func (stubDriver) Destroy(ahb.AHB) error          { return nil }

func newStub(name string, disabled bool) Driver {
	return stubDriver{Base{DriverName: name, DisabledByDef: disabled}}
}

func TestRegistryOrderAndSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register(newStub("a", false))
	r.Register(newStub("b", true))

	snap := r.Enumerate()
	r.Register(newStub("c", false))

	if len(snap) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snap))
	}
	if snap[0].Name() != "a" || snap[1].Name() != "b" {
		t.Fatalf("snapshot order = %s,%s, want a,b", snap[0].Name(), snap[1].Name())
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(newStub("a", false))
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	r.Register(newStub("a", false))
}

func TestRegistryForEachStopsOnError(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"a", "b", "c"} {
		r.Register(newStub(n, false))
	}

	boom := errors.New("boom")
	var seen []string
	err := r.ForEach(func(d Driver) error {
		seen = append(seen, d.Name())
		if d.Name() == "b" {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ForEach error = %v, want boom", err)
	}
	if len(seen) != 2 {
		t.Fatalf("visited %v, want [a b]", seen)
	}
}

func TestRegistryEnableOverrides(t *testing.T) {
	r := NewRegistry()
	a := newStub("a", false)
	b := newStub("b", true)
	r.Register(a)
	r.Register(b)

	if r.Disabled(a) || !r.Disabled(b) {
		t.Fatalf("defaults not honoured")
	}
	if err := r.SetEnabled("a", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if err := r.SetEnabled("b", true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if !r.Disabled(a) || r.Disabled(b) {
		t.Fatalf("overrides not honoured")
	}
	if err := r.SetEnabled("zz", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetEnabled unknown = %v, want ErrNotFound", err)
	}

	r.ResetOverrides()
	if r.Disabled(a) || !r.Disabled(b) {
		t.Fatalf("ResetOverrides did not restore defaults")
	}
}

func TestRequested(t *testing.T) {
	rest, ok := Requested("debug", []string{"debug", "/dev/ttyUSB0"})
	if !ok || len(rest) != 1 || rest[0] != "/dev/ttyUSB0" {
		t.Fatalf("Requested = %v, %v", rest, ok)
	}
	if _, ok := Requested("debug", nil); ok {
		t.Fatalf("empty args must not request a bridge")
	}
	if _, ok := Requested("debug", []string{"p2a"}); ok {
		t.Fatalf("other bridge name must not match")
	}
}
