package config

import (
	"errors"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
)

type stub struct{ bridge.Base }

func (stub) Probe([]string) (ahb.AHB, error) { return nil, nil }
func (stub) Destroy(ahb.AHB) error          { return nil }

func TestDefaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
	if len(cfg.Bridges.Disable) != 0 || len(cfg.Bridges.Enable) != 0 {
		t.Errorf("bridges = %+v, want empty", cfg.Bridges)
	}
	if cfg.Reset.Settle != 0 {
		t.Errorf("reset.settle = %v, want 0", cfg.Reset.Settle)
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("AHB_LOG_LEVEL", "debug")
	t.Setenv("AHB_BRIDGES_DISABLE", "ilpc,p2a")
	t.Setenv("AHB_RESET_SETTLE", "250ms")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if len(cfg.Bridges.Disable) != 2 || cfg.Bridges.Disable[0] != "ilpc" || cfg.Bridges.Disable[1] != "p2a" {
		t.Errorf("bridges.disable = %v", cfg.Bridges.Disable)
	}
	if cfg.Reset.Settle != 250*time.Millisecond {
		t.Errorf("reset.settle = %v", cfg.Reset.Settle)
	}
}

func TestNegativeSettleRejected(t *testing.T) {
	v := New()
	v.Set("reset.settle", "-1s")
	if _, err := Load(v); err == nil {
		t.Fatalf("expected error for negative settle")
	}
}

func TestApply(t *testing.T) {
	r := bridge.NewRegistry()
	a := stub{bridge.Base{DriverName: "a"}}
	s := stub{bridge.Base{DriverName: "sim", DisabledByDef: true}}
	r.Register(a)
	r.Register(s)

	cfg := &Config{Bridges: BridgesConfig{Disable: []string{"a", "sim"}, Enable: []string{"sim"}}}
	if err := cfg.Apply(r); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !r.Disabled(a) || r.Disabled(s) {
		t.Fatalf("Apply: a disabled=%v sim disabled=%v", r.Disabled(a), r.Disabled(s))
	}

	if err := (&Config{}).Apply(r); err != nil {
		t.Fatalf("Apply empty: %v", err)
	}
	if r.Disabled(a) || !r.Disabled(s) {
		t.Fatalf("empty config did not restore defaults")
	}

	bad := &Config{Bridges: BridgesConfig{Enable: []string{"nope"}}}
	if err := bad.Apply(r); !errors.Is(err, bridge.ErrNotFound) {
		t.Fatalf("Apply unknown = %v, want ErrNotFound", err)
	}
}
