// Package reset performs a supervised watchdog reset of the SoC.
//
// A reset acquires, in order, the host bridges, the SoC identity, a clock
// controller and a watchdog controller. Every acquisition is paired with its
// release immediately, so any failure unwinds exactly what was acquired, in
// reverse order. When the bridge is not a direct memory mapping the ARM core
// is gated for the duration of the sequence, and ungated again if a later
// step fails.
package reset

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceAHB/internal/logging"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/clk"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/host"
)

// TargetSoC is the only supported reset target.
const TargetSoC = "soc"

// UsageError reports malformed reset arguments. It is returned before any
// resource is touched.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// Request is a validated reset invocation.
type Request struct {
	Target     string
	Watchdog   string
	BridgeArgs []string
}

// ParseArgs validates `soc <watchdog> [bridge-args...]`.
func ParseArgs(args []string) (Request, error) {
	if len(args) < 2 {
		return Request{}, &UsageError{Msg: "not enough arguments for reset command"}
	}
	if args[0] != TargetSoC {
		return Request{}, &UsageError{Msg: fmt.Sprintf("unsupported reset type: %q", args[0])}
	}
	return Request{
		Target:     args[0],
		Watchdog:   args[1],
		BridgeArgs: args[2:],
	}, nil
}

// Host is the bridge aggregate the reset runs on.
type Host interface {
	AHB() ahb.AHB
	Destroy() error
}

// SoC is an identified chip. Its concrete type is whatever ProbeSoC returns
// and is passed back unchanged to InitClock, InitWatchdog and PreventReset.
type SoC interface {
	Destroy()
}

type Clock interface {
	Disable(c clk.Clock) error
	Enable(c clk.Clock) error
	Destroy()
}

type Watchdog interface {
	PerformReset() (time.Duration, error)
	Destroy()
}

// Collaborators are the constructors and actions the sequence drives.
type Collaborators struct {
	InitHost     func(ctx context.Context, args []string) (Host, error)
	ProbeSoC     func(a ahb.AHB) (SoC, error)
	InitClock    func(s SoC) (Clock, error)
	InitWatchdog func(s SoC, name string) (Watchdog, error)
	PreventReset func(s SoC) error
	Sleep        func(d time.Duration)
}

// Resetter runs reset sequences.
type Resetter struct {
	c Collaborators

	// Settle, when positive, replaces the settle time reported by the
	// watchdog.
	Settle time.Duration
}

// New returns a Resetter driving c. A nil Sleep defaults to time.Sleep.
func New(c Collaborators) *Resetter {
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	return &Resetter{c: c}
}

// Run validates args and resets the SoC. It returns nil once the watchdog
// has fired and the settle time has passed, a *UsageError for bad
// arguments, or the error of the first step that failed.
func (r *Resetter) Run(ctx context.Context, args []string) (err error) {
	req, err := ParseArgs(args)
	if err != nil {
		return err
	}
	log := logging.Logger()

	h, err := r.c.InitHost(ctx, req.BridgeArgs)
	if err != nil {
		return fmt.Errorf("acquire AHB interface: %w", err)
	}
	defer func() {
		if derr := h.Destroy(); derr != nil {
			log.Error("Failed to destroy host bridges", zap.Error(derr))
		}
	}()

	bus := h.AHB()
	if bus == nil {
		return fmt.Errorf("acquire AHB interface: %w", host.ErrNoBridge)
	}

	s, err := r.c.ProbeSoC(bus)
	if err != nil {
		return fmt.Errorf("probe soc: %w", err)
	}
	defer s.Destroy()

	k, err := r.c.InitClock(s)
	if err != nil {
		return fmt.Errorf("init clk: %w", err)
	}
	defer k.Destroy()

	w, err := r.c.InitWatchdog(s, req.Watchdog)
	if err != nil {
		return fmt.Errorf("init wdt: %w", err)
	}
	defer w.Destroy()

	if !bus.Kind().Direct() {
		log.Info("Gating ARM clock", zap.String("bridge", string(bus.Kind())))
		if err := k.Disable(clk.ARM); err != nil {
			return fmt.Errorf("gate arm clock: %w", err)
		}
		defer func() {
			if err == nil {
				return
			}
			if cerr := k.Enable(clk.ARM); cerr != nil {
				log.Error("Failed to ungate ARM clock", zap.Error(cerr))
			}
		}()
	}

	log.Info("Preventing system reset")
	if err := r.c.PreventReset(s); err != nil {
		return fmt.Errorf("prevent reset: %w", err)
	}

	log.Info("Performing SoC reset", zap.String("watchdog", req.Watchdog))
	settle, err := w.PerformReset()
	if err != nil {
		return fmt.Errorf("perform reset: %w", err)
	}

	if r.Settle > 0 {
		settle = r.Settle
	}
	if settle > 0 {
		log.Debug("Waiting for SoC to settle", zap.Duration("settle", settle))
		r.c.Sleep(settle)
	}
	return nil
}
