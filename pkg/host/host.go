// Package host aggregates the bridges that can reach the SoC's AHB from this
// machine.
//
// Initialize probes every enabled driver in the registry exactly once and
// keeps each one that attaches. The most recently attached bridge is the
// primary one returned by AHB, so later registry entries take precedence over
// earlier ones.
package host

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceAHB/internal/logging"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
)

// ErrNoBridge is returned by callers that require at least one bridge.
var ErrNoBridge = errors.New("host: no AHB bridge available")

type attached struct {
	driver bridge.Driver
	ahb    ahb.AHB
}

// BridgeInfo describes one attached bridge.
type BridgeInfo struct {
	Driver string
	Kind   ahb.Kind
}

// Host owns every attached bridge until Destroy.
type Host struct {
	bridges []attached
}

// Initialize builds a Host from a single pass over reg. args are passed
// verbatim to every driver's Probe.
//
// A driver that fails to probe is logged and skipped. If ctx is cancelled
// between probes, the bridges attached so far are destroyed before the error
// is returned, so a failed Initialize never leaves anything behind.
func Initialize(ctx context.Context, reg *bridge.Registry, args []string) (*Host, error) {
	log := logging.Logger()
	drivers := reg.Enumerate()
	h := &Host{}

	log.Debug("Found registered bridge drivers", zap.Int("count", len(drivers)))

	for _, d := range drivers {
		if err := ctx.Err(); err != nil {
			if derr := h.Destroy(); derr != nil {
				log.Error("Failed to unwind partially initialised host", zap.Error(derr))
			}
			return nil, fmt.Errorf("host init: %w", err)
		}

		if reg.Disabled(d) {
			log.Debug("Skipping bridge driver", zap.String("driver", d.Name()))
			continue
		}
		log.Debug("Trying bridge driver", zap.String("driver", d.Name()))

		a, err := d.Probe(args)
		if err != nil {
			log.Debug("Bridge driver probe failed", zap.String("driver", d.Name()), zap.Error(err))
			continue
		}
		if a == nil {
			continue
		}

		log.Debug("Attached bridge", zap.String("driver", d.Name()), zap.String("kind", string(a.Kind())))
		h.bridges = append(h.bridges, attached{driver: d, ahb: a})
	}

	return h, nil
}

// Destroy releases every attached bridge through its driver and empties the
// Host. Errors from individual drivers are combined; all bridges are
// destroyed regardless.
func (h *Host) Destroy() error {
	var err error
	for _, b := range h.bridges {
		if derr := b.driver.Destroy(b.ahb); derr != nil {
			err = multierr.Append(err, fmt.Errorf("destroy %s bridge: %w", b.driver.Name(), derr))
		}
	}
	h.bridges = nil
	return err
}

// AHB returns the primary bridge's handle, or nil if nothing attached.
func (h *Host) AHB() ahb.AHB {
	if len(h.bridges) == 0 {
		return nil
	}
	return h.bridges[len(h.bridges)-1].ahb
}

// Len reports the number of attached bridges.
func (h *Host) Len() int {
	return len(h.bridges)
}

// Bridges lists the attached bridges in attach order.
func (h *Host) Bridges() []BridgeInfo {
	out := make([]BridgeInfo, 0, len(h.bridges))
	for _, b := range h.bridges {
		out = append(out, BridgeInfo{Driver: b.driver.Name(), Kind: b.ahb.Kind()})
	}
	return out
}

func (h *Host) find(a ahb.AHB) (attached, bool) {
	for _, b := range h.bridges {
		if b.ahb == a {
			return b, true
		}
	}
	return attached{}, false
}

// Release hands the transport behind a back to the SoC if its driver supports
// it. Unknown handles and drivers without release support succeed.
func (h *Host) Release(a ahb.AHB) error {
	b, ok := h.find(a)
	if !ok {
		return nil
	}
	if r, ok := b.driver.(bridge.Releaser); ok {
		return r.Release(b.ahb)
	}
	return nil
}

// Reinit re-establishes the transport behind a if its driver supports it.
// Unknown handles and drivers without reinit support succeed.
func (h *Host) Reinit(a ahb.AHB) error {
	b, ok := h.find(a)
	if !ok {
		return nil
	}
	if r, ok := b.driver.(bridge.Reinitializer); ok {
		return r.Reinit(b.ahb)
	}
	return nil
}
