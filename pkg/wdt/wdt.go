package wdt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/clk"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/soc"
)

const (
	base uint32 = 0x1e785000

	regReload  = 0x04
	regRestart = 0x08
	regCtrl    = 0x0c
	regClear   = 0x14

	restartMagic uint32 = 0x4755

	ctrlEnable      uint32 = 1 << 0
	ctrlResetSystem uint32 = 1 << 1
	ctrlClock1MHz   uint32 = 1 << 4 // G4 only; later parts always count at 1MHz

	// Ticks at 1MHz before the armed watchdog fires.
	resetTicks uint32 = 16

	// Time for the SoC to come back out of reset once the watchdog fired.
	bootSettle = time.Second
)

// ErrUnknownWatchdog is returned for instance names the SoC does not have.
var ErrUnknownWatchdog = errors.New("wdt: unknown watchdog")

type layout struct {
	stride uint32
	count  int
}

func layoutFor(g soc.Generation) (layout, error) {
	switch g {
	case soc.G4:
		return layout{stride: 0x20, count: 2}, nil
	case soc.G5:
		return layout{stride: 0x20, count: 3}, nil
	case soc.G6:
		return layout{stride: 0x40, count: 4}, nil
	default:
		return layout{}, fmt.Errorf("wdt: unsupported generation %s", g)
	}
}

func (l layout) addr(index int, reg uint32) uint32 {
	return base + uint32(index)*l.stride + reg
}

// Wdt drives one watchdog instance.
type Wdt struct {
	soc    *soc.SoC
	clk    *clk.Clk
	name   string
	index  int
	layout layout
}

// Init binds the watchdog named name ("wdt1", "wdt2", ...) on s.
func Init(s *soc.SoC, name string) (*Wdt, error) {
	l, err := layoutFor(s.Generation())
	if err != nil {
		return nil, err
	}

	idx, err := parseName(name)
	if err != nil {
		return nil, err
	}
	if idx >= l.count {
		return nil, fmt.Errorf("%w: %s has %d watchdogs, no %s", ErrUnknownWatchdog, s, l.count, name)
	}
	k, err := clk.Init(s)
	if err != nil {
		return nil, err
	}
	return &Wdt{soc: s, clk: k, name: name, index: idx, layout: l}, nil
}

func parseName(name string) (int, error) {
	num, ok := strings.CutPrefix(name, "wdt")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWatchdog, name)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWatchdog, name)
	}
	return n - 1, nil
}

func (w *Wdt) Name() string { return w.name }

// PreventReset stops every watchdog on s so that none of them resets the SoC
// while it is being manipulated.
func PreventReset(s *soc.SoC) error {
	l, err := layoutFor(s.Generation())
	if err != nil {
		return err
	}
	bus := s.AHB()
	for i := 0; i < l.count; i++ {
		ctrl, err := bus.Read32(l.addr(i, regCtrl))
		if err != nil {
			return fmt.Errorf("read wdt%d ctrl: %w", i+1, err)
		}
		if err := bus.Write32(l.addr(i, regCtrl), ctrl&^ctrlEnable); err != nil {
			return fmt.Errorf("stop wdt%d: %w", i+1, err)
		}
	}
	return nil
}

// PerformReset arms the watchdog with a short timeout configured to reset
// the SoC. Reset mode bits are left at zero, which selects a SoC reset.
// A gated ARM core is ungated once the watchdog is armed, since the SoC
// reset does not clear the SCU strap. It returns how long the caller should
// wait for the SoC to come back.
func (w *Wdt) PerformReset() (time.Duration, error) {
	bus := w.soc.AHB()
	l := w.layout

	if w.soc.Generation() != soc.G4 {
		if err := bus.Write32(l.addr(w.index, regClear), 1); err != nil {
			return 0, fmt.Errorf("clear timeout status: %w", err)
		}
	}
	if err := bus.Write32(l.addr(w.index, regReload), resetTicks); err != nil {
		return 0, fmt.Errorf("load reload value: %w", err)
	}
	if err := bus.Write32(l.addr(w.index, regRestart), restartMagic); err != nil {
		return 0, fmt.Errorf("restart counter: %w", err)
	}

	ctrl := ctrlEnable | ctrlResetSystem
	if w.soc.Generation() == soc.G4 {
		ctrl |= ctrlClock1MHz
	}
	if err := bus.Write32(l.addr(w.index, regCtrl), ctrl); err != nil {
		return 0, fmt.Errorf("enable watchdog: %w", err)
	}

	gated, err := w.clk.Gated(clk.ARM)
	if err != nil {
		return 0, fmt.Errorf("check arm clock: %w", err)
	}
	if gated {
		if err := w.clk.Enable(clk.ARM); err != nil {
			return 0, fmt.Errorf("ungate arm clock: %w", err)
		}
	}

	return time.Duration(resetTicks)*time.Microsecond + bootSettle, nil
}

// Destroy releases the controller.
func (w *Wdt) Destroy() {
	if w.clk != nil {
		w.clk.Destroy()
	}
	w.clk = nil
	w.soc = nil
}
