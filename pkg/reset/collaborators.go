package reset

import (
	"context"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/clk"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/host"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/soc"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/wdt"
)

// Hardware returns the collaborators that drive real bridges from reg and
// the ASPEED SCU and watchdog blocks.
func Hardware(reg *bridge.Registry) Collaborators {
	return Collaborators{
		InitHost: func(ctx context.Context, args []string) (Host, error) {
			return host.Initialize(ctx, reg, args)
		},
		ProbeSoC: func(a ahb.AHB) (SoC, error) {
			return soc.Probe(a)
		},
		InitClock: func(s SoC) (Clock, error) {
			return clk.Init(s.(*soc.SoC))
		},
		InitWatchdog: func(s SoC, name string) (Watchdog, error) {
			return wdt.Init(s.(*soc.SoC), name)
		},
		PreventReset: func(s SoC) error {
			return wdt.PreventReset(s.(*soc.SoC))
		},
	}
}
