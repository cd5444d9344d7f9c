// Package drivers registers the built-in bridge drivers.
//
// Registration order is significant: when several bridges attach, the last
// one becomes the primary bridge. Direct memory access is preferred when
// running on the BMC, then the host-side indirect bridges, then the
// explicitly requested ones.
package drivers

import (
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/debug"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/devmem"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/ilpc"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/l2a"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/p2a"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/sim"
)

// Register adds every built-in driver to r.
func Register(r *bridge.Registry) {
	r.Register(sim.New())
	r.Register(debug.New())
	r.Register(l2a.New())
	r.Register(p2a.New())
	r.Register(ilpc.New())
	r.Register(devmem.New())
}
