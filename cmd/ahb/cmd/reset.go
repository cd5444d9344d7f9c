package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/reset"
)

// newResetter builds the resetter used by the reset command.
var newResetter = func() *reset.Resetter {
	return reset.New(reset.Hardware(bridge.Default))
}

var resetCmd = &cobra.Command{
	Use:   "reset soc <watchdog> [bridge-args...]",
	Short: "Reset the SoC through a watchdog",
	Long: `Reset the BMC SoC by arming one of its watchdogs with a short timeout.

The reset command will:
  1. Probe the bridges and pick the primary one
  2. Identify the SoC
  3. Gate the ARM core clock (skipped when running on the BMC itself)
  4. Stop every watchdog, then arm the selected one to reset the SoC
  5. Wait for the SoC to come back

Everything after the watchdog name is passed to the bridge drivers.

Examples:
  ahb reset soc wdt2
  ahb reset soc wdt1 debug /dev/ttyUSB0 ASPEED
  ahb reset --settle 3s soc wdt2 p2a`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().SetInterspersed(false)
	resetCmd.Flags().Duration("settle", 0, "override the time to wait after triggering the reset")
	bindFlag(v, "reset.settle", resetCmd, "settle")
}

func runReset(cmd *cobra.Command, args []string) error {
	r := newResetter()
	r.Settle = cfg.Reset.Settle
	return r.Run(cmd.Context(), args)
}
