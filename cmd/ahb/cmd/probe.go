package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceAHB/internal/logging"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/host"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/soc"
)

var probeCmd = &cobra.Command{
	Use:   "probe [bridge-args...]",
	Short: "Probe bridges and identify the SoC",
	Long: `Probe every enabled bridge driver, list the bridges that attached, and
identify the SoC through the primary one. Nothing on the SoC is modified.

Examples:
  ahb probe
  ahb probe debug /dev/ttyUSB0
  ahb --enable sim probe sim 0x05030303`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().SetInterspersed(false)
}

func runProbe(cmd *cobra.Command, args []string) error {
	h, err := host.Initialize(cmd.Context(), bridge.Default, args)
	if err != nil {
		return fmt.Errorf("probe bridges: %w", err)
	}
	defer func() {
		if derr := h.Destroy(); derr != nil {
			logging.Logger().Error("Failed to destroy host bridges", zap.Error(derr))
		}
	}()

	bridges := h.Bridges()
	if len(bridges) == 0 {
		return host.ErrNoBridge
	}

	fmt.Println("Attached bridges:")
	for i, b := range bridges {
		marker := ""
		if i == len(bridges)-1 {
			marker = " (primary)"
		}
		fmt.Printf("  - %s [%s]%s\n", b.Driver, b.Kind, marker)
	}

	s, err := soc.Probe(h.AHB())
	if err != nil {
		return fmt.Errorf("probe soc: %w", err)
	}
	defer s.Destroy()

	m := s.Model()
	fmt.Printf("\nSoC: %s (%s, revision 0x%08X)\n", m.Name, m.Generation, m.Revision)
	return nil
}
