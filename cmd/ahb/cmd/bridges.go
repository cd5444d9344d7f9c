package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
)

var bridgesCmd = &cobra.Command{
	Use:   "bridges",
	Short: "List registered bridge drivers",
	Long: `Print every registered bridge driver in probe order, whether it is enabled,
and which optional capabilities it implements. The last enabled driver that
attaches becomes the primary bridge.`,
	Args: cobra.NoArgs,
	RunE: runBridges,
}

func init() {
	rootCmd.AddCommand(bridgesCmd)
}

func runBridges(cmd *cobra.Command, args []string) error {
	fmt.Println("Registered bridge drivers (probe order):")
	return bridge.Default.ForEach(func(d bridge.Driver) error {
		state := "enabled"
		if bridge.Default.Disabled(d) {
			state = "disabled"
		}

		var caps []string
		if _, ok := d.(bridge.Releaser); ok {
			caps = append(caps, "release")
		}
		if _, ok := d.(bridge.Reinitializer); ok {
			caps = append(caps, "reinit")
		}
		extra := ""
		if len(caps) > 0 {
			extra = " [" + strings.Join(caps, ", ") + "]"
		}

		fmt.Printf("  - %-8s %s%s\n", d.Name(), state, extra)
		return nil
	})
}
