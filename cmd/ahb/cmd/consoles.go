package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/debug"
)

var consolesCmd = &cobra.Command{
	Use:   "consoles",
	Short: "List USB serial adapters usable for the debug bridge",
	Long: `Scan the host for USB serial adapters (FTDI, CP210x, PL2303, CH340) that can
carry the BMC debug UART. Use this to verify connectivity before running
commands with "debug <tty>" bridge arguments.`,
	Args: cobra.NoArgs,
	RunE: runConsoles,
}

func init() {
	rootCmd.AddCommand(consolesCmd)
}

func runConsoles(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	infos, err := debug.DiscoverAdapters(ctx)
	if err != nil {
		return fmt.Errorf("discover adapters: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No USB serial adapters found.")
		return nil
	}

	fmt.Println("Detected USB serial adapters:")
	for _, a := range infos {
		fmt.Printf("  - %s (VID:PID %04X:%04X, bus %d address %d)\n", a.Label(), a.VendorID, a.ProductID, a.Bus, a.Address)
	}
	return nil
}
