package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OpenTraceLab/OpenTraceAHB/internal/config"
	"github.com/OpenTraceLab/OpenTraceAHB/internal/logging"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge/drivers"
)

var (
	// Global flags
	verbose bool

	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ahb",
	Short: "ASPEED BMC AHB bridge and reset tool",
	Long: `Reach the AHB bus of an ASPEED BMC from the host (or from the BMC itself)
through one of several bridges, and use it to reset the SoC.

Bridges are probed in registration order and the last one that attaches is used.
Bridge arguments follow the command's own arguments.

Examples:
  ahb bridges                                  # List bridge drivers
  ahb probe                                    # Probe bridges and identify the SoC
  ahb reset soc wdt2                           # Reset through whatever bridge attaches
  ahb reset soc wdt2 debug /dev/ttyUSB0        # Reset through the debug UART
  ahb --enable sim reset soc wdt1 sim          # Exercise the reset against a simulated SoC`,
	Version:       "0.9.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	drivers.Register(bridge.Default)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSlice("disable", nil, "bridge drivers to skip")
	rootCmd.PersistentFlags().StringSlice("enable", nil, "bridge drivers to probe even if disabled by default")

	bindFlag(v, "log.level", rootCmd, "log-level")
	bindFlag(v, "bridges.disable", rootCmd, "disable")
	bindFlag(v, "bridges.enable", rootCmd, "enable")
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	flag := cmd.PersistentFlags().Lookup(name)
	if flag == nil {
		flag = cmd.Flags().Lookup(name)
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

// setup loads configuration, installs the logger and applies driver
// enablement. It runs before every subcommand, before any bridge is probed.
func setup() error {
	c, err := config.Load(v)
	if err != nil {
		return err
	}

	level := c.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return err
	}
	logging.SetLogger(logger)

	if err := c.Apply(bridge.Default); err != nil {
		return fmt.Errorf("configure bridges: %w", err)
	}
	cfg = c
	return nil
}
