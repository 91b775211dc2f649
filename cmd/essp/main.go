// Essp talks to SSP and eSSP cash peripherals over a serial line.
//
// It opens a session on a configured port, negotiates the AES key when a
// command needs the encrypted channel, and exposes the session operations as
// subcommands. The watch command keeps a background poller running and can
// show results in a terminal dashboard or fan them out to WebSocket clients.
//
// Usage:
//
//	essp [command] [flags]
//
// See 'essp --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/essp/internal/logging"
	"github.com/muurk/essp/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "essp",
	Short: "SSP/eSSP serial session manager",
	Long: `A session manager for SSP and eSSP cash peripherals.

Each command opens the serial line, runs its exchange and closes the line.
Commands that move value (empty, smart-empty, rekey) negotiate an AES key
first; everything else runs in the clear unless --encrypt is given.

Device profiles live in a YAML file (see 'essp profile path'). Use --device
to select one and --port to override its serial port.`,
	Version: version.Full(),
	Example: `  # List serial ports
  essp ports

  # Read the device identity
  essp info --port /dev/ttyUSB0

  # Watch events in a dashboard, encrypted
  essp watch --device hopper --encrypt --tui

  # Try everything against the built-in simulator
  essp handshake --simulate`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Past argument parsing; failures are reported by the command itself
		cmd.SilenceUsage = true
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.Get().String())
	},
}
