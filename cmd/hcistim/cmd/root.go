// Package cmd provides the command-line interface for the HCI stimuli
// generator.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/hcistim/hci"
	"github.com/sarchlab/hcistim/stimuli"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "hcistim",
	Short: "hcistim generates memory-access stimuli for the verification " +
		"suite of the Heterogeneous Cluster Interconnect.",
	Long: `hcistim generates the per-master stimuli files the HCI ` +
		`verification suite consumes. Depending on a set of configuration ` +
		`parameters, it produces one raw transaction file per master, then ` +
		`unfolds them into per-cycle simulation vectors and pads all ` +
		`streams to equal length so the testbench can replay them in ` +
		`lock step.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// .env files provide site defaults (HCISTIM_OUT, HCISTIM_SEED,
		// HCISTIM_MONITOR_PORT). A missing file is fine.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}

// exitWith reports a fatal error and terminates with the exit code of the
// failed check. Registered atexit handlers, including file flushes, still
// run.
func exitWith(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)

	var pathErr *fs.PathError

	switch {
	case errors.Is(err, hci.ErrWordCount):
		atexit.Exit(2)
	case errors.Is(err, hci.ErrNoMasters):
		atexit.Exit(3)
	case errors.Is(err, hci.ErrMasterCount):
		atexit.Exit(4)
	case errors.Is(err, stimuli.ErrAddressSpaceExhausted):
		atexit.Exit(5)
	case errors.As(err, &pathErr):
		atexit.Exit(6)
	default:
		atexit.Exit(1)
	}
}
