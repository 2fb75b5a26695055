package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hcistim/analysis"
	"github.com/sarchlab/hcistim/datarecording"
	"github.com/sarchlab/hcistim/hci"
)

var statsFlags struct {
	dir      string
	fromDB   string
	params   string
	record   bool
	recordDB string
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report statistics over a generated stimuli directory",
	Long: `Stats reads the raw transaction files of a previous run, or the ` +
		`recording database of a run generated with --record, and prints ` +
		`per-master traffic counts, address ranges, bank utilization and ` +
		`cycle-offset statistics. It never modifies what it reads.`,
	Run: func(_ *cobra.Command, _ []string) {
		runStats()
	},
}

func init() {
	f := statsCmd.Flags()
	f.StringVar(&statsFlags.dir, "dir", "stimuli_raw",
		"raw stimuli directory to analyze")
	f.StringVar(&statsFlags.fromDB, "from-db", "",
		"recording database to analyze instead of --dir")
	f.StringVar(&statsFlags.params, "params", "",
		"parameter file of the run (defaults to the reference cluster)")
	f.BoolVar(&statsFlags.record, "record", false,
		"also insert the statistics into a SQLite database")
	f.StringVar(&statsFlags.recordDB, "record-db", "",
		"recording database name (default hcistim_<xid>)")

	rootCmd.AddCommand(statsCmd)
}

func runStats() {
	cfg := hci.DefaultConfig()

	if statsFlags.params != "" {
		var err error
		cfg, err = hci.ReadConfig(statsFlags.params)
		if err != nil {
			exitWith(err)
			return
		}
	}

	if err := cfg.Validate(); err != nil {
		exitWith(err)
		return
	}

	stats, err := collectStats(cfg)
	if err != nil {
		exitWith(err)
		return
	}

	stats.WriteTable(os.Stdout)

	if statsFlags.record {
		stats.Record(datarecording.New(statsFlags.recordDB))
	}
}

func collectStats(cfg hci.Config) (*analysis.StreamStats, error) {
	if statsFlags.fromDB == "" {
		return analysis.CollectStreamStats(cfg, statsFlags.dir)
	}

	// Opening a SQLite file creates it when absent; a missing database must
	// fail instead.
	if _, err := os.Stat(statsFlags.fromDB); err != nil {
		return nil, err
	}

	reader := datarecording.NewReader(statsFlags.fromDB)
	defer reader.Close()

	return analysis.CollectRecordedStats(cfg, reader)
}
