package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/hcistim/datarecording"
	"github.com/sarchlab/hcistim/hci"
	"github.com/sarchlab/hcistim/monitoring"
	"github.com/sarchlab/hcistim/pipeline"
)

var generateFlags struct {
	params      string
	out         string
	seed        int64
	rng         string
	retryLimit  int
	exactOffset bool
	masterLog   []string
	masterHWPE  []string
	record      bool
	recordDB    string
	monitor     bool
	monitorPort int
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate raw, unfolded and padded stimuli files",
	Long: `Generate runs the full pipeline: one raw transaction file per ` +
		`master under <out>/stimuli_raw, then unfolded per-cycle files ` +
		`under <out>/stimuli_processed, padded to equal length.

Each --master-log/--master-hwpe flag describes one master's access ` +
		`pattern: "<type> [start-address-binary] [stride0] [len_d0] ` +
		`[stride1] [len_d1] [stride2]", with type 0 (random), 1 (linear), ` +
		`2 (2D) or 3 (3D). Log descriptors bind to cores first, then DMAs, ` +
		`then external ports. There is no outer length: generation stops ` +
		`once the configured number of transactions is reached.`,
	Example: `  hcistim generate --params cluster.yaml \
    --master-log "0" --master-log "1 0101001 2" \
    --master-hwpe "2 1100100 2 3 2"`,
	Run: func(cmd *cobra.Command, _ []string) {
		runGenerate(cmd)
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateFlags.params, "params", "",
		"yaml or json parameter file (defaults to the reference cluster)")
	f.StringVar(&generateFlags.out, "out", "",
		"output directory (default $HCISTIM_OUT or .)")
	f.Int64Var(&generateFlags.seed, "seed", 0,
		"random seed (default $HCISTIM_SEED or 0)")
	f.StringVar(&generateFlags.rng, "rng", "",
		"random backend: math (shared seeded generator) or stream "+
			"(one named L'Ecuyer stream per master)")
	f.IntVar(&generateFlags.retryLimit, "retry-limit", 0,
		"bound address-collision retries; 0 keeps them unbounded")
	f.BoolVar(&generateFlags.exactOffset, "exact-offset", false,
		"use the configured cycle offset exactly instead of drawing "+
			"uniformly from [1, offset]")
	f.StringArrayVar(&generateFlags.masterLog, "master-log", nil,
		"pattern descriptor of one log-branch master (repeatable)")
	f.StringArrayVar(&generateFlags.masterHWPE, "master-hwpe", nil,
		"pattern descriptor of one hwpe-branch master (repeatable)")
	f.BoolVar(&generateFlags.record, "record", false,
		"mirror transactions and run metadata into a SQLite database")
	f.StringVar(&generateFlags.recordDB, "record-db", "",
		"recording database name (default hcistim_<xid>)")
	f.BoolVar(&generateFlags.monitor, "monitor", false,
		"serve generation progress over HTTP")
	f.IntVar(&generateFlags.monitorPort, "monitor-port", 0,
		"monitor port (default $HCISTIM_MONITOR_PORT or random)")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		exitWith(err)
		return
	}

	if err = cfg.Validate(); err != nil {
		exitWith(err)
		return
	}

	masters, err := parseMasters(cfg)
	if err != nil {
		exitWith(err)
		return
	}

	builder := pipeline.MakeBuilder().
		WithConfig(cfg).
		WithMasters(masters).
		WithOutputDir(outputDir(cmd))

	var execLog *datarecording.ExecRecorder
	if generateFlags.record {
		recorder := datarecording.New(generateFlags.recordDB)
		builder = builder.WithDataRecorder(recorder)

		execLog = datarecording.NewExecRecorder(recorder)
		execLog.Start()
		execLog.AddProperty("Seed", strconv.FormatInt(cfg.Seed, 10))

		cfgYAML, merr := yaml.Marshal(cfg)
		if merr == nil {
			execLog.AddProperty("Config", string(cfgYAML))
		}
	}

	if generateFlags.monitor {
		monitor := monitoring.NewMonitor()
		if port := monitorPort(cmd); port > 0 {
			monitor = monitor.WithPortNumber(port)
		}

		monitor.StartServer()
		builder = builder.WithMonitor(monitor)
	}

	err = builder.Build().Run()
	if err != nil {
		exitWith(err)
		return
	}

	if execLog != nil {
		execLog.Flush()
	}
}

// loadConfig merges the parameter file, the environment, and the flags, in
// increasing priority.
func loadConfig(cmd *cobra.Command) (hci.Config, error) {
	cfg := hci.DefaultConfig()

	if generateFlags.params != "" {
		var err error
		cfg, err = hci.ReadConfig(generateFlags.params)
		if err != nil {
			return cfg, err
		}
	}

	if env := os.Getenv("HCISTIM_SEED"); env != "" &&
		!cmd.Flags().Changed("seed") {
		seed, err := strconv.ParseInt(env, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("bad HCISTIM_SEED %q: %w", env, err)
		}

		cfg.Seed = seed
	}

	if cmd.Flags().Changed("seed") {
		cfg.Seed = generateFlags.seed
	}

	if generateFlags.rng != "" {
		if generateFlags.rng != "math" && generateFlags.rng != "stream" {
			return cfg, fmt.Errorf(
				"bad --rng %q, want math or stream", generateFlags.rng)
		}

		cfg.RNG = generateFlags.rng
	}

	if cmd.Flags().Changed("retry-limit") {
		cfg.RetryLimit = generateFlags.retryLimit
	}

	if cmd.Flags().Changed("exact-offset") {
		cfg.ExactOffset = generateFlags.exactOffset
	}

	return cfg, nil
}

func parseMasters(cfg hci.Config) ([]hci.Master, error) {
	logPatterns, err := parsePatternList(generateFlags.masterLog)
	if err != nil {
		return nil, err
	}

	hwpePatterns, err := parsePatternList(generateFlags.masterHWPE)
	if err != nil {
		return nil, err
	}

	return hci.BuildMasters(cfg, logPatterns, hwpePatterns)
}

func parsePatternList(descriptors []string) ([]hci.Pattern, error) {
	patterns := make([]hci.Pattern, 0, len(descriptors))
	for _, d := range descriptors {
		p, err := hci.ParsePattern(d)
		if err != nil {
			return nil, err
		}

		patterns = append(patterns, p)
	}

	return patterns, nil
}

func outputDir(cmd *cobra.Command) string {
	if cmd.Flags().Changed("out") {
		return generateFlags.out
	}

	if env := os.Getenv("HCISTIM_OUT"); env != "" {
		return env
	}

	return "."
}

func monitorPort(cmd *cobra.Command) int {
	if cmd.Flags().Changed("monitor-port") {
		return generateFlags.monitorPort
	}

	if env := os.Getenv("HCISTIM_MONITOR_PORT"); env != "" {
		port, err := strconv.Atoi(env)
		if err == nil {
			return port
		}

		fmt.Fprintf(os.Stderr, "Ignoring bad HCISTIM_MONITOR_PORT %q\n", env)
	}

	return 0
}
