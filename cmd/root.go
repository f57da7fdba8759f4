// Package cmd provides the command-line interface for the simulator.
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/mesi4sim/cache"
	"github.com/sarchlab/mesi4sim/monitor"
	"github.com/sarchlab/mesi4sim/report"
	"github.com/sarchlab/mesi4sim/simulate"
	"github.com/sarchlab/mesi4sim/tracing"
)

var logger = log.New(os.Stderr, "", 0)

var (
	tracePrefix   string
	indexBits     int
	associativity int
	offsetBits    int
	outputPath    string
	dbPath        string
	monitorAddr   string
	monitorOpen   bool
)

var rootCmd = &cobra.Command{
	Use:   "mesi4sim",
	Short: "mesi4sim simulates a 4-core MESI snooping-bus multiprocessor.",
	Long: "mesi4sim replays four per-core memory traces against a " +
		"cycle-accurate model of per-core MESI L1 caches on a shared " +
		"snooping bus, and reports cache and bus statistics.",
	RunE: runSimulate,
}

func init() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("warning: could not load .env: %v", err)
	}

	rootCmd.Flags().StringVarP(&tracePrefix, "trace", "t", envDefault("MESI4SIM_TRACE_PREFIX", ""),
		"trace file prefix (required); reads <prefix>_proc0.trace .. _proc3.trace")
	rootCmd.Flags().IntVarP(&indexBits, "set-index-bits", "s", 2, "number of set index bits")
	rootCmd.Flags().IntVarP(&associativity, "associativity", "E", 2, "cache associativity")
	rootCmd.Flags().IntVarP(&offsetBits, "block-bits", "b", 4, "number of block offset bits")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", envDefault("MESI4SIM_OUTPUT", ""),
		"output file for statistics (default: stdout)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "optional SQLite file to record every bus transaction")
	rootCmd.Flags().StringVar(&monitorAddr, "monitor-addr", "", "optional host:port to serve live simulation status on")
	rootCmd.Flags().BoolVar(&monitorOpen, "monitor-open", false, "open the monitor status page in a browser once it starts")
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Printf("error: %v", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	if tracePrefix == "" {
		return fmt.Errorf("-t/--trace is required")
	}

	var recorder *tracing.SQLiteRecorder

	if dbPath != "" {
		r, err := tracing.NewSQLiteRecorder(dbPath)
		if err != nil {
			return err
		}

		recorder = r
		defer recorder.Close()
	}

	var mon *monitor.Monitor

	if monitorAddr != "" {
		mon = monitor.New(logger)
		if err := mon.Start(monitorAddr, monitorOpen); err != nil {
			return fmt.Errorf("starting monitor: %w", err)
		}

		defer mon.Stop()
	}

	geometry := cache.Geometry{IndexBits: indexBits, Ways: associativity, OffsetBits: offsetBits}

	cfg := simulate.Config{
		TracePrefix: tracePrefix,
		Geometry:    geometry,
	}

	if recorder != nil {
		cfg.Recorder = recorder
	}

	if mon != nil {
		cfg.OnTick = func(cycle uint64, s *simulate.Simulation) {
			mon.Update(snapshotOf(cycle, s))
		}
	}

	sim, err := simulate.New(cfg)
	if err != nil {
		return err
	}

	sim.Run()

	out, closeOut := openOutput(outputPath)
	defer closeOut()

	params := report.Params{TracePrefix: tracePrefix, Geometry: geometry}

	return report.Write(out, params, sim.Cores(), sim.Caches(), sim.Bus())
}

// openOutput opens outputPath for the report, falling back to stdout with
// a warning on any error — output errors never abort the run.
func openOutput(outputPath string) (*os.File, func()) {
	if outputPath == "" {
		return os.Stdout, func() {}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		logger.Printf("warning: could not open output file %s: %v; writing to stdout", outputPath, err)
		return os.Stdout, func() {}
	}

	return f, func() { f.Close() }
}

func snapshotOf(cycle uint64, s *simulate.Simulation) monitor.Snapshot {
	cores := s.Cores()
	caches := s.Caches()

	done := 0
	states := make([]monitor.CoreState, 0, len(cores))

	for i, c := range cores {
		if c.Finished() {
			done++
		}

		states = append(states, monitor.CoreState{
			ID:           c.ID(),
			Finished:     c.Finished(),
			Blocked:      caches[i].Blocked(),
			Instructions: c.Counters().Instructions,
		})
	}

	return monitor.Snapshot{
		Cycle:       cycle,
		CoresDone:   done,
		CoreStates:  states,
		BusBusy:     s.Bus().Busy(),
		QueueLength: s.Bus().QueueLength(),
	}
}
