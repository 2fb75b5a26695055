// Package pipeline composes a full stimulus generation run: raw transaction
// files for every master, unfolding into per-cycle vectors, and padding all
// streams to equal length. The three stages run strictly in order, each
// completing before the next starts.
package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sarchlab/hcistim/datarecording"
	"github.com/sarchlab/hcistim/hci"
	"github.com/sarchlab/hcistim/monitoring"
	"github.com/sarchlab/hcistim/simvectors"
	"github.com/sarchlab/hcistim/stimuli"
)

// A Pipeline runs one generation end to end.
type Pipeline struct {
	cfg     hci.Config
	masters []hci.Master
	outDir  string

	recorder datarecording.DataRecorder
	monitor  *monitoring.Monitor

	sharedSource stimuli.RandomSource
}

// Builder builds Pipelines.
type Builder struct {
	cfg      hci.Config
	masters  []hci.Master
	outDir   string
	recorder datarecording.DataRecorder
	monitor  *monitoring.Monitor
}

// MakeBuilder returns a new Builder.
func MakeBuilder() Builder {
	return Builder{outDir: "."}
}

// WithConfig sets the validated configuration of the run.
func (b Builder) WithConfig(cfg hci.Config) Builder {
	b.cfg = cfg
	return b
}

// WithMasters sets the generation-ordered master list, placeholders
// included.
func (b Builder) WithMasters(masters []hci.Master) Builder {
	b.masters = masters
	return b
}

// WithOutputDir sets the directory that will hold the stimuli_raw and
// stimuli_processed subdirectories.
func (b Builder) WithOutputDir(dir string) Builder {
	b.outDir = dir
	return b
}

// WithDataRecorder mirrors generated transactions and run metadata into a
// recording database.
func (b Builder) WithDataRecorder(recorder datarecording.DataRecorder) Builder {
	b.recorder = recorder
	return b
}

// WithMonitor attaches a monitor that serves per-master progress.
func (b Builder) WithMonitor(monitor *monitoring.Monitor) Builder {
	b.monitor = monitor
	return b
}

// Build builds a Pipeline. The configuration must validate and the master
// list must not be empty.
func (b Builder) Build() *Pipeline {
	if err := b.cfg.Validate(); err != nil {
		panic(fmt.Errorf("pipeline built with a bad config: %w", err))
	}

	if len(b.masters) == 0 {
		panic("pipeline built without masters")
	}

	p := &Pipeline{
		cfg:      b.cfg,
		masters:  b.masters,
		outDir:   b.outDir,
		recorder: b.recorder,
		monitor:  b.monitor,
	}

	if b.cfg.RNG == "stream" {
		stimuli.SetStreamMasterSeed(uint64(b.cfg.Seed))
	} else {
		p.sharedSource = stimuli.NewMathSource(b.cfg.Seed)
	}

	return p
}

// RawDir returns the directory holding the raw transaction files.
func (p *Pipeline) RawDir() string {
	return filepath.Join(p.outDir, "stimuli_raw")
}

// ProcessedDir returns the directory holding the unfolded, padded files.
func (p *Pipeline) ProcessedDir() string {
	return filepath.Join(p.outDir, "stimuli_processed")
}

// Run executes the three stages in order.
func (p *Pipeline) Run() error {
	err := p.GenerateRaw()
	if err != nil {
		return err
	}

	log.Printf("STEP 0 COMPLETED: created raw txt files")

	processor := simvectors.MakeBuilder().
		WithIDWidth(p.cfg.IDWidth()).
		WithDataWidth(p.cfg.DataWidth()).
		WithAddrWidth(p.cfg.AddrWidth()).
		WithHWPEWidth(p.hwpeWidthOrOne()).
		Build()

	err = processor.Unfold(p.RawDir(), p.ProcessedDir())
	if err != nil {
		return err
	}

	log.Printf("STEP 1 COMPLETED: unfolded txt files")

	err = processor.Pad(p.ProcessedDir())
	if err != nil {
		return err
	}

	log.Printf("STEP 2 COMPLETED: padded txt files")

	return nil
}

func (p *Pipeline) hwpeWidthOrOne() int {
	if p.cfg.HWPEWidth < 1 {
		return 1
	}

	return p.cfg.HWPEWidth
}

// GenerateRaw creates the raw transaction file of every master, threading
// the global ID counter and one shared reservation table from master to
// master so that IDs are totally ordered across the run and no two accesses
// of the same kind claim the same address.
func (p *Pipeline) GenerateRaw() error {
	err := os.MkdirAll(p.RawDir(), 0755)
	if err != nil {
		return fmt.Errorf("cannot create directory %s: %w", p.RawDir(), err)
	}

	rsv := stimuli.NewReservationTable()
	nextID := uint64(0)

	for _, m := range p.masters {
		path := filepath.Join(p.RawDir(), m.FileName())

		if m.Zero {
			err := stimuli.WriteZeroFile(path)
			if err != nil {
				return err
			}

			continue
		}

		nextID, err = p.generateMaster(m, path, nextID, rsv)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) generateMaster(
	m hci.Master,
	path string,
	idStart uint64,
	rsv *stimuli.ReservationTable,
) (uint64, error) {
	dataWidth := p.cfg.DataWidth()
	testCount := p.cfg.NTestLog
	cycleOffset := p.cfg.CycleOffsetLog

	if m.Branch() == hci.BranchHWPE {
		dataWidth = p.cfg.HWPEDataWidth()
		testCount = p.cfg.NTestHWPE()
		cycleOffset = p.cfg.CycleOffsetHWPE
	}

	writer := p.buildWriter(m, path, dataWidth)
	defer writer.Close()

	builder := stimuli.MakeBuilder().
		WithTotalBytes(p.cfg.TotalBytes()).
		WithWordBytes(p.cfg.WordBytes()).
		WithDataWidth(dataWidth).
		WithTestCount(testCount).
		WithCycleOffset(cycleOffset).
		WithExactOffset(p.cfg.ExactOffset).
		WithRetryLimit(p.cfg.RetryLimit).
		WithRandomSource(p.sourceFor(m)).
		WithWriter(writer)

	var bar *monitoring.ProgressBar
	if p.monitor != nil {
		bar = p.monitor.CreateProgressBar(m.Name(), uint64(testCount))
		builder = builder.WithProgressBar(bar)
	}

	g := builder.Build(m.Name())

	if p.monitor != nil {
		p.monitor.RegisterGenerator(g)
	}

	nextID, err := g.Generate(m.Pattern, idStart, rsv)

	if p.monitor != nil {
		p.monitor.CompleteProgressBar(bar)
	}

	return nextID, err
}

func (p *Pipeline) buildWriter(
	m hci.Master,
	path string,
	dataWidth int,
) stimuli.TransactionWriter {
	fw := stimuli.NewFileWriter(
		path, p.cfg.IDWidth(), dataWidth, p.cfg.AddrWidth())
	fw.Init()

	if p.recorder == nil {
		return fw
	}

	dbw := stimuli.NewDBWriter(
		p.recorder,
		m.Name(),
		dataWidth,
		hci.NewBankMapper(p.cfg.WordBytes(), p.cfg.NBanks),
	)

	return stimuli.MultiWriter(fw, dbw)
}

func (p *Pipeline) sourceFor(m hci.Master) stimuli.RandomSource {
	if p.cfg.RNG == "stream" {
		// One named stream per master keeps the run reproducible even if
		// the master list changes order.
		return stimuli.NewStreamSource(m.Name())
	}

	return p.sharedSource
}
