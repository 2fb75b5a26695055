// Package hci describes the Heterogeneous Cluster Interconnect under
// verification: the cluster geometry, the simulation parameters, and the
// masters that drive traffic into the banked memory.
package hci

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// ErrWordCount is returned when the configured memory cannot be split into a
// whole number of words per bank.
var ErrWordCount = errors.New("the number of words per bank is not an integer value")

// ErrNoMasters is returned when the configuration describes no master at all.
var ErrNoMasters = errors.New("the number of masters must be > 0")

// A Config carries every hardware and simulation parameter that stimulus
// generation depends on. It is immutable after Validate passes.
type Config struct {
	// Hardware parameters.
	NBanks       int `json:"n_banks" yaml:"nbanks"`
	TotMemSizeKB int `json:"tot_mem_size_kb" yaml:"totmemsizekb"`
	MemoryWidth  int `json:"memory_width" yaml:"memorywidth"`
	NCore        int `json:"n_core" yaml:"ncore"`
	NDMA         int `json:"n_dma" yaml:"ndma"`
	NExt         int `json:"n_ext" yaml:"next"`
	NHWPE        int `json:"n_hwpe" yaml:"nhwpe"`
	HWPEWidth    int `json:"hwpe_width" yaml:"hwpewidth"`

	// Simulation parameters.
	TestRatio       int  `json:"test_ratio" yaml:"testratio"`
	NTestLog        int  `json:"n_test_log" yaml:"ntestlog"`
	CycleOffsetLog  int  `json:"cycle_offset_log" yaml:"cycleoffsetlog"`
	CycleOffsetHWPE int  `json:"cycle_offset_hwpe" yaml:"cycleoffsethwpe"`
	ExactOffset     bool `json:"exact_offset" yaml:"exactoffset"`

	// Operational knobs.
	Seed       int64  `json:"seed" yaml:"seed"`
	RNG        string `json:"rng" yaml:"rng"`
	RetryLimit int    `json:"retry_limit" yaml:"retrylimit"`
}

// DefaultConfig returns the parameter set of the reference 8-core cluster.
func DefaultConfig() Config {
	return Config{
		NBanks:          8,
		TotMemSizeKB:    32,
		MemoryWidth:     32,
		NCore:           8,
		HWPEWidth:       4,
		TestRatio:       1,
		NTestLog:        3,
		CycleOffsetLog:  5,
		CycleOffsetHWPE: 5,
		RNG:             "math",
	}
}

// WordBytes returns the size of one memory word in bytes.
func (c Config) WordBytes() uint64 {
	return uint64(c.MemoryWidth / 8)
}

// TotalBytes returns the total memory size in bytes. Memory size is given in
// kB, with 1 kB = 1000 bytes, matching the hardware datasheet.
func (c Config) TotalBytes() uint64 {
	return uint64(c.TotMemSizeKB) * 1000
}

// DataWidth returns the data width, in bits, of a log-branch transaction.
func (c Config) DataWidth() int {
	return c.MemoryWidth
}

// HWPEDataWidth returns the data width, in bits, of an hwpe-branch
// transaction. HWPEs issue one wide beat covering HWPEWidth words.
func (c Config) HWPEDataWidth() int {
	return c.HWPEWidth * c.MemoryWidth
}

// AddrWidth returns the number of bits of a byte address into the memory.
func (c Config) AddrWidth() int {
	return ceilLog2(c.TotalBytes())
}

// NLog returns the number of masters on the logarithmic branch.
func (c Config) NLog() int {
	return c.NCore + c.NDMA + c.NExt
}

// NMaster returns the total number of masters.
func (c Config) NMaster() int {
	return c.NLog() + c.NHWPE
}

// NTestHWPE returns the number of transactions each hwpe master issues.
func (c Config) NTestHWPE() int {
	return c.NTestLog * c.TestRatio
}

// TotalTransactions returns the number of transactions across all masters in
// one run. Absent master classes contribute zero; the placeholder files the
// composition layer writes for them carry no transactions.
func (c Config) TotalTransactions() int {
	return c.NTestLog*c.NLog() + c.NTestHWPE()*c.NHWPE
}

// IDWidth returns the number of bits of the transaction ID field, wide enough
// for every ID issued in one run.
func (c Config) IDWidth() int {
	return ceilLog2(uint64(c.TotalTransactions()))
}

// WordsPerBank returns the number of words each memory bank holds. The value
// is only meaningful when Validate passes.
func (c Config) WordsPerBank() uint64 {
	return c.TotalBytes() / uint64(c.NBanks) / c.WordBytes()
}

// Validate checks the configuration before any generation starts. Generation
// is all-or-nothing; a bad parameter set must fail here, not mid-run.
func (c Config) Validate() error {
	if c.NBanks <= 0 || c.TotMemSizeKB <= 0 || c.MemoryWidth <= 0 {
		return fmt.Errorf("memory geometry must be positive, "+
			"have %d banks, %d kB, %d-bit words",
			c.NBanks, c.TotMemSizeKB, c.MemoryWidth)
	}

	if c.MemoryWidth%8 != 0 {
		return fmt.Errorf("memory width %d is not a whole number of bytes",
			c.MemoryWidth)
	}

	if c.NCore < 0 || c.NDMA < 0 || c.NExt < 0 || c.NHWPE < 0 {
		return fmt.Errorf("master counts must not be negative")
	}

	if c.NHWPE > 0 && c.HWPEWidth <= 0 {
		return fmt.Errorf("hwpe width must be positive when hwpes are present")
	}

	if c.NTestLog <= 0 || c.TestRatio <= 0 {
		return fmt.Errorf("test counts must be positive, "+
			"have ntestlog %d, testratio %d", c.NTestLog, c.TestRatio)
	}

	if c.CycleOffsetLog < 1 || c.CycleOffsetHWPE < 1 {
		return fmt.Errorf("cycle offsets must be >= 1, have log %d, hwpe %d",
			c.CycleOffsetLog, c.CycleOffsetHWPE)
	}

	if c.TotalBytes()%(uint64(c.NBanks)*c.WordBytes()) != 0 {
		return fmt.Errorf("%w: %d bytes over %d banks of %d-byte words",
			ErrWordCount, c.TotalBytes(), c.NBanks, c.WordBytes())
	}

	if c.NMaster() < 1 {
		return ErrNoMasters
	}

	return nil
}

// WriteToFile serializes the Config to the named file. Serialization to json
// or to yaml is selected based on the extension of the name.
func (c Config) WriteToFile(filename string) error {
	var b []byte
	var err error

	switch path.Ext(filename) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(c)
	default:
		b, err = json.MarshalIndent(c, "", "\t")
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, b, 0644)
}

// ReadConfig loads a Config from the named yaml or json file. Fields absent
// from the file keep their DefaultConfig value.
func ReadConfig(filename string) (Config, error) {
	c := DefaultConfig()

	b, err := os.ReadFile(filename)
	if err != nil {
		return c, err
	}

	switch path.Ext(filename) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &c)
	default:
		err = json.Unmarshal(b, &c)
	}

	if err != nil {
		return c, fmt.Errorf("cannot parse config %s: %w", filename, err)
	}

	return c, nil
}

// ceilLog2 returns ceil(log2(n)), with 0 for n <= 1.
func ceilLog2(n uint64) int {
	if n <= 1 {
		return 0
	}

	return bits.Len64(n - 1)
}
