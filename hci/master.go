package hci

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMasterCount is returned when the number of pattern descriptors does not
// match the number of masters the configuration expects.
var ErrMasterCount = errors.New("incorrect number of master descriptors")

// A Branch identifies one of the two interconnect port classes.
type Branch int

// The log branch serves cores, DMAs and external ports with single-word
// transactions. The hwpe branch serves hardware processing engines with wide
// beats.
const (
	BranchLog Branch = iota
	BranchHWPE
)

func (b Branch) String() string {
	if b == BranchHWPE {
		return "hwpe"
	}

	return "log"
}

// A MasterClass identifies the kind of agent behind a master port.
type MasterClass int

// Master classes in generation order. Cores come first, then DMAs, then
// external ports, then HWPEs.
const (
	ClassCore MasterClass = iota
	ClassDMA
	ClassExt
	ClassHWPE
)

func (c MasterClass) String() string {
	switch c {
	case ClassCore:
		return "core"
	case ClassDMA:
		return "dma"
	case ClassExt:
		return "ext"
	case ClassHWPE:
		return "hwpe"
	}

	return "unknown"
}

// Branch returns the interconnect branch the class is attached to.
func (c MasterClass) Branch() Branch {
	if c == ClassHWPE {
		return BranchHWPE
	}

	return BranchLog
}

// A PatternKind selects one of the four memory access laws.
type PatternKind int

// Pattern kinds, numbered as the descriptor's access-type field.
const (
	PatternRandom PatternKind = iota
	PatternLinear
	PatternGrid2D
	PatternGrid3D
)

func (k PatternKind) String() string {
	switch k {
	case PatternRandom:
		return "random"
	case PatternLinear:
		return "linear"
	case PatternGrid2D:
		return "2d"
	case PatternGrid3D:
		return "3d"
	}

	return "unknown"
}

// A Pattern describes the memory access law of one master. StartAddress and
// the stride/length fields only apply to the non-random kinds. There is no
// outer length: generation stops once the configured number of transactions
// is reached.
type Pattern struct {
	Kind         PatternKind `json:"kind" yaml:"kind"`
	StartAddress uint64      `json:"start_address" yaml:"startaddress"`
	Stride0      int         `json:"stride0" yaml:"stride0"`
	LenD0        int         `json:"len_d0" yaml:"lend0"`
	Stride1      int         `json:"stride1" yaml:"stride1"`
	LenD1        int         `json:"len_d1" yaml:"lend1"`
	Stride2      int         `json:"stride2" yaml:"stride2"`
}

// Validate checks that the fields the pattern kind needs are present.
func (p Pattern) Validate() error {
	switch p.Kind {
	case PatternRandom:
		return nil
	case PatternGrid3D:
		if p.LenD1 < 1 {
			return fmt.Errorf("3d pattern needs len_d1 >= 1, have %d", p.LenD1)
		}

		if p.Stride2 == 0 {
			return fmt.Errorf("3d pattern needs a non-zero stride2")
		}

		fallthrough
	case PatternGrid2D:
		if p.LenD0 < 1 {
			return fmt.Errorf("%s pattern needs len_d0 >= 1, have %d",
				p.Kind, p.LenD0)
		}

		if p.Stride1 == 0 {
			return fmt.Errorf("%s pattern needs a non-zero stride1", p.Kind)
		}

		fallthrough
	case PatternLinear:
		if p.Stride0 == 0 {
			return fmt.Errorf("%s pattern needs a non-zero stride0", p.Kind)
		}
	default:
		return fmt.Errorf("unknown pattern kind %d", p.Kind)
	}

	return nil
}

// ParsePattern parses a descriptor of the form
// "<type> [start-address-binary] [stride0] [len_d0] [stride1] [len_d1]
// [stride2]", with fields separated by spaces or commas. Trailing fields the
// kind does not need may be omitted.
func ParsePattern(s string) (Pattern, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})

	if len(fields) == 0 {
		return Pattern{}, fmt.Errorf("empty master descriptor")
	}

	kind, err := strconv.Atoi(fields[0])
	if err != nil || kind < 0 || kind > 3 {
		return Pattern{}, fmt.Errorf(
			"bad access type %q, want 0 (random), 1 (linear), 2 (2d), 3 (3d)",
			fields[0])
	}

	p := Pattern{Kind: PatternKind(kind)}
	if p.Kind == PatternRandom {
		return p, nil
	}

	need := map[PatternKind]int{
		PatternLinear: 3,
		PatternGrid2D: 5,
		PatternGrid3D: 7,
	}[p.Kind]
	if len(fields) < need {
		return Pattern{}, fmt.Errorf(
			"%s descriptor %q needs %d fields, have %d",
			p.Kind, s, need, len(fields))
	}

	p.StartAddress, err = strconv.ParseUint(fields[1], 2, 64)
	if err != nil {
		return Pattern{}, fmt.Errorf(
			"bad binary start address %q: %w", fields[1], err)
	}

	ints := make([]int, 0, 5)
	for _, f := range fields[2:need] {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Pattern{}, fmt.Errorf("bad descriptor field %q: %w", f, err)
		}

		ints = append(ints, v)
	}

	p.Stride0 = ints[0]
	if p.Kind >= PatternGrid2D {
		p.LenD0, p.Stride1 = ints[1], ints[2]
	}

	if p.Kind == PatternGrid3D {
		p.LenD1, p.Stride2 = ints[3], ints[4]
	}

	return p, p.Validate()
}

// A Master is one traffic-issuing agent. A Zero master is a placeholder for
// an absent master class: it occupies one file slot and emits the "zero"
// sentinel instead of transactions.
type Master struct {
	Class     MasterClass
	FileIndex int
	Zero      bool
	Pattern   Pattern
}

// Branch returns the interconnect branch the master sits on.
func (m Master) Branch() Branch {
	return m.Class.Branch()
}

// FileName returns the name of the master's stimuli file, numbered within
// its branch.
func (m Master) FileName() string {
	return fmt.Sprintf("master_%s_%d.txt", m.Branch(), m.FileIndex)
}

// Name returns the master's name, used for progress reporting and RNG stream
// naming.
func (m Master) Name() string {
	return fmt.Sprintf("master_%s_%d", m.Branch(), m.FileIndex)
}

// BuildMasters pairs the configured master counts with the given pattern
// descriptors and returns the full generation-ordered master list. Every
// absent class contributes one Zero placeholder at the file index its first
// member would have used, shifting the indices of the classes behind it.
func BuildMasters(
	cfg Config,
	logPatterns, hwpePatterns []Pattern,
) ([]Master, error) {
	if len(logPatterns) != cfg.NLog() {
		return nil, fmt.Errorf(
			"%w: want %d log descriptors, have %d",
			ErrMasterCount, cfg.NLog(), len(logPatterns))
	}

	if len(hwpePatterns) != cfg.NHWPE {
		return nil, fmt.Errorf(
			"%w: want %d hwpe descriptors, have %d",
			ErrMasterCount, cfg.NHWPE, len(hwpePatterns))
	}

	// ParsePattern validates on the CLI path; programmatically built
	// patterns must fail here too, before a generator can loop on them.
	for i, p := range logPatterns {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("log descriptor %d: %w", i, err)
		}
	}

	for i, p := range hwpePatterns {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("hwpe descriptor %d: %w", i, err)
		}
	}

	var masters []Master
	logIndex := 0
	next := 0

	for _, class := range []MasterClass{ClassCore, ClassDMA, ClassExt} {
		count := map[MasterClass]int{
			ClassCore: cfg.NCore,
			ClassDMA:  cfg.NDMA,
			ClassExt:  cfg.NExt,
		}[class]

		if count <= 0 {
			masters = append(masters,
				Master{Class: class, FileIndex: logIndex, Zero: true})
			logIndex++

			continue
		}

		for i := 0; i < count; i++ {
			masters = append(masters, Master{
				Class:     class,
				FileIndex: logIndex,
				Pattern:   logPatterns[next],
			})
			logIndex++
			next++
		}
	}

	if cfg.NHWPE <= 0 {
		masters = append(masters,
			Master{Class: ClassHWPE, FileIndex: 0, Zero: true})

		return masters, nil
	}

	for i := 0; i < cfg.NHWPE; i++ {
		masters = append(masters, Master{
			Class:     ClassHWPE,
			FileIndex: i,
			Pattern:   hwpePatterns[i],
		})
	}

	return masters, nil
}
