package stimuli

import (
	"fmt"

	"github.com/sarchlab/hcistim/monitoring"
)

// Builder builds Generators.
type Builder struct {
	totalBytes  uint64
	wordBytes   uint64
	dataWidth   int
	testCount   int
	cycleOffset int
	exactOffset bool
	retryLimit  int
	source      RandomSource
	writer      TransactionWriter
	bar         *monitoring.ProgressBar
}

// MakeBuilder returns a new Builder.
func MakeBuilder() Builder {
	return Builder{
		cycleOffset: 1,
	}
}

// WithTotalBytes sets the memory size in bytes.
func (b Builder) WithTotalBytes(totalBytes uint64) Builder {
	b.totalBytes = totalBytes
	return b
}

// WithWordBytes sets the memory word size in bytes.
func (b Builder) WithWordBytes(wordBytes uint64) Builder {
	b.wordBytes = wordBytes
	return b
}

// WithDataWidth sets the transaction payload width in bits.
func (b Builder) WithDataWidth(dataWidth int) Builder {
	b.dataWidth = dataWidth
	return b
}

// WithTestCount sets the number of transactions to generate.
func (b Builder) WithTestCount(testCount int) Builder {
	b.testCount = testCount
	return b
}

// WithCycleOffset sets the cycle-offset parameter: the exact offset of every
// transaction in exact mode, the upper bound of the uniform draw otherwise.
func (b Builder) WithCycleOffset(cycleOffset int) Builder {
	b.cycleOffset = cycleOffset
	return b
}

// WithExactOffset selects exact-offset mode.
func (b Builder) WithExactOffset(exact bool) Builder {
	b.exactOffset = exact
	return b
}

// WithRetryLimit bounds the collision-retry loops. Zero keeps them
// unbounded.
func (b Builder) WithRetryLimit(limit int) Builder {
	b.retryLimit = limit
	return b
}

// WithRandomSource sets the source of random draws.
func (b Builder) WithRandomSource(source RandomSource) Builder {
	b.source = source
	return b
}

// WithWriter sets the sink for generated transactions.
func (b Builder) WithWriter(writer TransactionWriter) Builder {
	b.writer = writer
	return b
}

// WithProgressBar attaches a progress bar, incremented once per accepted
// transaction.
func (b Builder) WithProgressBar(bar *monitoring.ProgressBar) Builder {
	b.bar = bar
	return b
}

// Build builds a Generator for the named master.
func (b Builder) Build(name string) *Generator {
	if b.writer == nil {
		panic("generator " + name + " built without a writer")
	}

	if b.source == nil {
		panic("generator " + name + " built without a random source")
	}

	if b.totalBytes == 0 || b.wordBytes == 0 ||
		b.totalBytes%b.wordBytes != 0 {
		panic(fmt.Sprintf(
			"generator %s built with bad memory geometry: %d bytes, %d-byte words",
			name, b.totalBytes, b.wordBytes))
	}

	if b.dataWidth <= 0 || b.testCount <= 0 || b.cycleOffset < 1 {
		panic(fmt.Sprintf(
			"generator %s built with bad parameters: "+
				"data width %d, test count %d, cycle offset %d",
			name, b.dataWidth, b.testCount, b.cycleOffset))
	}

	return &Generator{
		name:        name,
		totalBytes:  b.totalBytes,
		wordBytes:   b.wordBytes,
		dataWidth:   b.dataWidth,
		testCount:   b.testCount,
		cycleOffset: b.cycleOffset,
		exactOffset: b.exactOffset,
		retryLimit:  b.retryLimit,
		source:      b.source,
		writer:      b.writer,
		bar:         b.bar,
	}
}
