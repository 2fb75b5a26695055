package stimuli

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/sarchlab/hcistim/hci"
	"github.com/sarchlab/hcistim/monitoring"
)

// ErrAddressSpaceExhausted is returned when a bounded-retry generator cannot
// find a free address within its retry limit.
var ErrAddressSpaceExhausted = errors.New(
	"no free address found within the retry limit")

// A Generator produces the transaction stream of one master. Every Generate*
// operation emits exactly the configured number of transactions to the
// writer, starting at the given ID, and returns the next free global ID so
// the composition layer can thread it into the next master.
type Generator struct {
	name string

	totalBytes  uint64
	wordBytes   uint64
	dataWidth   int
	testCount   int
	cycleOffset int
	exactOffset bool
	retryLimit  int

	source RandomSource
	writer TransactionWriter
	bar    *monitoring.ProgressBar
}

// Name returns the name of the master the generator drives.
func (g *Generator) Name() string {
	return g.name
}

// Generate dispatches on the pattern kind.
func (g *Generator) Generate(
	p hci.Pattern,
	idStart uint64,
	rsv *ReservationTable,
) (uint64, error) {
	switch p.Kind {
	case hci.PatternRandom:
		return g.GenerateRandom(idStart, rsv)
	case hci.PatternLinear:
		return g.GenerateLinear(p.Stride0, p.StartAddress, idStart, rsv)
	case hci.PatternGrid2D:
		return g.Generate2D(
			p.Stride0, p.LenD0, p.Stride1, p.StartAddress, idStart, rsv)
	case hci.PatternGrid3D:
		return g.Generate3D(
			p.Stride0, p.LenD0, p.Stride1, p.LenD1, p.Stride2,
			p.StartAddress, idStart, rsv)
	}

	panic(fmt.Sprintf("unknown pattern kind %d", p.Kind))
}

// GenerateRandom draws every transaction field uniformly: data over
// [0, 2^dataWidth), wen over {0,1}, the cycle offset per the offset policy,
// and a word-aligned address over the whole memory. An address already
// reserved for the same access kind is redrawn. With no retry limit the
// redraw loop is unbounded, so a saturated address space blocks generation;
// the practical memories this tool targets never fill up within one run.
func (g *Generator) GenerateRandom(
	idStart uint64,
	rsv *ReservationTable,
) (uint64, error) {
	id := idStart
	words := int(g.totalBytes / g.wordBytes)

	for t := 0; t < g.testCount; t++ {
		data, wen, offset := g.randomFields()
		kind := accessKindOf(wen)

		var addr uint64
		retries := 0

		for {
			addr = uint64(g.source.IntN(words)) * g.wordBytes
			if !rsv.Contains(kind, addr) {
				break
			}

			retries++
			if g.retryLimit > 0 && retries >= g.retryLimit {
				return id, fmt.Errorf("%w: %s gave up after %d draws",
					ErrAddressSpaceExhausted, g.name, retries)
			}
		}

		g.accept(id, offset, wen, data, addr, rsv)
		id++
	}

	g.writer.Flush()

	return id, nil
}

// GenerateLinear walks the address space by stride0 words per candidate,
// wrapping modulo the memory size. A reserved candidate is skipped without
// consuming an ID; the walk keeps advancing, which is the random case's
// collision semantics applied to a deterministic stream.
func (g *Generator) GenerateLinear(
	stride0 int,
	startAddress uint64,
	idStart uint64,
	rsv *ReservationTable,
) (uint64, error) {
	id := idStart
	next := startAddress % g.totalBytes
	step := int64(g.wordBytes) * int64(stride0)

	for t := 0; t < g.testCount; t++ {
		data, wen, offset := g.randomFields()
		kind := accessKindOf(wen)

		var addr uint64
		retries := 0

		for {
			addr = next
			next = g.wrap(int64(next) + step)

			if !rsv.Contains(kind, addr) {
				break
			}

			retries++
			if g.retryLimit > 0 && retries >= g.retryLimit {
				return id, fmt.Errorf("%w: %s gave up after %d candidates",
					ErrAddressSpaceExhausted, g.name, retries)
			}
		}

		g.accept(id, offset, wen, data, addr, rsv)
		id++
	}

	g.writer.Flush()

	return id, nil
}

// Generate2D emits addresses addr(i,j) = start + i*stride0*word +
// j*stride1*word with i the fast index (0..lenD0-1) and j unbounded. The
// nesting is the generation law, not just an iteration order: j only
// advances after a full i sweep, reserved addresses are skipped without
// consuming an ID, and generation stops the instant the test count is
// reached, truncating mid-row.
func (g *Generator) Generate2D(
	stride0, lenD0, stride1 int,
	startAddress uint64,
	idStart uint64,
	rsv *ReservationTable,
) (uint64, error) {
	id := idStart
	skips := 0

	for j := 0; ; j++ {
		for i := 0; i < lenD0; i++ {
			data, wen, offset := g.randomFields()
			addr := g.wrap(int64(startAddress) +
				int64(i)*int64(g.wordBytes)*int64(stride0) +
				int64(j)*int64(g.wordBytes)*int64(stride1))

			if rsv.Contains(accessKindOf(wen), addr) {
				skips++
				if g.retryLimit > 0 && skips >= g.retryLimit {
					return id, fmt.Errorf(
						"%w: %s skipped %d consecutive grid points",
						ErrAddressSpaceExhausted, g.name, skips)
				}

				continue
			}

			skips = 0

			g.accept(id, offset, wen, data, addr, rsv)
			id++

			if int(id-idStart) >= g.testCount {
				g.writer.Flush()

				return id, nil
			}
		}
	}
}

// Generate3D extends the 2D law with a third dimension: k outermost and
// unbounded, j middle (0..lenD1-1), i innermost (0..lenD0-1). Same skip and
// stop policy as Generate2D.
func (g *Generator) Generate3D(
	stride0, lenD0, stride1, lenD1, stride2 int,
	startAddress uint64,
	idStart uint64,
	rsv *ReservationTable,
) (uint64, error) {
	id := idStart
	skips := 0

	for k := 0; ; k++ {
		for j := 0; j < lenD1; j++ {
			for i := 0; i < lenD0; i++ {
				data, wen, offset := g.randomFields()
				addr := g.wrap(int64(startAddress) +
					int64(i)*int64(g.wordBytes)*int64(stride0) +
					int64(j)*int64(g.wordBytes)*int64(stride1) +
					int64(k)*int64(g.wordBytes)*int64(stride2))

				if rsv.Contains(accessKindOf(wen), addr) {
					skips++
					if g.retryLimit > 0 && skips >= g.retryLimit {
						return id, fmt.Errorf(
							"%w: %s skipped %d consecutive grid points",
							ErrAddressSpaceExhausted, g.name, skips)
					}

					continue
				}

				skips = 0

				g.accept(id, offset, wen, data, addr, rsv)
				id++

				if int(id-idStart) >= g.testCount {
					g.writer.Flush()

					return id, nil
				}
			}
		}
	}
}

// accept reserves the address of an accepted write and emits the
// transaction. Reads (wen=1) never reserve.
func (g *Generator) accept(
	id uint64,
	offset int,
	wen bool,
	data *big.Int,
	addr uint64,
	rsv *ReservationTable,
) {
	if !wen {
		rsv.Reserve(AccessWrite, addr)
	}

	g.writer.WriteTransaction(Transaction{
		ID:          id,
		CycleOffset: offset,
		Wen:         wen,
		Data:        data,
		Address:     addr,
	})

	if g.bar != nil {
		g.bar.IncrementFinished(1)
	}
}

// randomFields draws the data, write-enable and cycle-offset fields of one
// transaction.
func (g *Generator) randomFields() (data *big.Int, wen bool, offset int) {
	data = big.NewInt(0)
	chunk := big.NewInt(0)

	// Wide hwpe payloads exceed 63 bits, so the data field is assembled from
	// 16-bit draws.
	for remaining := g.dataWidth; remaining > 0; {
		bits := 16
		if remaining < 16 {
			bits = remaining
		}

		chunk.SetInt64(int64(g.source.IntN(1 << bits)))
		data.Lsh(data, uint(bits))
		data.Or(data, chunk)

		remaining -= bits
	}

	wen = g.source.IntN(2) == 1

	offset = g.cycleOffset
	if !g.exactOffset {
		offset = 1 + g.source.IntN(g.cycleOffset)
	}

	return data, wen, offset
}

// wrap reduces an unwrapped address modulo the memory size.
func (g *Generator) wrap(a int64) uint64 {
	m := int64(g.totalBytes)

	a %= m
	if a < 0 {
		a += m
	}

	return uint64(a)
}
