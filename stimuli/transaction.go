// Package stimuli implements the stimulus generation engine: it produces the
// per-master transaction streams that drive the interconnect verification
// testbench.
package stimuli

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// A Transaction is one memory request issued by a master.
type Transaction struct {
	// ID is globally unique and monotonically increasing across all masters
	// in one generation run.
	ID uint64

	// CycleOffset is the number of clock cycles the request occupies,
	// counting the idle cycles before it. It is always >= 1.
	CycleOffset int

	// Wen is the write-enable bit exactly as the hardware samples it:
	// wen=1 marks a read, wen=0 marks a write.
	Wen bool

	// Data carries the request payload, uniform over [0, 2^dataWidth).
	Data *big.Int

	// Address is a word-aligned byte address into the banked memory.
	Address uint64
}

// IsWrite reports whether the transaction writes memory. The polarity is
// inverted with respect to the field name on purpose: the interconnect treats
// wen=0 as a write.
func (t Transaction) IsWrite() bool {
	return !t.Wen
}

// EncodeRaw renders the transaction in the raw stimuli file format:
// "<id> <cycle_offset> <wen> <data> <address>", with id, data and address in
// binary, zero-filled to the given widths.
func (t Transaction) EncodeRaw(idWidth, dataWidth, addrWidth int) string {
	wen := "0"
	if t.Wen {
		wen = "1"
	}

	return binField(t.ID, idWidth) +
		" " + strconv.Itoa(t.CycleOffset) +
		" " + wen +
		" " + bigBinField(t.Data, dataWidth) +
		" " + binField(t.Address, addrWidth)
}

// binField renders v in binary, zero-filled to width. The field is never
// truncated: a value wider than the field keeps all its digits.
func binField(v uint64, width int) string {
	return zeroPad(strconv.FormatUint(v, 2), width)
}

func bigBinField(v *big.Int, width int) string {
	if v == nil {
		return zeroPad("0", width)
	}

	if v.Sign() < 0 {
		panic(fmt.Errorf("transaction data must not be negative, have %s", v))
	}

	return zeroPad(v.Text(2), width)
}

func zeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}

	return strings.Repeat("0", width-len(s)) + s
}
