// Package simvectors post-processes raw stimuli files into the per-cycle
// simulation vectors the lock-step testbench consumes: it unfolds every
// (transaction, cycle offset) pair into one record per clock cycle, and pads
// all per-master streams to the same length.
package simvectors

import (
	"fmt"
	"strings"
)

// A Record is what one master presents to the interconnect on one clock
// cycle. The field strings are bit vectors carried through from the raw file
// untouched; idle records hold all-zero fields at the branch's widths.
type Record struct {
	Request bool
	ID      string
	Wen     string
	Data    string
	Address string
}

// Encode renders the record as one processed-file line:
// "<request> <id> <wen> <data> <address>".
func (r Record) Encode() string {
	request := "0"
	if r.Request {
		request = "1"
	}

	return request +
		" " + r.ID +
		" " + r.Wen +
		" " + r.Data +
		" " + r.Address
}

// ParseRecord parses one processed-file line.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Record{}, fmt.Errorf(
			"processed line needs 5 fields, have %d: %q", len(fields), line)
	}

	return Record{
		Request: fields[0] == "1",
		ID:      fields[1],
		Wen:     fields[2],
		Data:    fields[3],
		Address: fields[4],
	}, nil
}

// idleRecord builds the all-zero record of a stream with the given field
// widths. Every field prints at least one digit.
func idleRecord(idWidth, dataWidth, addrWidth int) Record {
	return Record{
		ID:      zeroBits(idWidth),
		Wen:     "0",
		Data:    zeroBits(dataWidth),
		Address: zeroBits(addrWidth),
	}
}

func zeroBits(width int) string {
	if width < 1 {
		width = 1
	}

	return strings.Repeat("0", width)
}
