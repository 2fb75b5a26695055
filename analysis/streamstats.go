// Package analysis reports read-only statistics over generated stimuli
// directories: traffic mix, address ranges, bank utilization and cycle
// spacing per master. It never modifies the streams it reads.
package analysis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"github.com/sarchlab/hcistim/datarecording"
	"github.com/sarchlab/hcistim/hci"
	"github.com/sarchlab/hcistim/stimuli"
)

// MasterStats aggregates one master's raw stimuli stream.
type MasterStats struct {
	Master       string
	Transactions int
	Reads        int
	Writes       int
	MinAddress   uint64
	MaxAddress   uint64
	OffsetMean   float64
	OffsetStdDev float64
	Cycles       int
}

// StreamStats aggregates a whole stimuli_raw directory.
type StreamStats struct {
	PerMaster    []MasterStats
	BankAccesses []int

	mapper *hci.BankMapper
}

// CollectStreamStats reads every raw stimuli file in dir and aggregates it.
// Sentinel files contribute a zero-transaction entry.
func CollectStreamStats(cfg hci.Config, dir string) (*StreamStats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot list directory %s: %w", dir, err)
	}

	s := &StreamStats{
		BankAccesses: make([]int, cfg.NBanks),
		mapper:       hci.NewBankMapper(cfg.WordBytes(), cfg.NBanks),
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		ms, err := s.collectFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		ms.Master = strings.TrimSuffix(name, ".txt")
		s.PerMaster = append(s.PerMaster, ms)
	}

	return s, nil
}

func (s *StreamStats) collectFile(path string) (MasterStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return MasterStats{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()

	ms := MasterStats{}
	var offsets []float64

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "zero" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 5 {
			return ms, fmt.Errorf("%s: raw line needs 5 fields, have %d: %q",
				path, len(fields), line)
		}

		offset, err := strconv.Atoi(fields[1])
		if err != nil {
			return ms, fmt.Errorf("%s: bad cycle offset %q", path, fields[1])
		}

		addr, err := strconv.ParseUint(fields[4], 2, 64)
		if err != nil {
			return ms, fmt.Errorf("%s: bad address %q", path, fields[4])
		}

		if ms.Transactions == 0 || addr < ms.MinAddress {
			ms.MinAddress = addr
		}

		if addr > ms.MaxAddress {
			ms.MaxAddress = addr
		}

		if fields[2] == "1" {
			ms.Reads++
		} else {
			ms.Writes++
		}

		s.BankAccesses[s.mapper.Bank(addr)]++

		ms.Transactions++
		ms.Cycles += offset
		offsets = append(offsets, float64(offset))
	}

	if err := scanner.Err(); err != nil {
		return ms, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if len(offsets) > 0 {
		ms.OffsetMean, ms.OffsetStdDev = stat.MeanStdDev(offsets, nil)
	}

	return ms, nil
}

// transactionRow is the row shape the DBWriter mirrors transactions with.
type transactionRow struct {
	Master      string
	ID          uint64
	CycleOffset int
	Wen         bool
	Data        string
	Address     uint64
	Bank        int
}

// CollectRecordedStats aggregates the transactions a previous run mirrored
// into a recording database, grouped per master. The bank index is taken
// from the recorded rows, so the statistics stay true to the run even if the
// given configuration disagrees with the recorded one.
func CollectRecordedStats(
	cfg hci.Config,
	reader datarecording.DataReader,
) (*StreamStats, error) {
	reader.MapTable(stimuli.TransactionsTable, transactionRow{})

	rows, _, err := reader.Query(
		context.Background(),
		stimuli.TransactionsTable,
		datarecording.QueryParams{OrderBy: "Master, ID"},
	)
	if err != nil {
		return nil, fmt.Errorf("cannot query recorded transactions: %w", err)
	}

	s := &StreamStats{
		BankAccesses: make([]int, cfg.NBanks),
		mapper:       hci.NewBankMapper(cfg.WordBytes(), cfg.NBanks),
	}

	var ms *MasterStats
	var offsets []float64

	finish := func() {
		if ms == nil {
			return
		}

		ms.OffsetMean, ms.OffsetStdDev = stat.MeanStdDev(offsets, nil)
		s.PerMaster = append(s.PerMaster, *ms)
	}

	for _, r := range rows {
		row := r.(transactionRow)

		if ms == nil || ms.Master != row.Master {
			finish()
			ms = &MasterStats{Master: row.Master}
			offsets = nil
		}

		if ms.Transactions == 0 || row.Address < ms.MinAddress {
			ms.MinAddress = row.Address
		}

		if row.Address > ms.MaxAddress {
			ms.MaxAddress = row.Address
		}

		if row.Wen {
			ms.Reads++
		} else {
			ms.Writes++
		}

		if row.Bank >= 0 && row.Bank < len(s.BankAccesses) {
			s.BankAccesses[row.Bank]++
		}

		ms.Transactions++
		ms.Cycles += row.CycleOffset
		offsets = append(offsets, float64(row.CycleOffset))
	}

	finish()

	return s, nil
}

// TotalTransactions returns the transaction count over all masters.
func (s *StreamStats) TotalTransactions() int {
	total := 0
	for _, ms := range s.PerMaster {
		total += ms.Transactions
	}

	return total
}

// MaxCycles returns the length, in cycles, the longest unfolded stream will
// have. Sentinel streams unfold to one idle cycle.
func (s *StreamStats) MaxCycles() int {
	maxCycles := 0
	for _, ms := range s.PerMaster {
		cycles := ms.Cycles
		if ms.Transactions == 0 {
			cycles = 1
		}

		if cycles > maxCycles {
			maxCycles = cycles
		}
	}

	return maxCycles
}

// WriteTable renders the statistics as an aligned text table.
func (s *StreamStats) WriteTable(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw,
		"Master\tTxns\tReads\tWrites\tMinAddr\tMaxAddr\tOffsetMean\tOffsetStd\tCycles\n")

	for _, ms := range s.PerMaster {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t0x%x\t0x%x\t%.2f\t%.2f\t%d\n",
			ms.Master, ms.Transactions, ms.Reads, ms.Writes,
			ms.MinAddress, ms.MaxAddress,
			ms.OffsetMean, ms.OffsetStdDev, ms.Cycles)
	}

	fmt.Fprintf(tw, "\nBank\tAccesses\n")
	for bank, n := range s.BankAccesses {
		fmt.Fprintf(tw, "%d\t%d\n", bank, n)
	}

	fmt.Fprintf(tw, "\nTotal transactions: %d\n", s.TotalTransactions())
	fmt.Fprintf(tw, "Timeline length (pre-padding max): %d cycles\n",
		s.MaxCycles())

	tw.Flush()
}

// masterStatsEntry is the database row shape of one master's statistics.
type masterStatsEntry struct {
	Master       string
	Transactions int
	Reads        int
	Writes       int
	MinAddress   uint64
	MaxAddress   uint64
	OffsetMean   float64
	OffsetStdDev float64
	Cycles       int
}

// bankStatsEntry is the database row shape of one bank's access count.
type bankStatsEntry struct {
	Bank     int
	Accesses int
}

// Record inserts the statistics into a recording database.
func (s *StreamStats) Record(recorder datarecording.DataRecorder) {
	recorder.CreateTable("stream_stats", masterStatsEntry{})
	recorder.CreateTable("bank_stats", bankStatsEntry{})

	for _, ms := range s.PerMaster {
		recorder.InsertData("stream_stats", masterStatsEntry(ms))
	}

	for bank, n := range s.BankAccesses {
		recorder.InsertData("bank_stats", bankStatsEntry{
			Bank:     bank,
			Accesses: n,
		})
	}

	recorder.Flush()
}
