package analysis_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/hcistim/analysis"
	"github.com/sarchlab/hcistim/datarecording"
	"github.com/sarchlab/hcistim/hci"
	"github.com/sarchlab/hcistim/stimuli"
)

func writeRaw(t *testing.T, dir, name string, lines ...string) {
	t.Helper()

	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t,
		os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func collect(t *testing.T, dir string) *analysis.StreamStats {
	t.Helper()

	cfg := hci.DefaultConfig()
	stats, err := analysis.CollectStreamStats(cfg, dir)
	require.NoError(t, err)

	return stats
}

func TestCollectStreamStats(t *testing.T) {
	dir := t.TempDir()

	writeRaw(t, dir, "master_log_0.txt",
		"00000 3 1 00000000000000000000000000000001 000000000000000",
		"00001 1 0 00000000000000000000000000000010 000000000000100",
		"00010 5 1 00000000000000000000000000000011 000000000100000",
	)
	writeRaw(t, dir, "master_log_1.txt", "zero")

	stats := collect(t, dir)

	require.Len(t, stats.PerMaster, 2)

	log0 := stats.PerMaster[0]
	assert.Equal(t, "master_log_0", log0.Master)
	assert.Equal(t, 3, log0.Transactions)
	assert.Equal(t, 2, log0.Reads)
	assert.Equal(t, 1, log0.Writes)
	assert.Equal(t, uint64(0), log0.MinAddress)
	assert.Equal(t, uint64(32), log0.MaxAddress)
	assert.Equal(t, 9, log0.Cycles)
	assert.InDelta(t, 3.0, log0.OffsetMean, 1e-9)
	assert.InDelta(t, 2.0, log0.OffsetStdDev, 1e-9)

	log1 := stats.PerMaster[1]
	assert.Equal(t, "master_log_1", log1.Master)
	assert.Zero(t, log1.Transactions)

	assert.Equal(t, 3, stats.TotalTransactions())
	assert.Equal(t, 9, stats.MaxCycles())
}

func TestBankHistogram(t *testing.T) {
	dir := t.TempDir()

	// Addresses 0, 4 and 36 interleave onto banks 0, 1 and 1.
	writeRaw(t, dir, "master_log_0.txt",
		"00000 1 1 00000000000000000000000000000000 000000000000000",
		"00001 1 1 00000000000000000000000000000000 000000000000100",
		"00010 1 1 00000000000000000000000000000000 000000000100100",
	)

	stats := collect(t, dir)

	require.Len(t, stats.BankAccesses, 8)
	assert.Equal(t, 1, stats.BankAccesses[0])
	assert.Equal(t, 2, stats.BankAccesses[1])
	for bank := 2; bank < 8; bank++ {
		assert.Zero(t, stats.BankAccesses[bank])
	}
}

func TestSentinelOnlyDirectory(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "master_log_0.txt", "zero")

	stats := collect(t, dir)

	assert.Zero(t, stats.TotalTransactions())
	assert.Equal(t, 1, stats.MaxCycles())
}

func TestCollectMissingDir(t *testing.T) {
	_, err := analysis.CollectStreamStats(hci.DefaultConfig(), "/nonexistent")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent")
}

// recordedTransaction matches the row shape the DBWriter fills the
// transactions table with.
type recordedTransaction struct {
	Master      string
	ID          uint64
	CycleOffset int
	Wen         bool
	Data        string
	Address     uint64
	Bank        int
}

func TestCollectRecordedStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording")

	recorder := datarecording.New(path)
	recorder.CreateTable(stimuli.TransactionsTable, recordedTransaction{})
	recorder.InsertData(stimuli.TransactionsTable, recordedTransaction{
		Master: "master_log_0", ID: 0, CycleOffset: 2,
		Data: "0", Address: 0, Bank: 0,
	})
	recorder.InsertData(stimuli.TransactionsTable, recordedTransaction{
		Master: "master_log_0", ID: 1, CycleOffset: 4,
		Data: "0", Address: 4, Bank: 1,
	})
	recorder.InsertData(stimuli.TransactionsTable, recordedTransaction{
		Master: "master_log_1", ID: 2, CycleOffset: 1, Wen: true,
		Data: "0", Address: 8, Bank: 2,
	})
	recorder.Close()

	reader := datarecording.NewReader(path + ".sqlite3")
	defer reader.Close()

	stats, err := analysis.CollectRecordedStats(hci.DefaultConfig(), reader)
	require.NoError(t, err)

	require.Len(t, stats.PerMaster, 2)

	log0 := stats.PerMaster[0]
	assert.Equal(t, "master_log_0", log0.Master)
	assert.Equal(t, 2, log0.Transactions)
	assert.Equal(t, 0, log0.Reads)
	assert.Equal(t, 2, log0.Writes)
	assert.Equal(t, uint64(0), log0.MinAddress)
	assert.Equal(t, uint64(4), log0.MaxAddress)
	assert.Equal(t, 6, log0.Cycles)
	assert.InDelta(t, 3.0, log0.OffsetMean, 1e-9)
	assert.InDelta(t, math.Sqrt2, log0.OffsetStdDev, 1e-9)

	log1 := stats.PerMaster[1]
	assert.Equal(t, "master_log_1", log1.Master)
	assert.Equal(t, 1, log1.Reads)
	assert.Equal(t, 0, log1.Writes)

	assert.Equal(t, 3, stats.TotalTransactions())
	assert.Equal(t, 1, stats.BankAccesses[0])
	assert.Equal(t, 1, stats.BankAccesses[1])
	assert.Equal(t, 1, stats.BankAccesses[2])
}

func TestWriteTable(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "master_log_0.txt",
		"00000 2 0 00000000000000000000000000000001 000000000001000")

	var sb strings.Builder
	collect(t, dir).WriteTable(&sb)

	out := sb.String()
	assert.Contains(t, out, "master_log_0")
	assert.Contains(t, out, "Total transactions: 1")
	assert.Contains(t, out, "0x8")
}
