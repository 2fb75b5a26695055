package stimuli

import (
	"github.com/sarchlab/hcistim/datarecording"
	"github.com/sarchlab/hcistim/hci"
)

// TransactionsTable is the name of the database table DBWriters of one run
// share, one row per mirrored transaction.
const TransactionsTable = "stimuli_transactions"

// A stimulusEntry represents one generated transaction in the database.
type stimulusEntry struct {
	Master      string
	ID          uint64
	CycleOffset int
	Wen         bool
	Data        string
	Address     uint64
	Bank        int
}

// A DBWriter mirrors a master's transaction stream into a recording
// database, one row per transaction, tagged with the bank the address maps
// to. It is meant to be composed with a FileWriter through MultiWriter.
type DBWriter struct {
	recorder  datarecording.DataRecorder
	master    string
	dataWidth int
	mapper    *hci.BankMapper
}

// NewDBWriter creates a DBWriter for one master. The transactions table is
// created on first use and shared by all masters of the run.
func NewDBWriter(
	recorder datarecording.DataRecorder,
	master string,
	dataWidth int,
	mapper *hci.BankMapper,
) *DBWriter {
	w := &DBWriter{
		recorder:  recorder,
		master:    master,
		dataWidth: dataWidth,
		mapper:    mapper,
	}

	if !tableExists(recorder, TransactionsTable) {
		recorder.CreateTable(TransactionsTable, stimulusEntry{})
	}

	return w
}

func tableExists(recorder datarecording.DataRecorder, name string) bool {
	for _, t := range recorder.ListTables() {
		if t == name {
			return true
		}
	}

	return false
}

// WriteTransaction inserts one transaction row.
func (w *DBWriter) WriteTransaction(t Transaction) {
	w.recorder.InsertData(TransactionsTable, stimulusEntry{
		Master:      w.master,
		ID:          t.ID,
		CycleOffset: t.CycleOffset,
		Wen:         t.Wen,
		Data:        bigBinField(t.Data, w.dataWidth),
		Address:     t.Address,
		Bank:        w.mapper.Bank(t.Address),
	})
}

// Flush forwards to the recorder.
func (w *DBWriter) Flush() {
	w.recorder.Flush()
}

// Close flushes. The recorder itself is owned by the composition layer.
func (w *DBWriter) Close() {
	w.Flush()
}
