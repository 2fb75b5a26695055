package stimuli

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"
)

// A TransactionWriter consumes the ordered transaction stream of one master.
type TransactionWriter interface {
	// WriteTransaction appends one transaction to the stream.
	WriteTransaction(t Transaction)

	// Flush forces buffered transactions out to the sink.
	Flush()

	// Close flushes and releases the sink.
	Close()
}

// A FileWriter writes a master's raw stimuli lines to an ASCII file, one
// line per transaction.
type FileWriter struct {
	path string
	file *os.File

	idWidth    int
	dataWidth  int
	addrWidth  int
	txns       []Transaction
	bufferSize int
}

// NewFileWriter creates a FileWriter that encodes binary fields at the given
// widths.
func NewFileWriter(path string, idWidth, dataWidth, addrWidth int) *FileWriter {
	return &FileWriter{
		path:       path,
		idWidth:    idWidth,
		dataWidth:  dataWidth,
		addrWidth:  addrWidth,
		bufferSize: 1000,
	}
}

// Init creates the stimuli file. If the file already exists, it will be
// overwritten.
func (w *FileWriter) Init() {
	file, err := os.Create(w.path)
	if err != nil {
		panic(fmt.Errorf("cannot create stimuli file %s: %w", w.path, err))
	}

	w.file = file

	atexit.Register(func() { w.Close() })
}

// WriteTransaction buffers one transaction for writing.
func (w *FileWriter) WriteTransaction(t Transaction) {
	w.txns = append(w.txns, t)
	if len(w.txns) >= w.bufferSize {
		w.Flush()
	}
}

// Flush writes the buffered transactions to the file.
func (w *FileWriter) Flush() {
	for _, t := range w.txns {
		_, err := fmt.Fprintf(w.file, "%s\n",
			t.EncodeRaw(w.idWidth, w.dataWidth, w.addrWidth))
		if err != nil {
			panic(fmt.Errorf("cannot write stimuli file %s: %w", w.path, err))
		}
	}

	w.txns = nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (w *FileWriter) Close() {
	if w.file == nil {
		return
	}

	w.Flush()

	err := w.file.Close()
	if err != nil {
		panic(fmt.Errorf("cannot close stimuli file %s: %w", w.path, err))
	}

	w.file = nil
}

// WriteZeroFile writes the sentinel file of a master class with no activity:
// the literal token "zero" and nothing else.
func WriteZeroFile(path string) error {
	err := os.WriteFile(path, []byte("zero"), 0644)
	if err != nil {
		return fmt.Errorf("cannot write sentinel file %s: %w", path, err)
	}

	return nil
}

// MultiWriter returns a TransactionWriter that duplicates every transaction
// to all the given writers.
func MultiWriter(writers ...TransactionWriter) TransactionWriter {
	return multiWriter(writers)
}

type multiWriter []TransactionWriter

func (m multiWriter) WriteTransaction(t Transaction) {
	for _, w := range m {
		w.WriteTransaction(t)
	}
}

func (m multiWriter) Flush() {
	for _, w := range m {
		w.Flush()
	}
}

func (m multiWriter) Close() {
	for _, w := range m {
		w.Close()
	}
}
