package simvectors

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// A Processor unfolds and pads raw stimuli files. Idle-record widths depend
// on the branch a file belongs to, recognized from the file name: names
// containing "log" use the log data width, every other file uses the wide
// hwpe data width.
type Processor struct {
	idWidth   int
	dataWidth int
	addrWidth int
	hwpeWidth int
}

// Builder builds Processors.
type Builder struct {
	idWidth   int
	dataWidth int
	addrWidth int
	hwpeWidth int
}

// MakeBuilder returns a new Builder.
func MakeBuilder() Builder {
	return Builder{hwpeWidth: 1}
}

// WithIDWidth sets the transaction ID field width in bits.
func (b Builder) WithIDWidth(idWidth int) Builder {
	b.idWidth = idWidth
	return b
}

// WithDataWidth sets the log-branch data width in bits.
func (b Builder) WithDataWidth(dataWidth int) Builder {
	b.dataWidth = dataWidth
	return b
}

// WithAddrWidth sets the address field width in bits.
func (b Builder) WithAddrWidth(addrWidth int) Builder {
	b.addrWidth = addrWidth
	return b
}

// WithHWPEWidth sets the number of words per hwpe beat. The hwpe data width
// is hwpeWidth times the log data width.
func (b Builder) WithHWPEWidth(hwpeWidth int) Builder {
	b.hwpeWidth = hwpeWidth
	return b
}

// Build builds a Processor.
func (b Builder) Build() *Processor {
	if b.dataWidth <= 0 || b.addrWidth <= 0 {
		panic(fmt.Sprintf(
			"processor built with bad widths: data %d, address %d",
			b.dataWidth, b.addrWidth))
	}

	if b.hwpeWidth < 1 {
		panic(fmt.Sprintf("processor built with bad hwpe width %d",
			b.hwpeWidth))
	}

	return &Processor{
		idWidth:   b.idWidth,
		dataWidth: b.dataWidth,
		addrWidth: b.addrWidth,
		hwpeWidth: b.hwpeWidth,
	}
}

func (p *Processor) idle(filename string) Record {
	if strings.Contains(filename, "log") {
		return idleRecord(p.idWidth, p.dataWidth, p.addrWidth)
	}

	return idleRecord(p.idWidth, p.hwpeWidth*p.dataWidth, p.addrWidth)
}

// Unfold expands every raw stimuli file in rawDir into a per-cycle file of
// the same name in processedDir. A transaction with cycle offset c becomes
// c-1 idle records followed by one active record; a "zero" sentinel file
// becomes exactly one idle record.
func (p *Processor) Unfold(rawDir, processedDir string) error {
	files, err := listTxtFiles(rawDir)
	if err != nil {
		return err
	}

	err = os.MkdirAll(processedDir, 0755)
	if err != nil {
		return fmt.Errorf("cannot create directory %s: %w", processedDir, err)
	}

	for _, name := range files {
		err = p.unfoldFile(
			filepath.Join(rawDir, name),
			filepath.Join(processedDir, name),
			name,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Processor) unfoldFile(rawPath, processedPath, name string) error {
	in, err := os.Open(rawPath)
	if err != nil {
		return fmt.Errorf("cannot read raw file %s: %w", rawPath, err)
	}
	defer in.Close()

	out, err := os.Create(processedPath)
	if err != nil {
		return fmt.Errorf("cannot create processed file %s: %w",
			processedPath, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	idle := p.idle(name)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "zero" {
			fmt.Fprintf(w, "%s\n", idle.Encode())
			continue
		}

		err = p.unfoldLine(w, line, idle)
		if err != nil {
			return fmt.Errorf("raw file %s: %w", rawPath, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("cannot read raw file %s: %w", rawPath, err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("cannot write processed file %s: %w",
			processedPath, err)
	}

	return nil
}

func (p *Processor) unfoldLine(w *bufio.Writer, line string, idle Record) error {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return fmt.Errorf("raw line needs 5 fields, have %d: %q",
			len(fields), line)
	}

	cycleOffset, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("bad cycle offset %q: %w", fields[1], err)
	}

	for i := 0; i < cycleOffset-1; i++ {
		fmt.Fprintf(w, "%s\n", idle.Encode())
	}

	active := Record{
		Request: true,
		ID:      fields[0],
		Wen:     fields[2],
		Data:    fields[3],
		Address: fields[4],
	}
	fmt.Fprintf(w, "%s\n", active.Encode())

	return nil
}

// Pad appends idle records to every processed file in dir until all files
// hold the same number of lines, the maximum over the directory. Files are
// appended to, never rewritten.
func (p *Processor) Pad(dir string) error {
	files, err := listTxtFiles(dir)
	if err != nil {
		return err
	}

	lineCount := make(map[string]int, len(files))
	maxLines := 0

	for _, name := range files {
		n, err := countLines(filepath.Join(dir, name))
		if err != nil {
			return err
		}

		lineCount[name] = n
		if n > maxLines {
			maxLines = n
		}
	}

	for _, name := range files {
		padding := maxLines - lineCount[name]
		if padding == 0 {
			continue
		}

		err = p.padFile(filepath.Join(dir, name), name, padding)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Processor) padFile(path, name string, padding int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("cannot append to %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	idle := p.idle(name)

	for i := 0; i < padding; i++ {
		fmt.Fprintf(w, "%s\n", idle.Encode())
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("cannot append to %s: %w", path, err)
	}

	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	n := 0
	for scanner.Scan() {
		n++
	}

	return n, scanner.Err()
}

func listTxtFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot list directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			files = append(files, e.Name())
		}
	}

	sort.Strings(files)

	return files, nil
}
