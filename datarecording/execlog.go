package datarecording

import (
	"os"
	"strings"
	"time"
)

// An ExecInfo row is one property of the recorded run.
type ExecInfo struct {
	Property string
	Value    string
}

// An ExecRecorder logs the metadata of one generation run: when it ran, how
// it was invoked, and the parameters it used.
type ExecRecorder struct {
	tableName string
	recorder  DataRecorder
	entries   []ExecInfo
}

// NewExecRecorder creates an ExecRecorder writing through the given
// recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	e := &ExecRecorder{
		recorder:  recorder,
		tableName: "hcistim_exec_log_" + time.Now().Format("2006_01_02_15_04_05"),
	}

	e.recorder.CreateTable(e.tableName, ExecInfo{})

	return e
}

// Start logs the start time and the command line of the current execution.
func (e *ExecRecorder) Start() {
	startTime := time.Now().Format("2006-01-02 15:04:05")
	e.AddProperty("Start Time", startTime)

	e.AddProperty("Command", strings.Join(os.Args, " "))
}

// AddProperty logs one extra property of the run, such as the seed or the
// serialized configuration.
func (e *ExecRecorder) AddProperty(property, value string) {
	e.entries = append(e.entries, ExecInfo{property, value})
}

// Flush writes the collected properties into the database along with the
// end time of the run.
func (e *ExecRecorder) Flush() {
	for _, entry := range e.entries {
		e.recorder.InsertData(e.tableName, entry)
	}

	endTime := time.Now().Format("2006-01-02 15:04:05")
	e.recorder.InsertData(e.tableName, ExecInfo{"End Time", endTime})

	e.entries = nil

	e.recorder.Flush()
}
