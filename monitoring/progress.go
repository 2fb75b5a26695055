package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks one long-running stage, such as the generation of one
// master's stimuli stream. Generation is all-or-nothing per transaction, so
// progress is a single finished counter against a known total.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

// IncrementFinished adds a certain amount to the finished elements.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}
