package analysis

import (
	"sync"
	"time"
)

// Latest holds the most recent reconciled analysis. Runs may overlap; each
// completion unconditionally replaces the previous one, so the last to
// finish wins.
type Latest struct {
	mu     sync.Mutex
	result *Result
	at     time.Time
}

func (l *Latest) Set(r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.result = &r
	l.at = time.Now()
}

// Get returns the stored result (nil before the first completion) and its
// completion time.
func (l *Latest) Get() (*Result, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.result == nil {
		return nil, time.Time{}
	}
	r := *l.result
	return &r, l.at
}
