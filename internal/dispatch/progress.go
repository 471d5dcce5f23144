package dispatch

import (
	"sync"
	"time"
)

// Progress tracks completed batches during a dispatch run. It is safe for
// concurrent reads while the drain loop records completions.
type Progress struct {
	TotalBatches int
	Completed    int
	Failed       int
	StartTime    time.Time

	mu sync.RWMutex
}

// NewProgress creates a tracker for the given batch count.
func NewProgress(totalBatches int) *Progress {
	return &Progress{
		TotalBatches: totalBatches,
		StartTime:    time.Now(),
	}
}

// Add records one finished batch.
func (p *Progress) Add(succeeded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Completed++
	if !succeeded {
		p.Failed++
	}
}

// PercentComplete returns the completion percentage (0-100).
func (p *Progress) PercentComplete() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.TotalBatches == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.TotalBatches) * 100
}

// IsComplete returns true once every batch has finished.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.Completed >= p.TotalBatches
}

// ElapsedTime returns the time since the run started.
func (p *Progress) ElapsedTime() time.Duration {
	return time.Since(p.StartTime)
}

// EstimatedTimeRemaining projects the remaining run time from the average
// time per completed batch. Returns 0 before the first completion.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.Completed == 0 {
		return 0
	}
	perBatch := time.Since(p.StartTime) / time.Duration(p.Completed)
	return perBatch * time.Duration(p.TotalBatches-p.Completed)
}
