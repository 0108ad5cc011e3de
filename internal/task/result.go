package task

import (
	"sync"
	"time"
)

// TaskResult is the outcome of a single ProcessOne call.
type TaskResult struct {
	TaskID      string    `json:"task_id"`
	WorkerID    string    `json:"worker_id"`
	Success     bool      `json:"success"`
	Value       any       `json:"value,omitempty"`
	Error       string    `json:"error,omitempty"`
	DurationMS  float64   `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// WorkerCounts is the per-worker breakdown in an AggregateResult.
type WorkerCounts struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// AggregateResult summarizes the results collected by a ResultAggregator.
type AggregateResult struct {
	Total          int                     `json:"total"`
	Successful     int                     `json:"successful"`
	Failed         int                     `json:"failed"`
	SuccessRate    float64                 `json:"success_rate"`
	MeanDurationMS float64                 `json:"mean_duration_ms"`
	ByWorker       map[string]WorkerCounts `json:"by_worker"`
	Results        []TaskResult            `json:"results,omitempty"`
}

// ResultAggregator collects TaskResults from any number of workers.
type ResultAggregator struct {
	mu      sync.Mutex
	results []TaskResult
}

// NewResultAggregator creates an empty aggregator.
func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{}
}

// Add records a single result.
func (a *ResultAggregator) Add(r TaskResult) {
	a.mu.Lock()
	a.results = append(a.results, r)
	a.mu.Unlock()
}

// AddBatch records several results at once.
func (a *ResultAggregator) AddBatch(rs []TaskResult) {
	a.mu.Lock()
	a.results = append(a.results, rs...)
	a.mu.Unlock()
}

// Clear discards all collected results.
func (a *ResultAggregator) Clear() {
	a.mu.Lock()
	a.results = nil
	a.mu.Unlock()
}

// Aggregate computes totals over a snapshot of the collected results.
func (a *ResultAggregator) Aggregate() AggregateResult {
	a.mu.Lock()
	snapshot := make([]TaskResult, len(a.results))
	copy(snapshot, a.results)
	a.mu.Unlock()

	agg := AggregateResult{
		Total:    len(snapshot),
		ByWorker: make(map[string]WorkerCounts),
		Results:  snapshot,
	}

	var totalDuration float64
	for _, r := range snapshot {
		counts := agg.ByWorker[r.WorkerID]
		if r.Success {
			agg.Successful++
			counts.Success++
		} else {
			agg.Failed++
			counts.Failed++
		}
		agg.ByWorker[r.WorkerID] = counts
		totalDuration += r.DurationMS
	}

	if agg.Total > 0 {
		agg.SuccessRate = float64(agg.Successful) / float64(agg.Total)
		agg.MeanDurationMS = totalDuration / float64(agg.Total)
	}

	return agg
}
