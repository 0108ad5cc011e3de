package task

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultAggregator_Empty(t *testing.T) {
	agg := NewResultAggregator().Aggregate()

	assert.Equal(t, 0, agg.Total)
	assert.Equal(t, 0.0, agg.SuccessRate)
	assert.Equal(t, 0.0, agg.MeanDurationMS)
	assert.Empty(t, agg.ByWorker)
	assert.Empty(t, agg.Results)
}

func TestResultAggregator_Aggregate(t *testing.T) {
	a := NewResultAggregator()
	a.Add(TaskResult{TaskID: "1", WorkerID: "w1", Success: true, DurationMS: 10})
	a.AddBatch([]TaskResult{
		{TaskID: "2", WorkerID: "w1", Success: false, Error: "boom", DurationMS: 20},
		{TaskID: "3", WorkerID: "w2", Success: true, DurationMS: 30},
		{TaskID: "4", WorkerID: "w2", Success: true, DurationMS: 40},
	})

	agg := a.Aggregate()

	assert.Equal(t, 4, agg.Total)
	assert.Equal(t, 3, agg.Successful)
	assert.Equal(t, 1, agg.Failed)
	assert.InDelta(t, 0.75, agg.SuccessRate, 1e-9)
	assert.InDelta(t, 25.0, agg.MeanDurationMS, 1e-9)
	assert.Equal(t, map[string]WorkerCounts{
		"w1": {Success: 1, Failed: 1},
		"w2": {Success: 2, Failed: 0},
	}, agg.ByWorker)
	assert.Len(t, agg.Results, 4)
}

func TestResultAggregator_Clear(t *testing.T) {
	a := NewResultAggregator()
	a.Add(TaskResult{TaskID: "1", WorkerID: "w1", Success: true})
	a.Clear()

	assert.Equal(t, 0, a.Aggregate().Total)
}

func TestResultAggregator_SnapshotIsIndependent(t *testing.T) {
	a := NewResultAggregator()
	a.Add(TaskResult{TaskID: "1", WorkerID: "w1", Success: true})

	agg := a.Aggregate()
	a.Add(TaskResult{TaskID: "2", WorkerID: "w1", Success: true})

	assert.Len(t, agg.Results, 1)
	assert.Equal(t, 2, a.Aggregate().Total)
}

func TestResultAggregator_ConcurrentAdd(t *testing.T) {
	a := NewResultAggregator()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				a.Add(TaskResult{WorkerID: "w", Success: i%4 != 0, DurationMS: 1})
				if i%10 == 0 {
					_ = a.Aggregate()
				}
			}
		}(w)
	}
	wg.Wait()

	agg := a.Aggregate()
	assert.Equal(t, 1000, agg.Total)
	assert.Equal(t, 750, agg.Successful)
	assert.InDelta(t, 0.75, agg.SuccessRate, 1e-9)
	assert.InDelta(t, 1.0, agg.MeanDurationMS, 1e-9)
}
