// Package task implements in-process task distribution: a priority queue with
// deduplication, deadlines and bounded retries, workers that isolate handler
// failures into results, a result aggregator, and a pool that drives workers
// against the queue.
//
// Ordering in the queue is by priority, then deadline (tasks without a
// deadline last), then insertion order. Tasks whose deadline has passed, or
// whose retry budget is spent, are moved to the queue's dead-letter list;
// a DeadLetterHandler can forward them to durable storage.
package task
