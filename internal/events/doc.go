// Package events carries task lifecycle notifications between components
// that should not import each other.
//
// The task queue reports dead-lettered tasks as TaskEvents; the dead-letter
// archive subscribes to them through an EventEmitter without the queue
// knowing that any archive exists.
package events
