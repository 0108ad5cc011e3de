// Package redis provides a deadletter.Store that keeps entries as JSON
// documents in a single Redis list, so several processes can share one
// archive.
package redis
