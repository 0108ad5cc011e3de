// Package sqlite provides a deadletter.Store backed by an embedded SQLite
// database through the pure-Go modernc.org/sqlite driver.
package sqlite
