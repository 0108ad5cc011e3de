// Package deadletter provides a durable archive of failed operations.
//
// A Queue records each failure as an Entry, lists entries by operation and
// age, replays a single entry through a caller-supplied ReplayFunc, and
// purges old entries. Persistence is delegated to a Store; FileStore keeps
// entries in a JSON Lines file, and the platform packages provide SQLite,
// PostgreSQL and Redis stores.
package deadletter
