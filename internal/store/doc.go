// Package store holds the database plumbing shared by the SQL-backed
// persistence layers: the DBTX abstraction over connections and
// transactions, a transaction runner, and the common store errors.
package store
