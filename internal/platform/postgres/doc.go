// Package postgres provides the PostgreSQL dead-letter store. It opens
// connections through the pgx stdlib driver, applies the embedded goose
// migrations, and maps driver errors onto the store package's errors.
package postgres
