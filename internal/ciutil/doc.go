// Package ciutil resolves the environment that tests and tooling run in:
// whether this is a CI run, and where the disposable PostgreSQL and Redis
// instances used by integration tests live.
package ciutil
