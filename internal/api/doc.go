// Package api implements the admin HTTP handlers: task submission, queue
// statistics, result summaries and dead-letter archive operations. Handlers
// translate HTTP concerns into calls on the task and deadletter packages.
package api
