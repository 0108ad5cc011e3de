// Package config loads taskcore settings from an optional YAML file and
// TASKCORE_* environment variables, then validates them. Settings cover the
// admin server, queue defaults, the worker pool, the dead-letter backend and
// operator authentication.
package config
