// Package task allocates task identities and per-task workspace directories.
package task
