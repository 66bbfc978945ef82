package app

import (
	"fmt"
	"strings"
	"time"
)

// Operation tracks one CLI command invocation. Its ID tags every log line
// written during the invocation.
type Operation struct {
	ID        string
	Command   string
	StartedAt time.Time

	failed []string
}

// NewOperation creates an operation that has not failed yet.
func NewOperation(id, command string, startedAt time.Time) *Operation {
	return &Operation{
		ID:        id,
		Command:   command,
		StartedAt: startedAt,
	}
}

// Fail records that the named location did not back up cleanly.
func (op *Operation) Fail(location string) {
	op.failed = append(op.failed, location)
}

// Failed returns the failed locations in the order they were recorded.
func (op *Operation) Failed() []string {
	return op.failed
}

// Status returns "success" or "error".
func (op *Operation) Status() string {
	if len(op.failed) > 0 {
		return "error"
	}
	return "success"
}

// Err summarizes the failed locations, or returns nil if there are none.
func (op *Operation) Err() error {
	if len(op.failed) == 0 {
		return nil
	}
	return fmt.Errorf("backup failed for %d location(s): %s", len(op.failed), strings.Join(op.failed, ", "))
}
