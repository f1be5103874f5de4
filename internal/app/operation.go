package app

import (
	"strings"
	"time"
)

// Operation is the record of one CLI command. Its ID tags every log line the
// command writes, and Finish logs the outcome.
type Operation struct {
	ID         string
	Name       string
	Parameters string
	Started    time.Time
	Status     string // "success" or "error"
	Err        error
}

// NewOperation starts an operation at now. Its ID is the start time.
func NewOperation(name string, now time.Time, params ...string) *Operation {
	return &Operation{
		ID:         now.UTC().Format("20060102T150405.000Z"),
		Name:       name,
		Parameters: strings.Join(params, " "),
		Started:    now,
		Status:     "success",
	}
}

// Fail marks the operation as failed. The first error is kept.
func (op *Operation) Fail(err error) {
	if err == nil {
		return
	}
	op.Status = "error"
	if op.Err == nil {
		op.Err = err
	}
}

// Failed reports whether Fail was called with an error.
func (op *Operation) Failed() bool {
	return op.Err != nil
}

// Duration is the time elapsed since the operation started.
func (op *Operation) Duration(now time.Time) time.Duration {
	return now.Sub(op.Started)
}
