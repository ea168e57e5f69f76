package model

import (
	"math"
	"strings"
	"time"
)

// ErrorKind separates failures of the submitted program from failures of the
// infrastructure that was supposed to run it.
type ErrorKind string

const (
	ProgramError ErrorKind = "program"
	BackendError ErrorKind = "backend"
)

// Outcome is what an execution backend returns for a single run.
// Error is non-empty when the run did not produce a usable result.
// ExecutionTimeMs is nil when the failure happened before timing could be captured.
type Outcome struct {
	Output          string
	Error           string
	ErrorKind       ErrorKind
	ExecutionTimeMs *int64
}

func (o Outcome) Failed() bool {
	return o.Error != ""
}

// BackendFailure builds an outcome for an infrastructure fault.
func BackendFailure(msg string, elapsed *int64) Outcome {
	return Outcome{Error: msg, ErrorKind: BackendError, ExecutionTimeMs: elapsed}
}

// ProgramFailure builds an outcome for a fault of the submitted program.
func ProgramFailure(msg string, elapsed *int64) Outcome {
	return Outcome{Error: msg, ErrorKind: ProgramError, ExecutionTimeMs: elapsed}
}

// Millis returns d in whole milliseconds, suitable for ExecutionTimeMs.
func Millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return &ms
}

type TestResult struct {
	Passed         bool      `json:"passed"`
	Input          string    `json:"input"`
	ExpectedOutput string    `json:"expectedOutput"`
	ActualOutput   string    `json:"actualOutput"`
	Description    string    `json:"description,omitempty"`
	Error          string    `json:"error,omitempty"`
	ErrorKind      ErrorKind `json:"errorKind,omitempty"`
	ExecutionTime  *int64    `json:"executionTime,omitempty"`
}

// NormalizeOutput trims leading and trailing whitespace. Internal whitespace and
// case are significant.
func NormalizeOutput(s string) string {
	return strings.TrimSpace(s)
}

// Judge turns the outcome of running tc into a TestResult.
func Judge(tc TestCase, out Outcome) TestResult {
	return TestResult{
		Passed:         !out.Failed() && NormalizeOutput(out.Output) == NormalizeOutput(tc.ExpectedOutput),
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
		ActualOutput:   out.Output,
		Description:    tc.Description,
		Error:          out.Error,
		ErrorKind:      out.ErrorKind,
		ExecutionTime:  out.ExecutionTimeMs,
	}
}

type BatchSummary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	PassRate int `json:"passRate"`
}

// Summarize derives the aggregate for a batch. PassRate is a rounded percentage
// and is 0 for an empty batch.
func Summarize(results []TestResult) BatchSummary {
	s := BatchSummary{Total: len(results)}
	for _, r := range results {
		if r.Passed {
			s.Passed++
		}
	}
	s.Failed = s.Total - s.Passed
	if s.Total > 0 {
		s.PassRate = int(math.Round(100 * float64(s.Passed) / float64(s.Total)))
	}
	return s
}
