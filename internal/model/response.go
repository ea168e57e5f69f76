package model

import (
	"encoding/json"
	"fmt"
)

type ResponseType string

const (
	TypeExecutionResult ResponseType = "execution_result"
	TypeTestResults     ResponseType = "test_results"
)

// Response is the success body of the execute endpoint. It is implemented only by
// ExecutionResultResponse and TestResultsResponse.
type Response interface {
	ResponseType() ResponseType
}

type ExecutionResultResponse struct {
	Output        string    `json:"output"`
	Error         string    `json:"error,omitempty"`
	ErrorKind     ErrorKind `json:"errorKind,omitempty"`
	ExecutionTime *int64    `json:"executionTime,omitempty"`
	Language      string    `json:"language"`
}

func (ExecutionResultResponse) ResponseType() ResponseType { return TypeExecutionResult }

func (r ExecutionResultResponse) MarshalJSON() ([]byte, error) {
	type plain ExecutionResultResponse
	return json.Marshal(struct {
		Type ResponseType `json:"type"`
		plain
	}{TypeExecutionResult, plain(r)})
}

// NewExecutionResult builds the single-run response for an outcome.
func NewExecutionResult(out Outcome, lang LanguageSpec) ExecutionResultResponse {
	return ExecutionResultResponse{
		Output:        out.Output,
		Error:         out.Error,
		ErrorKind:     out.ErrorKind,
		ExecutionTime: out.ExecutionTimeMs,
		Language:      lang.DisplayName,
	}
}

type TestResultsResponse struct {
	Results []TestResult `json:"results"`
	Summary BatchSummary `json:"summary"`
}

func (TestResultsResponse) ResponseType() ResponseType { return TypeTestResults }

func (r TestResultsResponse) MarshalJSON() ([]byte, error) {
	type plain TestResultsResponse
	if r.Results == nil {
		r.Results = []TestResult{}
	}
	return json.Marshal(struct {
		Type ResponseType `json:"type"`
		plain
	}{TypeTestResults, plain(r)})
}

// ErrorResponse is the body of every 4xx/5xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DecodeResponse reads a success body back into its concrete variant.
func DecodeResponse(data []byte) (Response, error) {
	var head struct {
		Type ResponseType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode response type: %w", err)
	}

	switch head.Type {
	case TypeExecutionResult:
		var r ExecutionResultResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode execution result: %w", err)
		}
		return r, nil
	case TypeTestResults:
		var r TestResultsResponse
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode test results: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown response type %q", head.Type)
	}
}
