package model

// ExecutionRequest is the body accepted by the execute endpoint.
// When TestCases is non-empty the request runs in batch mode and Stdin is ignored.
type ExecutionRequest struct {
	Code      string     `json:"code"`
	Language  string     `json:"language"`
	Stdin     string     `json:"stdin,omitempty"`
	TestCases []TestCase `json:"testCases,omitempty"`
}

func (r ExecutionRequest) IsBatch() bool {
	return len(r.TestCases) > 0
}

// TestCase is one stdin/expected-stdout pair. Order is significant.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	Description    string `json:"description,omitempty"`
}
