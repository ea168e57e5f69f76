package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

// caseFile is the TOML layout:
//
//	[[cases]]
//	description = "adds two numbers"
//	input = "2 3"
//	expected_output = "5"
type caseFile struct {
	Cases []struct {
		Description    string `toml:"description"`
		Input          string `toml:"input"`
		ExpectedOutput string `toml:"expected_output"`
	} `toml:"cases"`
}

// loadCases reads test cases from a .toml file or a JSON array of TestCase.
func loadCases(path string) ([]model.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}

	var cases []model.TestCase
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var root caseFile
		if err := toml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		for _, c := range root.Cases {
			cases = append(cases, model.TestCase{
				Input:          c.Input,
				ExpectedOutput: c.ExpectedOutput,
				Description:    c.Description,
			})
		}
	case ".json":
		if err := json.Unmarshal(data, &cases); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported case file extension %q, want .toml or .json", filepath.Ext(path))
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("case file %s has no cases", path)
	}
	return cases, nil
}
