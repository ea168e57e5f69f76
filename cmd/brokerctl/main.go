package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/namnv2496/go-exec-broker/internal/client"
	"github.com/namnv2496/go-exec-broker/internal/model"
)

// errFailed signals a failed run or case; main exits 1 without printing it.
var errFailed = errors.New("execution failed")

func main() {
	cmd := &cli.Command{
		Name:  "brokerctl",
		Usage: "submit code to an execution broker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "broker base URL",
				Sources: cli.EnvVars("BROKER_URL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run a source file once",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Required: true},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true},
					&cli.StringFlag{Name: "stdin-file", Usage: "file whose content is sent as stdin"},
				},
				Action: runAction,
			},
			{
				Name:  "test",
				Usage: "run a source file against a .toml or .json case file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Required: true},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true},
					&cli.StringFlag{Name: "cases", Aliases: []string{"c"}, Required: true},
				},
				Action: testAction,
			},
			{
				Name:   "languages",
				Usage:  "list supported languages",
				Action: languagesAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errFailed) {
			color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	code, err := os.ReadFile(cmd.String("file"))
	if err != nil {
		return err
	}
	var stdin []byte
	if path := cmd.String("stdin-file"); path != "" {
		if stdin, err = os.ReadFile(path); err != nil {
			return err
		}
	}

	resp, err := client.New(cmd.String("server"), nil).Execute(ctx, model.ExecutionRequest{
		Code:     string(code),
		Language: cmd.String("lang"),
		Stdin:    string(stdin),
	})
	if err != nil {
		return err
	}
	single, ok := resp.(model.ExecutionResultResponse)
	if !ok {
		return fmt.Errorf("unexpected %s response", resp.ResponseType())
	}
	return printExecution(os.Stdout, single)
}

func testAction(ctx context.Context, cmd *cli.Command) error {
	code, err := os.ReadFile(cmd.String("file"))
	if err != nil {
		return err
	}
	cases, err := loadCases(cmd.String("cases"))
	if err != nil {
		return err
	}

	resp, err := client.New(cmd.String("server"), nil).Execute(ctx, model.ExecutionRequest{
		Code:      string(code),
		Language:  cmd.String("lang"),
		TestCases: cases,
	})
	if err != nil {
		return err
	}
	results, ok := resp.(model.TestResultsResponse)
	if !ok {
		return fmt.Errorf("unexpected %s response", resp.ResponseType())
	}
	return printResults(os.Stdout, results)
}

func languagesAction(ctx context.Context, cmd *cli.Command) error {
	langs, err := client.New(cmd.String("server"), nil).Languages(ctx)
	if err != nil {
		return err
	}
	for _, l := range langs {
		fmt.Printf("%-12s %s\n", l.ID, l.Name)
	}
	return nil
}

func printExecution(w io.Writer, r model.ExecutionResultResponse) error {
	if r.Error != "" {
		color.New(color.FgRed).Fprintf(w, "%s\n", r.Error)
	} else {
		fmt.Fprintln(w, r.Output)
	}
	if r.ExecutionTime != nil {
		color.New(color.Faint).Fprintf(w, "%s, %dms\n", r.Language, *r.ExecutionTime)
	}
	if r.Error != "" {
		return errFailed
	}
	return nil
}

func printResults(w io.Writer, r model.TestResultsResponse) error {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	for i, res := range r.Results {
		label := fmt.Sprintf("case %d", i+1)
		if res.Description != "" {
			label += " (" + res.Description + ")"
		}
		if res.Passed {
			pass.Fprint(w, "PASS ")
			fmt.Fprintln(w, label)
			continue
		}
		fail.Fprint(w, "FAIL ")
		fmt.Fprintln(w, label)
		if res.Error != "" {
			fmt.Fprintf(w, "  error:    %s\n", indent(res.Error))
			continue
		}
		fmt.Fprintf(w, "  expected: %s\n", indent(res.ExpectedOutput))
		fmt.Fprintf(w, "  actual:   %s\n", indent(res.ActualOutput))
	}

	s := r.Summary
	summary := fmt.Sprintf("%d/%d passed (%d%%)", s.Passed, s.Total, s.PassRate)
	if s.Failed > 0 {
		fail.Fprintln(w, summary)
		return errFailed
	}
	pass.Fprintln(w, summary)
	return nil
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n            ")
}
