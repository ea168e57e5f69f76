package job_executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

type timeoutExecutor struct {
	next  JobExecutor
	limit time.Duration
}

// WithTimeout caps every call to next at limit. A call that hits the ceiling is
// reported as a backend error without an execution time, even if next ignores
// its context. A non-positive limit returns next unchanged.
func WithTimeout(next JobExecutor, limit time.Duration) JobExecutor {
	if limit <= 0 {
		return next
	}
	return &timeoutExecutor{next: next, limit: limit}
}

type callResult struct {
	out      model.Outcome
	panicked any
}

func (e *timeoutExecutor) Execute(ctx context.Context, code string, lang model.LanguageSpec, stdin string) model.Outcome {
	ctx, cancel := context.WithTimeout(ctx, e.limit)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- callResult{panicked: p}
			}
		}()
		done <- callResult{out: e.next.Execute(ctx, code, lang, stdin)}
	}()

	select {
	case res := <-done:
		if res.panicked != nil {
			// re-raise on the caller's goroutine so request recovery sees it
			panic(res.panicked)
		}
		if res.out.Failed() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return e.timedOut()
		}
		return res.out
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return e.timedOut()
		}
		return model.BackendFailure(fmt.Sprintf("Execution cancelled: %v", ctx.Err()), nil)
	}
}

func (e *timeoutExecutor) timedOut() model.Outcome {
	return model.BackendFailure(fmt.Sprintf("Execution timed out after %s", e.limit), nil)
}
