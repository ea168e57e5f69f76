package job_executor

import (
	"context"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

// JobExecutor runs source code once against a single stdin payload.
//
// Implementations never return Go errors: every failure is reported through
// model.Outcome.Error so one bad run cannot abort a batch.
type JobExecutor interface {
	Execute(ctx context.Context, code string, lang model.LanguageSpec, stdin string) model.Outcome
}

// Func adapts a plain function to JobExecutor.
type Func func(ctx context.Context, code string, lang model.LanguageSpec, stdin string) model.Outcome

func (f Func) Execute(ctx context.Context, code string, lang model.LanguageSpec, stdin string) model.Outcome {
	return f(ctx, code, lang, stdin)
}
