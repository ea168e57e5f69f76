package batch

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/namnv2496/go-exec-broker/internal/executor/worker/job_executor"
	"github.com/namnv2496/go-exec-broker/internal/model"
)

// Evaluator runs one program against an ordered list of test cases.
type Evaluator struct {
	executor    job_executor.JobExecutor
	concurrency int
	logger      *zap.Logger
}

// NewEvaluator returns an Evaluator that runs at most concurrency cases at
// once. Values below 1 mean sequential.
func NewEvaluator(executor job_executor.JobExecutor, concurrency int, logger *zap.Logger) *Evaluator {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{executor: executor, concurrency: concurrency, logger: logger}
}

// Evaluate returns one result per case, in input order, with the aggregate summary.
func (e *Evaluator) Evaluate(ctx context.Context, code string, lang model.LanguageSpec, cases []model.TestCase) ([]model.TestResult, model.BatchSummary) {
	return e.EvaluateStream(ctx, code, lang, cases, nil)
}

// EvaluateStream is Evaluate with a callback invoked as each case finishes.
// Calls to onResult never overlap. A panic in the executor is re-raised on the
// calling goroutine once in-flight cases finish.
func (e *Evaluator) EvaluateStream(ctx context.Context, code string, lang model.LanguageSpec, cases []model.TestCase, onResult func(index int, result model.TestResult)) ([]model.TestResult, model.BatchSummary) {
	results := make([]model.TestResult, len(cases))

	var mu sync.Mutex
	record := func(i int, result model.TestResult) {
		results[i] = result
		if onResult == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onResult(i, result)
	}

	if e.concurrency == 1 || len(cases) <= 1 {
		for i, tc := range cases {
			record(i, e.run(ctx, code, lang, tc))
		}
	} else {
		e.runParallel(ctx, code, lang, cases, record)
	}

	summary := model.Summarize(results)
	e.logger.Debug("batch evaluated",
		zap.String("language", lang.ID),
		zap.Int("total", summary.Total),
		zap.Int("passed", summary.Passed))
	return results, summary
}

func (e *Evaluator) runParallel(ctx context.Context, code string, lang model.LanguageSpec, cases []model.TestCase, record func(int, model.TestResult)) {
	var (
		g        errgroup.Group
		panicMu  sync.Mutex
		panicked any
	)
	g.SetLimit(e.concurrency)

	for i, tc := range cases {
		i, tc := i, tc
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					panicMu.Lock()
					if panicked == nil {
						panicked = p
					}
					panicMu.Unlock()
				}
			}()
			record(i, e.run(ctx, code, lang, tc))
			return nil
		})
	}
	_ = g.Wait()

	if panicked != nil {
		panic(panicked)
	}
}

func (e *Evaluator) run(ctx context.Context, code string, lang model.LanguageSpec, tc model.TestCase) model.TestResult {
	return model.Judge(tc, e.executor.Execute(ctx, code, lang, tc.Input))
}
