package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/namnv2496/go-exec-broker/internal/model"
	"github.com/namnv2496/go-exec-broker/internal/report"
)

// validate checks a decoded request and resolves its language. The returned
// message is non-empty when the request must be rejected with 400.
func (s *Server) validate(req model.ExecutionRequest) (model.LanguageSpec, string) {
	if req.Code == "" || req.Language == "" {
		return model.LanguageSpec{}, "Code and language are required"
	}
	if s.opts.MaxCodeBytes > 0 && len(req.Code) > s.opts.MaxCodeBytes {
		return model.LanguageSpec{}, fmt.Sprintf("Code exceeds %d byte limit", s.opts.MaxCodeBytes)
	}
	lang, ok := s.registry.Lookup(req.Language)
	if !ok {
		return model.LanguageSpec{}, fmt.Sprintf("Unsupported language: %s. Supported: %s",
			req.Language, strings.Join(s.registry.SupportedIDs(), ", "))
	}
	return lang, ""
}

// dispatch runs the request in batch mode when it carries test cases and as a
// single run otherwise. onResult, if set, sees every finished test case.
func (s *Server) dispatch(ctx context.Context, req model.ExecutionRequest, lang model.LanguageSpec, onResult func(int, model.TestResult)) model.Response {
	if req.IsBatch() {
		results, summary := s.evaluator.EvaluateStream(ctx, req.Code, lang, req.TestCases, onResult)
		return model.TestResultsResponse{Results: results, Summary: summary}
	}

	out := s.executor.Execute(ctx, req.Code, lang, req.Stdin)
	if out.Failed() {
		s.logger.Debug("execution failed",
			zap.String("language", lang.ID),
			zap.String("error_kind", string(out.ErrorKind)),
			zap.String("error", out.Error))
	}
	return model.NewExecutionResult(out, lang)
}

func (s *Server) publish(ctx context.Context, requestID string, lang model.LanguageSpec, resp model.Response) {
	r := report.FromResponse(requestID, lang.ID, resp)
	if err := s.publisher.Publish(ctx, r); err != nil {
		s.logger.Warn("failed to publish execution report",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

func (s *Server) executeHandler(ctx *gin.Context) {
	var req model.ExecutionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		serverError(ctx, err.Error())
		return
	}

	lang, msg := s.validate(req)
	if msg != "" {
		badRequest(ctx, msg)
		return
	}

	resp := s.dispatch(ctx.Request.Context(), req, lang, nil)
	s.publish(ctx.Request.Context(), ctx.GetString(requestIDKey), lang, resp)
	ctx.JSON(http.StatusOK, resp)
}
