package completion_worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

const maxResponseBytes = 4 << 20

// Config holds the completion service settings. It is read once at startup.
type Config struct {
	URL         string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// CompletionJobExecutor asks a chat-completion service to simulate running code.
type CompletionJobExecutor struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func New(cfg Config, client *http.Client, logger *zap.Logger) *CompletionJobExecutor {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionJobExecutor{cfg: cfg, client: client, logger: logger}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e *CompletionJobExecutor) Execute(ctx context.Context, code string, lang model.LanguageSpec, stdin string) model.Outcome {
	log := e.logger.With(zap.String("language", lang.ID))

	if e.cfg.APIKey == "" || e.cfg.URL == "" {
		log.Warn("completion backend is not configured")
		return model.BackendFailure("Server configuration error", nil)
	}

	body, err := json.Marshal(chatRequest{
		Model: e.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(lang)},
			{Role: "user", Content: userPrompt(code, lang, stdin)},
		},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return model.BackendFailure(fmt.Sprintf("Execution error: %v", err), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return model.BackendFailure(fmt.Sprintf("Execution error: %v", err), nil)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		log.Warn("completion request failed", zap.Error(err))
		return model.BackendFailure(fmt.Sprintf("Execution error: %v", err), nil)
	}
	defer resp.Body.Close()

	var data chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&data); err != nil {
		log.Warn("malformed completion response", zap.Int("status", resp.StatusCode), zap.Error(err))
		return model.BackendFailure(fmt.Sprintf("Execution error: malformed backend response: %v", err), nil)
	}
	elapsed := model.Millis(time.Since(start))

	if data.Error != nil {
		msg := data.Error.Message
		if msg == "" {
			msg = "Execution failed"
		}
		log.Warn("completion backend returned an error", zap.Int("status", resp.StatusCode), zap.String("error", msg))
		return model.BackendFailure(msg, elapsed)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.BackendFailure(fmt.Sprintf("Execution failed: backend responded with status %d", resp.StatusCode), elapsed)
	}

	text := ""
	if len(data.Choices) > 0 {
		text = strings.TrimSpace(data.Choices[0].Message.Content)
	}

	if rest, ok := strings.CutPrefix(text, ErrorSentinel); ok {
		msg := strings.TrimSpace(rest)
		if msg == "" {
			msg = "Execution failed"
		}
		return model.ProgramFailure(msg, elapsed)
	}

	return model.Outcome{Output: text, ExecutionTimeMs: elapsed}
}
