package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

const (
	ModeSingle = "single"
	ModeBatch  = "batch"
)

// Report is the record published after every completed execution.
type Report struct {
	ID         string              `json:"id"`
	RequestID  string              `json:"requestId,omitempty"`
	Language   string              `json:"language"`
	Mode       string              `json:"mode"`
	Summary    *model.BatchSummary `json:"summary,omitempty"`
	Error      string              `json:"error,omitempty"`
	ErrorKind  model.ErrorKind     `json:"errorKind,omitempty"`
	FinishedAt time.Time           `json:"finishedAt"`
}

// FromResponse builds the report for a response produced by the router.
func FromResponse(requestID, language string, resp model.Response) Report {
	r := Report{
		ID:         uuid.NewString(),
		RequestID:  requestID,
		Language:   language,
		FinishedAt: time.Now().UTC(),
	}
	switch v := resp.(type) {
	case model.TestResultsResponse:
		r.Mode = ModeBatch
		summary := v.Summary
		r.Summary = &summary
	case model.ExecutionResultResponse:
		r.Mode = ModeSingle
		r.Error = v.Error
		r.ErrorKind = v.ErrorKind
	}
	return r
}

type Publisher interface {
	Publish(ctx context.Context, r Report) error
	Close() error
}

type nopPublisher struct{}

// Nop returns a Publisher that discards every report.
func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Report) error { return nil }
func (nopPublisher) Close() error                         { return nil }

// natsConn is the part of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

type natsPublisher struct {
	nc      natsConn
	subject string
	logger  *zap.Logger
}

// NewNats connects to url and publishes reports on subject.
func NewNats(url, subject string, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("go-exec-broker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return newNatsPublisher(nc, subject, logger), nil
}

func newNatsPublisher(nc natsConn, subject string, logger *zap.Logger) *natsPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &natsPublisher{nc: nc, subject: subject, logger: logger}
}

func (p *natsPublisher) Publish(ctx context.Context, r Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := p.nc.Publish(p.subject, b); err != nil {
		return fmt.Errorf("publish report to %s: %w", p.subject, err)
	}
	return nil
}

func (p *natsPublisher) Close() error {
	return p.nc.Drain()
}
