// Package pipeline runs one API request through validation, the handler
// and the error mapper, and produces the response envelope.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"atlas-advisor-backend/internal/apperr"
	"atlas-advisor-backend/internal/envelope"
	"atlas-advisor-backend/internal/telemetry"
)

// Validator checks a raw request and produces the input a Handler accepts.
type Validator[R, V any] func(R) Result[V]

// Handler performs the business operation for a validated input.
type Handler[V, P any] interface {
	Handle(ctx context.Context, in V) Result[P]
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[V, P any] func(ctx context.Context, in V) Result[P]

func (f HandlerFunc[V, P]) Handle(ctx context.Context, in V) Result[P] { return f(ctx, in) }

// Pipeline holds the collaborators shared by every request. It keeps no
// per-request state.
type Pipeline struct {
	Sink   telemetry.Sink
	Logger *slog.Logger
}

// Run validates req, calls h on success, and wraps the outcome. The
// handler never runs when validation fails.
func Run[R, V, P any](ctx context.Context, p Pipeline, endpoint string, req R, validate Validator[R, V], h Handler[V, P]) envelope.Response {
	start := time.Now()
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := Then(validate(req), func(in V) Result[P] {
		return safeHandle(ctx, h, in)
	})

	var resp envelope.Response
	props := map[string]any{"endpoint": endpoint}
	if v, err := res.Unpack(); err != nil {
		f := envelope.Fail(err, "")
		resp = f
		props["outcome"] = "failure"
		props["category"] = string(err.Category)
		props["requestId"] = f.RequestID
		level := slog.LevelWarn
		if err.Severity == apperr.SeverityCritical || err.Severity == apperr.SeverityError {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "request failed",
			"endpoint", endpoint,
			"requestId", f.RequestID,
			"code", err.Code,
			"category", err.Category,
			"error", err.Error(),
		)
	} else {
		resp = envelope.OK(v)
		props["outcome"] = "success"
		props["category"] = ""
	}
	props["latency"] = time.Since(start)
	telemetry.Safe(p.Sink, telemetry.EventRequestCompleted, props)
	return resp
}

func safeHandle[V, P any](ctx context.Context, h Handler[V, P], in V) (res Result[P]) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail[P](apperr.New(apperr.CategoryInternal, apperr.WithCause(fmt.Errorf("handler panic: %v", r))))
		}
	}()
	return h.Handle(ctx, in)
}
