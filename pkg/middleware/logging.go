package middleware

import (
	"log/slog"

	gwerrors "github.com/llmhub/llmhub/pkg/errors"
	"github.com/llmhub/llmhub/pkg/types"
)

// Logging emits a structured log line at each lifecycle hook. It never
// alters the request, response, or error flow.
type Logging struct {
	Base
	logger *slog.Logger
}

// NewLogging creates a logging middleware.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger}
}

func (l *Logging) Name() string { return "logging" }

func (l *Logging) BeforeDispatch(ctx *Context, req *types.Request) error {
	l.logger.Info("dispatching request",
		"request_id", ctx.RequestID,
		"backend", ctx.Backend,
		"model", req.Model,
		"attempt", ctx.Attempt,
		"stream", ctx.Streaming,
	)
	return nil
}

func (l *Logging) AfterSuccess(ctx *Context, resp *types.Response) error {
	attrs := []any{
		"request_id", ctx.RequestID,
		"backend", ctx.Backend,
		"latency", ctx.Elapsed(),
	}
	if resp.Usage != nil {
		attrs = append(attrs, "total_tokens", resp.Usage.TotalTokens)
	}
	l.logger.Info("request completed", attrs...)
	return nil
}

func (l *Logging) OnError(ctx *Context, err error) (Action, error) {
	attrs := []any{
		"request_id", ctx.RequestID,
		"backend", ctx.Backend,
		"latency", ctx.Elapsed(),
		"error", err,
	}
	if ge, ok := gwerrors.AsGateway(err); ok {
		attrs = append(attrs, "kind", string(ge.Kind), "retryable", ge.Retryable)
	}
	l.logger.Warn("request failed", attrs...)
	return Propagate(), nil
}
