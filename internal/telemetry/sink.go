package telemetry

import (
	"log/slog"
)

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// SlogSink writes every event as one structured log line.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink logging to the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(e Event) {
	attrs := []any{"kind", string(e.Kind)}
	if e.RequestID != "" {
		attrs = append(attrs, "request_id", e.RequestID)
	}
	if e.Backend != "" {
		attrs = append(attrs, "backend", e.Backend)
	}
	if e.Model != "" {
		attrs = append(attrs, "model", e.Model)
	}

	switch e.Kind {
	case EventRequestCompleted:
		attrs = append(attrs,
			"latency", e.Latency,
			"input_tokens", e.InputTokens,
			"output_tokens", e.OutputTokens,
			"cost", e.Cost,
		)
	case EventRequestFailed:
		attrs = append(attrs, "error_kind", e.ErrorKind, "retryable", e.Retryable)
	case EventBackendSwitched:
		attrs = append(attrs, "from", e.From, "to", e.To)
	case EventRateLimited:
		attrs = append(attrs, "retry_after", e.RetryAfter)
	}

	s.logger.Info("telemetry event", attrs...)
}

// Fanout forwards each event to every wrapped sink in order.
type Fanout []Sink

func (f Fanout) Emit(e Event) {
	for _, s := range f {
		s.Emit(e)
	}
}
