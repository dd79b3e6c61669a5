// Package tracer records per-tool-call trace events for the MCP tool
// dispatcher: sanitized arguments, timing, success/error, and the
// cost/token metering fields the RAG Service surfaces, plus aggregated
// per-tool counters.
package tracer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/ragmcp/internal/tracer"

// maxArgStringLen is the length above which a sanitized string argument
// is truncated.
const maxArgStringLen = 200

// contentFields are replaced with a byte-count placeholder rather than
// logged verbatim.
var contentFields = map[string]bool{
	"file_content": true,
	"content":      true,
}

// secretFields are replaced outright with a redaction placeholder.
var secretFields = map[string]bool{
	"api_key":  true,
	"password": true,
	"secret":   true,
}

// TokenUsage reports LLM token counts attached to a tool's result, when
// present.
type TokenUsage struct {
	Input  int
	Output int
	Total  int
}

// Event is one closed tool call, as captured for the observability
// sink (see Record) and for per-tool aggregation.
type Event struct {
	RequestID      string
	ToolName       string
	Arguments      map[string]interface{}
	StartTime      time.Time
	EndTime        time.Time
	DurationMS     float64
	Success        bool
	Error          string
	Model          string
	Tokens         *TokenUsage
	VLMCostUSD     float64
	VLMPages       int
	ChunksCreated  int
	KBName         string
	Environment    string
}

// Stats aggregates one tool's calls across its lifetime.
type Stats struct {
	TotalCalls        int64
	SuccessCount      int64
	ErrorCount        int64
	TotalDurationMS   float64
	TotalCostUSD      float64
}

// Sink receives closed trace events for delivery to an observability
// backend. Delivery is best-effort: a Sink error never fails the tool
// call it describes.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// LogSink emits trace events as structured log lines. It is the
// default sink when no dedicated observability backend is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a LogSink writing through logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Emit logs event at info level on success, warn on failure.
func (l *LogSink) Emit(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("request_id", event.RequestID),
		zap.String("tool_name", event.ToolName),
		zap.Float64("duration_ms", event.DurationMS),
		zap.Bool("success", event.Success),
	}
	if event.KBName != "" {
		fields = append(fields, zap.String("kb_name", event.KBName))
	}
	if event.VLMCostUSD > 0 {
		fields = append(fields, zap.Float64("vlm_cost_usd", event.VLMCostUSD))
	}
	if event.Success {
		l.logger.Info("mcp tool trace", fields...)
	} else {
		l.logger.Warn("mcp tool trace", append(fields, zap.String("error", event.Error))...)
	}
	return nil
}

// Tracer opens and closes traces for tool invocations, forwards closed
// events to a Sink, and maintains per-tool aggregated counters.
type Tracer struct {
	sink        Sink
	environment string
	logger      *zap.Logger
	tracer      trace.Tracer

	mu    sync.Mutex
	stats map[string]*Stats
}

// New builds a Tracer. sink may be nil, in which case events are
// dropped after updating per-tool stats. environment is stamped onto
// every emitted event (e.g. "production", "staging").
func New(sink Sink, environment string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{
		sink:        sink,
		environment: environment,
		logger:      logger,
		tracer:      otel.Tracer(instrumentationName),
		stats:       make(map[string]*Stats),
	}
}

// Trace is a single open tool invocation. Start returns one; the
// caller records the outcome via SetResult/SetError before calling
// Close.
type Trace struct {
	tracer    *Tracer
	span      trace.Span
	requestID string
	toolName  string
	arguments map[string]interface{}
	startTime time.Time

	success       bool
	errMsg        string
	model         string
	tokens        *TokenUsage
	vlmCostUSD    float64
	vlmPages      int
	chunksCreated int
	kbName        string
}

// Start opens a trace for toolName, sanitizing arguments immediately
// so unsanitized values never linger in the Trace.
func (t *Tracer) Start(ctx context.Context, toolName string, arguments map[string]interface{}) (context.Context, *Trace) {
	ctx, span := t.tracer.Start(ctx, "mcp.tool."+toolName, trace.WithAttributes(
		attribute.String("tool.name", toolName),
	))

	tr := &Trace{
		tracer:    t,
		span:      span,
		requestID: uuid.NewString(),
		toolName:  toolName,
		arguments: sanitizeArguments(arguments),
		startTime: time.Now(),
	}
	return ctx, tr
}

// SetSuccess records a successful outcome, along with any of the
// optional metering fields the result carried.
func (tr *Trace) SetSuccess(model string, tokens *TokenUsage, vlmCostUSD float64, vlmPages, chunksCreated int, kbName string) {
	tr.success = true
	tr.model = model
	tr.tokens = tokens
	tr.vlmCostUSD = vlmCostUSD
	tr.vlmPages = vlmPages
	tr.chunksCreated = chunksCreated
	tr.kbName = kbName
}

// SetError records a failed outcome.
func (tr *Trace) SetError(errMsg string) {
	tr.success = false
	tr.errMsg = errMsg
}

// Close ends the trace: it emits the closed event to the tracer's
// sink (best-effort) and updates the tool's aggregated counters under
// a short critical section.
func (tr *Trace) Close(ctx context.Context) {
	end := time.Now()
	durationMS := float64(end.Sub(tr.startTime)) / float64(time.Millisecond)

	if tr.errMsg != "" {
		tr.span.SetAttributes(attribute.Bool("tool.success", false))
	} else {
		tr.span.SetAttributes(attribute.Bool("tool.success", true))
	}
	tr.span.End()

	event := Event{
		RequestID:     tr.requestID,
		ToolName:      tr.toolName,
		Arguments:     tr.arguments,
		StartTime:     tr.startTime,
		EndTime:       end,
		DurationMS:    durationMS,
		Success:       tr.success,
		Error:         tr.errMsg,
		Model:         tr.model,
		Tokens:        tr.tokens,
		VLMCostUSD:    tr.vlmCostUSD,
		VLMPages:      tr.vlmPages,
		ChunksCreated: tr.chunksCreated,
		KBName:        tr.kbName,
		Environment:   tr.tracer.environment,
	}

	tr.tracer.recordStats(tr.toolName, durationMS, tr.success, tr.vlmCostUSD)

	if tr.tracer.sink != nil {
		if err := tr.tracer.sink.Emit(ctx, event); err != nil {
			tr.tracer.logger.Warn("trace sink emit failed",
				zap.String("tool_name", tr.toolName),
				zap.String("request_id", tr.requestID),
				zap.Error(err))
		}
	}
}

func (t *Tracer) recordStats(toolName string, durationMS float64, success bool, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[toolName]
	if !ok {
		s = &Stats{}
		t.stats[toolName] = s
	}
	s.TotalCalls++
	s.TotalDurationMS += durationMS
	s.TotalCostUSD += cost
	if success {
		s.SuccessCount++
	} else {
		s.ErrorCount++
	}
}

// Stats returns a snapshot of every tool's aggregated counters.
func (t *Tracer) Stats() map[string]Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Stats, len(t.stats))
	for name, s := range t.stats {
		out[name] = *s
	}
	return out
}

// sanitizeArguments applies the redaction/truncation rules to a raw
// argument map before it is ever attached to a trace.
func sanitizeArguments(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		switch {
		case contentFields[k]:
			out[k] = contentByteSize(v)
		case secretFields[k]:
			out[k] = "<redacted>"
		default:
			if s, ok := v.(string); ok && len(s) > maxArgStringLen {
				out[k] = s[:maxArgStringLen] + "..."
				continue
			}
			out[k] = v
		}
	}
	return out
}

func contentByteSize(v interface{}) string {
	switch val := v.(type) {
	case string:
		return byteCountPlaceholder(len(val))
	case []byte:
		return byteCountPlaceholder(len(val))
	default:
		return "<content>"
	}
}

func byteCountPlaceholder(n int) string {
	return "<" + strconv.Itoa(n) + " bytes>"
}
