package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one KMS RPC
// connection/call.
type LogContext struct {
	TraceID         string    // OpenTelemetry trace ID
	SpanID          string    // OpenTelemetry span ID
	ClientIP        string    // Client IP address (without port)
	ConnectionID    string    // Server-assigned connection identifier
	CallID          uint32    // DCE/RPC call_id
	KMSVersion      uint32    // Request/response protocol generation field
	ClientMachineID string    // Requesting client's machine GUID
	StartTime       time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithCall returns a copy with the connection/call identifiers set.
func (lc *LogContext) WithCall(connectionID string, callID uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ConnectionID = connectionID
		clone.CallID = callID
	}
	return clone
}

// WithActivation returns a copy with the decoded request's version and
// client machine ID set.
func (lc *LogContext) WithActivation(version uint32, clientMachineID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.KMSVersion = version
		clone.ClientMachineID = clientMachineID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
