package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these keys
// consistently across all log statements for log aggregation and
// querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Protocol & Operation
	// ========================================================================
	KeyProtocol = "protocol" // Protocol type: kms-rpc
	KeyStatus   = "status"   // Operation status code (NCA fault or success)

	// ========================================================================
	// Client Identification
	// ========================================================================
	KeyClientIP   = "client_ip"   // Client IP address
	KeyClientPort = "client_port" // Client source port

	// ========================================================================
	// Session & Connection
	// ========================================================================
	KeyConnectionID = "connection_id" // Connection identifier
	KeyCallID       = "call_id"       // DCE/RPC call_id

	// ========================================================================
	// KMS Activation
	// ========================================================================
	KeyKMSVersion      = "kms_version"       // Request/response protocol generation (4, 5, 6)
	KeySkuID           = "sku_id"            // Activated product's SKU GUID
	KeyClientMachineID = "client_machine_id" // Requesting client's machine GUID
	KeyOpnum           = "opnum"             // RPC operation number

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Protocol returns a slog.Attr for protocol type
func Protocol(proto string) slog.Attr {
	return slog.String(KeyProtocol, proto)
}

// Status returns a slog.Attr for operation status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ClientPort returns a slog.Attr for client source port
func ClientPort(port int) slog.Attr {
	return slog.Int(KeyClientPort, port)
}

// ConnectionID returns a slog.Attr for connection identifier
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// CallID returns a slog.Attr for a DCE/RPC call_id
func CallID(id uint32) slog.Attr {
	return slog.Any(KeyCallID, id)
}

// KMSVersion returns a slog.Attr for the KMS protocol generation
func KMSVersion(v uint32) slog.Attr {
	return slog.Any(KeyKMSVersion, v>>16)
}

// SkuID returns a slog.Attr for the activated product's SKU GUID
func SkuID(id string) slog.Attr {
	return slog.String(KeySkuID, id)
}

// ClientMachineID returns a slog.Attr for the requesting client's machine GUID
func ClientMachineID(id string) slog.Attr {
	return slog.String(KeyClientMachineID, id)
}

// Opnum returns a slog.Attr for the RPC operation number
func Opnum(n uint16) slog.Attr {
	return slog.Any(KeyOpnum, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for numeric error code
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}
