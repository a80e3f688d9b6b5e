package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "kmsd", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, ClientIP("192.168.1.1"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("ClientIP", func(t *testing.T) {
		attr := ClientIP("192.168.1.100")
		assert.Equal(t, AttrClientIP, string(attr.Key))
		assert.Equal(t, "192.168.1.100", attr.Value.AsString())
	})

	t.Run("ClientAddr", func(t *testing.T) {
		attr := ClientAddr("192.168.1.100:12345")
		assert.Equal(t, AttrClientAddr, string(attr.Key))
		assert.Equal(t, "192.168.1.100:12345", attr.Value.AsString())
	})

	t.Run("ConnectionID", func(t *testing.T) {
		attr := ConnectionID("conn-1")
		assert.Equal(t, AttrConnectionID, string(attr.Key))
		assert.Equal(t, "conn-1", attr.Value.AsString())
	})

	t.Run("CallID", func(t *testing.T) {
		attr := CallID(42)
		assert.Equal(t, AttrCallID, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("Opnum", func(t *testing.T) {
		attr := Opnum(0)
		assert.Equal(t, AttrOpnum, string(attr.Key))
		assert.Equal(t, int64(0), attr.Value.AsInt64())
	})

	t.Run("KMSVersion", func(t *testing.T) {
		attr := KMSVersion(0x00060002)
		assert.Equal(t, AttrKMSVersion, string(attr.Key))
		assert.Equal(t, "6.2", attr.Value.AsString())
	})

	t.Run("SkuID", func(t *testing.T) {
		attr := SkuID("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
		assert.Equal(t, AttrSkuID, string(attr.Key))
		assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", attr.Value.AsString())
	})

	t.Run("ApplicationID", func(t *testing.T) {
		attr := ApplicationID("55c92734-d682-4d71-983e-d6ec3f16059f")
		assert.Equal(t, AttrApplicationID, string(attr.Key))
		assert.Equal(t, "55c92734-d682-4d71-983e-d6ec3f16059f", attr.Value.AsString())
	})

	t.Run("ClientMachineID", func(t *testing.T) {
		attr := ClientMachineID("11111111-2222-3333-4444-555555555555")
		assert.Equal(t, AttrClientMachineID, string(attr.Key))
		assert.Equal(t, "11111111-2222-3333-4444-555555555555", attr.Value.AsString())
	})

	t.Run("RequiredClientCount", func(t *testing.T) {
		attr := RequiredClientCount(25)
		assert.Equal(t, AttrRequiredCount, string(attr.Key))
		assert.Equal(t, int64(25), attr.Value.AsInt64())
	})

	t.Run("ReportedClientCount", func(t *testing.T) {
		attr := ReportedClientCount(26)
		assert.Equal(t, AttrReportedCount, string(attr.Key))
		assert.Equal(t, int64(26), attr.Value.AsInt64())
	})

	t.Run("LicenseStatus", func(t *testing.T) {
		attr := LicenseStatus(2)
		assert.Equal(t, AttrLicenseStatus, string(attr.Key))
		assert.Equal(t, int64(2), attr.Value.AsInt64())
	})

	t.Run("Status", func(t *testing.T) {
		attr := Status("nca_s_fault_nd")
		assert.Equal(t, AttrStatus, string(attr.Key))
		assert.Equal(t, "nca_s_fault_nd", attr.Value.AsString())
	})

	t.Run("StatusMsg", func(t *testing.T) {
		attr := StatusMsg("ok")
		assert.Equal(t, AttrStatusMsg, string(attr.Key))
		assert.Equal(t, "ok", attr.Value.AsString())
	})

	t.Run("Protocol", func(t *testing.T) {
		attr := Protocol("kms")
		assert.Equal(t, AttrProtocol, string(attr.Key))
		assert.Equal(t, "kms", attr.Value.AsString())
	})

	t.Run("Operation", func(t *testing.T) {
		attr := Operation("dispatch")
		assert.Equal(t, AttrOperation, string(attr.Key))
		assert.Equal(t, "dispatch", attr.Value.AsString())
	})

	t.Run("HandleHex", func(t *testing.T) {
		assert.Equal(t, "01020304", HandleHex([]byte{0x01, 0x02, 0x03, 0x04}))
	})
}

func TestStartConnectionSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartConnectionSpan(ctx, "conn-1", "192.168.1.100:54321")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartBindSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartBindSpan(ctx, 1)
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartDispatchSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartDispatchSpan(ctx, 2, 0x00060002, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", "11111111-2222-3333-4444-555555555555")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartDispatchSpan(ctx, 3, 0x00040000, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", "11111111-2222-3333-4444-555555555555", Opnum(0))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}
