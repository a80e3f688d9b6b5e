package telemetry

import (
	"context"
	"encoding/hex"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Kept as plain strings (rather than attribute.Key
// constants) so Attr* names read the same in code and in a trace
// backend's search box.
const (
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.addr"
	AttrClientPort = "client.port"

	AttrConnectionID = "kms.connection_id"
	AttrCallID       = "kms.call_id"
	AttrOpnum        = "kms.opnum"

	AttrKMSVersion      = "kms.version"
	AttrSkuID           = "kms.sku_id"
	AttrApplicationID   = "kms.application_id"
	AttrClientMachineID = "kms.client_machine_id"
	AttrRequiredCount   = "kms.required_client_count"
	AttrReportedCount   = "kms.reported_client_count"
	AttrLicenseStatus   = "kms.license_status"

	AttrStatus    = "kms.status"
	AttrStatusMsg = "kms.status_message"

	AttrProtocol  = "protocol"
	AttrOperation = "operation"
)

// Span names. One span is started per accepted connection
// (SpanConnection) and one child span per dispatched request
// (SpanDispatch).
const (
	SpanConnection = "kms.connection"
	SpanBind       = "kms.bind"
	SpanDispatch   = "kms.dispatch"
)

// ClientIP builds a client.ip attribute.
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr builds a client.addr attribute (host:port form).
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// ConnectionID builds a kms.connection_id attribute.
func ConnectionID(id string) attribute.KeyValue {
	return attribute.String(AttrConnectionID, id)
}

// CallID builds a kms.call_id attribute from an RPC call identifier.
func CallID(callID uint32) attribute.KeyValue {
	return attribute.Int64(AttrCallID, int64(callID))
}

// Opnum builds a kms.opnum attribute.
func Opnum(opnum uint16) attribute.KeyValue {
	return attribute.Int64(AttrOpnum, int64(opnum))
}

// KMSVersion builds a kms.version attribute from a packed protocol
// version (major in the high 16 bits, minor in the low 16), rendered
// as "major.minor".
func KMSVersion(version uint32) attribute.KeyValue {
	return attribute.String(AttrKMSVersion, formatVersion(version))
}

// SkuID builds a kms.sku_id attribute from a SKU GUID.
func SkuID(skuID string) attribute.KeyValue {
	return attribute.String(AttrSkuID, skuID)
}

// ApplicationID builds a kms.application_id attribute from an
// application GUID.
func ApplicationID(appID string) attribute.KeyValue {
	return attribute.String(AttrApplicationID, appID)
}

// ClientMachineID builds a kms.client_machine_id attribute from a
// client machine GUID.
func ClientMachineID(cmid string) attribute.KeyValue {
	return attribute.String(AttrClientMachineID, cmid)
}

// RequiredClientCount builds a kms.required_client_count attribute.
func RequiredClientCount(n uint32) attribute.KeyValue {
	return attribute.Int64(AttrRequiredCount, int64(n))
}

// ReportedClientCount builds a kms.reported_client_count attribute.
func ReportedClientCount(n uint32) attribute.KeyValue {
	return attribute.Int64(AttrReportedCount, int64(n))
}

// LicenseStatus builds a kms.license_status attribute.
func LicenseStatus(status uint32) attribute.KeyValue {
	return attribute.Int64(AttrLicenseStatus, int64(status))
}

// Status builds a status attribute from an RPC fault or dispatch
// outcome code ("" for success).
func Status(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// StatusMsg builds a human-readable status message attribute.
func StatusMsg(msg string) attribute.KeyValue {
	return attribute.String(AttrStatusMsg, msg)
}

// Protocol builds a generic protocol-name attribute, usable outside the
// KMS-specific span helpers.
func Protocol(name string) attribute.KeyValue {
	return attribute.String(AttrProtocol, name)
}

// Operation builds a generic operation-name attribute.
func Operation(name string) attribute.KeyValue {
	return attribute.String(AttrOperation, name)
}

// HandleHex renders a byte-string handle (e.g. a raw GUID) as lowercase
// hex for an attribute value.
func HandleHex(b []byte) string {
	return hex.EncodeToString(b)
}

// StartConnectionSpan starts the top-level span for one accepted
// connection, tagged with the client's address and a server-assigned
// connection ID. Callers should End it when the connection closes.
func StartConnectionSpan(ctx context.Context, connectionID, clientAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanConnection,
		trace.WithAttributes(
			ConnectionID(connectionID),
			ClientAddr(clientAddr),
		),
	)
}

// StartBindSpan starts a child span for one Bind/BindAck negotiation
// within a connection span.
func StartBindSpan(ctx context.Context, callID uint32) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanBind, trace.WithAttributes(CallID(callID)))
}

// StartDispatchSpan starts a child span for one dispatched KMS request,
// tagged with the protocol generation, SKU, and client machine ID. Extra
// carries request-specific attributes (e.g. Opnum, ApplicationID) the
// caller wants attached at start time.
func StartDispatchSpan(ctx context.Context, callID uint32, kmsVersion uint32, skuID, clientMachineID string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := append([]attribute.KeyValue{
		CallID(callID),
		KMSVersion(kmsVersion),
		SkuID(skuID),
		ClientMachineID(clientMachineID),
	}, extra...)
	return StartSpan(ctx, SpanDispatch, trace.WithAttributes(attrs...))
}

func formatVersion(version uint32) string {
	major := version >> 16
	minor := version & 0xFFFF
	return itoa(major) + "." + itoa(minor)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
