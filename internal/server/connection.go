package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"time"

	"github.com/shalu066900/pykms/internal/dispatch"
	"github.com/shalu066900/pykms/internal/kmscrypto"
	"github.com/shalu066900/pykms/internal/kmsproto"
	"github.com/shalu066900/pykms/internal/logger"
	"github.com/shalu066900/pykms/internal/rpc"
	"github.com/shalu066900/pykms/internal/telemetry"
	"github.com/shalu066900/pykms/internal/wire"
)

// connState is a connection's position in the Bind/Request state
// machine: a connection must complete a Bind before it may process
// Request PDUs, and stays in Bound for the rest of its life (a later
// Bind only replaces the negotiated contexts).
type connState int

const (
	stateBinding connState = iota
	stateBound
)

// connection owns one accepted TCP socket: it runs the read-dispatch-
// write loop single-threaded per connection (clients pipeline KMS
// activation calls, but the host processes them strictly in arrival
// order — there is no per-request concurrency to parallelize).
type connection struct {
	srv          *Server
	conn         net.Conn
	connectionID string

	state       connState
	contexts    map[uint16]rpc.PresentationContext
	maxXmitFrag uint16
	reassembler *rpc.Reassembler
}

func newConnection(srv *Server, c net.Conn, connectionID string) *connection {
	return &connection{
		srv:          srv,
		conn:         c,
		connectionID: connectionID,
		state:        stateBinding,
		contexts:     make(map[uint16]rpc.PresentationContext),
		maxXmitFrag:  4096,
		reassembler:  rpc.NewReassembler(),
	}
}

// serve runs the connection loop until the client disconnects, an
// unrecoverable error occurs, or ctx is cancelled (server shutdown).
func (c *connection) serve(ctx context.Context) {
	defer c.handleClose()

	clientAddr := c.conn.RemoteAddr().String()
	ctx, span := telemetry.StartConnectionSpan(ctx, c.connectionID, clientAddr)
	defer span.End()

	lc := logger.NewLogContext(clientHost(clientAddr))
	lc.ConnectionID = c.connectionID
	ctx = logger.WithContext(ctx, lc)

	logger.DebugCtx(ctx, "connection accepted", logger.ConnectionID(c.connectionID), logger.ClientIP(clientHost(clientAddr)))

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.srv.shutdown:
			return
		default:
		}

		header, body, err := c.readFrame(ctx)
		if err != nil {
			c.logReadError(ctx, err)
			return
		}

		if header.AuthLen != 0 {
			// Non-zero auth_length means the client is attempting an
			// authenticated bind we never negotiate (spec §7:
			// MalformedField -> NCA_S_PROTO_ERROR, connection stays open).
			c.writeFault(ctx, header.CallID, rpc.NCAProtoError)
			continue
		}

		switch header.PType {
		case rpc.PTypeBind:
			c.handleBind(ctx, header, body)
		case rpc.PTypeRequest:
			if !c.handleRequest(ctx, header, body) {
				return
			}
		default:
			c.writeFault(ctx, header.CallID, rpc.NCAProtoError)
		}
	}
}

// readFrame waits for the next PDU to start arriving under the idle
// timeout — the gap between complete PDUs — then switches to the
// tighter read timeout to bound how long a PDU already in flight may
// take to finish, so a client trickling a partial PDU is bound by the
// read timeout rather than the looser idle one.
func (c *connection) readFrame(ctx context.Context) (rpc.CommonHeader, *wire.Reader, error) {
	if err := c.resetDeadline(c.srv.cfg.Timeouts.Idle); err != nil {
		logger.WarnCtx(ctx, "failed to set idle deadline", logger.Err(err))
	}
	var first [1]byte
	if _, err := io.ReadFull(c.conn, first[:]); err != nil {
		return rpc.CommonHeader{}, nil, err
	}

	if err := c.resetDeadline(c.srv.cfg.Timeouts.Read); err != nil {
		logger.WarnCtx(ctx, "failed to set read deadline", logger.Err(err))
	}
	return rpc.ReadFrame(io.MultiReader(bytes.NewReader(first[:]), c.conn))
}

func (c *connection) logReadError(ctx context.Context, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.DebugCtx(ctx, "connection closed by client")
	case isTimeout(err):
		logger.DebugCtx(ctx, "connection timed out", logger.Err(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.DebugCtx(ctx, "connection cancelled", logger.Err(err))
	default:
		logger.DebugCtx(ctx, "error reading frame", logger.Err(err))
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *connection) resetDeadline(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return c.conn.SetDeadline(time.Now().Add(d))
}

// handleBind negotiates the presentation contexts the client offers
// and replies with BindAck. A connection may re-bind (some clients
// issue a fresh Bind after a renegotiation); the latest contexts win.
func (c *connection) handleBind(ctx context.Context, header rpc.CommonHeader, body *wire.Reader) {
	ctx, span := telemetry.StartBindSpan(ctx, header.CallID)
	defer span.End()

	req, err := rpc.DecodeBind(header, body)
	if err != nil {
		logger.WarnCtx(ctx, "malformed bind", logger.Err(err), logger.CallID(header.CallID))
		c.writeFault(ctx, header.CallID, rpc.NCAProtoError)
		return
	}

	negotiated := rpc.Negotiate(req)
	for _, pc := range negotiated {
		c.contexts[pc.ContextID] = pc
	}
	if req.MaxXmitFrag > 0 {
		c.maxXmitFrag = req.MaxXmitFrag
	}
	c.state = stateBound

	ack := rpc.EncodeBindAck(header.CallID, req.AssocGroupID, c.maxXmitFrag, req.MaxRecvFrag, negotiated)
	if err := c.write(ack); err != nil {
		logger.WarnCtx(ctx, "failed to write bindack", logger.Err(err))
	}
}

// handleRequest reassembles and dispatches one KMS call. It returns
// false when the connection must be closed (AuthFailure/DecryptMismatch
// -> silent close per spec §7, to avoid acting as a decryption oracle).
func (c *connection) handleRequest(ctx context.Context, header rpc.CommonHeader, body *wire.Reader) bool {
	pdu, err := rpc.DecodeRequest(header, body)
	if err != nil {
		logger.WarnCtx(ctx, "malformed request", logger.Err(err), logger.CallID(header.CallID))
		c.writeFault(ctx, header.CallID, rpc.NCAProtoError)
		return true
	}

	complete, ok := c.reassembler.Feed(pdu)
	if !ok {
		return true // awaiting more fragments
	}

	if _, known := c.contexts[complete.ContextID]; !known || c.state != stateBound {
		c.writeFault(ctx, header.CallID, rpc.NCAOpRngError)
		return true
	}
	if complete.Opnum != 0 {
		// KMS defines a single opnum; anything else is out of range.
		c.writeFault(ctx, header.CallID, rpc.NCAOpRngError)
		return true
	}

	version := inferVersion(len(complete.Stub))
	ctx, span := telemetry.StartDispatchSpan(ctx, header.CallID, uint32(version), "", "", telemetry.Opnum(complete.Opnum))
	defer span.End()

	start := time.Now()
	respStub, err := dispatch.Dispatch(ctx, complete.Stub, c.srv.identity, c.srv.store, c.srv.dispatchCfg)
	duration := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		return c.handleDispatchError(ctx, header, duration, uint32(version), err)
	}

	if c.srv.metrics != nil {
		c.srv.metrics.RecordRequest(uint32(version), duration, "")
	}

	frames := rpc.SplitResponse(header.CallID, complete.ContextID, respStub, int(c.maxXmitFrag))
	for _, frame := range frames {
		if err := c.write(frame); err != nil {
			logger.WarnCtx(ctx, "failed to write response", logger.Err(err))
			return false
		}
	}
	return true
}

func (c *connection) handleDispatchError(ctx context.Context, header rpc.CommonHeader, duration float64, version uint32, err error) bool {
	switch {
	case errors.Is(err, kmscrypto.ErrAuthFailure), errors.Is(err, kmscrypto.ErrDecryptMismatch):
		// Close without replying: an error PDU here would let a client
		// distinguish "wrong key" from "malformed", turning the server
		// into a decryption oracle.
		logger.InfoCtx(ctx, "auth failure, closing connection", logger.Err(err), logger.CallID(header.CallID))
		if c.srv.metrics != nil {
			c.srv.metrics.RecordAuthFailure(version)
			c.srv.metrics.RecordRequest(version, duration, "auth_failure")
		}
		return false
	default:
		logger.WarnCtx(ctx, "dispatch failed", logger.Err(err), logger.CallID(header.CallID))
		if c.srv.metrics != nil {
			c.srv.metrics.RecordRequest(version, duration, "dispatch_error")
		}
		c.writeFault(ctx, header.CallID, rpc.NCAOpRngError)
		return true
	}
}

// inferVersion maps a request stub's wire length to the protocol
// generation it belongs to, for tagging metrics/traces only — dispatch
// itself recomputes this from the same lengths to pick a decryption
// key, per spec.md §4.3's distinct per-generation padded sizes.
func inferVersion(stubLen int) kmsproto.Version {
	switch stubLen {
	case 236 + 16:
		return kmsproto.VersionV4
	case 16 + 240:
		return kmsproto.VersionV5
	case 16 + 256:
		return kmsproto.VersionV6
	default:
		return 0
	}
}

func (c *connection) writeFault(ctx context.Context, callID uint32, status uint32) {
	frame := rpc.EncodeFault(callID, 0, status)
	if err := c.write(frame); err != nil {
		logger.WarnCtx(ctx, "failed to write fault", logger.Err(err))
	}
}

func (c *connection) write(b []byte) error {
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("server: write: %w", err)
	}
	return nil
}

func (c *connection) handleClose() {
	if r := recover(); r != nil {
		logger.Error("panic in connection handler",
			logger.ConnectionID(c.connectionID), "recovered", r, "stack", string(debug.Stack()))
	}
	_ = c.conn.Close()
}

func clientHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

