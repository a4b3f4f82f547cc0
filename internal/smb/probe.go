// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package smb performs an active SMB2 dialect negotiation against a target
// host. The probe sends a single unauthenticated NEGOTIATE request and reads
// one reply; no session is ever established.
package smb

import (
	"context"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
	"time"

	"grimm.is/dhcpscry/internal/errors"
	"grimm.is/dhcpscry/internal/logging"
)

// Port is the well-known SMB service port.
const Port = 445

// maxResponseSize bounds how much of a negotiate reply we will read.
const maxResponseSize = 4096

// FailureReason classifies why a probe produced no dialect.
type FailureReason int

const (
	FailureTimeout FailureReason = iota
	FailureConnectionRefused
	FailureConnectionReset
	FailureProtocolMismatch
)

func (r FailureReason) String() string {
	switch r {
	case FailureTimeout:
		return "timeout"
	case FailureConnectionRefused:
		return "connection_refused"
	case FailureConnectionReset:
		return "connection_reset"
	case FailureProtocolMismatch:
		return "protocol_mismatch"
	default:
		return "unknown"
	}
}

// ProbeError is the typed failure returned by Probe.
type ProbeError struct {
	Reason FailureReason
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("smb probe failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("smb probe failed (%s)", e.Reason)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ProbeResult is a successful dialect negotiation.
type ProbeResult struct {
	Dialect     string `json:"dialect"`
	DialectCode uint16 `json:"dialect_code"`

	// Build is a heuristic build-number indicator derived from the
	// negotiated dialect and any parseable capability extensions; zero when
	// nothing could be estimated.
	Build uint32 `json:"build,omitempty"`

	// OSLabel is the Windows family implied by the dialect.
	OSLabel string `json:"os_label"`
}

// Client probes hosts for their SMB dialect.
type Client struct {
	logger *logging.Logger
	port   int // overridable in tests

	// dialContext is swappable for tests.
	dialContext func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewClient returns a probe client.
func NewClient() *Client {
	d := &net.Dialer{}
	return &Client{
		logger:      logging.WithComponent("smb"),
		port:        Port,
		dialContext: d.DialContext,
	}
}

// Probe negotiates an SMB2 dialect with ip within timeout. The connection is
// closed on every exit path, and the call never outlives the timeout or the
// caller's context. Failures come back as *ProbeError.
func (c *Client) Probe(ctx context.Context, ip net.IP, timeout time.Duration) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(ip.String(), strconv.Itoa(c.port))
	conn, err := c.dialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDialError(err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, &ProbeError{Reason: FailureConnectionReset,
				Err: errors.Wrap(err, errors.KindInternal, "set deadline")}
		}
	}

	if _, err := conn.Write(buildNegotiateRequest()); err != nil {
		return nil, classifyIOError(err)
	}

	body, err := readNetBIOSMessage(conn)
	if err != nil {
		return nil, err
	}

	dialect, ok := parseNegotiateResponse(body)
	if !ok {
		return nil, &ProbeError{Reason: FailureProtocolMismatch,
			Err: errors.Errorf(errors.KindProtocol, "unrecognized negotiate reply (%d bytes)", len(body))}
	}

	result := &ProbeResult{
		Dialect:     DialectName(dialect),
		DialectCode: dialect,
		Build:       estimateBuild(dialect),
	}
	if dialect == Dialect311 {
		// Capability extensions are best-effort: parse failures keep the
		// dialect-derived estimate.
		result.Build = refineBuildFromContexts(body, result.Build)
	}
	if result.Build != 0 {
		result.OSLabel = BuildVersionLabel(result.Build)
	} else {
		result.OSLabel = "Windows (unknown version)"
	}

	c.logger.Debug("negotiated dialect",
		"ip", ip.String(), "dialect", result.Dialect, "build", result.Build)
	return result, nil
}

// readNetBIOSMessage reads the 4-byte session prefix and then the framed
// SMB2 message, bounded by maxResponseSize.
func readNetBIOSMessage(conn net.Conn) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, classifyIOError(err)
	}

	length := int(binary.BigEndian.Uint32(prefix[:]) & 0x00FFFFFF)
	if length < negotiateResponseMin {
		return nil, &ProbeError{Reason: FailureProtocolMismatch,
			Err: errors.Errorf(errors.KindProtocol, "short session message: %d bytes", length)}
	}
	if length > maxResponseSize {
		length = maxResponseSize
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, classifyIOError(err)
	}
	return body, nil
}

// The classifiers attach both a FailureReason (metric label) and an
// errors.Kind (shared taxonomy) so callers can inspect either.

func classifyDialError(err error) *ProbeError {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return &ProbeError{Reason: FailureTimeout,
			Err: errors.Wrap(err, errors.KindTimeout, "dial timed out")}
	case stderrors.Is(err, syscall.ECONNREFUSED):
		return &ProbeError{Reason: FailureConnectionRefused,
			Err: errors.Wrap(err, errors.KindUnavailable, "connection refused")}
	default:
		// Unreachable hosts and dropped SYNs surface as refusals too: the
		// service is not there to answer.
		return &ProbeError{Reason: FailureConnectionRefused,
			Err: errors.Wrap(err, errors.KindUnavailable, "dial failed")}
	}
}

func classifyIOError(err error) *ProbeError {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return &ProbeError{Reason: FailureTimeout,
			Err: errors.Wrap(err, errors.KindTimeout, "negotiate timed out")}
	case stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) ||
		stderrors.Is(err, syscall.ECONNRESET) || stderrors.Is(err, syscall.EPIPE):
		return &ProbeError{Reason: FailureConnectionReset,
			Err: errors.Wrap(err, errors.KindUnavailable, "connection reset")}
	default:
		return &ProbeError{Reason: FailureConnectionReset,
			Err: errors.Wrap(err, errors.KindUnavailable, "negotiate i/o failed")}
	}
}

func isTimeout(err error) bool {
	var nerr net.Error
	return stderrors.As(err, &nerr) && nerr.Timeout()
}
