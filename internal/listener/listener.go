// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package listener receives DHCP traffic on UDP port 67 and hands each
// datagram to the pipeline. It is purely an observer and never sends
// DHCP replies.
package listener

import (
	"context"
	"net"
	"sync"
	"time"

	"grimm.is/dhcpscry/internal/errors"
	"grimm.is/dhcpscry/internal/logging"
	"grimm.is/dhcpscry/internal/metrics"
	"grimm.is/dhcpscry/internal/pipeline"
)

// maxDatagramSize is larger than any legal DHCP message; RFC 2131 clients
// rarely exceed 576 bytes but relays can pad.
const maxDatagramSize = 4096

// Listener owns the UDP socket and the receive loop.
type Listener struct {
	addr     string
	pipeline *pipeline.Pipeline
	logger   *logging.Logger

	conn   *net.UDPConn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Listener bound to addr (host:port) once started.
func New(addr string, p *pipeline.Pipeline) *Listener {
	return &Listener{
		addr:     addr,
		pipeline: p,
		logger:   logging.WithComponent("listener"),
	}
}

// Start binds the socket and launches the receive loop. Datagrams are
// processed on their own goroutines so a slow SMB probe never stalls
// the socket.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", l.addr)
	if err != nil {
		return errors.Wrapf(err, errors.KindValidation, "invalid listen address %q", l.addr)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "failed to listen on %s", l.addr)
	}
	l.conn = conn

	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go l.receiveLoop(ctx)

	l.logger.Info("listening for DHCP traffic", "addr", conn.LocalAddr().String())
	return nil
}

// Stop closes the socket and waits for in-flight datagrams to finish.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.conn != nil {
		l.conn.Close()
	}
	l.wg.Wait()
}

// LocalAddr reports the bound address, nil before Start.
func (l *Listener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

func (l *Listener) receiveLoop(ctx context.Context) {
	defer l.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		l.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, src, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				select {
				case <-ctx.Done():
					return
				default:
					continue
				}
			}
			select {
			case <-ctx.Done():
				return
			default:
				l.logger.Warn("error receiving datagram", "error", err)
				continue
			}
		}

		metrics.DatagramsReceived.Inc()
		raw := make([]byte, n)
		copy(raw, buf[:n])

		l.wg.Add(1)
		go func(raw []byte, src *net.UDPAddr) {
			defer l.wg.Done()
			l.pipeline.Handle(ctx, raw, src)
		}(raw, src)
	}
}
