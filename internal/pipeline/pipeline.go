// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pipeline turns raw DHCP datagrams into detection observations and
// fans them out to the configured sinks.
package pipeline

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/google/uuid"

	"grimm.is/dhcpscry/internal/clock"
	"grimm.is/dhcpscry/internal/detect"
	"grimm.is/dhcpscry/internal/dhcp"
	"grimm.is/dhcpscry/internal/fingerprint"
	"grimm.is/dhcpscry/internal/logging"
	"grimm.is/dhcpscry/internal/metrics"
)

// Pipeline is the per-datagram processing chain: parse, extract, match,
// detect, record. It is safe for concurrent Handle calls.
type Pipeline struct {
	matcher  *fingerprint.Matcher
	detector *detect.Detector
	sinks    []Sink
	clock    clock.Clock
	logger   *logging.Logger
}

// New creates a Pipeline. A nil clk uses the wall clock.
func New(matcher *fingerprint.Matcher, detector *detect.Detector, clk clock.Clock, sinks ...Sink) *Pipeline {
	if clk == nil {
		clk = clock.Real()
	}
	return &Pipeline{
		matcher:  matcher,
		detector: detector,
		sinks:    sinks,
		clock:    clk,
		logger:   logging.WithComponent("pipeline"),
	}
}

// Handle processes one datagram from src. Malformed datagrams are dropped
// with a diagnostic and the parse error is returned so callers can account
// for them; processing errors past the parse stage are absorbed.
func (p *Pipeline) Handle(ctx context.Context, raw []byte, src *net.UDPAddr) (*Observation, error) {
	msg, err := dhcp.Parse(raw)
	if err != nil {
		metrics.DatagramsDropped.WithLabelValues(dropReason(err)).Inc()
		p.logger.Debug("dropping malformed datagram",
			"source", src.String(), "bytes", len(raw), "error", err)
		return nil, err
	}

	fields := dhcp.Extract(msg)
	match := p.matcher.Match(fields.ParamRequestList, fields.HasHostname)
	result := p.detector.Detect(ctx, probeTarget(fields, src), match)
	metrics.DetectionsTotal.WithLabelValues(string(result.Method)).Inc()

	obs := &Observation{
		ID:          uuid.New().String(),
		Timestamp:   p.clock.Now().UTC(),
		SourceIP:    src.IP.String(),
		SourcePort:  src.Port,
		MAC:         msg.HardwareAddr(),
		MessageType: dhcp.MessageTypeString(msg.MessageType()),
		XID:         msg.XID,
		Hostname:    fields.Hostname,
		FQDN:        fields.FQDN,
		VendorClass: fields.VendorClass,
		Fingerprint: fields.Fingerprint,
		Options:     msg.Options,
		OSName:      result.OSName,
		DeviceClass: result.DeviceClass,
		Vendor:      result.Vendor,
		Confidence:  result.Confidence,
		Method:      string(result.Method),
		SMBDialect:  result.SMBDialect,
		SMBBuild:    result.SMBBuild,
	}
	if fields.ClientIP != nil {
		obs.ClientIP = fields.ClientIP.String()
	}

	p.logger.Info("observation",
		"mac", obs.MAC,
		"type", obs.MessageType,
		"hostname", obs.Hostname,
		"os", obs.OSName,
		"confidence", obs.Confidence,
		"method", obs.Method)

	for _, sink := range p.sinks {
		if err := sink.Record(obs); err != nil {
			p.logger.Warn("sink rejected observation", "id", obs.ID, "error", err)
		}
	}
	return obs, nil
}

// probeTarget picks the address worth probing: ciaddr when the client
// claims one, otherwise the datagram's unicast source. Unspecified and
// broadcast sources are useless as probe targets.
func probeTarget(fields dhcp.Fields, src *net.UDPAddr) net.IP {
	if fields.ClientIP != nil {
		return fields.ClientIP
	}
	if src == nil || src.IP == nil {
		return nil
	}
	if src.IP.IsUnspecified() || src.IP.Equal(net.IPv4bcast) {
		return nil
	}
	return src.IP
}

func dropReason(err error) string {
	var trunc *dhcp.TruncatedOptionError
	switch {
	case stderrors.Is(err, dhcp.ErrInvalidCookie):
		return "invalid_cookie"
	case stderrors.As(err, &trunc):
		return "truncated_option"
	default:
		return "malformed"
	}
}
