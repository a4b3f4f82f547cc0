// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package detect arbitrates between the passive DHCP fingerprint signal and
// the active SMB probe under a confidence-threshold policy.
package detect

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"grimm.is/dhcpscry/internal/fingerprint"
	"grimm.is/dhcpscry/internal/logging"
	"grimm.is/dhcpscry/internal/metrics"
	"grimm.is/dhcpscry/internal/smb"
)

// Method tags which signal sources contributed to a result. Closed set.
type Method string

const (
	MethodDHCP         Method = "dhcp"
	MethodHybridProbed Method = "hybrid-probed"
	MethodHybridCached Method = "hybrid-cached"
	MethodUnknown      Method = "unknown"
)

// probedConfidence is the confidence assigned when an SMB negotiation
// corroborates or overrides the passive signal.
const probedConfidence = 0.90

// Result is the final detection outcome for one datagram.
type Result struct {
	OSName      string
	DeviceClass string
	Vendor      string
	Confidence  float64
	Method      Method

	SMBDialect string
	SMBBuild   uint32
}

// Config controls the hybrid decision policy.
type Config struct {
	EnableHybrid        bool
	EnableSMBProbing    bool
	Threshold           float64
	ProbeTimeout        time.Duration
	CacheTTL            time.Duration
	MaxConcurrentProbes int
}

// Prober is the active probe dependency; satisfied by *smb.Client.
type Prober interface {
	Probe(ctx context.Context, ip net.IP, timeout time.Duration) (*smb.ProbeResult, error)
}

// Detector runs the per-datagram detection state machine. It is safe for
// concurrent use: the cache is internally locked and everything else is
// immutable after construction.
type Detector struct {
	cfg    Config
	cache  *ProbeCache
	prober Prober
	sem    *semaphore.Weighted
	logger *logging.Logger
}

// New creates a Detector. The cache is passed in, not global, so tests can
// inject an isolated instance.
func New(cfg Config, cache *ProbeCache, prober Prober) *Detector {
	limit := int64(cfg.MaxConcurrentProbes)
	if limit <= 0 {
		limit = 16
	}
	return &Detector{
		cfg:    cfg,
		cache:  cache,
		prober: prober,
		sem:    semaphore.NewWeighted(limit),
		logger: logging.WithComponent("detect"),
	}
}

// Detect produces the final result for one datagram: a single pass, no
// retries. ip is the address to probe when the passive signal is weak; a nil
// ip skips the probe gate. Probe failures fall back to the DHCP-only result
// and are never surfaced as errors.
func (d *Detector) Detect(ctx context.Context, ip net.IP, dhcp fingerprint.Match) Result {
	passive := dhcpOnly(dhcp)

	if !d.cfg.EnableHybrid {
		return passive
	}
	if dhcp.Confidence >= d.cfg.Threshold {
		return passive
	}

	// Probe gate.
	if !d.cfg.EnableSMBProbing || ip == nil {
		return passive
	}

	if cached, ok := d.cache.Get(ip); ok {
		metrics.ProbeCacheHits.Inc()
		return combine(dhcp, cached, MethodHybridCached)
	}
	metrics.ProbeCacheMisses.Inc()

	probed, err := d.probe(ctx, ip)
	if err != nil {
		d.logger.Debug("probe failed, keeping passive result",
			"ip", ip.String(), "error", err)
		return passive
	}

	d.cache.Put(ip, probed, d.cfg.CacheTTL)
	return combine(dhcp, probed, MethodHybridProbed)
}

func (d *Detector) probe(ctx context.Context, ip net.IP) (*smb.ProbeResult, error) {
	// One deadline covers the whole unit: the semaphore bounds outstanding
	// probes across all in-flight datagrams, and time spent queueing for a
	// slot comes out of the same budget as the probe itself.
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	start := time.Now()
	result, err := d.prober.Probe(ctx, ip, d.cfg.ProbeTimeout)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProbesTotal.WithLabelValues(probeOutcome(err)).Inc()
		return nil, err
	}
	metrics.ProbesTotal.WithLabelValues("success").Inc()
	return result, nil
}

func probeOutcome(err error) string {
	var perr *smb.ProbeError
	if errors.As(err, &perr) {
		return perr.Reason.String()
	}
	return "error"
}

func dhcpOnly(dhcp fingerprint.Match) Result {
	method := MethodDHCP
	if dhcp.OSName == fingerprint.Unknown.OSName && dhcp.Confidence == 0 {
		method = MethodUnknown
	}
	return Result{
		OSName:      dhcp.OSName,
		DeviceClass: dhcp.DeviceClass,
		Vendor:      dhcp.Vendor,
		Confidence:  dhcp.Confidence,
		Method:      method,
	}
}

// combine merges the passive candidate with an SMB negotiation outcome. A
// compatible SMB family corroborates the DHCP label and lifts confidence to
// at least probedConfidence; a contradicting one replaces the label at
// exactly probedConfidence.
func combine(dhcp fingerprint.Match, probed *smb.ProbeResult, method Method) Result {
	r := Result{
		DeviceClass: dhcp.DeviceClass,
		Vendor:      "Microsoft",
		Method:      method,
		SMBDialect:  probed.Dialect,
		SMBBuild:    probed.Build,
	}

	switch {
	case dhcp.Confidence == 0:
		// Nothing passive to corroborate; the probe stands alone.
		r.OSName = probed.OSLabel
		r.Confidence = probedConfidence
	case windowsFamily(dhcp.OSName):
		// The SMB response is a coarser refinement of the same family;
		// keep the more specific passive label.
		r.OSName = dhcp.OSName
		r.Vendor = dhcp.Vendor
		r.Confidence = max(dhcp.Confidence, probedConfidence)
	default:
		// An SMB service answering the negotiate contradicts the passive
		// candidate; the active signal wins.
		r.OSName = probed.OSLabel
		r.Confidence = probedConfidence
	}
	return r
}

func windowsFamily(osName string) bool {
	return strings.Contains(osName, "Windows") || osName == "Xbox"
}
