// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detect

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/dhcpscry/internal/fingerprint"
	"grimm.is/dhcpscry/internal/smb"
)

type fakeProber struct {
	calls  atomic.Int64
	result *smb.ProbeResult
	err    error
}

func (f *fakeProber) Probe(ctx context.Context, ip net.IP, timeout time.Duration) (*smb.ProbeResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testConfig() Config {
	return Config{
		EnableHybrid:        true,
		EnableSMBProbing:    true,
		Threshold:           0.8,
		ProbeTimeout:        time.Second,
		CacheTTL:            time.Hour,
		MaxConcurrentProbes: 4,
	}
}

var (
	win10Match = fingerprint.Match{
		OSName:      "Windows 10",
		DeviceClass: "Desktop/Laptop",
		Vendor:      "Microsoft",
		Confidence:  0.75,
		Exact:       true,
	}
	win11Match = fingerprint.Match{
		OSName:      "Windows 11",
		DeviceClass: "Desktop/Laptop",
		Vendor:      "Microsoft",
		Confidence:  0.95,
		Exact:       true,
	}
	win10Probe = &smb.ProbeResult{
		Dialect:     "3.1.1",
		DialectCode: smb.Dialect311,
		Build:       19041,
		OSLabel:     "Windows 10 2004",
	}
)

func TestDetectConfidentResultSkipsProbe(t *testing.T) {
	prober := &fakeProber{result: win10Probe}
	d := New(testConfig(), NewProbeCache(nil), prober)

	got := d.Detect(context.Background(), net.ParseIP("10.0.0.5"), win11Match)

	assert.Equal(t, MethodDHCP, got.Method)
	assert.Equal(t, "Windows 11", got.OSName)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)
	assert.Equal(t, int64(0), prober.calls.Load(), "confident match must not trigger a probe")
}

func TestDetectHybridDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableHybrid = false
	prober := &fakeProber{result: win10Probe}
	d := New(cfg, NewProbeCache(nil), prober)

	got := d.Detect(context.Background(), net.ParseIP("10.0.0.5"), win10Match)

	assert.Equal(t, MethodDHCP, got.Method)
	assert.InDelta(t, 0.75, got.Confidence, 1e-9)
	assert.Equal(t, int64(0), prober.calls.Load())
}

func TestDetectProbingDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableSMBProbing = false
	prober := &fakeProber{result: win10Probe}
	d := New(cfg, NewProbeCache(nil), prober)

	got := d.Detect(context.Background(), net.ParseIP("10.0.0.5"), win10Match)

	assert.Equal(t, MethodDHCP, got.Method)
	assert.Equal(t, int64(0), prober.calls.Load())
}

func TestDetectProbeCorroboratesWindows(t *testing.T) {
	prober := &fakeProber{result: win10Probe}
	cache := NewProbeCache(nil)
	d := New(testConfig(), cache, prober)

	got := d.Detect(context.Background(), net.ParseIP("10.0.0.5"), win10Match)

	assert.Equal(t, MethodHybridProbed, got.Method)
	assert.Equal(t, "Windows 10", got.OSName, "passive label is more specific and wins")
	assert.InDelta(t, 0.90, got.Confidence, 1e-9)
	assert.Equal(t, "3.1.1", got.SMBDialect)
	assert.Equal(t, uint32(19041), got.SMBBuild)
	assert.Equal(t, 1, cache.Len(), "successful probe result must be cached")
}

func TestDetectProbeContradictsPassive(t *testing.T) {
	linuxMatch := fingerprint.Match{
		OSName:      "Linux",
		DeviceClass: "Desktop/Laptop",
		Vendor:      "Various",
		Confidence:  0.5,
	}
	prober := &fakeProber{result: win10Probe}
	d := New(testConfig(), NewProbeCache(nil), prober)

	got := d.Detect(context.Background(), net.ParseIP("10.0.0.5"), linuxMatch)

	assert.Equal(t, MethodHybridProbed, got.Method)
	assert.Equal(t, "Windows 10 2004", got.OSName, "an answering SMB service overrides the passive label")
	assert.Equal(t, "Microsoft", got.Vendor)
	assert.InDelta(t, 0.90, got.Confidence, 1e-9)
}

func TestDetectUnknownPassiveUsesProbe(t *testing.T) {
	prober := &fakeProber{result: win10Probe}
	d := New(testConfig(), NewProbeCache(nil), prober)

	got := d.Detect(context.Background(), net.ParseIP("10.0.0.5"), fingerprint.Unknown)

	assert.Equal(t, MethodHybridProbed, got.Method)
	assert.Equal(t, "Windows 10 2004", got.OSName)
	assert.InDelta(t, 0.90, got.Confidence, 1e-9)
}

func TestDetectCacheHit(t *testing.T) {
	prober := &fakeProber{result: win10Probe}
	cache := NewProbeCache(nil)
	cache.Put(net.ParseIP("10.0.0.5"), win10Probe, time.Hour)
	d := New(testConfig(), cache, prober)

	got := d.Detect(context.Background(), net.ParseIP("10.0.0.5"), win10Match)

	assert.Equal(t, MethodHybridCached, got.Method)
	assert.Equal(t, "Windows 10", got.OSName)
	assert.InDelta(t, 0.90, got.Confidence, 1e-9)
	assert.Equal(t, int64(0), prober.calls.Load(), "cache hit must not trigger a probe")
}

func TestDetectProbeFailureFallsBack(t *testing.T) {
	prober := &fakeProber{err: &smb.ProbeError{Reason: smb.FailureTimeout}}
	cache := NewProbeCache(nil)
	d := New(testConfig(), cache, prober)

	got := d.Detect(context.Background(), net.ParseIP("10.0.0.5"), win10Match)

	assert.Equal(t, MethodDHCP, got.Method, "probe failure keeps the passive result")
	assert.Equal(t, "Windows 10", got.OSName)
	assert.InDelta(t, 0.75, got.Confidence, 1e-9)
	assert.Equal(t, int64(1), prober.calls.Load())
	assert.Equal(t, 0, cache.Len(), "failed probes must not be cached")
}

// deadlineProber records the deadline carried by the context Probe receives.
type deadlineProber struct {
	deadline    time.Time
	hasDeadline bool
	result      *smb.ProbeResult
}

func (p *deadlineProber) Probe(ctx context.Context, ip net.IP, timeout time.Duration) (*smb.ProbeResult, error) {
	p.deadline, p.hasDeadline = ctx.Deadline()
	return p.result, nil
}

func TestDetectProbeDeadlineCoversQueueWait(t *testing.T) {
	cfg := testConfig()
	cfg.ProbeTimeout = time.Second
	prober := &deadlineProber{result: win10Probe}
	d := New(cfg, NewProbeCache(nil), prober)

	start := time.Now()
	got := d.Detect(context.Background(), net.ParseIP("10.0.0.5"), win10Match)

	require.Equal(t, MethodHybridProbed, got.Method)
	require.True(t, prober.hasDeadline, "probe context must carry a deadline")
	assert.False(t, prober.deadline.After(start.Add(cfg.ProbeTimeout+100*time.Millisecond)),
		"semaphore wait and probe share a single ProbeTimeout budget")
}

func TestDetectNilIPSkipsProbe(t *testing.T) {
	prober := &fakeProber{result: win10Probe}
	d := New(testConfig(), NewProbeCache(nil), prober)

	got := d.Detect(context.Background(), nil, win10Match)

	assert.Equal(t, MethodDHCP, got.Method)
	assert.Equal(t, int64(0), prober.calls.Load())
}

func TestDetectUnknownNoProbeTarget(t *testing.T) {
	cfg := testConfig()
	cfg.EnableSMBProbing = false
	d := New(cfg, NewProbeCache(nil), &fakeProber{})

	got := d.Detect(context.Background(), nil, fingerprint.Unknown)

	assert.Equal(t, MethodUnknown, got.Method)
	assert.Equal(t, "Unknown", got.OSName)
	assert.Zero(t, got.Confidence)
}

func TestDetectXboxStaysXbox(t *testing.T) {
	xboxMatch := fingerprint.Match{
		OSName:      "Xbox",
		DeviceClass: "Game Console",
		Vendor:      "Microsoft",
		Confidence:  0.6,
	}
	prober := &fakeProber{result: win10Probe}
	d := New(testConfig(), NewProbeCache(nil), prober)

	got := d.Detect(context.Background(), net.ParseIP("10.0.0.9"), xboxMatch)

	require.Equal(t, MethodHybridProbed, got.Method)
	assert.Equal(t, "Xbox", got.OSName, "Xbox speaks SMB; the probe corroborates rather than overrides")
	assert.InDelta(t, 0.90, got.Confidence, 1e-9)
}
