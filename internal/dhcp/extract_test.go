// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dhcp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseRegion(t *testing.T, region []byte) *Message {
	t.Helper()
	m, err := Parse(buildDatagram(t, region))
	require.NoError(t, err)
	return m
}

func TestExtractClientIP(t *testing.T) {
	m := parseRegion(t, []byte{255})
	assert.Nil(t, Extract(m).ClientIP, "zero ciaddr must not surface")

	m.CIAddr = net.IPv4(10, 0, 0, 7)
	f := Extract(m)
	require.NotNil(t, f.ClientIP)
	assert.True(t, f.ClientIP.Equal(net.IPv4(10, 0, 0, 7)))
}

func TestExtractHostname(t *testing.T) {
	m := parseRegion(t, []byte{12, 7, 'd', 'e', 's', 'k', 't', 'o', 'p', 255})
	f := Extract(m)
	assert.True(t, f.HasHostname)
	assert.Equal(t, "desktop", f.Hostname)
}

func TestExtractHostnameInvalidText(t *testing.T) {
	// Invalid UTF-8: option presence is recorded, decoded field omitted.
	m := parseRegion(t, []byte{12, 2, 0xff, 0xfe, 255})
	f := Extract(m)
	assert.True(t, f.HasHostname)
	assert.Empty(t, f.Hostname)

	// The raw bytes stay available for the audit record.
	opt, ok := m.Option(OptionHostname)
	require.True(t, ok)
	assert.Equal(t, []byte{0xff, 0xfe}, opt.Value)
}

func TestExtractVendorClass(t *testing.T) {
	m := parseRegion(t, []byte{60, 8, 'M', 'S', 'F', 'T', ' ', '5', '.', '0', 255})
	assert.Equal(t, "MSFT 5.0", Extract(m).VendorClass)

	m = parseRegion(t, []byte{60, 2, 0xc3, 0x28, 255}) // invalid UTF-8
	assert.Empty(t, Extract(m).VendorClass)
}

func TestExtractParamRequestList(t *testing.T) {
	m := parseRegion(t, []byte{55, 6, 1, 121, 3, 6, 15, 119, 255})
	f := Extract(m)

	assert.Equal(t, []uint8{1, 121, 3, 6, 15, 119}, f.ParamRequestList)
	// Canonical form preserves wire order; it is never sorted.
	assert.Equal(t, "1,121,3,6,15,119", f.Fingerprint)
}

func TestExtractFQDN(t *testing.T) {
	region := []byte{81, 9, 0x04, 0x00, 'h', 'o', 's', 't', '.', 'l', 'n', 255}
	f := Extract(parseRegion(t, region))
	assert.Equal(t, uint8(0x04), f.FQDNFlags)
	assert.Equal(t, "host.ln", f.FQDN)
}

func TestExtractFQDNTrailingTerminator(t *testing.T) {
	region := []byte{81, 8, 0x00, 0x00, 'h', 'o', 's', 't', 0x00, 0x00, 255}
	f := Extract(parseRegion(t, region))
	assert.Equal(t, "host", f.FQDN)
}

func TestExtractFQDNTooShort(t *testing.T) {
	// Fewer than 3 bytes: treated as absent, never an error.
	f := Extract(parseRegion(t, []byte{81, 2, 0x04, 0x00, 255}))
	assert.Empty(t, f.FQDN)
	assert.Zero(t, f.FQDNFlags)
}

func TestExtractAbsentOptions(t *testing.T) {
	f := Extract(parseRegion(t, []byte{255}))
	assert.False(t, f.HasHostname)
	assert.Empty(t, f.Fingerprint)
	assert.Nil(t, f.ParamRequestList)
	assert.Empty(t, f.VendorClass)
	assert.Empty(t, f.FQDN)
}

func TestCanonicalFingerprint(t *testing.T) {
	assert.Equal(t, "", CanonicalFingerprint(nil))
	assert.Equal(t, "1", CanonicalFingerprint([]uint8{1}))
	assert.Equal(t, "1,3,6,15,31,33,43,44,46,47,121,249,252,12",
		CanonicalFingerprint([]uint8{1, 3, 6, 15, 31, 33, 43, 44, 46, 47, 121, 249, 252, 12}))
}
