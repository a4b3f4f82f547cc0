// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dhcp

import (
	"net"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Fields are the semantic values derived from a decoded message. Text fields
// are left empty when the raw bytes do not decode cleanly; the raw option
// stays available in Message.Options for audit either way.
type Fields struct {
	// ClientIP is ciaddr, surfaced only when non-zero.
	ClientIP net.IP

	// Hostname from option 12. HasHostname is true whenever the option was
	// present, even if its bytes were not valid text.
	Hostname    string
	HasHostname bool

	// VendorClass from option 60.
	VendorClass string

	// ParamRequestList is option 55 in wire order, and Fingerprint its
	// canonical comma-joined form. Order is part of the signal and is never
	// sorted.
	ParamRequestList []uint8
	Fingerprint      string

	// FQDN from option 81 (flags byte, reserved byte, then the name).
	FQDN      string
	FQDNFlags uint8
}

// Extract derives semantic fields from a decoded message. It never fails:
// malformed or undersized options are treated as absent.
func Extract(m *Message) Fields {
	var f Fields

	if ip := m.CIAddr.To4(); ip != nil && !ip.Equal(net.IPv4zero) {
		f.ClientIP = ip
	}

	if opt, ok := m.Option(OptionHostname); ok {
		f.HasHostname = true
		if utf8.Valid(opt.Value) {
			f.Hostname = string(opt.Value)
		}
	}

	if opt, ok := m.Option(OptionVendorClass); ok && utf8.Valid(opt.Value) {
		f.VendorClass = string(opt.Value)
	}

	if opt, ok := m.Option(OptionParameterRequestList); ok && len(opt.Value) > 0 {
		f.ParamRequestList = make([]uint8, len(opt.Value))
		copy(f.ParamRequestList, opt.Value)
		f.Fingerprint = CanonicalFingerprint(f.ParamRequestList)
	}

	// Option 81: flags, one reserved byte, then the domain name. Anything
	// shorter than 3 bytes carries no name and is treated as absent.
	if opt, ok := m.Option(OptionClientFQDN); ok && len(opt.Value) >= 3 {
		f.FQDNFlags = opt.Value[0]
		name := opt.Value[2:]
		for len(name) > 0 && name[len(name)-1] == 0 {
			name = name[:len(name)-1]
		}
		if utf8.Valid(name) {
			f.FQDN = strings.TrimSuffix(string(name), ".")
		}
	}

	return f
}

// CanonicalFingerprint joins a parameter request list into its canonical
// comma-separated decimal form, preserving order.
func CanonicalFingerprint(params []uint8) string {
	if len(params) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(p)))
	}
	return b.String()
}
