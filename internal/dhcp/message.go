// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dhcp decodes raw DHCPv4 datagrams observed on the wire. It is a
// passive codec: nothing here builds replies or allocates leases. Parsing is
// strict about bounds and preserves option wire order, since the order of the
// parameter request list is itself a classification signal.
package dhcp

import (
	"encoding/binary"
	"fmt"
	"net"

	"grimm.is/dhcpscry/internal/errors"
)

// FixedHeaderSize is the size of the DHCPv4 fixed header (BOOTP region):
// everything before the magic cookie.
const FixedHeaderSize = 236

// MagicCookie is the RFC 2131 option-region marker.
var MagicCookie = [4]byte{99, 130, 83, 99}

// Well-known option codes consumed by the extractor.
const (
	OptionPad                  uint8 = 0
	OptionHostname             uint8 = 12
	OptionMessageType          uint8 = 53
	OptionParameterRequestList uint8 = 55
	OptionVendorClass          uint8 = 60
	OptionClientFQDN           uint8 = 81
	OptionEnd                  uint8 = 255
)

// Sentinel parse failures. TruncatedOptionError carries the offending code.
var (
	ErrMalformedPacket = errors.New(errors.KindValidation, "dhcp: datagram shorter than fixed header")
	ErrInvalidCookie   = errors.New(errors.KindValidation, "dhcp: missing or invalid magic cookie")
)

// TruncatedOptionError reports an option whose declared length runs past the
// end of the datagram.
type TruncatedOptionError struct {
	Code uint8
}

func (e *TruncatedOptionError) Error() string {
	return fmt.Sprintf("dhcp: option %d truncated", e.Code)
}

// Option is a single tag-length-value entry from the variable region.
// Pad and End markers are never represented as Options.
type Option struct {
	Code  uint8  `json:"code"`
	Value []byte `json:"value"`
}

// Message is a decoded DHCPv4 datagram. It is constructed once per received
// datagram and consumed synchronously; only extracted fields outlive it.
type Message struct {
	Op     uint8
	HType  uint8
	HLen   uint8
	Hops   uint8
	XID    uint32
	Secs   uint16
	Flags  uint16
	CIAddr net.IP // client's currently-assigned address, if renewing
	YIAddr net.IP
	SIAddr net.IP
	GIAddr net.IP
	CHAddr [16]byte

	// Options in original wire order, duplicates included.
	Options []Option
}

// Parse decodes a raw datagram payload.
//
// It fails with ErrMalformedPacket when the payload is shorter than the fixed
// header, ErrInvalidCookie when the magic cookie does not follow the header,
// and *TruncatedOptionError when an option's declared length would read past
// the end of the buffer. It never reads out of bounds.
func Parse(data []byte) (*Message, error) {
	if len(data) < FixedHeaderSize {
		return nil, ErrMalformedPacket
	}

	m := &Message{
		Op:     data[0],
		HType:  data[1],
		HLen:   data[2],
		Hops:   data[3],
		XID:    binary.BigEndian.Uint32(data[4:8]),
		Secs:   binary.BigEndian.Uint16(data[8:10]),
		Flags:  binary.BigEndian.Uint16(data[10:12]),
		CIAddr: net.IPv4(data[12], data[13], data[14], data[15]),
		YIAddr: net.IPv4(data[16], data[17], data[18], data[19]),
		SIAddr: net.IPv4(data[20], data[21], data[22], data[23]),
		GIAddr: net.IPv4(data[24], data[25], data[26], data[27]),
	}
	copy(m.CHAddr[:], data[28:44])

	// sname (64) and file (128) are skipped; options start at byte 236.
	opts, err := parseOptions(data[FixedHeaderSize:])
	if err != nil {
		return nil, err
	}
	m.Options = opts

	return m, nil
}

func parseOptions(data []byte) ([]Option, error) {
	if len(data) < 4 || [4]byte(data[0:4]) != MagicCookie {
		return nil, ErrInvalidCookie
	}

	var opts []Option
	i := 4
	for i < len(data) {
		code := data[i]
		i++

		if code == OptionEnd {
			break
		}
		if code == OptionPad {
			continue
		}

		if i >= len(data) {
			// The length byte itself is missing.
			return nil, &TruncatedOptionError{Code: code}
		}
		length := int(data[i])
		i++

		if i+length > len(data) {
			return nil, &TruncatedOptionError{Code: code}
		}

		value := make([]byte, length)
		copy(value, data[i:i+length])
		opts = append(opts, Option{Code: code, Value: value})
		i += length
	}

	return opts, nil
}

// Option returns the first occurrence of code, per the duplicate policy:
// later occurrences are kept in Options for audit but never consulted.
func (m *Message) Option(code uint8) (Option, bool) {
	for _, opt := range m.Options {
		if opt.Code == code {
			return opt, true
		}
	}
	return Option{}, false
}

// HasOption reports whether code appeared in the datagram.
func (m *Message) HasOption(code uint8) bool {
	_, ok := m.Option(code)
	return ok
}

// MessageType returns the DHCP message type from option 53, or 0 if absent.
func (m *Message) MessageType() uint8 {
	opt, ok := m.Option(OptionMessageType)
	if !ok || len(opt.Value) == 0 {
		return 0
	}
	return opt.Value[0]
}

// HardwareAddr formats the client hardware address as colon-separated hex.
// An out-of-range hlen yields an empty string rather than garbage.
func (m *Message) HardwareAddr() string {
	hlen := int(m.HLen)
	if hlen == 0 || hlen > len(m.CHAddr) {
		return ""
	}
	return net.HardwareAddr(m.CHAddr[:hlen]).String()
}

// EncodeOptions re-encodes the option region: magic cookie, each option in
// original order, and the End marker. For a datagram that carried no pad
// bytes the result is byte-identical to the original option region.
func (m *Message) EncodeOptions() []byte {
	size := 4 + 1
	for _, opt := range m.Options {
		size += 2 + len(opt.Value)
	}

	out := make([]byte, 0, size)
	out = append(out, MagicCookie[:]...)
	for _, opt := range m.Options {
		out = append(out, opt.Code, uint8(len(opt.Value)))
		out = append(out, opt.Value...)
	}
	return append(out, OptionEnd)
}

// MessageTypeString names a DHCP message type for records and logs.
func MessageTypeString(t uint8) string {
	switch t {
	case 1:
		return "DISCOVER"
	case 2:
		return "OFFER"
	case 3:
		return "REQUEST"
	case 4:
		return "DECLINE"
	case 5:
		return "ACK"
	case 6:
		return "NAK"
	case 7:
		return "RELEASE"
	case 8:
		return "INFORM"
	default:
		return "UNKNOWN"
	}
}
