// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package smb

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// SMB2 dialect revision codes, little-endian on the wire.
const (
	Dialect202 uint16 = 0x0202
	Dialect210 uint16 = 0x0210
	Dialect300 uint16 = 0x0300
	Dialect302 uint16 = 0x0302
	Dialect311 uint16 = 0x0311
)

// offeredDialects is the fixed set presented in every negotiate request.
var offeredDialects = []uint16{Dialect202, Dialect210, Dialect300, Dialect302, Dialect311}

const (
	smb2HeaderSize = 64

	// negotiateResponseMin covers the response fields through DialectRevision.
	negotiateResponseMin = smb2HeaderSize + 6
)

// smb2ProtocolID is the first four bytes of every SMB2 header.
var smb2ProtocolID = [4]byte{0xFE, 'S', 'M', 'B'}

// DialectName maps a negotiated dialect code to its display string. Codes
// outside the known set map to a generic label rather than a guess.
func DialectName(code uint16) string {
	switch code {
	case Dialect202:
		return "SMB 2.0.2"
	case Dialect210:
		return "SMB 2.1"
	case Dialect300:
		return "SMB 3.0"
	case Dialect302:
		return "SMB 3.0.2"
	case Dialect311:
		return "SMB 3.1.1"
	default:
		return "SMB (unknown)"
	}
}

// estimateBuild maps a negotiated dialect to the oldest Windows build known
// to negotiate it. It is a heuristic floor, not an exact identification.
func estimateBuild(code uint16) uint32 {
	switch code {
	case Dialect311:
		return 19041 // Windows 10 1607+ / Windows 11
	case Dialect302, Dialect300:
		return 9600 // Windows 8.1 / Server 2012 R2
	case Dialect210:
		return 7601 // Windows 7 / Server 2008 R2
	case Dialect202:
		return 6002 // Vista / Server 2008
	default:
		return 0
	}
}

// BuildVersionLabel names the Windows release family for a build indicator.
// Ranges not in the table yield a generic label rather than an inferred one.
func BuildVersionLabel(build uint32) string {
	switch {
	case build >= 26000 && build <= 29999:
		return "Windows 11 (Insider/Future)"
	case build >= 22631 && build <= 25999:
		return "Windows 11 23H2"
	case build >= 22621:
		return "Windows 11 22H2"
	case build >= 22000:
		return "Windows 11 21H2"
	case build == 19045:
		return "Windows 10 22H2"
	case build == 19044:
		return "Windows 10 21H2"
	case build == 19043:
		return "Windows 10 21H1"
	case build == 19042:
		return "Windows 10 20H2"
	case build == 19041:
		return "Windows 10 2004"
	case build == 18362 || build == 18363:
		return "Windows 10 1903/1909"
	case build == 17763:
		return "Windows 10 1809"
	case build == 17134:
		return "Windows 10 1803"
	case build == 16299:
		return "Windows 10 1709"
	case build == 15063:
		return "Windows 10 1703"
	case build == 14393:
		return "Windows 10 1607"
	case build == 10586:
		return "Windows 10 1511"
	case build == 10240:
		return "Windows 10 1507"
	case build == 9600:
		return "Windows 8.1"
	case build == 9200:
		return "Windows 8"
	case build == 7600 || build == 7601:
		return "Windows 7"
	case build == 6002:
		return "Windows Vista/Server 2008"
	default:
		return "Windows (unknown version)"
	}
}

// buildNegotiateRequest assembles the fixed SMB2 NEGOTIATE request inside a
// NetBIOS session message. The client GUID is randomized per request; every
// other field is constant.
func buildNegotiateRequest() []byte {
	body := make([]byte, 0, smb2HeaderSize+36+2*len(offeredDialects))

	// SMB2 header.
	hdr := make([]byte, smb2HeaderSize)
	copy(hdr[0:4], smb2ProtocolID[:])
	binary.LittleEndian.PutUint16(hdr[4:6], smb2HeaderSize) // StructureSize
	// Command 0x0000 (NEGOTIATE), everything else zero.
	body = append(body, hdr...)

	// NEGOTIATE request.
	req := make([]byte, 36)
	binary.LittleEndian.PutUint16(req[0:2], 36) // StructureSize
	binary.LittleEndian.PutUint16(req[2:4], uint16(len(offeredDialects)))
	guid := uuid.New()
	copy(req[12:28], guid[:])
	body = append(body, req...)

	for _, d := range offeredDialects {
		body = binary.LittleEndian.AppendUint16(body, d)
	}

	// NetBIOS session message: zero type byte plus 3-byte big-endian length.
	out := make([]byte, 4, 4+len(body))
	out[1] = byte(len(body) >> 16)
	out[2] = byte(len(body) >> 8)
	out[3] = byte(len(body))
	return append(out, body...)
}

// parseNegotiateResponse extracts the negotiated dialect from an SMB2
// NEGOTIATE response body (the bytes after the NetBIOS prefix). It returns
// false when the bytes are not a plausible negotiate reply.
func parseNegotiateResponse(body []byte) (dialect uint16, ok bool) {
	if len(body) < negotiateResponseMin {
		return 0, false
	}
	if [4]byte(body[0:4]) != smb2ProtocolID {
		return 0, false
	}
	return binary.LittleEndian.Uint16(body[smb2HeaderSize+4 : smb2HeaderSize+6]), true
}

// Negotiate-context types and cipher ids consulted by the build refiner.
const (
	contextEncryptionCapabilities uint16 = 0x0002
	contextSigningCapabilities    uint16 = 0x0008

	cipherAES256CCM uint16 = 0x0003
	cipherAES256GCM uint16 = 0x0004
)

// refineBuildFromContexts walks the 3.1.1 negotiate-context list looking for
// extension data that narrows the build estimate. Signing capability
// contexts and AES-256 ciphers only ship on Windows 11 / Server 2022 era
// servers, so either raises the build floor to 22000. The context region is
// optional vendor territory; any inconsistency makes us keep whatever
// estimate we have rather than fail the probe.
func refineBuildFromContexts(body []byte, estimate uint32) uint32 {
	// NegotiateContextCount and NegotiateContextOffset live in the
	// negotiate response at fixed offsets from the header.
	if len(body) < smb2HeaderSize+64 {
		return estimate
	}
	resp := body[smb2HeaderSize:]
	count := binary.LittleEndian.Uint16(resp[6:8])
	if count == 0 {
		return estimate
	}
	off := binary.LittleEndian.Uint32(resp[60:64])
	if off < smb2HeaderSize || int(off) > len(body) {
		return estimate
	}

	ctx := body[off:]
	for i := 0; i < int(count); i++ {
		if len(ctx) < 8 {
			return estimate
		}
		ctxType := binary.LittleEndian.Uint16(ctx[0:2])
		dataLen := int(binary.LittleEndian.Uint16(ctx[2:4]))
		total := 8 + dataLen
		if len(ctx) < total {
			return estimate
		}
		data := ctx[8:total]

		switch ctxType {
		case contextSigningCapabilities:
			estimate = max(estimate, 22000)
		case contextEncryptionCapabilities:
			if hasAES256Cipher(data) {
				estimate = max(estimate, 22000)
			}
		}

		pad := (8 - total%8) % 8
		if len(ctx) < total+pad {
			return estimate
		}
		ctx = ctx[total+pad:]
	}
	return estimate
}

// hasAES256Cipher reports whether an encryption-capabilities context
// advertises an AES-256 cipher.
func hasAES256Cipher(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	ciphers := int(binary.LittleEndian.Uint16(data[0:2]))
	for i := 0; i < ciphers; i++ {
		off := 2 + 2*i
		if off+2 > len(data) {
			return false
		}
		switch binary.LittleEndian.Uint16(data[off : off+2]) {
		case cipherAES256CCM, cipherAES256GCM:
			return true
		}
	}
	return false
}
