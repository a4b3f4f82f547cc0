// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package fingerprint classifies operating systems from the DHCP
// parameter-request-list signal against a static signature table.
package fingerprint

// minPartialScore is the floor below which partial candidates are discarded.
const minPartialScore = 0.3

// Match is the outcome of scoring one client against the table.
type Match struct {
	OSName      string
	DeviceClass string
	Vendor      string
	Confidence  float64
	Exact       bool
}

// Unknown is returned when nothing in the table scores above the floor.
var Unknown = Match{OSName: "Unknown", DeviceClass: "Unknown", Vendor: "Unknown"}

// Matcher scores parameter-request-list sequences against a signature table.
// The table is immutable after construction, so a Matcher is safe for
// concurrent use.
type Matcher struct {
	table []Signature
}

// NewMatcher builds a matcher over the given table; nil means DefaultTable.
func NewMatcher(table []Signature) *Matcher {
	if table == nil {
		table = DefaultTable
	}
	return &Matcher{table: table}
}

// Match scores the client's requested-parameter sequence. hasHostname is
// whether the datagram carried a hostname option; it breaks ties between
// equally-scored partial candidates.
//
// An exact sequence match wins outright at the signature's base confidence,
// scanning the table in declaration order. Otherwise each signature is scored
// by how many of the client's codes appear, in order, within it, divided by
// the signature's length; scores under 0.3 are discarded, the highest score
// wins, and remaining ties fall to hostname-flag agreement and then
// declaration order.
func (m *Matcher) Match(params []uint8, hasHostname bool) Match {
	if len(params) == 0 {
		return Unknown
	}

	for _, sig := range m.table {
		if equalSequence(params, sig.Params) {
			return Match{
				OSName:      sig.OSName,
				DeviceClass: sig.DeviceClass,
				Vendor:      sig.Vendor,
				Confidence:  sig.BaseConfidence,
				Exact:       true,
			}
		}
	}

	var (
		best      *Signature
		bestScore float64
	)
	for i := range m.table {
		sig := &m.table[i]
		score := partialScore(params, sig.Params)
		if score < minPartialScore {
			continue
		}
		if best == nil || score > bestScore {
			best, bestScore = sig, score
			continue
		}
		if score == bestScore &&
			sig.RequiresHostname == hasHostname && best.RequiresHostname != hasHostname {
			best = sig
		}
	}

	if best == nil {
		return Unknown
	}
	return Match{
		OSName:      best.OSName,
		DeviceClass: best.DeviceClass,
		Vendor:      best.Vendor,
		Confidence:  bestScore,
	}
}

func equalSequence(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// partialScore counts how many of the client's codes appear as an ordered
// subsequence of the signature, normalized by the signature's length.
func partialScore(params, sig []uint8) float64 {
	if len(sig) == 0 {
		return 0
	}
	matched, j := 0, 0
	for _, p := range params {
		// Scan forward for p; a code missing from the remainder of the
		// signature does not consume position.
		k := j
		for k < len(sig) && sig[k] != p {
			k++
		}
		if k < len(sig) {
			matched++
			j = k + 1
		}
	}
	return float64(matched) / float64(len(sig))
}
