// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package fingerprint

// Signature is one entry in the static detection table. Params is the exact
// parameter-request-list sequence the OS is known to emit, in order.
// RequiresHostname records whether that OS also sends a hostname option;
// it only participates in tie-breaking, never in scoring.
type Signature struct {
	Params           []uint8
	RequiresHostname bool
	OSName           string
	DeviceClass      string
	Vendor           string
	BaseConfidence   float64
}

// DefaultTable is the built-in signature set, loaded once and never mutated.
// Declaration order matters: it is the final tie-break for both exact matches
// of identical sequences and equally-scored partial matches.
//
// Where two operating systems share a sequence (Windows 10 and 8/8.1), the
// base confidence is lowered to reflect the ambiguity; that is what pushes
// those clients through the probe gate for active corroboration.
var DefaultTable = []Signature{
	{
		Params:           []uint8{1, 3, 6, 15, 31, 33, 43, 44, 46, 47, 121, 249, 252, 12},
		RequiresHostname: true,
		OSName:           "Windows 11",
		DeviceClass:      "Desktop/Laptop",
		Vendor:           "Microsoft",
		BaseConfidence:   0.95,
	},
	{
		Params:           []uint8{1, 3, 6, 15, 31, 33, 43, 44, 46, 47, 121, 249, 252},
		RequiresHostname: false,
		OSName:           "Windows 10",
		DeviceClass:      "Desktop/Laptop",
		Vendor:           "Microsoft",
		BaseConfidence:   0.75,
	},
	{
		// Shares its sequence with Windows 10; declaration order resolves
		// the exact-match collision in Windows 10's favor.
		Params:           []uint8{1, 3, 6, 15, 31, 33, 43, 44, 46, 47, 121, 249, 252},
		RequiresHostname: false,
		OSName:           "Windows 8/8.1",
		DeviceClass:      "Desktop/Laptop",
		Vendor:           "Microsoft",
		BaseConfidence:   0.70,
	},
	{
		Params:           []uint8{1, 15, 3, 6, 44, 46, 47, 31, 33, 121, 249, 43, 252},
		RequiresHostname: false,
		OSName:           "Windows 7",
		DeviceClass:      "Desktop/Laptop",
		Vendor:           "Microsoft",
		BaseConfidence:   0.95,
	},
	{
		Params:           []uint8{1, 3, 6, 15, 119, 252},
		RequiresHostname: true,
		OSName:           "macOS (Recent)",
		DeviceClass:      "Desktop/Laptop",
		Vendor:           "Apple",
		BaseConfidence:   0.95,
	},
	{
		Params:           []uint8{1, 3, 6, 15, 119, 95, 252, 44, 46},
		RequiresHostname: true,
		OSName:           "macOS (Older)",
		DeviceClass:      "Desktop/Laptop",
		Vendor:           "Apple",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 3, 6, 15, 119, 252, 95, 44, 46},
		RequiresHostname: true,
		OSName:           "iOS/iPadOS",
		DeviceClass:      "Mobile",
		Vendor:           "Apple",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 121, 3, 6, 15, 119, 252, 95, 44, 46},
		RequiresHostname: true,
		OSName:           "iOS",
		DeviceClass:      "Mobile",
		Vendor:           "Apple",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 3, 6, 15, 26, 28, 51, 58, 59},
		RequiresHostname: true,
		OSName:           "Android",
		DeviceClass:      "Mobile",
		Vendor:           "Google",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 3, 6, 12, 15, 26, 28, 51, 58, 59, 43},
		RequiresHostname: true,
		OSName:           "Android",
		DeviceClass:      "Mobile",
		Vendor:           "Google",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 28, 2, 3, 15, 6, 119, 12, 44, 47, 26, 121, 42},
		RequiresHostname: true,
		OSName:           "Linux (Ubuntu/Debian)",
		DeviceClass:      "Desktop/Server",
		Vendor:           "Linux",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 3, 6, 12, 15, 28, 42, 51, 54, 58, 59},
		RequiresHostname: false,
		OSName:           "Linux",
		DeviceClass:      "Desktop/Server",
		Vendor:           "Linux",
		BaseConfidence:   0.85,
	},
	{
		Params:           []uint8{1, 3, 6, 12, 15, 28, 51, 58, 59, 119},
		RequiresHostname: true,
		OSName:           "Chrome OS",
		DeviceClass:      "Chromebook",
		Vendor:           "Google",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 3, 6, 15, 12, 28},
		RequiresHostname: false,
		OSName:           "PlayStation",
		DeviceClass:      "Gaming Console",
		Vendor:           "Sony",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 3, 6, 15, 44, 46, 47, 12},
		RequiresHostname: false,
		OSName:           "Xbox",
		DeviceClass:      "Gaming Console",
		Vendor:           "Microsoft",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 3, 6, 15, 28, 51, 58, 59},
		RequiresHostname: false,
		OSName:           "Nintendo Switch",
		DeviceClass:      "Gaming Console",
		Vendor:           "Nintendo",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 3, 6, 12, 15, 28, 42},
		RequiresHostname: true,
		OSName:           "Roku",
		DeviceClass:      "Streaming Device",
		Vendor:           "Roku",
		BaseConfidence:   0.90,
	},
	{
		Params:           []uint8{1, 3, 6, 15, 26, 28, 51, 58, 59, 43, 12},
		RequiresHostname: true,
		OSName:           "Fire TV",
		DeviceClass:      "Streaming Device",
		Vendor:           "Amazon",
		BaseConfidence:   0.90,
	},
}
