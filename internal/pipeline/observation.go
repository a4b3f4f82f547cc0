// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pipeline

import (
	"time"

	"grimm.is/dhcpscry/internal/dhcp"
)

// Observation is one fully-processed DHCP sighting: the extracted wire
// fields plus the detection verdict. It is the record persisted to the
// store and pushed to live-feed clients.
type Observation struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	SourceIP   string `json:"source_ip"`
	SourcePort int    `json:"source_port"`

	MAC         string `json:"mac"`
	MessageType string `json:"message_type"`
	XID         uint32 `json:"xid"`

	ClientIP    string `json:"client_ip,omitempty"`
	Hostname    string `json:"hostname,omitempty"`
	FQDN        string `json:"fqdn,omitempty"`
	VendorClass string `json:"vendor_class,omitempty"`

	// Fingerprint is the canonical comma-joined parameter request list.
	Fingerprint string        `json:"fingerprint,omitempty"`
	Options     []dhcp.Option `json:"options,omitempty"`

	OSName      string  `json:"os_name"`
	DeviceClass string  `json:"device_class"`
	Vendor      string  `json:"vendor"`
	Confidence  float64 `json:"confidence"`
	Method      string  `json:"method"`

	SMBDialect string `json:"smb_dialect,omitempty"`
	SMBBuild   uint32 `json:"smb_build,omitempty"`
}

// Sink receives completed observations. Implementations must tolerate
// concurrent calls; a failing sink never blocks the pipeline.
type Sink interface {
	Record(obs *Observation) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(obs *Observation) error

func (f SinkFunc) Record(obs *Observation) error { return f(obs) }
