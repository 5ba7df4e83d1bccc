package model

import "time"

// Device is one entry of the router's device listing. A fresh listing
// replaces the whole mapping; entries are never partially merged.
type Device struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	MACs []string `json:"macs"`
}

// TrafficCounters holds the cumulative byte counts reported by the QoS
// trees for one device. The router owns the counters; each poll takes the
// reported values as authoritative.
type TrafficCounters struct {
	RxBytes int64 `json:"rx_bytes"`
	TxBytes int64 `json:"tx_bytes"`
}

// TrafficSample is TrafficCounters plus the derived rate of change since
// the previous sampling cycle.
type TrafficSample struct {
	RxBytes   int64   `json:"rx_bytes"`
	TxBytes   int64   `json:"tx_bytes"`
	RxRateBps float64 `json:"rx_rate_bps"`
	TxRateBps float64 `json:"tx_rate_bps"`
}

// Snapshot is the aggregate state presented to consumers. All four
// sections are always present and each is refreshed independently.
type Snapshot struct {
	Devices  map[string]Device        `json:"devices"`
	Presence map[string]bool          `json:"presence"`
	Traffic  map[string]TrafficSample `json:"traffic"`
	System   map[string]any           `json:"system"`
}

// DeviceRegistered holds user-assigned metadata for a device id.
type DeviceRegistered struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name,omitempty"`
	Icon      *string   `json:"icon,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceView joins the live snapshot with registry metadata for the API.
type DeviceView struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	MACs    []string       `json:"macs"`
	Online  bool           `json:"online"`
	Vendor  string         `json:"vendor,omitempty"`
	Traffic *TrafficSample `json:"traffic,omitempty"`
	Icon    *string        `json:"icon,omitempty"`
	Comment *string        `json:"comment,omitempty"`
}
