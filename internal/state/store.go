// Package state holds the in-memory snapshot served to consumers. Nothing
// here survives a restart; per-cadence refreshes only touch their own
// section so stale-but-valid data outlives a failed cycle.
package state

import (
	"sync"
	"time"

	"github.com/micro-ha/netduma-telemetry/internal/model"
)

type Store struct {
	mu       sync.RWMutex
	devices  map[string]model.Device
	presence map[string]bool
	traffic  map[string]model.TrafficSample
	system   map[string]any

	refreshedAt map[string]time.Time
}

func New() *Store {
	return &Store{
		devices:     map[string]model.Device{},
		presence:    map[string]bool{},
		traffic:     map[string]model.TrafficSample{},
		system:      map[string]any{},
		refreshedAt: map[string]time.Time{},
	}
}

// ReplaceDevices swaps the device index wholesale; listings are never
// partially merged.
func (s *Store) ReplaceDevices(devices map[string]model.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = make(map[string]model.Device, len(devices))
	for id, device := range devices {
		s.devices[id] = device
	}
	s.refreshedAt["devices"] = time.Now().UTC()
}

// SetPresence overwrites presence per device id, keeping entries for
// devices absent from this cycle's map.
func (s *Store) SetPresence(presence map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, online := range presence {
		s.presence[id] = online
	}
	s.refreshedAt["presence"] = time.Now().UTC()
}

func (s *Store) MergeTraffic(samples map[string]model.TrafficSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sample := range samples {
		s.traffic[id] = sample
	}
	s.refreshedAt["traffic"] = time.Now().UTC()
}

// MergeSystem merges router-reported fields, never replacing the section.
func (s *Store) MergeSystem(info map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range info {
		s.system[key] = value
	}
	s.refreshedAt["system"] = time.Now().UTC()
}

// Devices returns a copy of the current device index.
func (s *Store) Devices() map[string]model.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyDevices(s.devices)
}

// Snapshot returns a deep copy of the aggregate state. All four sections
// are always present, even when empty.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := model.Snapshot{
		Devices:  copyDevices(s.devices),
		Presence: make(map[string]bool, len(s.presence)),
		Traffic:  make(map[string]model.TrafficSample, len(s.traffic)),
		System:   make(map[string]any, len(s.system)),
	}
	for id, online := range s.presence {
		snapshot.Presence[id] = online
	}
	for id, sample := range s.traffic {
		snapshot.Traffic[id] = sample
	}
	for key, value := range s.system {
		snapshot.System[key] = value
	}
	return snapshot
}

// RefreshedAt reports the last successful refresh time per section.
func (s *Store) RefreshedAt() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.refreshedAt))
	for section, at := range s.refreshedAt {
		out[section] = at
	}
	return out
}

func copyDevices(devices map[string]model.Device) map[string]model.Device {
	out := make(map[string]model.Device, len(devices))
	for id, device := range devices {
		macs := make([]string, len(device.MACs))
		copy(macs, device.MACs)
		device.MACs = macs
		out[id] = device
	}
	return out
}
