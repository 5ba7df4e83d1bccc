// Package aggregator turns raw RPC payloads into the derived mappings the
// snapshot store holds: the device index, the presence map and per-device
// traffic counters with rate of change.
package aggregator

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/micro-ha/netduma-telemetry/internal/model"
)

// The allocation list key appears in two capitalizations across firmware
// versions; both are checked.
const (
	allocKeyLower = "bandwidth_allocations"
	allocKeyUpper = "BandwidthAllocations"
)

// IndexDevices builds the device index from a full device listing. The
// display name falls back through uhost, hostname, then "device_{id}";
// MACs are collected from interfaces carrying a non-empty mac field.
func IndexDevices(devices []map[string]any) map[string]model.Device {
	out := make(map[string]model.Device, len(devices))
	for _, row := range devices {
		id := idString(row["devid"])
		if id == "" {
			continue
		}
		name := str(row["uhost"])
		if name == "" {
			name = str(row["hostname"])
		}
		if name == "" {
			name = "device_" + id
		}
		var macs []string
		if interfaces, ok := row["interfaces"].([]any); ok {
			for _, item := range interfaces {
				iface, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if mac := canonicalMAC(str(iface["mac"])); mac != "" {
					macs = append(macs, mac)
				}
			}
		}
		out[id] = model.Device{ID: id, Name: name, MACs: macs}
	}
	return out
}

// DerivePresence reports, for every indexed device, whether any of its
// MACs is in the currently-online interface list.
func DerivePresence(online []map[string]any, index map[string]model.Device) map[string]bool {
	onlineMACs := make(map[string]struct{}, len(online))
	for _, row := range online {
		if mac := canonicalMAC(str(row["mac"])); mac != "" {
			onlineMACs[mac] = struct{}{}
		}
	}
	present := make(map[string]bool, len(index))
	for id, device := range index {
		present[id] = false
		for _, mac := range device.MACs {
			if _, ok := onlineMACs[mac]; ok {
				present[id] = true
				break
			}
		}
	}
	return present
}

// DeriveTraffic accumulates cumulative byte counters from the two QoS
// trees: download allocations count into rx, upload into tx, summed per
// device id since one device may hold several allocations. A missing or
// malformed structure contributes zero for that tree's direction.
func DeriveTraffic(uploadTree, downloadTree map[string]any) map[string]model.TrafficCounters {
	acc := map[string]model.TrafficCounters{}
	accumulate(acc, downloadTree, true)
	accumulate(acc, uploadTree, false)
	return acc
}

func accumulate(acc map[string]model.TrafficCounters, tree map[string]any, download bool) {
	for _, item := range allocations(tree) {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		match, ok := entry["match"].(map[string]any)
		if !ok {
			continue
		}
		id := idString(match["devid"])
		if id == "" {
			continue
		}
		counters := acc[id]
		if download {
			counters.RxBytes += intValue(entry["bytes"])
		} else {
			counters.TxBytes += intValue(entry["bytes"])
		}
		acc[id] = counters
	}
}

func allocations(tree map[string]any) []any {
	auto, ok := tree["AutoAlloc"].(map[string]any)
	if !ok {
		return nil
	}
	if list, ok := auto[allocKeyLower].([]any); ok && len(list) > 0 {
		return list
	}
	if list, ok := auto[allocKeyUpper].([]any); ok {
		return list
	}
	return nil
}

// Aggregator keeps the last observed byte counters and sampling timestamp
// used to derive rates. Mutex-guarded since overlapping traffic ticks may
// call Rates concurrently.
type Aggregator struct {
	mu        sync.Mutex
	lastBytes map[string]model.TrafficCounters
	lastAt    time.Time
	now       func() time.Time
}

func New() *Aggregator {
	return &Aggregator{
		lastBytes: map[string]model.TrafficCounters{},
		now:       time.Now,
	}
}

// Seed establishes the baseline without deriving rates; used on the
// initial full refresh so the first traffic cycle rates against real
// counters instead of zero.
func (a *Aggregator) Seed(counters map[string]model.TrafficCounters) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, current := range counters {
		a.lastBytes[id] = current
	}
	a.lastAt = a.now()
}

// Rates derives per-device rates from the delta against the stored
// baseline, then makes the new counters the baseline for the next cycle.
// dt is floored at one second to avoid division blow-up on rapid repeated
// calls. Negative deltas (counter reset, device churn) pass through as
// negative rates; clamping is left to the display layer.
func (a *Aggregator) Rates(counters map[string]model.TrafficCounters) map[string]model.TrafficSample {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	last := a.lastAt
	if last.IsZero() {
		last = now
	}
	dt := now.Sub(last).Seconds()
	if dt < 1 {
		dt = 1
	}
	a.lastAt = now

	out := make(map[string]model.TrafficSample, len(counters))
	for id, current := range counters {
		previous := a.lastBytes[id]
		out[id] = model.TrafficSample{
			RxBytes:   current.RxBytes,
			TxBytes:   current.TxBytes,
			RxRateBps: float64(current.RxBytes-previous.RxBytes) / dt,
			TxRateBps: float64(current.TxBytes-previous.TxBytes) / dt,
		}
		a.lastBytes[id] = current
	}
	return out
}

func canonicalMAC(value string) string {
	value = strings.TrimSpace(strings.ToUpper(value))
	if value == "" {
		return ""
	}
	return strings.ReplaceAll(value, "-", ":")
}

func str(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

// idString renders a device id that may arrive as a JSON string or
// number.
func idString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func intValue(value any) int64 {
	switch v := value.(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
