package aggregator

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/micro-ha/netduma-telemetry/internal/model"
)

func tree(allocKey string, entries ...map[string]any) map[string]any {
	list := make([]any, len(entries))
	for i, entry := range entries {
		list[i] = entry
	}
	return map[string]any{"AutoAlloc": map[string]any{allocKey: list}}
}

func alloc(devid any, bytes any) map[string]any {
	return map[string]any{"match": map[string]any{"devid": devid}, "bytes": bytes}
}

var _ = Describe("DeriveTraffic", func() {
	It("sums allocations per device within one tree", func() {
		down := tree(allocKeyLower, alloc("5", float64(100)), alloc("5", float64(50)))
		up := tree(allocKeyLower, alloc("5", float64(30)))

		counters := DeriveTraffic(up, down)
		Expect(counters).To(HaveLen(1))
		Expect(counters["5"]).To(Equal(model.TrafficCounters{RxBytes: 150, TxBytes: 30}))
	})

	It("checks both capitalizations of the allocation key", func() {
		down := tree(allocKeyUpper, alloc("7", float64(10)))
		counters := DeriveTraffic(map[string]any{}, down)
		Expect(counters["7"].RxBytes).To(Equal(int64(10)))
	})

	It("accepts numeric device ids", func() {
		down := tree(allocKeyLower, alloc(float64(5), float64(25)))
		counters := DeriveTraffic(nil, down)
		Expect(counters["5"].RxBytes).To(Equal(int64(25)))
	})

	It("degrades malformed trees to zero contribution", func() {
		up := tree(allocKeyLower, alloc("5", float64(30)))
		counters := DeriveTraffic(up, map[string]any{"AutoAlloc": "garbage"})
		Expect(counters["5"]).To(Equal(model.TrafficCounters{RxBytes: 0, TxBytes: 30}))

		Expect(DeriveTraffic(nil, nil)).To(BeEmpty())
	})

	It("skips allocation entries without a device id", func() {
		down := tree(allocKeyLower, map[string]any{"bytes": float64(99)}, alloc("5", float64(1)))
		counters := DeriveTraffic(nil, down)
		Expect(counters).To(HaveLen(1))
		Expect(counters["5"].RxBytes).To(Equal(int64(1)))
	})
})

var _ = Describe("Rates", func() {
	var (
		agg *Aggregator
		now time.Time
	)

	BeforeEach(func() {
		now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		agg = New()
		agg.now = func() time.Time { return now }
	})

	It("derives the rate from the delta against the baseline", func() {
		agg.Seed(map[string]model.TrafficCounters{"5": {RxBytes: 100}})
		now = now.Add(4 * time.Second)

		samples := agg.Rates(map[string]model.TrafficCounters{"5": {RxBytes: 500}})
		Expect(samples["5"].RxRateBps).To(Equal(100.0))
		Expect(samples["5"].RxBytes).To(Equal(int64(500)))
	})

	It("floors dt at one second for rapid repeated calls", func() {
		agg.Seed(map[string]model.TrafficCounters{"5": {RxBytes: 100}})
		now = now.Add(200 * time.Millisecond)

		samples := agg.Rates(map[string]model.TrafficCounters{"5": {RxBytes: 500}})
		Expect(samples["5"].RxRateBps).To(Equal(400.0))
	})

	It("rates first observations against a zero baseline", func() {
		agg.Seed(map[string]model.TrafficCounters{})
		now = now.Add(2 * time.Second)

		samples := agg.Rates(map[string]model.TrafficCounters{"9": {TxBytes: 40}})
		Expect(samples["9"].TxRateBps).To(Equal(20.0))
	})

	It("passes negative deltas through unclamped", func() {
		agg.Seed(map[string]model.TrafficCounters{"5": {RxBytes: 1000}})
		now = now.Add(2 * time.Second)

		samples := agg.Rates(map[string]model.TrafficCounters{"5": {RxBytes: 0}})
		Expect(samples["5"].RxRateBps).To(Equal(-500.0))
	})

	It("uses the new counters as the next baseline", func() {
		agg.Seed(map[string]model.TrafficCounters{"5": {RxBytes: 100}})
		now = now.Add(2 * time.Second)
		agg.Rates(map[string]model.TrafficCounters{"5": {RxBytes: 300}})
		now = now.Add(2 * time.Second)

		samples := agg.Rates(map[string]model.TrafficCounters{"5": {RxBytes: 500}})
		Expect(samples["5"].RxRateBps).To(Equal(100.0))
	})
})

var _ = Describe("IndexDevices", func() {
	It("falls back through uhost, hostname, then a generated name", func() {
		index := IndexDevices([]map[string]any{
			{"devid": "1", "uhost": "Living Room TV", "hostname": "tv"},
			{"devid": "2", "hostname": "laptop"},
			{"devid": float64(3)},
		})
		Expect(index["1"].Name).To(Equal("Living Room TV"))
		Expect(index["2"].Name).To(Equal("laptop"))
		Expect(index["3"].Name).To(Equal("device_3"))
	})

	It("collects only interfaces carrying a non-empty mac", func() {
		index := IndexDevices([]map[string]any{
			{"devid": "1", "interfaces": []any{
				map[string]any{"mac": "aa:bb:cc:dd:ee:ff"},
				map[string]any{"mac": ""},
				map[string]any{"ip": "10.0.0.2"},
			}},
		})
		Expect(index["1"].MACs).To(Equal([]string{"AA:BB:CC:DD:EE:FF"}))
	})

	It("skips rows without a device id", func() {
		index := IndexDevices([]map[string]any{{"uhost": "phantom"}})
		Expect(index).To(BeEmpty())
	})
})

var _ = Describe("DerivePresence", func() {
	index := map[string]model.Device{
		"1": {ID: "1", MACs: []string{"AA", "BB"}},
		"2": {ID: "2", MACs: []string{"CC"}},
		"3": {ID: "3"},
	}

	It("reports a device present when any of its macs is online", func() {
		online := []map[string]any{{"mac": "bb"}}
		present := DerivePresence(online, index)
		Expect(present["1"]).To(BeTrue())
		Expect(present["2"]).To(BeFalse())
	})

	It("reports every indexed device, absent ones as false", func() {
		present := DerivePresence(nil, index)
		Expect(present).To(HaveLen(3))
		Expect(present["3"]).To(BeFalse())
	})
})
