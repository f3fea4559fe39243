// Package metric provides Prometheus metrics for nox.
package metric

import "github.com/prometheus/client_golang/prometheus"

var (
	keysDesc = prometheus.NewDesc(
		"nox_store_keys",
		"Number of entries currently held by the store.",
		nil, nil,
	)
	channelsDesc = prometheus.NewDesc(
		"nox_pubsub_channels",
		"Number of live pub/sub channels.",
		nil, nil,
	)
)

// Collector samples gauges from the live store and pub/sub registry at
// scrape time rather than tracking them incrementally.
type Collector struct {
	// KeyCount returns the current store entry count.
	KeyCount func() int
	// ChannelCount returns the current live channel count.
	ChannelCount func() int
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- keysDesc
	ch <- channelsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.KeyCount != nil {
		ch <- prometheus.MustNewConstMetric(keysDesc, prometheus.GaugeValue, float64(c.KeyCount()))
	}
	if c.ChannelCount != nil {
		ch <- prometheus.MustNewConstMetric(channelsDesc, prometheus.GaugeValue, float64(c.ChannelCount()))
	}
}
