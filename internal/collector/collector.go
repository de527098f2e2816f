// Package collector exposes the state of all supervised switches as Prometheus metrics.
package collector

import (
	"log/slog"

	"github.com/clambin/climate-guard/internal/guard"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deviceState = prometheus.NewDesc(
		prometheus.BuildFQName("climate_guard", "device", "state"),
		"State of the supervised switch. Always 1. See label 'state'",
		[]string{"device", "state"},
		nil,
	)
	deviceEnabled = prometheus.NewDesc(
		prometheus.BuildFQName("climate_guard", "device", "enabled"),
		"1 if the guard is enabled",
		[]string{"device"},
		nil,
	)
	deviceStale = prometheus.NewDesc(
		prometheus.BuildFQName("climate_guard", "device", "stale"),
		"1 if the hardware-reported state disagrees with the commanded state",
		[]string{"device"},
		nil,
	)
	deviceAlarm = prometheus.NewDesc(
		prometheus.BuildFQName("climate_guard", "device", "alarm"),
		"1 if a safety-critical off command could not be executed",
		[]string{"device"},
		nil,
	)
	deviceCommands = prometheus.NewDesc(
		prometheus.BuildFQName("climate_guard", "device", "commands_total"),
		"Number of hardware commands issued",
		[]string{"device", "command"},
		nil,
	)
	devicePulses = prometheus.NewDesc(
		prometheus.BuildFQName("climate_guard", "device", "heartbeat_pulses_total"),
		"Number of heartbeat pulses issued",
		[]string{"device"},
		nil,
	)
	deviceForcedOff = prometheus.NewDesc(
		prometheus.BuildFQName("climate_guard", "device", "forced_off_total"),
		"Number of times the run limit forced the switch off",
		[]string{"device"},
		nil,
	)
	deviceDenials = prometheus.NewDesc(
		prometheus.BuildFQName("climate_guard", "device", "denials_total"),
		"Number of denied turn-on requests",
		[]string{"device", "reason"},
		nil,
	)
)

// StatusReporter provides a Snapshot of every supervised switch. Implemented by guard.Manager.
type StatusReporter interface {
	Snapshots() []guard.Snapshot
}

var _ prometheus.Collector = &Collector{}

// Collector implements prometheus.Collector for all supervised switches.
type Collector struct {
	Guards StatusReporter
	Logger *slog.Logger
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- deviceState
	ch <- deviceEnabled
	ch <- deviceStale
	ch <- deviceAlarm
	ch <- deviceCommands
	ch <- devicePulses
	ch <- deviceForcedOff
	ch <- deviceDenials
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, snapshot := range c.Guards.Snapshots() {
		ch <- prometheus.MustNewConstMetric(deviceState, prometheus.GaugeValue, 1, snapshot.Name, snapshot.State.String())
		ch <- prometheus.MustNewConstMetric(deviceEnabled, prometheus.GaugeValue, boolValue(snapshot.Enabled), snapshot.Name)
		ch <- prometheus.MustNewConstMetric(deviceStale, prometheus.GaugeValue, boolValue(snapshot.Stale), snapshot.Name)
		ch <- prometheus.MustNewConstMetric(deviceAlarm, prometheus.GaugeValue, boolValue(snapshot.Alarm), snapshot.Name)
		ch <- prometheus.MustNewConstMetric(deviceCommands, prometheus.CounterValue, float64(snapshot.Counters.OnCommands), snapshot.Name, "on")
		ch <- prometheus.MustNewConstMetric(deviceCommands, prometheus.CounterValue, float64(snapshot.Counters.OffCommands), snapshot.Name, "off")
		ch <- prometheus.MustNewConstMetric(devicePulses, prometheus.CounterValue, float64(snapshot.Counters.Pulses), snapshot.Name)
		ch <- prometheus.MustNewConstMetric(deviceForcedOff, prometheus.CounterValue, float64(snapshot.Counters.ForcedOff), snapshot.Name)
		for reason, count := range snapshot.Counters.Denials {
			ch <- prometheus.MustNewConstMetric(deviceDenials, prometheus.CounterValue, float64(count), snapshot.Name, reason.String())
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
