package collector

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/clambin/climate-guard/internal/guard"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeReporter []guard.Snapshot

func (f fakeReporter) Snapshots() []guard.Snapshot { return f }

func TestCollector(t *testing.T) {
	c := Collector{
		Guards: fakeReporter{
			{
				Name:    "heater",
				Entity:  "switch.heater",
				Enabled: true,
				State:   guard.StateRunning,
				Stale:   false,
				Alarm:   false,
				Counters: guard.Counters{
					OnCommands:  5,
					OffCommands: 4,
					Pulses:      12,
					ForcedOff:   2,
					Denials:     map[guard.Reason]uint64{guard.ReasonSun: 3},
				},
			},
		},
		Logger: slog.Default(),
	}

	require.NoError(t, testutil.CollectAndCompare(&c, strings.NewReader(`
# HELP climate_guard_device_alarm 1 if a safety-critical off command could not be executed
# TYPE climate_guard_device_alarm gauge
climate_guard_device_alarm{device="heater"} 0

# HELP climate_guard_device_commands_total Number of hardware commands issued
# TYPE climate_guard_device_commands_total counter
climate_guard_device_commands_total{command="on",device="heater"} 5
climate_guard_device_commands_total{command="off",device="heater"} 4

# HELP climate_guard_device_denials_total Number of denied turn-on requests
# TYPE climate_guard_device_denials_total counter
climate_guard_device_denials_total{device="heater",reason="sun"} 3

# HELP climate_guard_device_enabled 1 if the guard is enabled
# TYPE climate_guard_device_enabled gauge
climate_guard_device_enabled{device="heater"} 1

# HELP climate_guard_device_forced_off_total Number of times the run limit forced the switch off
# TYPE climate_guard_device_forced_off_total counter
climate_guard_device_forced_off_total{device="heater"} 2

# HELP climate_guard_device_heartbeat_pulses_total Number of heartbeat pulses issued
# TYPE climate_guard_device_heartbeat_pulses_total counter
climate_guard_device_heartbeat_pulses_total{device="heater"} 12

# HELP climate_guard_device_stale 1 if the hardware-reported state disagrees with the commanded state
# TYPE climate_guard_device_stale gauge
climate_guard_device_stale{device="heater"} 0

# HELP climate_guard_device_state State of the supervised switch. Always 1. See label 'state'
# TYPE climate_guard_device_state gauge
climate_guard_device_state{device="heater",state="running"} 1
`)))
}
