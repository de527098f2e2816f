package guard

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/clambin/climate-guard/internal/configuration"
)

// State is the Guard's finite state machine state.
type State int

const (
	// StateIdle means the switch is off and no cooldown is active.
	StateIdle State = iota
	// StateRunning means the switch is commanded on and the run clock is active.
	StateRunning
	// StateCooldown means the switch is off and the cooldown clock is active.
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCooldown:
		return "cooldown"
	default:
		return "idle"
	}
}

// MarshalJSON renders the state by its name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a state name.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "idle":
		*s = StateIdle
	case "running":
		*s = StateRunning
	case "cooldown":
		*s = StateCooldown
	default:
		return fmt.Errorf("invalid state %q", name)
	}
	return nil
}

// An Event reports a state transition of a Guard.
type Event struct {
	Device string
	State  State
	Reason string
	Alarm  bool
	When   time.Time
}

// Counters holds the Guard's lifetime counters, for the metrics collector.
type Counters struct {
	OnCommands  uint64
	OffCommands uint64
	Pulses      uint64
	ForcedOff   uint64
	Denials     map[Reason]uint64
}

func (c Counters) clone() Counters {
	c.Denials = maps.Clone(c.Denials)
	return c
}

// A Snapshot is a point-in-time view of one Guard, for display and metrics. The state machine
// itself remains authoritative for decisions; ReportedOn is the hardware-reported state, shown
// for display only.
type Snapshot struct {
	Name       string                     `json:"name"`
	Entity     string                     `json:"entity"`
	Type       configuration.DeviceType   `json:"type"`
	Enabled    bool                       `json:"enabled"`
	State      State                      `json:"state"`
	Since      time.Time                  `json:"since"`
	LastDenial string                     `json:"lastDenial,omitempty"`
	ReportedOn bool                       `json:"reportedOn"`
	Stale      bool                       `json:"stale"`
	Alarm      bool                       `json:"alarm"`
	Settings   SettingsView               `json:"settings"`
	Counters   Counters                   `json:"-"`
}

// SettingsView is the JSON rendering of a Guard's Settings. Durations are expressed in minutes,
// matching the dashboard's number controls.
type SettingsView struct {
	RunLimitMinutes float64  `json:"runLimitMinutes"`
	CooldownMinutes float64  `json:"cooldownMinutes"`
	SunRequired     bool     `json:"sunRequired"`
	AllowedWeather  []string `json:"allowedWeather"`
	ClimateEntity   string   `json:"climateEntity,omitempty"`
}

func viewSettings(settings Settings) SettingsView {
	return SettingsView{
		RunLimitMinutes: settings.RunLimit.Minutes(),
		CooldownMinutes: settings.Cooldown.Minutes(),
		SunRequired:     settings.SunRequired,
		AllowedWeather:  settings.AllowedWeather.ListOrdered(),
		ClimateEntity:   settings.ClimateEntity,
	}
}
