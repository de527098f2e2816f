package homeassistant

import (
	"github.com/clambin/go-common/set"
	"time"
)

// A State is the representation of an entity in Home Assistant: its current state value plus attributes.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
}

// IsOn reports whether a switch entity is on.
func (s State) IsOn() bool {
	return s.State == "on"
}

// SunUp reports whether a sun entity is above the horizon.
func (s State) SunUp() bool {
	return s.State == "above_horizon"
}

// Unavailable reports whether the entity has no usable state.
func (s State) Unavailable() bool {
	return s.State == "" || s.State == "unavailable" || s.State == "unknown"
}

// TargetTemperature returns the target temperature attribute of a climate entity.
func (s State) TargetTemperature() (float64, bool) {
	value, ok := s.Attributes["temperature"]
	if !ok {
		return 0, false
	}
	temperature, ok := value.(float64)
	return temperature, ok
}

// WeatherConditions contains the condition codes a weather entity can report.
var WeatherConditions = set.Create[string](
	"clear-night",
	"cloudy",
	"exceptional",
	"fog",
	"hail",
	"lightning",
	"lightning-rainy",
	"partlycloudy",
	"pouring",
	"rainy",
	"snowy",
	"snowy-rainy",
	"sunny",
	"windy",
	"windy-variant",
)
