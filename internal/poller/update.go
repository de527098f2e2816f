package poller

import (
	"maps"
)

// An Update is a snapshot of all entity states climate-guard supervises: the sun position,
// the current weather condition, the reported state of each supervised switch and the
// target temperature of each linked thermostat.
type Update struct {
	SunUp    bool               `json:"sunUp"`
	Weather  string             `json:"weather"`
	Switches map[string]bool    `json:"switches"`
	Targets  map[string]float64 `json:"targets"`
}

// SwitchIsOn returns the reported state of a switch entity.
func (u Update) SwitchIsOn(entityID string) (bool, bool) {
	state, ok := u.Switches[entityID]
	return state, ok
}

// Target returns the target temperature of a climate entity.
func (u Update) Target(entityID string) (float64, bool) {
	target, ok := u.Targets[entityID]
	return target, ok
}

func (u Update) clone() Update {
	u.Switches = maps.Clone(u.Switches)
	u.Targets = maps.Clone(u.Targets)
	return u
}
