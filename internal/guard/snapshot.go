package guard

import (
	"sync"
)

// cached holds the last Snapshot taken by the event loop, so Snapshot() can be called from any
// goroutine without entering the loop.
type cached struct {
	snapshot Snapshot
	lock     sync.RWMutex
}

// Settings returns the Guard's current settings, as shown on the dashboard.
func (g *Guard) Settings() SettingsView {
	return viewSettings(g.Config.Get())
}

// Snapshot returns a point-in-time view of the Guard.
func (g *Guard) Snapshot() Snapshot {
	g.snapshot.lock.RLock()
	defer g.snapshot.lock.RUnlock()
	return g.snapshot.snapshot
}

// cacheSnapshot refreshes the cached Snapshot. Called by the event loop after every processed event.
func (g *Guard) cacheSnapshot() {
	snapshot := Snapshot{
		Name:       g.device.Name,
		Entity:     g.device.Switch,
		Type:       g.device.Type,
		Enabled:    g.enabled,
		State:      g.state,
		Since:      g.since,
		LastDenial: g.lastDenial,
		ReportedOn: g.reportedOn,
		Stale:      g.stale,
		Alarm:      g.alarm,
		Settings:   viewSettings(g.Config.Get()),
		Counters:   g.counters.clone(),
	}
	g.snapshot.lock.Lock()
	g.snapshot.snapshot = snapshot
	g.snapshot.lock.Unlock()
}
