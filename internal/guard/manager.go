package guard

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/clambin/climate-guard/internal/configuration"
	"github.com/clambin/climate-guard/internal/poller"
	"golang.org/x/sync/errgroup"
)

// Notifier informs the user of a state transition or alarm.
type Notifier interface {
	Notify(title, text string)
}

// A Manager creates and runs one Guard per configured device and fans their state-change
// events out to the Notifier.
type Manager struct {
	guards   map[string]*Guard
	notifier Notifier
	logger   *slog.Logger
}

// NewManager returns a Manager with a Guard for every device in the configuration.
func NewManager(cfg configuration.Configuration, client SwitchClient, p Publisher[poller.Update], notifier Notifier, logger *slog.Logger) *Manager {
	m := Manager{
		guards:   make(map[string]*Guard, len(cfg.Devices)),
		notifier: notifier,
		logger:   logger,
	}
	for _, device := range cfg.Devices {
		m.guards[device.Name] = New(device, client, p, logger.With(slog.String("device", device.Name)))
	}
	return &m
}

// Run starts all Guards and waits for them to terminate.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Debug("started")
	defer m.logger.Debug("stopped")

	var group errgroup.Group
	for _, g := range m.guards {
		group.Go(func() error { return g.Run(ctx) })
		if m.notifier != nil {
			group.Go(func() error { return m.notify(ctx, g) })
		}
	}
	return group.Wait()
}

// notify forwards a Guard's state-change events to the Notifier.
func (m *Manager) notify(ctx context.Context, g *Guard) error {
	ch := g.Subscribe()
	defer g.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-ch:
			m.notifier.Notify(eventTitle(event), event.Reason)
		}
	}
}

func eventTitle(event Event) string {
	if event.Alarm {
		return event.Device + ": ALARM"
	}
	return event.Device + ": " + event.State.String()
}

// Guard returns the Guard for the named device.
func (m *Manager) Guard(name string) (*Guard, bool) {
	g, ok := m.guards[name]
	return g, ok
}

// Snapshots returns a Snapshot of every Guard.
func (m *Manager) Snapshots() []Snapshot {
	snapshots := make([]Snapshot, 0, len(m.guards))
	for _, g := range m.guards {
		snapshots = append(snapshots, g.Snapshot())
	}
	slices.SortFunc(snapshots, func(a, b Snapshot) int { return strings.Compare(a.Name, b.Name) })
	return snapshots
}
