// Package poller tracks the state of all entities that climate-guard supervises. It merges
// state_changed events pushed over the Home Assistant websocket API with a periodic full
// resync through the REST API, and publishes a full snapshot on every change.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/clambin/climate-guard/internal/homeassistant"
	"github.com/clambin/climate-guard/pkg/pubsub"
	"github.com/clambin/go-common/set"
)

// A Poller publishes Update snapshots to its subscribers.
type Poller interface {
	Subscribe() chan Update
	Unsubscribe(ch chan Update)
	Refresh()
}

// StateGetter reads entity states from the Home Assistant REST API.
type StateGetter interface {
	GetStates(ctx context.Context) ([]homeassistant.State, error)
}

// EventSource publishes state_changed events. Implemented by homeassistant.Listener.
type EventSource interface {
	Subscribe() chan homeassistant.Event
	Unsubscribe(ch chan homeassistant.Event)
}

// Entities lists the entities the Poller watches.
type Entities struct {
	Sun      string
	Weather  string
	Switches []string
	Climates []string
}

var _ Poller = &HAPoller{}

// HAPoller is the Home Assistant implementation of Poller.
type HAPoller struct {
	*pubsub.Publisher[Update]
	client   StateGetter
	events   EventSource
	entities Entities
	switches set.Set[string]
	climates set.Set[string]
	interval time.Duration
	refresh  chan struct{}
	logger   *slog.Logger
}

// New returns an HAPoller watching the given entities. interval is the resync interval.
func New(client StateGetter, events EventSource, entities Entities, interval time.Duration, logger *slog.Logger) *HAPoller {
	return &HAPoller{
		Publisher: pubsub.New[Update](logger),
		client:    client,
		events:    events,
		entities:  entities,
		switches:  set.Create[string](entities.Switches...),
		climates:  set.Create[string](entities.Climates...),
		interval:  interval,
		refresh:   make(chan struct{}),
		logger:    logger,
	}
}

// Run watches the entities until ctx is canceled, publishing an Update on every relevant change.
func (p *HAPoller) Run(ctx context.Context) error {
	p.logger.Debug("started", slog.Duration("interval", p.interval))
	defer p.logger.Debug("stopped")

	ch := p.events.Subscribe()
	defer p.events.Unsubscribe(ch)

	current := Update{
		Switches: make(map[string]bool),
		Targets:  make(map[string]float64),
	}
	p.resync(ctx, &current)

	timer := time.NewTicker(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-ch:
			if p.apply(&current, event) {
				p.Publisher.Publish(current.clone())
			}
		case <-timer.C:
			p.resync(ctx, &current)
		case <-p.refresh:
			p.resync(ctx, &current)
		}
	}
}

// Refresh forces a full resync.
func (p *HAPoller) Refresh() {
	p.refresh <- struct{}{}
}

func (p *HAPoller) resync(ctx context.Context, current *Update) {
	start := time.Now()
	states, err := p.client.GetStates(ctx)
	if err != nil {
		p.logger.Error("failed to get entity states", slog.Any("err", err))
		return
	}
	var changed bool
	for _, state := range states {
		if p.apply(current, homeassistant.Event{EntityID: state.EntityID, NewState: state}) {
			changed = true
		}
	}
	if changed {
		p.Publisher.Publish(current.clone())
	}
	p.logger.Debug("resync completed", slog.Duration("duration", time.Since(start)))
}

// apply folds an event into the snapshot. It returns true if the snapshot changed.
func (p *HAPoller) apply(current *Update, event homeassistant.Event) bool {
	switch {
	case event.EntityID == p.entities.Sun:
		sunUp := event.NewState.SunUp()
		if current.SunUp == sunUp {
			return false
		}
		current.SunUp = sunUp
	case event.EntityID == p.entities.Weather:
		weather := event.NewState.State
		if event.NewState.Unavailable() {
			weather = ""
		}
		if current.Weather == weather {
			return false
		}
		current.Weather = weather
	case p.switches.Contains(event.EntityID):
		isOn := event.NewState.IsOn()
		if state, ok := current.Switches[event.EntityID]; ok && state == isOn {
			return false
		}
		current.Switches[event.EntityID] = isOn
	case p.climates.Contains(event.EntityID):
		target, ok := event.NewState.TargetTemperature()
		if !ok {
			return false
		}
		if previous, found := current.Targets[event.EntityID]; found && previous == target {
			return false
		}
		current.Targets[event.EntityID] = target
	default:
		return false
	}
	return true
}
