// Package guard implements the safety supervisor for a single relay switch: a state machine
// that enforces a maximum continuous run time, a cooldown between runs, environmental gates
// (sun, weather), a dead-man's-switch heartbeat towards the hardware, and a bounded override
// path for manual thermostat adjustments.
package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/clambin/climate-guard/internal/configuration"
	"github.com/clambin/climate-guard/internal/poller"
	"github.com/clambin/climate-guard/pkg/pubsub"
)

// SwitchClient issues commands to the supervised switch. Implemented by homeassistant.Client.
type SwitchClient interface {
	TurnOn(ctx context.Context, entityID string) error
	TurnOff(ctx context.Context, entityID string) error
}

// Publisher allows the Guard to subscribe to entity state updates.
type Publisher[T any] interface {
	Subscribe() chan T
	Unsubscribe(ch chan T)
}

const (
	// overrideGrace is how long an armed override token remains valid.
	overrideGrace = 10 * time.Second
	// staleGrace is how long the hardware-reported state may disagree with the commanded
	// state before it is reported as stale.
	staleGrace = 30 * time.Second
	// offRetries is the number of immediate retries for a safety-critical off command.
	offRetries = 3
	// commandTimeout bounds a single hardware command, including the final off at teardown.
	commandTimeout = 5 * time.Second
)

// A Guard supervises one switch. All inputs (requests, timer ticks, entity updates, heartbeat
// pulses, settings changes) are serialized in a single event loop, so hardware commands for one
// switch are strictly ordered and the state machine needs no internal locking.
type Guard struct {
	// Config is the Guard's runtime-editable configuration.
	Config *Store
	*pubsub.Publisher[Event]
	client    SwitchClient
	poller    Publisher[poller.Update]
	logger    *slog.Logger
	device    configuration.Device
	heartbeat time.Duration
	requests  chan request
	now       func() time.Time

	// event-loop state. only touched by the Run goroutine.
	ctx             context.Context
	state           State
	since           time.Time
	enabled         bool
	runStarted      time.Time
	cooldownStarted time.Time
	overrideExpiry  time.Time
	update          poller.Update
	lastTarget      float64
	haveTarget      bool
	lastDenial      string
	reportedOn      bool
	mismatchSince   time.Time
	stale           bool
	alarm           bool
	counters        Counters
	timer           *time.Timer
	timerC          <-chan time.Time
	pulser          *time.Ticker
	pulserC         <-chan time.Time

	snapshot cached
}

type requestKind int

const (
	requestOn requestKind = iota
	requestOff
	requestEnable
	requestDisable
)

type request struct {
	kind  requestKind
	reply chan error
}

// New returns a Guard for the given device. The Guard does nothing until Run is called.
func New(device configuration.Device, client SwitchClient, p Publisher[poller.Update], logger *slog.Logger) *Guard {
	g := Guard{
		Config:    NewStore(settingsForDevice(device)),
		Publisher: pubsub.New[Event](logger),
		client:    client,
		poller:    p,
		logger:    logger,
		device:    device,
		heartbeat: *device.Heartbeat,
		requests:  make(chan request),
		now:       time.Now,
		enabled:   true,
		counters:  Counters{Denials: make(map[Reason]uint64)},
	}
	g.since = g.now()
	g.cacheSnapshot()
	return &g
}

// RequestOn asks the Guard to switch on. It returns nil if the request was honored, a
// DeniedError if a gate or the cooldown blocked it, or the hardware error if the command failed.
// A request while already running is accepted without issuing a second command.
func (g *Guard) RequestOn(ctx context.Context) error {
	return g.request(ctx, requestOn)
}

// RequestOff asks the Guard to switch off. Switching off a running device starts the cooldown.
func (g *Guard) RequestOff(ctx context.Context) error {
	return g.request(ctx, requestOff)
}

// SetEnabled enables or disables the Guard. A disabled Guard refuses turn-on requests;
// disabling a running Guard switches it off.
func (g *Guard) SetEnabled(ctx context.Context, enabled bool) error {
	kind := requestDisable
	if enabled {
		kind = requestEnable
	}
	return g.request(ctx, kind)
}

func (g *Guard) request(ctx context.Context, kind requestKind) error {
	req := request{kind: kind, reply: make(chan error, 1)}
	select {
	case g.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the Guard's current state.
func (g *Guard) State() State {
	return g.Snapshot().State
}

// Run runs the Guard's event loop until ctx is canceled. On teardown, the switch receives one
// final unconditional off command and all timers are canceled.
func (g *Guard) Run(ctx context.Context) error {
	g.logger.Debug("started", slog.String("entity", g.device.Switch))
	defer g.logger.Debug("stopped")

	ch := g.poller.Subscribe()
	defer g.poller.Unsubscribe(ch)

	g.ctx = ctx
	g.timer = time.NewTimer(time.Hour)
	g.stopTimer()
	defer g.teardown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-g.requests:
			req.reply <- g.handleRequest(req.kind)
		case update := <-ch:
			g.handleUpdate(update)
		case now := <-g.timerC:
			g.handleTick(now)
		case now := <-g.pulserC:
			g.handlePulse(now)
		case <-g.Config.Changed():
			g.rearm(g.now())
			g.cacheSnapshot()
		}
	}
}

func (g *Guard) handleRequest(kind requestKind) error {
	var err error
	switch kind {
	case requestOn:
		err = g.handleRequestOn(g.now())
	case requestOff:
		g.handleRequestOff(g.now())
	case requestEnable:
		g.enabled = true
		g.logger.Info("guard enabled")
	case requestDisable:
		g.enabled = false
		g.logger.Info("guard disabled")
		if g.state == StateRunning {
			g.stopRun(g.now(), "guard disabled", false)
		}
	}
	g.cacheSnapshot()
	return err
}

func (g *Guard) handleRequestOn(now time.Time) error {
	if !g.enabled {
		return g.deny(&DeniedError{Reason: ReasonDisabled, Detail: "guard is disabled"})
	}

	switch g.state {
	case StateRunning:
		// idempotent: no second on command, no timer reset
		return nil
	case StateCooldown:
		if g.overrideExpiry.IsZero() || now.After(g.overrideExpiry) {
			// a request racing an already-due tick can land past the deadline
			remaining := max(g.Config.Get().Cooldown-now.Sub(g.cooldownStarted), 0)
			return g.deny(&DeniedError{Reason: ReasonCooldown, Detail: "cooldown active for another " + remaining.Round(time.Second).String()})
		}
		// consume the token. it is spent regardless of the gate outcome, and a denied
		// override leaves the original cooldown deadline intact.
		g.overrideExpiry = time.Time{}
		g.logger.Info("override token consumed")
	}

	settings := g.Config.Get()
	if decision := evaluateGate(g.update.SunUp, g.update.Weather, settings); !decision.Allowed {
		return g.deny(&DeniedError{Reason: decision.Reason, Detail: decision.Detail})
	}

	if err := g.commandOn(); err != nil {
		g.logger.Error("failed to switch on", slog.Any("err", err))
		return err
	}
	g.enterRunning(now)
	return nil
}

func (g *Guard) deny(err *DeniedError) error {
	g.counters.Denials[err.Reason]++
	g.lastDenial = err.Error()
	g.logger.Info("turn-on request denied", slog.String("reason", err.Reason.String()), slog.String("detail", err.Detail))
	return err
}

func (g *Guard) handleRequestOff(now time.Time) {
	if g.state == StateRunning {
		g.stopRun(now, "switched off", false)
	}
}

// handleTick evaluates the run and cooldown clocks against the current settings. remaining time
// is always recomputed as limit minus elapsed, so a settings change moves the deadline without
// restarting the clock.
func (g *Guard) handleTick(now time.Time) {
	g.timerC = nil
	settings := g.Config.Get()
	switch g.state {
	case StateRunning:
		if settings.RunLimit > 0 && now.Sub(g.runStarted) >= settings.RunLimit {
			g.counters.ForcedOff++
			g.stopRun(now, "run limit reached", true)
		} else {
			g.rearm(now)
		}
	case StateCooldown:
		if settings.Cooldown == 0 || now.Sub(g.cooldownStarted) >= settings.Cooldown {
			g.enterIdle(now)
		} else {
			g.rearm(now)
		}
	}
	g.cacheSnapshot()
}

func (g *Guard) handleUpdate(update poller.Update) {
	now := g.now()
	g.update = update
	g.observeTarget(update, now)
	g.observeReportedState(update, now)
	g.cacheSnapshot()
}

// observeReportedState compares the hardware-reported state with the commanded state. A
// disagreement lasting longer than staleGrace is surfaced as a warning; it never alters the
// state machine, which remains authoritative for decisions.
func (g *Guard) observeReportedState(update poller.Update, now time.Time) {
	reported, ok := update.SwitchIsOn(g.device.Switch)
	if !ok {
		return
	}
	g.reportedOn = reported
	if reported == (g.state == StateRunning) {
		g.mismatchSince = time.Time{}
		g.stale = false
		return
	}
	if g.mismatchSince.IsZero() {
		g.mismatchSince = now
		return
	}
	if now.Sub(g.mismatchSince) >= staleGrace && !g.stale {
		g.stale = true
		g.logger.Warn("hardware state disagrees with commanded state",
			slog.Bool("reported", reported),
			slog.String("state", g.state.String()),
		)
	}
}

func (g *Guard) enterRunning(now time.Time) {
	g.state = StateRunning
	g.since = now
	g.runStarted = now
	g.cooldownStarted = time.Time{}
	g.lastDenial = ""
	g.startHeartbeat()
	g.rearm(now)
	g.publish("switched on", now)
}

// stopRun leaves StateRunning: command the hardware off, stop the heartbeat and start the
// cooldown clock. forced marks the safety-critical variant (run limit expiry): its off
// command is retried and escalated if the retries are exhausted. Operator-initiated stops
// (explicit off, disable) get a single attempt; a failure is logged and the stale-state
// detection picks up a switch left on.
func (g *Guard) stopRun(now time.Time, reason string, forced bool) {
	g.stopHeartbeat()
	if err := g.commandOff(forced); err != nil {
		g.logger.Error("failed to switch off", slog.Any("err", err), slog.Bool("forced", forced))
	}
	g.since = now
	g.runStarted = time.Time{}
	if g.Config.Get().Cooldown == 0 {
		// cooldown disabled: straight back to idle
		g.state = StateIdle
		g.cooldownStarted = time.Time{}
		g.overrideExpiry = time.Time{}
	} else {
		g.state = StateCooldown
		g.cooldownStarted = now
	}
	g.rearm(now)
	g.publish(reason, now)
}

func (g *Guard) enterIdle(now time.Time) {
	// the switch is already off. no hardware command.
	g.state = StateIdle
	g.since = now
	g.cooldownStarted = time.Time{}
	g.overrideExpiry = time.Time{}
	g.rearm(now)
	g.publish("cooldown expired", now)
}

// rearm schedules the next tick from the current state's deadline. Settings are read at this
// moment, not cached, so a lowered limit fires the tick immediately once remaining time is gone.
func (g *Guard) rearm(now time.Time) {
	g.stopTimer()
	settings := g.Config.Get()
	var wait time.Duration
	switch g.state {
	case StateRunning:
		if settings.RunLimit == 0 {
			return
		}
		wait = settings.RunLimit - now.Sub(g.runStarted)
	case StateCooldown:
		// a cooldown disabled mid-cooldown fires an immediate tick, moving the Guard to idle
		wait = settings.Cooldown - now.Sub(g.cooldownStarted)
	default:
		return
	}
	wait = max(wait, 0)
	g.timer.Reset(wait)
	g.timerC = g.timer.C
}

func (g *Guard) stopTimer() {
	if !g.timer.Stop() {
		select {
		case <-g.timer.C:
		default:
		}
	}
	g.timerC = nil
}

func (g *Guard) commandOn() error {
	ctx, cancel := context.WithTimeout(g.ctx, commandTimeout)
	defer cancel()
	if err := g.client.TurnOn(ctx, g.device.Switch); err != nil {
		return err
	}
	g.counters.OnCommands++
	g.alarm = false
	return nil
}

// commandOff issues the off command. critical marks the safety-relevant variant: it is retried
// immediately and, if the retries are exhausted, escalated to a persistent alarm. It is never
// silently dropped.
func (g *Guard) commandOff(critical bool) error {
	attempts := 1
	if critical {
		attempts += offRetries
	}
	var err error
	for range attempts {
		ctx, cancel := context.WithTimeout(g.ctx, commandTimeout)
		err = g.client.TurnOff(ctx, g.device.Switch)
		cancel()
		if err == nil {
			g.counters.OffCommands++
			g.alarm = false
			return nil
		}
	}
	if critical {
		g.alarm = true
		g.publishAlarm("failed to switch off: "+err.Error(), g.now())
	}
	return err
}

// teardown issues one final unconditional off command and cancels all timers. The command is
// retried within one commandTimeout window; teardown proceeds regardless of its outcome.
func (g *Guard) teardown() {
	g.stopHeartbeat()
	g.stopTimer()
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	var err error
	for range 1 + offRetries {
		if err = g.client.TurnOff(ctx, g.device.Switch); err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		g.logger.Error("failed to switch off at teardown", slog.Any("err", err))
	}
	g.state = StateIdle
	g.runStarted = time.Time{}
	g.cooldownStarted = time.Time{}
	g.cacheSnapshot()
}

func (g *Guard) publish(reason string, now time.Time) {
	g.cacheSnapshot()
	g.logger.Info("state changed", slog.String("state", g.state.String()), slog.String("reason", reason))
	g.Publisher.Publish(Event{
		Device: g.device.Name,
		State:  g.state,
		Reason: reason,
		When:   now,
	})
}

func (g *Guard) publishAlarm(reason string, now time.Time) {
	g.cacheSnapshot()
	g.logger.Error("alarm raised", slog.String("reason", reason))
	g.Publisher.Publish(Event{
		Device: g.device.Name,
		State:  g.state,
		Reason: reason,
		Alarm:  true,
		When:   now,
	})
}
