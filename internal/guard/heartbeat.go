package guard

import (
	"context"
	"log/slog"
	"time"
)

// The heartbeat pulser refreshes the hardware's own auto-off timer while the switch is
// commanded on: every interval it issues an off command immediately followed by an on command.
// The interval must be shorter than the hardware's auto-off window; that relationship is the
// operator's responsibility. If the hardware becomes unreachable, the pulse is retried on the
// next interval and the run continues: the hardware switching itself off is the designed
// failure mode, not a software-forced off that cannot be confirmed.

func (g *Guard) startHeartbeat() {
	if g.heartbeat == 0 {
		return
	}
	if g.pulser == nil {
		g.pulser = time.NewTicker(g.heartbeat)
	} else {
		g.pulser.Reset(g.heartbeat)
	}
	g.pulserC = g.pulser.C
	g.logger.Debug("heartbeat started", slog.Duration("interval", g.heartbeat))
}

func (g *Guard) stopHeartbeat() {
	if g.pulser != nil {
		g.pulser.Stop()
		g.logger.Debug("heartbeat stopped")
	}
	g.pulserC = nil
}

func (g *Guard) handlePulse(now time.Time) {
	if g.state != StateRunning {
		return
	}
	ctx, cancel := context.WithTimeout(g.ctx, commandTimeout)
	defer cancel()
	err := g.client.TurnOff(ctx, g.device.Switch)
	if err == nil {
		err = g.client.TurnOn(ctx, g.device.Switch)
	}
	if err != nil {
		g.logger.Warn("heartbeat pulse failed. retrying on next interval", slog.Any("err", err))
		return
	}
	g.counters.Pulses++
	g.cacheSnapshot()
}
