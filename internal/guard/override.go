package guard

import (
	"log/slog"
	"time"

	"github.com/clambin/climate-guard/internal/poller"
)

// The override bridge watches the linked thermostat's target temperature. A change observed
// while the Guard is in cooldown means a human deliberately adjusted the thermostat: it arms a
// single-use override token that lets the next turn-on request bypass the cooldown (but not the
// environmental gates). A change in any other state is a routine thermostat decision and is
// ignored. An outstanding token is refreshed, not duplicated.

func (g *Guard) observeTarget(update poller.Update, now time.Time) {
	climate := g.Config.Get().ClimateEntity
	if climate == "" {
		return
	}
	target, ok := update.Target(climate)
	if !ok {
		return
	}
	if !g.haveTarget {
		g.haveTarget = true
		g.lastTarget = target
		return
	}
	if target == g.lastTarget {
		return
	}
	g.lastTarget = target
	if g.state != StateCooldown {
		return
	}
	g.overrideExpiry = now.Add(overrideGrace)
	g.logger.Info("thermostat adjusted during cooldown. override armed",
		slog.Float64("target", target),
		slog.Time("expiry", g.overrideExpiry),
	)
}
