package guard

// Reason explains why a turn-on request was denied.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonSun
	ReasonWeather
	ReasonCooldown
	ReasonDisabled
)

func (r Reason) String() string {
	switch r {
	case ReasonSun:
		return "sun"
	case ReasonWeather:
		return "weather"
	case ReasonCooldown:
		return "cooldown"
	case ReasonDisabled:
		return "disabled"
	default:
		return "none"
	}
}

// A Decision is the outcome of evaluating the environmental gates for a turn-on request.
type Decision struct {
	Allowed bool
	Reason  Reason
	Detail  string
}

// evaluateGate applies the environmental gates to a turn-on request: sun position and weather
// condition. It is evaluated once per turn-on attempt and never interrupts a running cycle.
func evaluateGate(sunUp bool, weather string, settings Settings) Decision {
	if settings.SunRequired && !sunUp {
		return Decision{Reason: ReasonSun, Detail: "sun is below the horizon"}
	}
	if len(settings.AllowedWeather.List()) > 0 {
		if weather == "" {
			return Decision{Reason: ReasonWeather, Detail: "weather is unavailable"}
		}
		if !settings.AllowedWeather.Contains(weather) {
			return Decision{Reason: ReasonWeather, Detail: "weather is " + weather}
		}
	}
	return Decision{Allowed: true}
}
