package guard

import (
	"testing"

	"github.com/clambin/go-common/set"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateGate(t *testing.T) {
	tests := []struct {
		name     string
		sunUp    bool
		weather  string
		settings Settings
		want     Decision
	}{
		{
			name:     "no gates",
			settings: Settings{AllowedWeather: set.Create[string]()},
			want:     Decision{Allowed: true},
		},
		{
			name:     "sun required, sun up",
			sunUp:    true,
			settings: Settings{SunRequired: true, AllowedWeather: set.Create[string]()},
			want:     Decision{Allowed: true},
		},
		{
			name:     "sun required, sun down",
			settings: Settings{SunRequired: true, AllowedWeather: set.Create[string]()},
			want:     Decision{Reason: ReasonSun, Detail: "sun is below the horizon"},
		},
		{
			name:     "weather allowed",
			weather:  "sunny",
			settings: Settings{AllowedWeather: set.Create[string]("sunny", "partlycloudy")},
			want:     Decision{Allowed: true},
		},
		{
			name:     "weather not allowed",
			weather:  "rainy",
			settings: Settings{AllowedWeather: set.Create[string]("sunny", "partlycloudy")},
			want:     Decision{Reason: ReasonWeather, Detail: "weather is rainy"},
		},
		{
			name:     "weather unavailable counts as not allowed",
			settings: Settings{AllowedWeather: set.Create[string]("sunny")},
			want:     Decision{Reason: ReasonWeather, Detail: "weather is unavailable"},
		},
		{
			name:     "no weather restriction ignores unavailable weather",
			sunUp:    true,
			settings: Settings{SunRequired: true, AllowedWeather: set.Create[string]()},
			want:     Decision{Allowed: true},
		},
		{
			name:     "sun gate evaluated before weather gate",
			weather:  "rainy",
			settings: Settings{SunRequired: true, AllowedWeather: set.Create[string]("sunny")},
			want:     Decision{Reason: ReasonSun, Detail: "sun is below the horizon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluateGate(tt.sunUp, tt.weather, tt.settings))
		})
	}
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "none", ReasonNone.String())
	assert.Equal(t, "sun", ReasonSun.String())
	assert.Equal(t, "weather", ReasonWeather.String())
	assert.Equal(t, "cooldown", ReasonCooldown.String())
	assert.Equal(t, "disabled", ReasonDisabled.String())
}
