package guard

import (
	"testing"
	"time"

	"github.com/clambin/go-common/set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	s := NewStore(Settings{
		RunLimit:       30 * time.Minute,
		Cooldown:       10 * time.Minute,
		AllowedWeather: set.Create[string]("sunny"),
	})

	previous, err := s.SetRunLimit(15 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, previous)
	assert.Equal(t, 15*time.Minute, s.Get().RunLimit)

	previous, err = s.SetCooldown(5 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, previous)
	assert.Equal(t, 5*time.Minute, s.Get().Cooldown)

	assert.False(t, s.SetSunRequired(true))
	assert.True(t, s.Get().SunRequired)

	previousWeather, err := s.SetAllowedWeather([]string{"sunny", "partlycloudy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sunny"}, previousWeather)
	assert.True(t, s.Get().AllowedWeather.Contains("partlycloudy"))

	assert.Empty(t, s.SetClimateEntity("climate.living_room"))
	assert.Equal(t, "climate.living_room", s.Get().ClimateEntity)
}

func TestStore_Validation(t *testing.T) {
	s := NewStore(Settings{RunLimit: 30 * time.Minute, Cooldown: 10 * time.Minute})

	_, err := s.SetRunLimit(-time.Minute)
	require.ErrorIs(t, err, ErrInvalidSetting)
	_, err = s.SetCooldown(-time.Minute)
	require.ErrorIs(t, err, ErrInvalidSetting)
	_, err = s.SetAllowedWeather([]string{"sideways-rain"})
	require.ErrorIs(t, err, ErrInvalidSetting)

	// a rejected write leaves the store unchanged
	settings := s.Get()
	assert.Equal(t, 30*time.Minute, settings.RunLimit)
	assert.Equal(t, 10*time.Minute, settings.Cooldown)
	assert.Empty(t, settings.AllowedWeather.List())
}

func TestStore_Set(t *testing.T) {
	s := NewStore(Settings{RunLimit: 30 * time.Minute, Cooldown: 10 * time.Minute})

	limit := 15 * time.Minute
	sun := true
	require.NoError(t, s.Set(SettingsUpdate{RunLimit: &limit, SunRequired: &sun, AllowedWeather: []string{"sunny"}}))
	settings := s.Get()
	assert.Equal(t, 15*time.Minute, settings.RunLimit)
	assert.Equal(t, 10*time.Minute, settings.Cooldown)
	assert.True(t, settings.SunRequired)
	assert.True(t, settings.AllowedWeather.Contains("sunny"))

	// an invalid field rejects the whole update: the valid fields are not applied either
	limit = 20 * time.Minute
	cooldown := -time.Minute
	require.ErrorIs(t, s.Set(SettingsUpdate{RunLimit: &limit, Cooldown: &cooldown}), ErrInvalidSetting)
	settings = s.Get()
	assert.Equal(t, 15*time.Minute, settings.RunLimit)
	assert.Equal(t, 10*time.Minute, settings.Cooldown)

	require.ErrorIs(t, s.Set(SettingsUpdate{AllowedWeather: []string{"sideways-rain"}}), ErrInvalidSetting)
	assert.True(t, s.Get().AllowedWeather.Contains("sunny"))
}

func TestStore_Changed(t *testing.T) {
	s := NewStore(Settings{})

	select {
	case <-s.Changed():
		t.Fatal("unexpected change signal")
	default:
	}

	_, err := s.SetRunLimit(time.Hour)
	require.NoError(t, err)
	// a second write must not block, even with the signal still pending
	_, err = s.SetCooldown(time.Hour)
	require.NoError(t, err)

	select {
	case <-s.Changed():
	default:
		t.Fatal("expected a change signal")
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore(Settings{AllowedWeather: set.Create[string]("sunny")})

	settings := s.Get()
	settings.AllowedWeather.Add("rainy")

	assert.False(t, s.Get().AllowedWeather.Contains("rainy"))
}
