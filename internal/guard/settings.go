package guard

import (
	"fmt"
	"sync"
	"time"

	"github.com/clambin/climate-guard/internal/configuration"
	"github.com/clambin/climate-guard/internal/homeassistant"
	"github.com/clambin/go-common/set"
)

// Settings is the runtime-editable configuration of a Guard. A duration of zero disables
// that constraint. An empty AllowedWeather set means no weather restriction.
type Settings struct {
	RunLimit       time.Duration
	Cooldown       time.Duration
	SunRequired    bool
	AllowedWeather set.Set[string]
	ClimateEntity  string
}

func settingsForDevice(device configuration.Device) Settings {
	return Settings{
		RunLimit:       *device.RunLimit,
		Cooldown:       *device.Cooldown,
		SunRequired:    device.SunRequired,
		AllowedWeather: set.Create[string](device.AllowedWeather...),
		ClimateEntity:  device.Climate,
	}
}

func (s Settings) clone() Settings {
	s.AllowedWeather = set.Create[string](s.AllowedWeather.List()...)
	return s
}

// A Store holds a Guard's Settings. Writes are validated and atomic; reads return a consistent
// snapshot. The Guard reads the store at every decision point, so a write takes effect on the
// next scheduling decision without a restart. Changed signals the Guard that its deadlines may
// have moved.
type Store struct {
	settings Settings
	changed  chan struct{}
	lock     sync.RWMutex
}

// NewStore returns a Store with the given initial Settings.
func NewStore(settings Settings) *Store {
	if settings.AllowedWeather == nil {
		settings.AllowedWeather = set.Create[string]()
	}
	return &Store{
		settings: settings.clone(),
		changed:  make(chan struct{}, 1),
	}
}

// Get returns a snapshot of the current Settings.
func (s *Store) Get() Settings {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.settings.clone()
}

// SetRunLimit updates the maximum continuous run time and returns the previous value.
func (s *Store) SetRunLimit(limit time.Duration) (time.Duration, error) {
	if limit < 0 {
		return 0, fmt.Errorf("%w: run limit must not be negative", ErrInvalidSetting)
	}
	s.lock.Lock()
	previous := s.settings.RunLimit
	s.settings.RunLimit = limit
	s.lock.Unlock()
	s.notify()
	return previous, nil
}

// SetCooldown updates the minimum rest time between runs and returns the previous value.
func (s *Store) SetCooldown(cooldown time.Duration) (time.Duration, error) {
	if cooldown < 0 {
		return 0, fmt.Errorf("%w: cooldown must not be negative", ErrInvalidSetting)
	}
	s.lock.Lock()
	previous := s.settings.Cooldown
	s.settings.Cooldown = cooldown
	s.lock.Unlock()
	s.notify()
	return previous, nil
}

// SetSunRequired updates the sun gate and returns the previous value.
func (s *Store) SetSunRequired(required bool) bool {
	s.lock.Lock()
	previous := s.settings.SunRequired
	s.settings.SunRequired = required
	s.lock.Unlock()
	s.notify()
	return previous
}

// SetAllowedWeather replaces the weather gate's allowed conditions and returns the previous ones.
func (s *Store) SetAllowedWeather(conditions []string) ([]string, error) {
	for _, condition := range conditions {
		if !homeassistant.WeatherConditions.Contains(condition) {
			return nil, fmt.Errorf("%w: invalid weather condition %q", ErrInvalidSetting, condition)
		}
	}
	s.lock.Lock()
	previous := s.settings.AllowedWeather.ListOrdered()
	s.settings.AllowedWeather = set.Create[string](conditions...)
	s.lock.Unlock()
	s.notify()
	return previous, nil
}

// A SettingsUpdate is a partial update of a Store's Settings. Nil fields are left unchanged.
type SettingsUpdate struct {
	RunLimit       *time.Duration
	Cooldown       *time.Duration
	SunRequired    *bool
	AllowedWeather []string
	ClimateEntity  *string
}

// Set validates and applies a partial update. If any field is invalid, nothing is applied.
func (s *Store) Set(update SettingsUpdate) error {
	if update.RunLimit != nil && *update.RunLimit < 0 {
		return fmt.Errorf("%w: run limit must not be negative", ErrInvalidSetting)
	}
	if update.Cooldown != nil && *update.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidSetting)
	}
	for _, condition := range update.AllowedWeather {
		if !homeassistant.WeatherConditions.Contains(condition) {
			return fmt.Errorf("%w: invalid weather condition %q", ErrInvalidSetting, condition)
		}
	}
	s.lock.Lock()
	if update.RunLimit != nil {
		s.settings.RunLimit = *update.RunLimit
	}
	if update.Cooldown != nil {
		s.settings.Cooldown = *update.Cooldown
	}
	if update.SunRequired != nil {
		s.settings.SunRequired = *update.SunRequired
	}
	if update.AllowedWeather != nil {
		s.settings.AllowedWeather = set.Create[string](update.AllowedWeather...)
	}
	if update.ClimateEntity != nil {
		s.settings.ClimateEntity = *update.ClimateEntity
	}
	s.lock.Unlock()
	s.notify()
	return nil
}

// SetClimateEntity updates the linked thermostat and returns the previous value.
func (s *Store) SetClimateEntity(entityID string) string {
	s.lock.Lock()
	previous := s.settings.ClimateEntity
	s.settings.ClimateEntity = entityID
	s.lock.Unlock()
	s.notify()
	return previous
}

// Changed signals that the settings were updated.
func (s *Store) Changed() <-chan struct{} {
	return s.changed
}

func (s *Store) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
