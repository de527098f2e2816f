// Package configuration defines the devices.yaml file, which lists the switches climate-guard supervises.
package configuration

import (
	"fmt"
	"io"
	"time"

	"github.com/clambin/climate-guard/internal/homeassistant"
	"gopkg.in/yaml.v3"
)

// DeviceType indicates whether the supervised switch drives a heater or a cooler.
type DeviceType string

const (
	Heater DeviceType = "heater"
	Cooler DeviceType = "cooler"
)

// A Device describes one supervised switch.
type Device struct {
	// Name identifies the device in logs, metrics and the API.
	Name string `yaml:"name"`
	// Switch is the entity id of the supervised switch.
	Switch string `yaml:"switch"`
	// Type is the device type (heater or cooler). Defaults to heater.
	Type DeviceType `yaml:"type"`
	// Climate is the entity id of the linked thermostat (optional).
	Climate string `yaml:"climate"`
	// SunRequired only allows the switch to start while the sun is up.
	SunRequired bool `yaml:"sunRequired"`
	// AllowedWeather only allows the switch to start during the listed weather conditions.
	// An empty list means no restriction.
	AllowedWeather []string `yaml:"allowedWeather"`
	// RunLimit is the maximum continuous run time. Zero disables the limit.
	// Defaults to DefaultRunLimit when omitted.
	RunLimit *time.Duration `yaml:"runLimit"`
	// Cooldown is the minimum rest time between runs. Zero disables the cooldown.
	// Defaults to DefaultCooldown when omitted.
	Cooldown *time.Duration `yaml:"cooldown"`
	// Heartbeat is the interval of the dead-man's-switch pulse. Must be shorter than the
	// hardware's own auto-off window. Fixed at startup; zero disables the heartbeat.
	// Defaults to DefaultHeartbeat when omitted.
	Heartbeat *time.Duration `yaml:"heartbeat"`
}

// Defaults, matching the hardware this was built for.
const (
	DefaultRunLimit  = 10 * time.Minute
	DefaultCooldown  = 40 * time.Minute
	DefaultHeartbeat = 10 * time.Second
)

// Configuration is the content of devices.yaml.
type Configuration struct {
	Sun     string   `yaml:"sun"`
	Weather string   `yaml:"weather"`
	Devices []Device `yaml:"devices"`
}

// Load parses and validates a devices.yaml file.
func Load(r io.Reader) (Configuration, error) {
	var cfg Configuration
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return Configuration{}, fmt.Errorf("invalid device configuration: %w", err)
	}
	if len(cfg.Devices) == 0 {
		return Configuration{}, fmt.Errorf("no devices configured")
	}
	if cfg.Sun == "" {
		cfg.Sun = "sun.sun"
	}
	names := make(map[string]struct{}, len(cfg.Devices))
	for i := range cfg.Devices {
		device := &cfg.Devices[i]
		if err := device.validate(); err != nil {
			return Configuration{}, err
		}
		if _, ok := names[device.Name]; ok {
			return Configuration{}, fmt.Errorf("duplicate device name %q", device.Name)
		}
		names[device.Name] = struct{}{}
	}
	return cfg, nil
}

func (d *Device) validate() error {
	if d.Name == "" {
		return fmt.Errorf("device has no name")
	}
	if d.Switch == "" {
		return fmt.Errorf("device %q has no switch entity", d.Name)
	}
	switch d.Type {
	case Heater, Cooler:
	case "":
		d.Type = Heater
	default:
		return fmt.Errorf("device %q has invalid type %q", d.Name, d.Type)
	}
	for _, condition := range d.AllowedWeather {
		if !homeassistant.WeatherConditions.Contains(condition) {
			return fmt.Errorf("device %q has invalid weather condition %q", d.Name, condition)
		}
	}
	d.RunLimit = defaulted(d.RunLimit, DefaultRunLimit)
	d.Cooldown = defaulted(d.Cooldown, DefaultCooldown)
	d.Heartbeat = defaulted(d.Heartbeat, DefaultHeartbeat)
	if *d.RunLimit < 0 || *d.Cooldown < 0 || *d.Heartbeat < 0 {
		return fmt.Errorf("device %q has a negative duration", d.Name)
	}
	return nil
}

// defaulted distinguishes an omitted duration (use the default) from an explicit zero (disabled).
func defaulted(d *time.Duration, value time.Duration) *time.Duration {
	if d == nil {
		return &value
	}
	return d
}
