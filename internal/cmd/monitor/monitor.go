// Package monitor assembles and runs all climate-guard components.
package monitor

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/clambin/climate-guard/internal/api"
	"github.com/clambin/climate-guard/internal/collector"
	"github.com/clambin/climate-guard/internal/configuration"
	"github.com/clambin/climate-guard/internal/guard"
	"github.com/clambin/climate-guard/internal/health"
	"github.com/clambin/climate-guard/internal/homeassistant"
	"github.com/clambin/climate-guard/internal/notifier"
	"github.com/clambin/climate-guard/internal/poller"
	"github.com/clambin/go-common/slackbot"
	"github.com/clambin/go-common/taskmanager"
	"github.com/clambin/go-common/taskmanager/httpserver"
	promserver "github.com/clambin/go-common/taskmanager/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

// New builds a taskmanager with all components, configured from cfg and the devices.yaml file
// next to the configuration file.
func New(cfg *viper.Viper, version string, registry prometheus.Registerer, logger *slog.Logger) (*taskmanager.Manager, error) {
	devices, err := loadDevices(filepath.Join(filepath.Dir(cfg.ConfigFileUsed()), "devices.yaml"))
	if err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}
	return taskmanager.New(makeTasks(cfg, devices, version, registry, logger)...), nil
}

func loadDevices(path string) (configuration.Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return configuration.Configuration{}, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	return configuration.Load(f)
}

func makeTasks(cfg *viper.Viper, devices configuration.Configuration, version string, registry prometheus.Registerer, l *slog.Logger) []taskmanager.Task {
	var tasks []taskmanager.Task

	// Home Assistant client & event listener
	client := homeassistant.NewClient(cfg.GetString("homeassistant.url"), cfg.GetString("homeassistant.token"), registry)
	listener := homeassistant.NewListener(cfg.GetString("homeassistant.url"), cfg.GetString("homeassistant.token"), l.With("component", "socket"))
	tasks = append(tasks, listener)

	// Poller
	entities := poller.Entities{Sun: devices.Sun, Weather: devices.Weather}
	for _, device := range devices.Devices {
		entities.Switches = append(entities.Switches, device.Switch)
		if device.Climate != "" {
			entities.Climates = append(entities.Climates, device.Climate)
		}
	}
	p := poller.New(client, listener, entities, cfg.GetDuration("poller.interval"), l.With("component", "poller"))
	tasks = append(tasks, p)

	// Notifiers
	notifiers := notifier.Notifiers{notifier.SLogNotifier{Logger: l.With("component", "notifier")}}
	if token := cfg.GetString("slack.token"); token != "" {
		bot := slackbot.New(
			token,
			slackbot.WithName("climate-guard "+version),
			slackbot.WithLogger(l.With(slog.String("component", "slackbot"))),
		)
		tasks = append(tasks, bot)
		notifiers = append(notifiers, notifier.SlackNotifier{Bot: bot})
	}
	if broker := cfg.GetString("mqtt.broker"); broker != "" {
		mq, err := notifier.NewMQTTNotifier(broker, cfg.GetString("mqtt.topic"), l.With(slog.String("component", "mqtt")))
		if err != nil {
			l.Warn("mqtt broker unreachable. mqtt notifications disabled", "err", err)
		} else {
			notifiers = append(notifiers, mq)
		}
	}

	// Guards
	m := guard.NewManager(devices, client, p, notifiers, l.With("component", "guard"))
	tasks = append(tasks, m)

	// Collector
	coll := collector.Collector{Guards: m, Logger: l.With("component", "collector")}
	if registry != nil {
		registry.MustRegister(&coll)
	}

	// Prometheus server
	tasks = append(tasks, promserver.New(promserver.WithAddr(cfg.GetString("exporter.addr"))))

	// Health endpoint & API
	h := health.New(p, m, l.With("component", "health"))
	tasks = append(tasks, h)
	r := http.NewServeMux()
	r.Handle("/health", h)
	api.New(m, l.With("component", "api")).AddRoutes(r)
	tasks = append(tasks, httpserver.New(cfg.GetString("server.addr"), r))

	return tasks
}
