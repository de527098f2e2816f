// Package cmd implements the climate-guard command line interface.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clambin/climate-guard/internal/cmd/monitor"
	"github.com/clambin/go-common/charmer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "climate-guard",
		Short: "Safety supervisor for relay switches behind Home Assistant",
		RunE:  run,
	}
)

func run(cmd *cobra.Command, _ []string) error {
	var opts slog.HandlerOptions
	if viper.GetBool("debug") {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &opts))

	m, err := monitor.New(viper.GetViper(), cmd.Version, prometheus.DefaultRegisterer, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("climate-guard starting", "version", cmd.Version)
	defer logger.Info("climate-guard stopped")
	return m.Run(ctx)
}

var args = charmer.Arguments{
	"debug":               charmer.Argument{Default: false, Help: "Log debug messages"},
	"homeassistant.url":   charmer.Argument{Default: "http://homeassistant.local:8123", Help: "Home Assistant URL"},
	"homeassistant.token": charmer.Argument{Default: "", Help: "Home Assistant long-lived access token"},
	"poller.interval":     charmer.Argument{Default: time.Minute, Help: "Entity resync interval"},
	"exporter.addr":       charmer.Argument{Default: ":9090", Help: "Address of Prometheus exporter"},
	"server.addr":         charmer.Argument{Default: ":8080", Help: "Address of the /health and API endpoints"},
	"slack.token":         charmer.Argument{Default: "", Help: "Slack token (empty: no Slack notifications)"},
	"mqtt.broker":         charmer.Argument{Default: "", Help: "MQTT broker (empty: no MQTT notifications)"},
	"mqtt.topic":          charmer.Argument{Default: "climate-guard/events", Help: "MQTT topic for notifications"},
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/climate-guard/")
		viper.AddConfigPath("$HOME/.climate-guard")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("CLIMATE_GUARD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		slog.Error("failed to read config file", "err", err)
		os.Exit(1)
	}
}
