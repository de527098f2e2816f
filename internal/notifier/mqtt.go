package notifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTTNotifier publishes notifications to an MQTT topic, for Home Assistant setups that
// consume MQTT.
type MQTTNotifier struct {
	client paho.Client
	topic  string
	logger *slog.Logger
}

var _ Notifier = &MQTTNotifier{}

// NewMQTTNotifier returns an MQTTNotifier connected to the given broker.
func NewMQTTNotifier(broker, topic string, logger *slog.Logger) (*MQTTNotifier, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("climate-guard").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return &MQTTNotifier{client: client, topic: topic, logger: logger}, nil
}

func (m *MQTTNotifier) Notify(title, text string) {
	payload, _ := json.Marshal(struct {
		Timestamp time.Time `json:"timestamp"`
		Title     string    `json:"title"`
		Text      string    `json:"text"`
	}{Timestamp: time.Now(), Title: title, Text: text})

	token := m.client.Publish(m.topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		m.logger.Warn("mqtt publish timed out", "topic", m.topic)
		return
	}
	if err := token.Error(); err != nil {
		m.logger.Warn("mqtt publish failed", "err", err)
	}
}

// Close disconnects from the broker.
func (m *MQTTNotifier) Close() {
	m.client.Disconnect(1000)
}
