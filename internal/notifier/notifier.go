// Package notifier informs the user of guard state changes and alarms, through structured
// logging, Slack and/or MQTT.
package notifier

// Notifier informs the user of a state transition or alarm.
type Notifier interface {
	Notify(title, text string)
}

// Notifiers fans a notification out to multiple Notifiers.
type Notifiers []Notifier

var _ Notifier = Notifiers{}

// Notify sends the notification to all registered Notifiers.
func (n Notifiers) Notify(title, text string) {
	for _, notifier := range n {
		notifier.Notify(title, text)
	}
}
