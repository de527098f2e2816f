package notifier

import (
	"log/slog"
)

// SLogNotifier writes notifications to a slog.Logger.
type SLogNotifier struct {
	Logger *slog.Logger
}

var _ Notifier = &SLogNotifier{}

func (s SLogNotifier) Notify(title, text string) {
	s.Logger.Info(title, "reason", text)
}
