package notifier

import (
	"github.com/slack-go/slack"
)

// SlackSender sends a message to Slack. Implemented by go-common/slackbot's SlackBot.
type SlackSender interface {
	Send(channel string, attachments []slack.Attachment) error
}

// SlackNotifier sends notifications to Slack.
type SlackNotifier struct {
	Bot SlackSender
}

var _ Notifier = &SlackNotifier{}

func (s SlackNotifier) Notify(title, text string) {
	_ = s.Bot.Send("", []slack.Attachment{{
		Color: "good",
		Title: title,
		Text:  text,
	}})
}
