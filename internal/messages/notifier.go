package messages

import (
	"context"

	"github.com/maloquacious/backdrop/internal/logger"
)

// Alerter is the user-facing alert capability.
type Alerter interface {
	Show(ctx context.Context, title, body string)
}

// Notifier shows an alert by logging it and recording it in the history.
type Notifier struct {
	history *History
	log     logger.Logger
}

func NewNotifier(history *History, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.Default
	}
	return &Notifier{history: history, log: log}
}

// Show never fails; a history write error is logged.
func (n *Notifier) Show(ctx context.Context, title, body string) {
	n.log.Warn("alert: %s: %s", title, body)
	if n.history == nil {
		return
	}
	if _, err := n.history.Add(ctx, title, body); err != nil {
		n.log.Error("alert: %v", err)
	}
}
