// Package notify shows desktop notifications for aggregation results.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
	"github.com/goodtune/workdigest/internal/config"
	"github.com/goodtune/workdigest/internal/metrics"
	"github.com/rs/zerolog"
)

// maxFailureMessage bounds the error text shown in a failure toast, in runes.
const maxFailureMessage = 50

// SendFunc displays a notification.
type SendFunc func(title, message string) error

// Notifier sends success and failure toasts. Delivery problems are logged,
// never returned: a notification must not fail the run it reports on.
type Notifier struct {
	enabled bool
	notify  SendFunc
	alert   SendFunc
	logger  zerolog.Logger
}

// New creates a Notifier backed by beeep.
func New(cfg config.NotifyConfig, logger zerolog.Logger) *Notifier {
	if cfg.AppName != "" {
		beeep.AppName = cfg.AppName
	}
	return NewWithSenders(cfg.Enabled,
		func(title, message string) error { return beeep.Notify(title, message, "") },
		func(title, message string) error { return beeep.Alert(title, message, "") },
		logger,
	)
}

// NewWithSenders creates a Notifier with explicit delivery functions.
// alert is used for failures and may be nil to reuse notify.
func NewWithSenders(enabled bool, notify, alert SendFunc, logger zerolog.Logger) *Notifier {
	if alert == nil {
		alert = notify
	}
	return &Notifier{
		enabled: enabled,
		notify:  notify,
		alert:   alert,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// Success announces a finished daily summary.
func (n *Notifier) Success(date string, captureCount int, topApp string) {
	message := fmt.Sprintf("%s / %d captures", date, captureCount)
	if topApp != "" {
		message += ", mostly " + topApp
	}
	n.send("success", n.notify, "Daily report ready", message)
}

// Failure announces a failed run.
func (n *Notifier) Failure(err error) {
	message := "unknown error"
	if err != nil {
		message = truncate(err.Error(), maxFailureMessage)
	}
	n.send("failure", n.alert, "Daily report failed", message)
}

func (n *Notifier) send(kind string, fn SendFunc, title, message string) {
	if !n.enabled || fn == nil {
		n.logger.Debug().Str("kind", kind).Str("message", message).Msg("Notification skipped (disabled)")
		metrics.NotificationsSent.WithLabelValues(kind, "skipped").Inc()
		return
	}
	if err := fn(title, message); err != nil {
		n.logger.Error().Err(err).Str("kind", kind).Str("message", message).Msg("Failed to show notification")
		metrics.NotificationsSent.WithLabelValues(kind, "failed").Inc()
		return
	}
	n.logger.Info().Str("kind", kind).Str("title", title).Str("message", message).Msg("Notification sent")
	metrics.NotificationsSent.WithLabelValues(kind, "sent").Inc()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
