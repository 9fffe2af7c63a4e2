// Package notification provides alert delivery to external channels
// (Telegram, webhooks) for detection events: completed setups and
// operational warnings.
package notification

import (
	"context"
	"fmt"
	"log"

	"slobengine/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// ForSetup formats a completed setup as an alert carrying the full trade
// proposal.
func ForSetup(s model.Setup) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("SLOB setup %s %s", s.Symbol, s.Direction),
		Message: fmt.Sprintf(
			"entry=%.2f sl=%.2f tp=%.2f rr=%.2f quality=%.2f liq1=%.2f@%s liq2=%.2f@%s id=%s",
			s.EntryPrice, s.SLPrice, s.TPPrice, s.RiskRewardRatio, s.ConsolidationQuality,
			s.Liq1Price, s.Liq1Time.Format("15:04:05"),
			s.Liq2Price, s.Liq2Time.Format("15:04:05"),
			s.ID,
		),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}
