// Package alert notifies operators when a company's relational risk
// crosses into an elevated level. The Sink plugs into the scoring
// engine's audit hook so every finished score is screened.
package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/soundprediction/ontoscore/pkg/config"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// Alerter defines an interface for sending alerts
type Alerter interface {
	Alert(subject, message string) error
}

// EmailAlerter implements Alerter using SMTP
type EmailAlerter struct {
	cfg config.AlertConfig
}

// NewEmailAlerter creates a new email alerter
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{
		cfg: cfg,
	}
}

// Alert sends an email with the given subject and message
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)

	to := a.cfg.To
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", strings.Join(to, ","), subject, message))

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)

	err := smtp.SendMail(addr, auth, a.cfg.From, to, msg)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	return nil
}

// NoOpAlerter is a dummy alerter for when alerting is disabled
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}

// Sink screens score results and alerts on those at or above a minimum
// risk level. It satisfies the scoring engine's AuditSink interface.
type Sink struct {
	alerter  Alerter
	minLevel types.RiskLevel
}

// NewSink wraps an alerter with a minimum risk level. The level string
// is case-insensitive; an unknown value falls back to high.
func NewSink(alerter Alerter, minLevel string) *Sink {
	level := types.RiskLevel(strings.ToUpper(minLevel))
	switch level {
	case types.RiskLevelLow, types.RiskLevelMedium, types.RiskLevelHigh, types.RiskLevelCritical:
	default:
		level = types.RiskLevelHigh
	}
	return &Sink{alerter: alerter, minLevel: level}
}

// Record alerts when the result's level is at or above the sink's
// minimum. Results below the threshold pass through silently.
func (s *Sink) Record(ctx context.Context, result *types.RiskScoreResult) error {
	if result.RiskLevel.Rank() < s.minLevel.Rank() {
		return nil
	}

	subject := fmt.Sprintf("[ontoscore] %s risk: %s", result.RiskLevel, result.CompanyName)
	var b strings.Builder
	fmt.Fprintf(&b, "Company %s (%s) scored %.4f (%s) as of %s.\n",
		result.CompanyName, result.CompanyID, result.TotalScore,
		result.RiskLevel, result.CalculatedAt.Format("2006-01-02 15:04:05 MST"))
	if len(result.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	return s.alerter.Alert(subject, b.String())
}
