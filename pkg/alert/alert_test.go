package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoscore/pkg/config"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// captureAlerter records every alert it is asked to send.
type captureAlerter struct {
	subjects []string
	messages []string
}

func (c *captureAlerter) Alert(subject, message string) error {
	c.subjects = append(c.subjects, subject)
	c.messages = append(c.messages, message)
	return nil
}

func scoredResult(level types.RiskLevel) *types.RiskScoreResult {
	return &types.RiskScoreResult{
		CompanyID:    "co-1",
		CompanyName:  "Acme Corp",
		TotalScore:   0.85,
		RiskLevel:    level,
		CalculatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSinkMinLevelThreshold(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		minLevel string
		result   types.RiskLevel
		fired    bool
	}{
		{"critical floor ignores high", "critical", types.RiskLevelHigh, false},
		{"critical floor fires on critical", "critical", types.RiskLevelCritical, true},
		{"case insensitive", "CRITICAL", types.RiskLevelHigh, false},
		{"low floor fires on low", "low", types.RiskLevelLow, true},
		{"medium floor ignores low", "medium", types.RiskLevelLow, false},
		{"medium floor fires on high", "medium", types.RiskLevelHigh, true},
		{"unknown falls back to high", "severe", types.RiskLevelMedium, false},
		{"unknown fallback fires on high", "severe", types.RiskLevelHigh, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture := &captureAlerter{}
			sink := NewSink(capture, tt.minLevel)
			require.NoError(t, sink.Record(ctx, scoredResult(tt.result)))
			if tt.fired {
				assert.Len(t, capture.subjects, 1)
			} else {
				assert.Empty(t, capture.subjects)
			}
		})
	}
}

func TestSinkMessageContents(t *testing.T) {
	capture := &captureAlerter{}
	sink := NewSink(capture, "high")

	result := scoredResult(types.RiskLevelCritical)
	result.Warnings = []string{"convertible bond issuance frequency is elevated"}
	require.NoError(t, sink.Record(context.Background(), result))

	require.Len(t, capture.subjects, 1)
	assert.Contains(t, capture.subjects[0], "CRITICAL")
	assert.Contains(t, capture.subjects[0], "Acme Corp")
	assert.Contains(t, capture.messages[0], "0.8500")
	assert.Contains(t, capture.messages[0], "convertible bond issuance frequency is elevated")
}

func TestEmailAlerterDisabledIsNoOp(t *testing.T) {
	a := NewEmailAlerter(config.AlertConfig{Enabled: false})
	assert.NoError(t, a.Alert("subject", "message"))
	assert.NoError(t, (&NoOpAlerter{}).Alert("subject", "message"))
}
