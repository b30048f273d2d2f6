package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// AuditRecord is one finished risk score, flattened for Parquet.
type AuditRecord struct {
	ID           string    `parquet:"id"`
	CompanyID    string    `parquet:"company_id"`
	CompanyName  string    `parquet:"company_name"`
	TotalScore   float64   `parquet:"total_score"`
	RiskLevel    string    `parquet:"risk_level"`
	Truncated    bool      `parquet:"truncated"`
	CalculatedAt time.Time `parquet:"calculated_at"`
	Components   string    `parquet:"components"` // JSON string
	Warnings     string    `parquet:"warnings"`   // JSON string
}

// ScoreAudit buffers finished scores and writes them as Parquet files,
// one file per flushed batch. It backs offline calibration of the
// normalization breakpoints.
type ScoreAudit struct {
	outputDir string
	mu        sync.Mutex
	buffer    []AuditRecord
	batchSize int
}

// NewScoreAudit creates a score audit sink writing under outputDir.
func NewScoreAudit(outputDir string) (*ScoreAudit, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	return &ScoreAudit{
		outputDir: outputDir,
		batchSize: 100,
		buffer:    make([]AuditRecord, 0, 100),
	}, nil
}

// Record buffers one result, flushing when the batch fills.
func (a *ScoreAudit) Record(_ context.Context, result *types.RiskScoreResult) error {
	componentsJson, err := json.Marshal(result.Components)
	if err != nil {
		return fmt.Errorf("encode components: %w", err)
	}
	warningsJson, err := json.Marshal(result.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	record := AuditRecord{
		ID:           uuid.New().String(),
		CompanyID:    result.CompanyID,
		CompanyName:  result.CompanyName,
		TotalScore:   result.TotalScore,
		RiskLevel:    string(result.RiskLevel),
		Truncated:    result.Truncated,
		CalculatedAt: result.CalculatedAt.UTC(),
		Components:   string(componentsJson),
		Warnings:     string(warningsJson),
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffer = append(a.buffer, record)
	if len(a.buffer) >= a.batchSize {
		return a.flush()
	}
	return nil
}

// Flush forces buffered records to disk.
func (a *ScoreAudit) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flush()
}

// Close flushes and closes the sink.
func (a *ScoreAudit) Close() error {
	return a.Flush()
}

// flush writes the buffer to a new Parquet file. Caller must hold the lock.
func (a *ScoreAudit) flush() error {
	if len(a.buffer) == 0 {
		return nil
	}

	filename := fmt.Sprintf("risk_scores_%s_%d.parquet", time.Now().Format("20060102_150405"), time.Now().UnixNano())
	path := filepath.Join(a.outputDir, filename)

	if err := parquet.WriteFile(path, a.buffer); err != nil {
		return fmt.Errorf("write audit parquet file: %w", err)
	}

	a.buffer = a.buffer[:0]
	return nil
}
