// Package finops tracks the cumulative upstream voice spend so operators see
// runaway usage before the invoice does. Figures are estimates derived from
// relayed character counts; they reset on restart.
package finops

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// DefaultWarnThresholdUSD is the spend level that triggers the first warning.
const DefaultWarnThresholdUSD = 5.0

// ConversationRecord is the final usage accounting of one relay connection.
type ConversationRecord struct {
	ConnectionID string
	SessionID    string
	Characters   int64
	Duration     time.Duration
	CostUSD      float64
	EndedAt      time.Time
}

// Report is a point-in-time view of the process-lifetime spend.
type Report struct {
	Conversations   int64   `json:"conversations"`
	TotalCharacters int64   `json:"total_characters"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	AvgCostUSD      float64 `json:"avg_cost_usd"`
	MaxCostUSD      float64 `json:"max_cost_usd"`
}

// SpendMonitor aggregates per-conversation cost records. Warnings fire each
// time the total crosses another multiple of the threshold.
type SpendMonitor struct {
	mu sync.Mutex

	conversations   int64
	totalCharacters int64
	totalCost       float64
	maxCost         float64
	warnedLevel     int

	threshold float64
	logger    *slog.Logger
}

// NewSpendMonitor creates a monitor with the given warning threshold in USD.
// A zero threshold falls back to the default.
func NewSpendMonitor(threshold float64, logger *slog.Logger) *SpendMonitor {
	if threshold <= 0 {
		threshold = DefaultWarnThresholdUSD
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SpendMonitor{threshold: threshold, logger: logger}
}

// Record folds one finished conversation into the totals.
func (m *SpendMonitor) Record(rec ConversationRecord) {
	if rec.Characters < 0 || rec.CostUSD < 0 {
		m.logger.Warn("dropping malformed spend record",
			"connection_id", rec.ConnectionID,
			"characters", rec.Characters,
			"cost_usd", rec.CostUSD)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversations++
	m.totalCharacters += rec.Characters
	m.totalCost += rec.CostUSD
	if rec.CostUSD > m.maxCost {
		m.maxCost = rec.CostUSD
	}

	level := int(math.Floor(m.totalCost / m.threshold))
	if level > m.warnedLevel {
		m.warnedLevel = level
		m.logger.Warn("voice spend threshold crossed",
			"total_cost_usd", m.totalCost,
			"threshold_usd", m.threshold,
			"conversations", m.conversations)
	}

	m.logger.Debug("conversation spend recorded",
		"connection_id", rec.ConnectionID,
		"characters", rec.Characters,
		"cost_usd", rec.CostUSD,
		"duration_ms", rec.Duration.Milliseconds())
}

// Snapshot returns the current totals.
func (m *SpendMonitor) Snapshot() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := Report{
		Conversations:   m.conversations,
		TotalCharacters: m.totalCharacters,
		TotalCostUSD:    m.totalCost,
		MaxCostUSD:      m.maxCost,
	}
	if m.conversations > 0 {
		report.AvgCostUSD = m.totalCost / float64(m.conversations)
	}
	return report
}
