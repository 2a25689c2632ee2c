package finops

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestMonitor(threshold float64) *SpendMonitor {
	return NewSpendMonitor(threshold, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSpendMonitorAggregates(t *testing.T) {
	m := newTestMonitor(0)

	m.Record(ConversationRecord{
		ConnectionID: "c1",
		Characters:   1000,
		Duration:     time.Minute,
		CostUSD:      0.30,
		EndedAt:      time.Now(),
	})
	m.Record(ConversationRecord{
		ConnectionID: "c2",
		Characters:   500,
		Duration:     30 * time.Second,
		CostUSD:      0.15,
		EndedAt:      time.Now(),
	})

	report := m.Snapshot()
	assert.Equal(t, int64(2), report.Conversations)
	assert.Equal(t, int64(1500), report.TotalCharacters)
	assert.InDelta(t, 0.45, report.TotalCostUSD, 1e-9)
	assert.InDelta(t, 0.225, report.AvgCostUSD, 1e-9)
	assert.InDelta(t, 0.30, report.MaxCostUSD, 1e-9)
}

func TestSpendMonitorEmptyReport(t *testing.T) {
	report := newTestMonitor(0).Snapshot()
	assert.Equal(t, int64(0), report.Conversations)
	assert.Zero(t, report.AvgCostUSD)
}

func TestSpendMonitorDropsMalformedRecords(t *testing.T) {
	m := newTestMonitor(0)

	m.Record(ConversationRecord{ConnectionID: "bad", Characters: -1, CostUSD: 0.1})
	m.Record(ConversationRecord{ConnectionID: "bad", Characters: 10, CostUSD: -0.1})

	assert.Equal(t, int64(0), m.Snapshot().Conversations)
}

func TestSpendMonitorWarnsOncePerThresholdLevel(t *testing.T) {
	m := newTestMonitor(1.0)

	// Crossing the threshold twice should bump warnedLevel to 2, not spam
	// a warning per record.
	for i := 0; i < 4; i++ {
		m.Record(ConversationRecord{ConnectionID: "c", Characters: 100, CostUSD: 0.55})
	}
	assert.Equal(t, 2, m.warnedLevel)
	assert.InDelta(t, 2.20, m.Snapshot().TotalCostUSD, 1e-9)
}
