package cachecheck

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleDiscrepancy() Discrepancy {
	return Discrepancy{
		BookID:         3,
		Field:          FieldReviewsCount,
		Expected:       "3",
		Actual:         "2",
		LastUpdatedUTC: bookTouch,
	}
}

func TestZapReporter_SeverityFollowsMode(t *testing.T) {
	tests := []struct {
		name  string
		fix   bool
		level zapcore.Level
	}{
		{name: "report only", fix: false, level: zapcore.WarnLevel},
		{name: "fix", fix: true, level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			NewZapReporter(zap.New(core)).Report(context.Background(), sampleDiscrepancy(), tt.fix)

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, int64(3), fields["book_id"])
			assert.Equal(t, FieldReviewsCount, fields["field"])
			assert.Equal(t, "3", fields["expected"])
			assert.Equal(t, "2", fields["actual"])
			updated, ok := fields["last_updated_utc"].(time.Time)
			require.True(t, ok)
			assert.True(t, bookTouch.Equal(updated))
		})
	}
}

func TestMultiReporter_FansOut(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}

	MultiReporter{a, b}.Report(context.Background(), sampleDiscrepancy(), true)

	assert.Len(t, a.Reported, 1)
	assert.Len(t, b.Reported, 1)
	assert.Equal(t, []bool{true}, b.FixFlags)
}

func TestChecker_LogsDiscrepanciesThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	source := newFakeSource()
	source.add(staleReviewsBook(3))

	c := NewChecker(source, NewMemoryWatermark(), NewZapReporter(logger), logger)
	_, err := c.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("cache check finished").Len())
}
