package cachecheck

import (
	"context"

	"go.uber.org/zap"
)

// Reporter records a discrepancy. fix tells whether the run is repairing it.
type Reporter interface {
	Report(ctx context.Context, d Discrepancy, fix bool)
}

// ZapReporter logs discrepancies, at error level when the run repairs them
// and at warn level otherwise.
type ZapReporter struct {
	logger *zap.Logger
}

func NewZapReporter(logger *zap.Logger) *ZapReporter {
	return &ZapReporter{logger: logger}
}

func (r *ZapReporter) Report(_ context.Context, d Discrepancy, fix bool) {
	fields := []zap.Field{
		zap.Int64("book_id", d.BookID),
		zap.String("field", d.Field),
		zap.String("expected", d.Expected),
		zap.String("actual", d.Actual),
		zap.Time("last_updated_utc", d.LastUpdatedUTC),
	}
	if fix {
		r.logger.Error("cached field out of date, fixing", fields...)
		return
	}
	r.logger.Warn("cached field out of date", fields...)
}

type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, d Discrepancy, fix bool) {
	for _, r := range m {
		r.Report(ctx, d, fix)
	}
}
