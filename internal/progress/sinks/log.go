package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/harvester/internal/progress"
)

// LogSink writes every progress event as a structured log line. Dropped items
// and run failures are logged at warn level so omissions stand out in audits.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("audit")}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		level := zapcore.InfoLevel
		if evt.Stage == progress.StageItemDropped || evt.Stage == progress.StageRunError {
			level = zapcore.WarnLevel
		}
		s.logger.Log(level, "progress event",
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("mode", evt.Mode),
			zap.String("scope", evt.Scope),
			zap.String("key", evt.Key),
			zap.String("kind", evt.Kind),
			zap.Int64("count", evt.Count),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
