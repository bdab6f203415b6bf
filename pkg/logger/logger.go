package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "relief-offline-ledger"

// Field names shared by every component that logs about the ledger, so one
// IOU or batch can be followed across the HTTP, reconcile and notifier logs.
const (
	FieldIOUID   = "iou_id"
	FieldBatchID = "batch_id"
)

// New creates the process logger.
// level: debug, info, warn, error. pretty: human-readable console output.
// Caller locations are only recorded at debug level.
func New(level string, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	lvl := parseLevel(level)
	ctx := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", serviceName)
	if lvl == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// NewWithWriter creates a logger writing to w, for tests.
func NewWithWriter(level string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithIOU tags log lines about a single IOU.
func WithIOU(log zerolog.Logger, id int64) zerolog.Logger {
	return log.With().Int64(FieldIOUID, id).Logger()
}

// WithBatch tags log lines about one reconciliation batch or sweep.
func WithBatch(log zerolog.Logger, batchID string) zerolog.Logger {
	return log.With().Str(FieldBatchID, batchID).Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
