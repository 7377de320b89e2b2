package logger

import "context"

// Entry accumulates metric fields (duration_ms, rows, size and friends)
// before emitting a single log line. Typical use:
//
//	logger.With(logger.Fields{"kept": 42}).WithRows(n).Info(ctx, "Harvest completed")
type Entry struct {
	logger *Logger
	fields Fields
}

// With starts an Entry carrying the given metric fields.
func With(fields Fields) *Entry {
	return &Entry{logger: GetDefault(), fields: fields}
}

// With returns a copy of the Entry with more fields merged in. Later
// values win on key collisions.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{logger: e.logger, fields: merged}
}

// WithField adds a single field.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	return e.With(Fields{key: value})
}

// WithDuration adds the duration_ms field.
func (e *Entry) WithDuration(ms int64) *Entry {
	return e.WithField(FieldDurationMs, ms)
}

// WithCount adds the count field.
func (e *Entry) WithCount(count int64) *Entry {
	return e.WithField(FieldCount, count)
}

// WithRows adds the rows field.
func (e *Entry) WithRows(rows int64) *Entry {
	return e.WithField(FieldRows, rows)
}

// WithSize adds the size field, in bytes.
func (e *Entry) WithSize(size int64) *Entry {
	return e.WithField(FieldSize, size)
}

// getLogger prefers the context logger, so entries emitted inside a
// tagged call chain keep its run_id and component fields.
func (e *Entry) getLogger(ctx context.Context) *Logger {
	if ctx != nil {
		return FromContext(ctx)
	}
	return e.logger
}

// Debug emits the entry at debug level.
func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	e.getLogger(ctx).WithFields(e.fields).Debugf(format, args...)
}

// Info emits the entry at info level.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	e.getLogger(ctx).WithFields(e.fields).Infof(format, args...)
}

// Warn emits the entry at warn level.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	e.getLogger(ctx).WithFields(e.fields).Warnf(format, args...)
}

// Error emits the entry at error level.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	e.getLogger(ctx).WithFields(e.fields).Errorf(format, args...)
}
