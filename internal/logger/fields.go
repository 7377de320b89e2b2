package logger

// Fields is the field map attached to log lines.
type Fields map[string]interface{}

// Context-level fields, injected once and carried through a call chain.
const (
	// FieldRunID identifies one harvest run (a UUID).
	FieldRunID = "run_id"

	// FieldComponent names the pipeline component emitting the line.
	FieldComponent = "component"

	// FieldSource names the input being processed.
	FieldSource = "source"

	// FieldWorker is the index of the fetch worker involved.
	FieldWorker = "worker"
)

// Metric fields, attached per line through the Entry API.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldRows       = "rows"
)
