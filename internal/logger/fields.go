package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields. These are attached to the context logger and follow
// the request or the background pipeline run.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldTranscriptionID is the job record identifier
	FieldTranscriptionID = "transcription_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the caller-supplied origin tag of an upload
	FieldSource = "source"

	// FieldStage is the pipeline stage (ingest, transcribe, polish, regenerate)
	FieldStage = "stage"
)

// Metric fields, used on Entry for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation or record status
	FieldStatus = "status"
)
