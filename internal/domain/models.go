package domain

// UploadedFile carries the bytes and declared metadata of a single upload.
// It is immutable once received and owned by the request that carries it.
type UploadedFile struct {
	Name             string
	DeclaredMimeType string
	SizeBytes        int64
	Content          []byte
}

// PipelineResult is the terminal artifact returned to the caller.
// ProcessedText equals RawText whenever anonymization was skipped or fell back.
type PipelineResult struct {
	RawText       string
	ProcessedText string
	Filename      string
	SizeBytes     int64
	Anonymized    bool
}

// EventType identifies a request lifecycle event. The orchestrator emits one
// at each state-machine transition so observability stays decoupled from
// control flow.
type EventType string

const (
	EventValidated   EventType = "validated"
	EventTempWritten EventType = "temp_written"
	EventExtracted   EventType = "extracted"
	EventAnonymized  EventType = "anonymized"
	EventFellBack    EventType = "anonymization_fallback"
	EventResponded   EventType = "responded"
	EventRejected    EventType = "rejected"
)
