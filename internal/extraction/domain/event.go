package domain

// EventType names an audit event emitted by the pipeline.
type EventType string

const (
	EventExtractionCompleted    EventType = "EXTRACTION_COMPLETED"
	EventExtractionFailed       EventType = "EXTRACTION_FAILED"
	EventExtractionDeduplicated EventType = "EXTRACTION_DEDUPLICATED"
	EventDataDecrypted          EventType = "DATA_DECRYPTED"
	EventExtractionReviewed     EventType = "EXTRACTION_REVIEWED"
	EventExtractionApplied      EventType = "EXTRACTION_APPLIED"
	EventExtractionExpired      EventType = "EXTRACTION_EXPIRED"
)

// SystemActor is the actor id used for events not caused by a person.
const SystemActor = "system"
