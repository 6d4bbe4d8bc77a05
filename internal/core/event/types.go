package event

import "time"

type EventType string

const (
	// Job lifecycle
	EventJobCreated   EventType = "job.created"
	EventJobStarted   EventType = "job.started"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
	EventJobCancelled EventType = "job.cancelled"

	// Per-file progress within a job
	EventFileStarted   EventType = "file.started"
	EventFileCompleted EventType = "file.completed"
	EventFileFailed    EventType = "file.failed"

	// Retention sweeper
	EventRetentionSwept EventType = "retention.swept"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type JobEvent struct {
	JobID          string
	Provider       string
	Model          string
	Status         string
	ProcessedFiles int
	FailedFiles    int
	Error          string
}

type FileEvent struct {
	JobID            string
	FileID           string
	Name             string
	Status           string
	DetectedLanguage string
	Error            string
}

type RetentionEvent struct {
	Cutoff       time.Time
	JobsDeleted  int
	BlobsDeleted int
}
