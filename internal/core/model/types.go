package model

import "time"

// Status is the lifecycle state shared by jobs and job files.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ArtifactKind classifies a rendered artifact.
// json/html are always "combined" regardless of translation presence, while
// srt/vtt/txt split into source/translated copies. Downstream naming and
// indexing rely on this exact asymmetry.
type ArtifactKind string

const (
	KindSource     ArtifactKind = "source"
	KindTranslated ArtifactKind = "translated"
	KindCombined   ArtifactKind = "combined"
	KindBundle     ArtifactKind = "bundle"
)

// Variant selects source-language or translated text when rendering.
type Variant string

const (
	VariantSource     Variant = "source"
	VariantTranslated Variant = "translated"
)

// Condition is the stable {code, message} payload recorded for warnings and
// errors so callers can branch on code without string matching.
type Condition struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobOptions is the free-form option block captured at submission time.
type JobOptions struct {
	Formats              []string `json:"formats"`
	DiarizationEnabled   bool     `json:"diarization_enabled"`
	SpeakerCount         int      `json:"speaker_count,omitempty"`
	TimestampGranularity string   `json:"timestamp_granularity,omitempty"`
	VerboseOutput        bool     `json:"verbose_output,omitempty"`
	SyncPreferred        bool     `json:"sync_preferred,omitempty"`
}

// JobResult summarizes a finished job.
type JobResult struct {
	ProcessedFiles int `json:"processed_files"`
	FailedFiles    int `json:"failed_files"`
}

// Job is one user-submitted batch transcription/translation request.
type Job struct {
	ID                 string
	Status             Status
	Provider           string
	Model              string
	SourceLanguage     string
	TargetLanguage     *string
	TranslationEnabled bool
	Options            JobOptions
	Warning            *Condition
	Error              *Condition
	Result             *JobResult
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// JobFile is one uploaded audio file within a job, tracked independently.
type JobFile struct {
	ID               string
	JobID            string
	InputName        string
	InputSource      string
	SizeBytes        int64
	StoragePath      string
	Status           Status
	DetectedLanguage *string
	Warning          *Condition
	Error            *Condition
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Artifact is one generated output file or the final bundle archive.
// Immutable once created; only the retention sweeper deletes artifacts.
type Artifact struct {
	ID          string
	JobID       string
	FileID      *string
	Format      string
	Variant     *Variant
	Name        string
	MimeType    string
	Kind        ArtifactKind
	StoragePath string
	SizeBytes   int64
	CreatedAt   time.Time
}
