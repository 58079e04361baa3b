// Package notify delivers finished submissions to a webhook as CloudEvents.
package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/iMokhles/candidate-pdf-uploader/internal/pipeline"
)

// Event types
const (
	TypeCompleted = "uploader.submission.completed"
	TypeFailed    = "uploader.submission.failed"
)

// Source identifies this service in event payloads.
const Source = "candidate-uploader/pipeline"

// CloudEvent is a CloudEvents 1.0 structured-mode event.
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data"`
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(eventType, subject string, data map[string]any) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          Source,
		Subject:         subject,
		ID:              uuid.NewString(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// FromReport builds the event describing a finished run. The subject is the submission ID.
func FromReport(r *pipeline.Report) *CloudEvent {
	data := map[string]any{
		"submissionId": r.ID,
		"name":         r.Name,
		"success":      r.State == pipeline.StateDone,
		"durationMs":   r.Duration.Milliseconds(),
	}
	if r.ArtifactID != "" {
		data["artifactId"] = r.ArtifactID
	}
	if r.Link != "" {
		data["link"] = r.Link
	}

	eventType := TypeCompleted
	if r.State != pipeline.StateDone {
		eventType = TypeFailed
		data["failedStage"] = string(r.FailedStage)
		if r.Err != nil {
			data["error"] = r.Err.Error()
		}
	}
	return NewEvent(eventType, r.ID, data)
}
