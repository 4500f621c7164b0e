package models

import (
	"fmt"
	"time"
)

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	StatusBooting   SubmissionStatus = "BOOTING"
	StatusRunning   SubmissionStatus = "RUNNING"
	StatusSucceeded SubmissionStatus = "SUCCEEDED"
	StatusFailed    SubmissionStatus = "FAILED"
	StatusUnknown   SubmissionStatus = "UNKNOWN"
)

// ParseSubmissionStatus accepts the upper-case status names.
func ParseSubmissionStatus(s string) (SubmissionStatus, error) {
	switch st := SubmissionStatus(s); st {
	case StatusBooting, StatusRunning, StatusSucceeded, StatusFailed, StatusUnknown:
		return st, nil
	}
	return "", fmt.Errorf("unknown submission status %q", s)
}

// IsRunning reports whether the execution is still in progress.
func (s SubmissionStatus) IsRunning() bool {
	return s == StatusBooting || s == StatusRunning
}

// IsFinal reports whether the record is closed to further status writes.
func (s SubmissionStatus) IsFinal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Submission is one execution attempt of a job.
type Submission struct {
	ID           SubmissionID     `json:"id"`
	JobID        JobID            `json:"job_id"`
	Status       SubmissionStatus `json:"status"`
	CreationUser string           `json:"creation_user"`
	CreationDate time.Time        `json:"creation_date"`
	UpdateUser   string           `json:"update_user"`
	UpdateDate   time.Time        `json:"update_date"`
	ExternalID   string           `json:"external_id,omitempty"`
	ExternalLink string           `json:"external_link,omitempty"`
	ErrorSummary string           `json:"error_summary,omitempty"`
	ErrorDetails string           `json:"error_details,omitempty"`
}

// StatusUpdate carries the fields written by a status update.
type StatusUpdate struct {
	Status       SubmissionStatus `json:"status"`
	ExternalID   string           `json:"external_id,omitempty" validate:"column=SQ_SUBMISSION.SQS_EXTERNAL_ID"`
	ExternalLink string           `json:"external_link,omitempty" validate:"column=SQ_SUBMISSION.SQS_EXTERNAL_LINK"`
	ErrorSummary string           `json:"error_summary,omitempty"`
	ErrorDetails string           `json:"error_details,omitempty"`
	User         string           `json:"user,omitempty" validate:"column=SQ_SUBMISSION.SQS_UPDATE_USER"`
}

// CounterKey names a counter within its group.
type CounterKey struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

// Counters are the values recorded against a submission.
type Counters map[CounterKey]int64

// Nested renders the counters as group -> counter -> value.
func (c Counters) Nested() map[string]map[string]int64 {
	out := make(map[string]map[string]int64)
	for k, v := range c {
		g, ok := out[k.Group]
		if !ok {
			g = make(map[string]int64)
			out[k.Group] = g
		}
		g[k.Name] = v
	}
	return out
}

// CountersFromNested is the inverse of Nested.
func CountersFromNested(nested map[string]map[string]int64) Counters {
	out := make(Counters)
	for group, counters := range nested {
		for name, v := range counters {
			out[CounterKey{Group: group, Name: name}] = v
		}
	}
	return out
}
