package domain

import "strings"

type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusPassed  TaskStatus = "passed"
	StatusFailed  TaskStatus = "failed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPassed, StatusFailed:
		return true
	}
	return false
}

// TaskResult is the technician's record for one ChecklistTask.
type TaskResult struct {
	TaskID      string     `json:"task_id"`
	Status      TaskStatus `json:"status"`
	Comment     string     `json:"comment"`
	Flagged     bool       `json:"flagged"`
	Measurement string     `json:"measurement,omitempty"`
	Photos      []string   `json:"photos"`
}

func NewTaskResult(taskID string) TaskResult {
	return TaskResult{
		TaskID: taskID,
		Status: StatusPending,
		Photos: []string{},
	}
}

func (r TaskResult) HasComment() bool {
	return strings.TrimSpace(r.Comment) != ""
}

func (r TaskResult) HasMeasurement() bool {
	return strings.TrimSpace(r.Measurement) != ""
}

// Clone returns a copy that shares no slices with r.
func (r TaskResult) Clone() TaskResult {
	photos := make([]string, len(r.Photos))
	copy(photos, r.Photos)
	r.Photos = photos
	return r
}
