package domain

import "time"

type EventType string

const (
	EventExecutionCompleted EventType = "execution.completed"
	EventPMStatusChanged    EventType = "pm.status_changed"
	EventReportPending      EventType = "report.pending"
)

// Event is published to the message bus after a state change.
type Event struct {
	Type        EventType `json:"type"`
	PMID        string    `json:"pm_id,omitempty"`
	ExecutionID string    `json:"execution_id,omitempty"`
	Status      PMStatus  `json:"status,omitempty"`
	ReportURL   string    `json:"report_url,omitempty"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e Event) Key() string {
	if e.ExecutionID != "" {
		return e.ExecutionID
	}
	return e.PMID
}
