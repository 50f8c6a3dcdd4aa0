package domain

import "time"

type ReportStatus string

const (
	ReportNone    ReportStatus = ""
	ReportStored  ReportStatus = "stored"
	ReportPending ReportStatus = "pending"
)

// Team identifies who ran a PM and who reviews it. Names are opaque strings.
type Team struct {
	Technician1 string `json:"technician1"`
	Technician2 string `json:"technician2,omitempty"`
	Reviewer    string `json:"reviewer"`
}

// Execution is one completed run of a template. It is never mutated after
// creation except to attach the report location.
type Execution struct {
	ID           string       `json:"id"`
	TemplateID   string       `json:"template_id"`
	PMID         string       `json:"pm_id,omitempty"`
	Team         Team         `json:"team"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	DurationMs   int64        `json:"duration_ms"`
	Results      []TaskResult `json:"results"`
	ReportURL    string       `json:"report_url,omitempty"`
	ReportStatus ReportStatus `json:"report_status,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// DurationMinutes is the duration floored to whole minutes.
func (e Execution) DurationMinutes() int64 {
	if e.DurationMs <= 0 {
		return 0
	}
	return e.DurationMs / 60000
}

func (e Execution) Tally() Tally {
	return TallyResults(e.Results)
}

type Tally struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
	Flagged int `json:"flagged"`
}

func TallyResults(results []TaskResult) Tally {
	t := Tally{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			t.Passed++
		case StatusFailed:
			t.Failed++
		default:
			t.Pending++
		}
		if r.Flagged {
			t.Flagged++
		}
	}
	return t
}
