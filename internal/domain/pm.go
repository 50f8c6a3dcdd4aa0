package domain

import (
	"strings"
	"time"
)

type PMStatus string

const (
	PMOpen      PMStatus = "open"
	PMCompleted PMStatus = "completed"
	PMClosed    PMStatus = "closed"
)

func ParsePMStatus(raw string) (PMStatus, bool) {
	s := PMStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case PMOpen, PMCompleted, PMClosed:
		return s, true
	}
	return "", false
}

// PM is an uploaded checklist document registered by an administrator.
type PM struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	BlobURL    string    `json:"blob_url"`
	UploadedBy string    `json:"uploaded_by"`
	GLOwner    string    `json:"gl_owner"`
	PMType     string    `json:"pm_type"`
	Status     PMStatus  `json:"status"`
	Active     bool      `json:"active"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// PMOverview joins a PM with its template and latest execution for listings.
type PMOverview struct {
	PM
	TemplateID      string     `json:"template_id,omitempty"`
	PMNumber        string     `json:"pm_number,omitempty"`
	PMName          string     `json:"pm_name,omitempty"`
	AssetCode       string     `json:"asset_code,omitempty"`
	Location        string     `json:"location,omitempty"`
	LastExecutionID string     `json:"last_execution_id,omitempty"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
	ReportURL       string     `json:"report_url,omitempty"`
}

// PMFilter selects PMs for a listing. Owner matches exactly, ignoring case.
type PMFilter struct {
	Owner           string
	Statuses        []PMStatus
	IncludeInactive bool
}

// RegisterPMRequest describes one uploaded document.
type RegisterPMRequest struct {
	FileName   string
	BlobURL    string
	UploadedBy string
	GLOwner    string
	PMType     string
}
