package domain

import "time"

// ChecklistTask is one step of an imported PM template. Read-only during an
// execution.
type ChecklistTask struct {
	ID        string `json:"id"`
	Sequence  int    `json:"sequence"`
	Order     int    `json:"order"`
	Title     string `json:"title"`
	KeyPoints string `json:"key_points"`
	Rationale string `json:"rationale"`
	HasImage  bool   `json:"has_image"`
}

// Template is the parsed, ordered task list of an uploaded PM document.
type Template struct {
	ID          string          `json:"id"`
	PMID        string          `json:"pm_id,omitempty"`
	PMNumber    string          `json:"pm_number"`
	Name        string          `json:"name"`
	AssetCode   string          `json:"asset_code,omitempty"`
	Location    string          `json:"location,omitempty"`
	PDFFileName string          `json:"pdf_file_name,omitempty"`
	BasePDFURL  string          `json:"base_pdf_url,omitempty"`
	Tasks       []ChecklistTask `json:"tasks"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TemplateDraft is a structured task list supplied for import.
type TemplateDraft struct {
	PMNumber  string      `json:"pm_number" yaml:"pm_number"`
	Name      string      `json:"name" yaml:"name"`
	AssetCode string      `json:"asset_code" yaml:"asset_code"`
	Location  string      `json:"location" yaml:"location"`
	Tasks     []DraftTask `json:"tasks" yaml:"tasks"`
}

type DraftTask struct {
	Sequence  *int   `json:"sequence" yaml:"sequence"`
	Title     string `json:"title" yaml:"title"`
	KeyPoints string `json:"key_points" yaml:"key_points"`
	Rationale string `json:"rationale" yaml:"rationale"`
	HasImage  bool   `json:"has_image" yaml:"has_image"`
}
