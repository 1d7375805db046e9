package model

// Reference entities are pulled from the backend and never pushed.
// The backend is their sole authority, so they carry no sync metadata
// and pulls overwrite local copies unconditionally.

// TaskType classifies tasks per life domain (exam prep, nutrition,
// music, fitness, coding).
type TaskType struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

// Subject is a top-level grouping within a domain (e.g. a course).
type Subject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Color string `json:"color,omitempty"`
}

// Topic is a subdivision of a Subject.
type Topic struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
}
