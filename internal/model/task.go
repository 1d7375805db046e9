// Package model defines the record types synchronized between the
// on-device cache and the Ajanda backend.
//
// Mutable records (Task, Habit, HabitCompletion) carry two local-only
// sync fields: Dirty marks a change not yet confirmed by the backend,
// and LastSyncedAt records the last successful push or pull. Both are
// excluded from JSON so they never reach the wire; the local store
// persists them in dedicated columns.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is a template-derived program item assigned to a persona.
// The ID is minted locally and doubles as the remote primary key,
// so sync is keyed on plain ID equality.
type Task struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	TypeID  string `json:"type_id"`

	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	DueAt       *time.Time `json:"due_at,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	SubjectID string `json:"subject_id,omitempty"`
	TopicID   string `json:"topic_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`

	Visible  bool `json:"visible"`
	Position int  `json:"position"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Local-only sync metadata, never serialized.
	Dirty        bool       `json:"-"`
	LastSyncedAt *time.Time `json:"-"`
}

// NewTask creates a locally-owned task with a fresh UUID.
// New records start dirty so the next pass pushes them.
func NewTask(ownerID, typeID, title string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		TypeID:    typeID,
		Title:     title,
		Visible:   true,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
	}
}

// Validate checks required fields and bounds.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if t.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
}

// Touch records a local mutation: bumps UpdatedAt and marks the record
// dirty so the reconciler pushes it on the next pass.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
	t.Dirty = true
}
