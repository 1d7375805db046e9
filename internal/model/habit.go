package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Frequency enumerates habit recurrence patterns.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Habit is a recurring practice tracked for a persona (study sessions,
// meal logging, instrument practice). Streak counters are maintained by
// the application layer; the sync engine treats them as plain fields.
type Habit struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	SubjectID string `json:"subject_id,omitempty"`
	TopicID   string `json:"topic_id,omitempty"`

	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Frequency   Frequency `json:"frequency"`
	// Weekdays is an explicit weekday set (0=Sunday..6=Saturday) for
	// weekly habits that do not run every day of their period.
	Weekdays []int `json:"weekdays,omitempty"`

	TargetType     string `json:"target_type,omitempty"` // count, duration
	TargetCount    int    `json:"target_count,omitempty"`
	TargetDuration int    `json:"target_duration,omitempty"` // minutes

	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`

	CurrentStreak    int `json:"current_streak"`
	LongestStreak    int `json:"longest_streak"`
	TotalCompletions int `json:"total_completions"`

	StartDate string  `json:"start_date"` // YYYY-MM-DD
	EndDate   *string `json:"end_date,omitempty"`

	Active   bool `json:"active"`
	Position int  `json:"position"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Dirty        bool       `json:"-"`
	LastSyncedAt *time.Time `json:"-"`
}

// NewHabit creates a locally-owned habit with a fresh UUID, starting dirty.
func NewHabit(ownerID, name string, freq Frequency) *Habit {
	now := time.Now().UTC()
	return &Habit{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Frequency: freq,
		StartDate: now.Format("2006-01-02"),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
	}
}

// Validate checks required fields and bounds.
func (h *Habit) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("id is required")
	}
	if h.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if h.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !h.Frequency.Valid() {
		return fmt.Errorf("invalid frequency %q", h.Frequency)
	}
	for _, d := range h.Weekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("weekday must be between 0 and 6 (got %d)", d)
		}
	}
	if h.StartDate == "" {
		return fmt.Errorf("start_date is required")
	}
	return nil
}

// Touch records a local mutation.
func (h *Habit) Touch() {
	h.UpdatedAt = time.Now().UTC()
	h.Dirty = true
}

// HabitCompletion records one check-in against a habit. CompletedOn is
// the calendar date derived from CompletedAt, kept denormalized so the
// backend can group by day without timezone math.
type HabitCompletion struct {
	ID      string `json:"id"`
	HabitID string `json:"habit_id"`
	OwnerID string `json:"owner_id"`

	CompletedAt time.Time `json:"completed_at"`
	CompletedOn string    `json:"completed_on"` // YYYY-MM-DD

	Count    int    `json:"count"`
	Duration int    `json:"duration,omitempty"` // minutes
	Notes    string `json:"notes,omitempty"`

	Dirty        bool       `json:"-"`
	LastSyncedAt *time.Time `json:"-"`
}

// NewHabitCompletion creates a completion for the given habit, starting dirty.
func NewHabitCompletion(ownerID, habitID string, at time.Time) *HabitCompletion {
	return &HabitCompletion{
		ID:          uuid.NewString(),
		HabitID:     habitID,
		OwnerID:     ownerID,
		CompletedAt: at,
		CompletedOn: at.Format("2006-01-02"),
		Count:       1,
		Dirty:       true,
	}
}

// Validate checks required fields.
func (c *HabitCompletion) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.HabitID == "" {
		return fmt.Errorf("habit_id is required")
	}
	if c.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if c.CompletedAt.IsZero() {
		return fmt.Errorf("completed_at is required")
	}
	if c.Count < 1 {
		return fmt.Errorf("count must be at least 1 (got %d)", c.Count)
	}
	return nil
}
