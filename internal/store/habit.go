package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ajandahq/ajanda-sync/internal/model"
)

const habitColumns = `id, owner_id, subject_id, topic_id, name, description,
	frequency, weekdays, target_type, target_count, target_duration,
	color, icon, current_streak, longest_streak, total_completions,
	start_date, end_date, active, position, created_at, updated_at,
	dirty, last_synced_at`

// GetHabit retrieves a single habit by ID.
// Returns (nil, nil) when the habit does not exist.
func (s *Store) GetHabit(ctx context.Context, id string) (*model.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = ?`

	habit, err := scanHabit(s.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit %s: %w", id, err)
	}
	return habit, nil
}

// PutHabit inserts or replaces a habit by ID, overwriting all fields
// including sync metadata.
func (s *Store) PutHabit(ctx context.Context, h *model.Habit) error {
	if err := h.Validate(); err != nil {
		return fmt.Errorf("invalid habit: %w", err)
	}

	weekdaysJSON, err := marshalJSON(h.Weekdays)
	if err != nil {
		return fmt.Errorf("failed to marshal weekdays: %w", err)
	}

	query := `
	INSERT INTO habits (
		id, owner_id, subject_id, topic_id, name, description,
		frequency, weekdays, target_type, target_count, target_duration,
		color, icon, current_streak, longest_streak, total_completions,
		start_date, end_date, active, position, created_at, updated_at,
		dirty, last_synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		subject_id = excluded.subject_id,
		topic_id = excluded.topic_id,
		name = excluded.name,
		description = excluded.description,
		frequency = excluded.frequency,
		weekdays = excluded.weekdays,
		target_type = excluded.target_type,
		target_count = excluded.target_count,
		target_duration = excluded.target_duration,
		color = excluded.color,
		icon = excluded.icon,
		current_streak = excluded.current_streak,
		longest_streak = excluded.longest_streak,
		total_completions = excluded.total_completions,
		start_date = excluded.start_date,
		end_date = excluded.end_date,
		active = excluded.active,
		position = excluded.position,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		dirty = excluded.dirty,
		last_synced_at = excluded.last_synced_at
	`

	_, err = s.conn.ExecContext(ctx, query,
		h.ID,
		h.OwnerID,
		h.SubjectID,
		h.TopicID,
		h.Name,
		h.Description,
		string(h.Frequency),
		weekdaysJSON,
		h.TargetType,
		h.TargetCount,
		h.TargetDuration,
		h.Color,
		h.Icon,
		h.CurrentStreak,
		h.LongestStreak,
		h.TotalCompletions,
		h.StartDate,
		stringToNullString(h.EndDate),
		boolToInt(h.Active),
		h.Position,
		h.CreatedAt.Format(time.RFC3339),
		h.UpdatedAt.Format(time.RFC3339),
		boolToInt(h.Dirty),
		timeToNullString(h.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put habit %s: %w", h.ID, err)
	}

	return nil
}

// HabitPatch holds a partial habit update. Nil fields are left untouched.
type HabitPatch struct {
	Name             *string
	Description      *string
	Frequency        *model.Frequency
	Weekdays         []int
	TargetType       *string
	TargetCount      *int
	TargetDuration   *int
	Color            *string
	Icon             *string
	CurrentStreak    *int
	LongestStreak    *int
	TotalCompletions *int
	EndDate          *string
	Active           *bool
	Position         *int
}

// UpdateHabit merges the patch into an existing habit, marking it dirty
// and bumping updated_at. A missing row is a silent no-op.
func (s *Store) UpdateHabit(ctx context.Context, id string, patch HabitPatch) error {
	var sets []string
	var args []interface{}

	add := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Frequency != nil {
		if !patch.Frequency.Valid() {
			return fmt.Errorf("invalid frequency %q", *patch.Frequency)
		}
		add("frequency", string(*patch.Frequency))
	}
	if patch.Weekdays != nil {
		weekdaysJSON, err := marshalJSON(patch.Weekdays)
		if err != nil {
			return fmt.Errorf("failed to marshal weekdays: %w", err)
		}
		add("weekdays", weekdaysJSON)
	}
	if patch.TargetType != nil {
		add("target_type", *patch.TargetType)
	}
	if patch.TargetCount != nil {
		add("target_count", *patch.TargetCount)
	}
	if patch.TargetDuration != nil {
		add("target_duration", *patch.TargetDuration)
	}
	if patch.Color != nil {
		add("color", *patch.Color)
	}
	if patch.Icon != nil {
		add("icon", *patch.Icon)
	}
	if patch.CurrentStreak != nil {
		add("current_streak", *patch.CurrentStreak)
	}
	if patch.LongestStreak != nil {
		add("longest_streak", *patch.LongestStreak)
	}
	if patch.TotalCompletions != nil {
		add("total_completions", *patch.TotalCompletions)
	}
	if patch.EndDate != nil {
		add("end_date", *patch.EndDate)
	}
	if patch.Active != nil {
		add("active", boolToInt(*patch.Active))
	}
	if patch.Position != nil {
		add("position", *patch.Position)
	}

	if len(sets) == 0 {
		return nil
	}

	add("dirty", 1)
	add("updated_at", time.Now().UTC().Format(time.RFC3339))

	query := `UPDATE habits SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)

	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update habit %s: %w", id, err)
	}
	return nil
}

// DirtyHabits returns all habits with pending local changes.
func (s *Store) DirtyHabits(ctx context.Context) ([]*model.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE dirty = 1`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty habits: %w", err)
	}
	defer rows.Close()

	return scanHabits(rows)
}

// HabitsByOwner returns all habits belonging to the given owner.
func (s *Store) HabitsByOwner(ctx context.Context, ownerID string) ([]*model.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE owner_id = ? ORDER BY position ASC, created_at ASC`

	rows, err := s.conn.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	return scanHabits(rows)
}

// MarkHabitSynced clears the dirty flag and stamps last_synced_at in a
// single statement.
func (s *Store) MarkHabitSynced(ctx context.Context, id string, syncedAt time.Time) error {
	query := `UPDATE habits SET dirty = 0, last_synced_at = ? WHERE id = ?`
	if _, err := s.conn.ExecContext(ctx, query, syncedAt.Format(time.RFC3339), id); err != nil {
		return fmt.Errorf("failed to mark habit %s synced: %w", id, err)
	}
	return nil
}

// HabitCount returns the total number of habits in the cache.
func (s *Store) HabitCount(ctx context.Context) (int, error) {
	return s.count(ctx, "habits", false)
}

// DirtyHabitCount returns the number of habits with pending changes.
func (s *Store) DirtyHabitCount(ctx context.Context) (int, error) {
	return s.count(ctx, "habits", true)
}

func scanHabit(row rowScanner) (*model.Habit, error) {
	var h model.Habit
	var weekdaysJSON string
	var createdAt, updatedAt string
	var endDate, lastSyncedAt sql.NullString
	var active, dirty int

	err := row.Scan(
		&h.ID,
		&h.OwnerID,
		&h.SubjectID,
		&h.TopicID,
		&h.Name,
		&h.Description,
		&h.Frequency,
		&weekdaysJSON,
		&h.TargetType,
		&h.TargetCount,
		&h.TargetDuration,
		&h.Color,
		&h.Icon,
		&h.CurrentStreak,
		&h.LongestStreak,
		&h.TotalCompletions,
		&h.StartDate,
		&endDate,
		&active,
		&h.Position,
		&createdAt,
		&updatedAt,
		&dirty,
		&lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		h.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		h.UpdatedAt = ts
	}

	if weekdaysJSON != "" && weekdaysJSON != "null" {
		if err := json.Unmarshal([]byte(weekdaysJSON), &h.Weekdays); err != nil {
			return nil, fmt.Errorf("failed to unmarshal weekdays: %w", err)
		}
	}

	h.EndDate = nullStringToString(endDate)
	h.LastSyncedAt = nullStringToTime(lastSyncedAt)
	h.Active = active != 0
	h.Dirty = dirty != 0

	return &h, nil
}

func scanHabits(rows *sql.Rows) ([]*model.Habit, error) {
	var habits []*model.Habit

	for rows.Next() {
		habit, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, habit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating habits: %w", err)
	}

	return habits, nil
}
