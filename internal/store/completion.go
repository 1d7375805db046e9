package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ajandahq/ajanda-sync/internal/model"
)

const completionColumns = `id, habit_id, owner_id, completed_at, completed_on,
	count, duration, notes, dirty, last_synced_at`

// GetHabitCompletion retrieves a single completion by ID.
// Returns (nil, nil) when the completion does not exist.
func (s *Store) GetHabitCompletion(ctx context.Context, id string) (*model.HabitCompletion, error) {
	query := `SELECT ` + completionColumns + ` FROM habit_completions WHERE id = ?`

	c, err := scanCompletion(s.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get completion %s: %w", id, err)
	}
	return c, nil
}

// PutHabitCompletion inserts or replaces a completion by ID.
func (s *Store) PutHabitCompletion(ctx context.Context, c *model.HabitCompletion) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid completion: %w", err)
	}

	query := `
	INSERT INTO habit_completions (
		id, habit_id, owner_id, completed_at, completed_on,
		count, duration, notes, dirty, last_synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		habit_id = excluded.habit_id,
		owner_id = excluded.owner_id,
		completed_at = excluded.completed_at,
		completed_on = excluded.completed_on,
		count = excluded.count,
		duration = excluded.duration,
		notes = excluded.notes,
		dirty = excluded.dirty,
		last_synced_at = excluded.last_synced_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		c.ID,
		c.HabitID,
		c.OwnerID,
		c.CompletedAt.Format(time.RFC3339),
		c.CompletedOn,
		c.Count,
		c.Duration,
		c.Notes,
		boolToInt(c.Dirty),
		timeToNullString(c.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put completion %s: %w", c.ID, err)
	}

	return nil
}

// DirtyHabitCompletions returns all completions with pending local changes.
func (s *Store) DirtyHabitCompletions(ctx context.Context) ([]*model.HabitCompletion, error) {
	query := `SELECT ` + completionColumns + ` FROM habit_completions WHERE dirty = 1`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty completions: %w", err)
	}
	defer rows.Close()

	return scanCompletions(rows)
}

// HabitCompletionsByOwner returns all completions belonging to the given owner.
func (s *Store) HabitCompletionsByOwner(ctx context.Context, ownerID string) ([]*model.HabitCompletion, error) {
	query := `SELECT ` + completionColumns + ` FROM habit_completions WHERE owner_id = ? ORDER BY completed_at ASC`

	rows, err := s.conn.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	return scanCompletions(rows)
}

// MarkHabitCompletionSynced clears the dirty flag and stamps
// last_synced_at in a single statement.
func (s *Store) MarkHabitCompletionSynced(ctx context.Context, id string, syncedAt time.Time) error {
	query := `UPDATE habit_completions SET dirty = 0, last_synced_at = ? WHERE id = ?`
	if _, err := s.conn.ExecContext(ctx, query, syncedAt.Format(time.RFC3339), id); err != nil {
		return fmt.Errorf("failed to mark completion %s synced: %w", id, err)
	}
	return nil
}

// HabitCompletionCount returns the total number of completions in the cache.
func (s *Store) HabitCompletionCount(ctx context.Context) (int, error) {
	return s.count(ctx, "habit_completions", false)
}

// DirtyHabitCompletionCount returns the number of completions with
// pending changes.
func (s *Store) DirtyHabitCompletionCount(ctx context.Context) (int, error) {
	return s.count(ctx, "habit_completions", true)
}

func scanCompletion(row rowScanner) (*model.HabitCompletion, error) {
	var c model.HabitCompletion
	var completedAt string
	var lastSyncedAt sql.NullString
	var dirty int

	err := row.Scan(
		&c.ID,
		&c.HabitID,
		&c.OwnerID,
		&completedAt,
		&c.CompletedOn,
		&c.Count,
		&c.Duration,
		&c.Notes,
		&dirty,
		&lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	if ts, err := time.Parse(time.RFC3339, completedAt); err == nil {
		c.CompletedAt = ts
	}

	c.LastSyncedAt = nullStringToTime(lastSyncedAt)
	c.Dirty = dirty != 0

	return &c, nil
}

func scanCompletions(rows *sql.Rows) ([]*model.HabitCompletion, error) {
	var completions []*model.HabitCompletion

	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		completions = append(completions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completions: %w", err)
	}

	return completions, nil
}
