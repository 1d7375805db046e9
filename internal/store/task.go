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

const taskColumns = `id, owner_id, type_id, title, description, metadata,
	due_at, completed, completed_at, subject_id, topic_id, project_id,
	parent_id, visible, position, created_at, updated_at, dirty, last_synced_at`

// GetTask retrieves a single task by ID.
// Returns (nil, nil) when the task does not exist.
func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := scanTask(s.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return task, nil
}

// PutTask inserts or replaces a task by ID, overwriting all fields
// including sync metadata.
func (s *Store) PutTask(ctx context.Context, t *model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	metaJSON, err := marshalJSON(t.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
	INSERT INTO tasks (
		id, owner_id, type_id, title, description, metadata,
		due_at, completed, completed_at, subject_id, topic_id, project_id,
		parent_id, visible, position, created_at, updated_at, dirty, last_synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		type_id = excluded.type_id,
		title = excluded.title,
		description = excluded.description,
		metadata = excluded.metadata,
		due_at = excluded.due_at,
		completed = excluded.completed,
		completed_at = excluded.completed_at,
		subject_id = excluded.subject_id,
		topic_id = excluded.topic_id,
		project_id = excluded.project_id,
		parent_id = excluded.parent_id,
		visible = excluded.visible,
		position = excluded.position,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		dirty = excluded.dirty,
		last_synced_at = excluded.last_synced_at
	`

	_, err = s.conn.ExecContext(ctx, query,
		t.ID,
		t.OwnerID,
		t.TypeID,
		t.Title,
		t.Description,
		metaJSON,
		timeToNullString(t.DueAt),
		boolToInt(t.Completed),
		timeToNullString(t.CompletedAt),
		t.SubjectID,
		t.TopicID,
		t.ProjectID,
		t.ParentID,
		boolToInt(t.Visible),
		t.Position,
		t.CreatedAt.Format(time.RFC3339),
		t.UpdatedAt.Format(time.RFC3339),
		boolToInt(t.Dirty),
		timeToNullString(t.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put task %s: %w", t.ID, err)
	}

	return nil
}

// TaskPatch holds a partial task update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Metadata    map[string]any
	DueAt       *time.Time
	Completed   *bool
	CompletedAt *time.Time
	SubjectID   *string
	TopicID     *string
	ProjectID   *string
	Visible     *bool
	Position    *int
}

// UpdateTask merges the patch into an existing task, marking it dirty
// and bumping updated_at. A missing row is a silent no-op.
func (s *Store) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	var sets []string
	var args []interface{}

	add := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Metadata != nil {
		metaJSON, err := marshalJSON(patch.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		add("metadata", metaJSON)
	}
	if patch.DueAt != nil {
		add("due_at", patch.DueAt.Format(time.RFC3339))
	}
	if patch.Completed != nil {
		add("completed", boolToInt(*patch.Completed))
	}
	if patch.CompletedAt != nil {
		add("completed_at", patch.CompletedAt.Format(time.RFC3339))
	}
	if patch.SubjectID != nil {
		add("subject_id", *patch.SubjectID)
	}
	if patch.TopicID != nil {
		add("topic_id", *patch.TopicID)
	}
	if patch.ProjectID != nil {
		add("project_id", *patch.ProjectID)
	}
	if patch.Visible != nil {
		add("visible", boolToInt(*patch.Visible))
	}
	if patch.Position != nil {
		add("position", *patch.Position)
	}

	if len(sets) == 0 {
		return nil
	}

	// Local mutations always re-dirty the row.
	add("dirty", 1)
	add("updated_at", time.Now().UTC().Format(time.RFC3339))

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)

	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return nil
}

// DirtyTasks returns all tasks with pending local changes.
// Order is unspecified.
func (s *Store) DirtyTasks(ctx context.Context) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE dirty = 1`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// TasksByOwner returns all tasks belonging to the given owner.
func (s *Store) TasksByOwner(ctx context.Context, ownerID string) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ? ORDER BY position ASC, created_at ASC`

	rows, err := s.conn.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// MarkTaskSynced clears the dirty flag and stamps last_synced_at in a
// single statement, so there is no window where a pushed row still
// reads as dirty.
func (s *Store) MarkTaskSynced(ctx context.Context, id string, syncedAt time.Time) error {
	query := `UPDATE tasks SET dirty = 0, last_synced_at = ? WHERE id = ?`
	if _, err := s.conn.ExecContext(ctx, query, syncedAt.Format(time.RFC3339), id); err != nil {
		return fmt.Errorf("failed to mark task %s synced: %w", id, err)
	}
	return nil
}

// DeleteTask removes a task from the local cache. The deletion is not
// propagated to the backend.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// TaskCount returns the total number of tasks in the cache.
func (s *Store) TaskCount(ctx context.Context) (int, error) {
	return s.count(ctx, "tasks", false)
}

// DirtyTaskCount returns the number of tasks with pending changes.
func (s *Store) DirtyTaskCount(ctx context.Context) (int, error) {
	return s.count(ctx, "tasks", true)
}

func (s *Store) count(ctx context.Context, table string, dirtyOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM " + table
	if dirtyOnly {
		query += " WHERE dirty = 1"
	}
	var count int
	if err := s.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var t model.Task
	var metaJSON string
	var createdAt, updatedAt string
	var dueAt, completedAt, lastSyncedAt sql.NullString
	var completed, visible, dirty int

	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.TypeID,
		&t.Title,
		&t.Description,
		&metaJSON,
		&dueAt,
		&completed,
		&completedAt,
		&t.SubjectID,
		&t.TopicID,
		&t.ProjectID,
		&t.ParentID,
		&visible,
		&t.Position,
		&createdAt,
		&updatedAt,
		&dirty,
		&lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		t.UpdatedAt = ts
	}

	if metaJSON != "" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	t.DueAt = nullStringToTime(dueAt)
	t.CompletedAt = nullStringToTime(completedAt)
	t.LastSyncedAt = nullStringToTime(lastSyncedAt)
	t.Completed = completed != 0
	t.Visible = visible != 0
	t.Dirty = dirty != 0

	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*model.Task, error) {
	var tasks []*model.Task

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
