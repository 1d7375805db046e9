// Package reconciler runs the push-then-pull synchronization pass that
// merges the on-device cache with the Ajanda backend.
package reconciler

import (
	"context"
	"time"

	"github.com/ajandahq/ajanda-sync/internal/model"
)

// Remote is the backend surface the reconciler consumes. The production
// implementation is *remote.Client; tests substitute a fake that
// records call order and injects failures.
type Remote interface {
	// UpsertTask inserts or replaces a task row, keyed by id.
	// Must be idempotent: pushing the same record twice replaces,
	// never duplicates.
	UpsertTask(ctx context.Context, t *model.Task) error

	// UpsertHabit inserts or replaces a habit row, keyed by id.
	UpsertHabit(ctx context.Context, h *model.Habit) error

	// UpsertHabitCompletion inserts or replaces a completion row,
	// keyed by id.
	UpsertHabitCompletion(ctx context.Context, c *model.HabitCompletion) error

	// ListTasksByOwner returns the owner's complete current task
	// snapshot. No delta fetch.
	ListTasksByOwner(ctx context.Context, ownerID string) ([]*model.Task, error)

	// ListHabitsByOwner returns the owner's complete habit snapshot.
	ListHabitsByOwner(ctx context.Context, ownerID string) ([]*model.Habit, error)

	// ListHabitCompletionsByOwner returns the owner's complete
	// completion snapshot.
	ListHabitCompletionsByOwner(ctx context.Context, ownerID string) ([]*model.HabitCompletion, error)

	// ListTaskTypes returns the entire task_types reference table.
	ListTaskTypes(ctx context.Context) ([]*model.TaskType, error)

	// ListSubjects returns the entire subjects reference table.
	ListSubjects(ctx context.Context) ([]*model.Subject, error)

	// ListTopics returns the entire topics reference table.
	ListTopics(ctx context.Context) ([]*model.Topic, error)
}

// EventSink receives reconciliation progress events. Implementations
// must not block; the dashboard adapter forwards to a buffered channel.
type EventSink interface {
	SyncStarted(ownerID string)
	RecordPushed(collection, id string)
	PushFailed(collection, id string, err error)
	SyncCompleted(ownerID string, stats *Stats, took time.Duration)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) SyncStarted(string)                    {}
func (NopSink) RecordPushed(string, string)           {}
func (NopSink) PushFailed(string, string, error)      {}
func (NopSink) SyncCompleted(string, *Stats, time.Duration) {}

// CollectionStats counts the outcome of one collection's sub-sync.
type CollectionStats struct {
	Pushed       int `json:"pushed"`
	PushFailed   int `json:"push_failed"`
	Pulled       int `json:"pulled"`
	SkippedDirty int `json:"skipped_dirty"`
}

// Stats summarizes one reconciliation pass.
type Stats struct {
	Tasks       CollectionStats `json:"tasks"`
	Habits      CollectionStats `json:"habits"`
	Completions CollectionStats `json:"completions"`

	// ReferenceRows is the total number of reference rows replaced.
	ReferenceRows int `json:"reference_rows"`

	// SubSyncErrors counts sub-syncs that failed outright (e.g. a
	// pull that could not list the remote snapshot).
	SubSyncErrors int `json:"sub_sync_errors"`
}
