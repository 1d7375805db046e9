package reconciler

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ajandahq/ajanda-sync/internal/store"
)

// Reconciler runs one full synchronization pass for an owner identity:
// reference data first, then tasks, habits and habit completions, each
// as push-then-pull. The dirty flag is the sole merge-direction
// authority: dirty rows are pushed and are never overwritten by pulls.
//
// Passes for the same owner are collapsed through singleflight, so a
// timer firing while an online-transition pass is in flight shares that
// pass instead of racing it on the dirty-flag clear-and-read sequence.
type Reconciler struct {
	store  *store.Store
	remote Remote
	events EventSink
	logger *log.Logger

	group singleflight.Group
}

// New creates a Reconciler. The store must be opened and have its
// schema initialized. If events is nil, events are discarded; if logger
// is nil, a default logger writing to stderr is used.
func New(st *store.Store, rem Remote, events EventSink, logger *log.Logger) *Reconciler {
	if events == nil {
		events = NopSink{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Reconciler{
		store:  st,
		remote: rem,
		events: events,
		logger: logger,
	}
}

// Run executes one reconciliation pass for the given owner.
//
// A failure in any one sub-sync is logged and counted but does not
// prevent subsequent sub-syncs from running; the protocol is
// best-effort and converges across repeated passes. Run returns an
// error only when it cannot start at all (empty owner id).
//
// Concurrent calls for the same owner share a single in-flight pass.
func (r *Reconciler) Run(ctx context.Context, ownerID string) (*Stats, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id cannot be empty")
	}

	v, err, _ := r.group.Do(ownerID, func() (interface{}, error) {
		return r.runPass(ctx, ownerID), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Stats), nil
}

func (r *Reconciler) runPass(ctx context.Context, ownerID string) *Stats {
	start := time.Now()
	stats := &Stats{}

	r.logger.Printf("Starting sync pass for owner %s", ownerID)
	r.events.SyncStarted(ownerID)

	// Reference data first so foreign-key-like references resolve
	// when the app joins immediately after the pass.
	if err := r.syncReferences(ctx, stats); err != nil {
		stats.SubSyncErrors++
		r.logger.Printf("WARNING: reference sync failed: %v", err)
	}

	if err := r.syncTasks(ctx, ownerID, stats); err != nil {
		stats.SubSyncErrors++
		r.logger.Printf("WARNING: task sync failed: %v", err)
	}

	if err := r.syncHabits(ctx, ownerID, stats); err != nil {
		stats.SubSyncErrors++
		r.logger.Printf("WARNING: habit sync failed: %v", err)
	}

	// Completions are conceptually owned by habits; never before them.
	if err := r.syncHabitCompletions(ctx, ownerID, stats); err != nil {
		stats.SubSyncErrors++
		r.logger.Printf("WARNING: habit completion sync failed: %v", err)
	}

	took := time.Since(start)
	r.logger.Printf("Sync pass complete for owner %s in %v: tasks=%+v habits=%+v completions=%+v refs=%d errors=%d",
		ownerID, took.Round(time.Millisecond),
		stats.Tasks, stats.Habits, stats.Completions,
		stats.ReferenceRows, stats.SubSyncErrors)
	r.events.SyncCompleted(ownerID, stats, took)

	return stats
}

// syncReferences pulls all reference collections unconditionally and
// overwrites the local copies. Reference rows have no dirty state; the
// backend is their sole authority.
func (r *Reconciler) syncReferences(ctx context.Context, stats *Stats) error {
	types, err := r.remote.ListTaskTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to pull task types: %w", err)
	}
	if err := r.store.ReplaceTaskTypes(ctx, types); err != nil {
		return fmt.Errorf("failed to replace task types: %w", err)
	}
	stats.ReferenceRows += len(types)

	subjects, err := r.remote.ListSubjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to pull subjects: %w", err)
	}
	if err := r.store.ReplaceSubjects(ctx, subjects); err != nil {
		return fmt.Errorf("failed to replace subjects: %w", err)
	}
	stats.ReferenceRows += len(subjects)

	topics, err := r.remote.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("failed to pull topics: %w", err)
	}
	if err := r.store.ReplaceTopics(ctx, topics); err != nil {
		return fmt.Errorf("failed to replace topics: %w", err)
	}
	stats.ReferenceRows += len(topics)

	return nil
}

// syncTasks pushes dirty tasks, then pulls the owner's remote snapshot.
func (r *Reconciler) syncTasks(ctx context.Context, ownerID string, stats *Stats) error {
	// Push phase: iterate the dirty snapshot sequentially. Individual
	// failures leave the record dirty for the next pass.
	dirty, err := r.store.DirtyTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to read dirty tasks: %w", err)
	}

	for _, t := range dirty {
		if err := r.remote.UpsertTask(ctx, t); err != nil {
			stats.Tasks.PushFailed++
			r.events.PushFailed("tasks", t.ID, err)
			r.logger.Printf("WARNING: failed to push task %s: %v", t.ID, err)
			continue
		}
		if err := r.store.MarkTaskSynced(ctx, t.ID, time.Now().UTC()); err != nil {
			r.logger.Printf("WARNING: failed to clear dirty flag on task %s: %v", t.ID, err)
			continue
		}
		stats.Tasks.Pushed++
		r.events.RecordPushed("tasks", t.ID)
	}

	// Pull phase: remote wins only where local has no pending change.
	remoteTasks, err := r.remote.ListTasksByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to pull tasks: %w", err)
	}

	now := time.Now().UTC()
	for _, rt := range remoteTasks {
		local, err := r.store.GetTask(ctx, rt.ID)
		if err != nil {
			r.logger.Printf("WARNING: failed to read local task %s: %v", rt.ID, err)
			continue
		}
		if local != nil && local.Dirty {
			stats.Tasks.SkippedDirty++
			continue
		}

		rt.Dirty = false
		rt.LastSyncedAt = &now
		if err := r.store.PutTask(ctx, rt); err != nil {
			r.logger.Printf("WARNING: failed to store pulled task %s: %v", rt.ID, err)
			continue
		}
		stats.Tasks.Pulled++
	}

	return nil
}

// syncHabits pushes dirty habits, then pulls the owner's remote snapshot.
func (r *Reconciler) syncHabits(ctx context.Context, ownerID string, stats *Stats) error {
	dirty, err := r.store.DirtyHabits(ctx)
	if err != nil {
		return fmt.Errorf("failed to read dirty habits: %w", err)
	}

	for _, h := range dirty {
		if err := r.remote.UpsertHabit(ctx, h); err != nil {
			stats.Habits.PushFailed++
			r.events.PushFailed("habits", h.ID, err)
			r.logger.Printf("WARNING: failed to push habit %s: %v", h.ID, err)
			continue
		}
		if err := r.store.MarkHabitSynced(ctx, h.ID, time.Now().UTC()); err != nil {
			r.logger.Printf("WARNING: failed to clear dirty flag on habit %s: %v", h.ID, err)
			continue
		}
		stats.Habits.Pushed++
		r.events.RecordPushed("habits", h.ID)
	}

	remoteHabits, err := r.remote.ListHabitsByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to pull habits: %w", err)
	}

	now := time.Now().UTC()
	for _, rh := range remoteHabits {
		local, err := r.store.GetHabit(ctx, rh.ID)
		if err != nil {
			r.logger.Printf("WARNING: failed to read local habit %s: %v", rh.ID, err)
			continue
		}
		if local != nil && local.Dirty {
			stats.Habits.SkippedDirty++
			continue
		}

		rh.Dirty = false
		rh.LastSyncedAt = &now
		if err := r.store.PutHabit(ctx, rh); err != nil {
			r.logger.Printf("WARNING: failed to store pulled habit %s: %v", rh.ID, err)
			continue
		}
		stats.Habits.Pulled++
	}

	return nil
}

// syncHabitCompletions pushes dirty completions, then pulls the owner's
// remote snapshot. Runs after habit sync.
func (r *Reconciler) syncHabitCompletions(ctx context.Context, ownerID string, stats *Stats) error {
	dirty, err := r.store.DirtyHabitCompletions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read dirty completions: %w", err)
	}

	for _, c := range dirty {
		if err := r.remote.UpsertHabitCompletion(ctx, c); err != nil {
			stats.Completions.PushFailed++
			r.events.PushFailed("habit_completions", c.ID, err)
			r.logger.Printf("WARNING: failed to push completion %s: %v", c.ID, err)
			continue
		}
		if err := r.store.MarkHabitCompletionSynced(ctx, c.ID, time.Now().UTC()); err != nil {
			r.logger.Printf("WARNING: failed to clear dirty flag on completion %s: %v", c.ID, err)
			continue
		}
		stats.Completions.Pushed++
		r.events.RecordPushed("habit_completions", c.ID)
	}

	remoteCompletions, err := r.remote.ListHabitCompletionsByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to pull completions: %w", err)
	}

	now := time.Now().UTC()
	for _, rc := range remoteCompletions {
		local, err := r.store.GetHabitCompletion(ctx, rc.ID)
		if err != nil {
			r.logger.Printf("WARNING: failed to read local completion %s: %v", rc.ID, err)
			continue
		}
		if local != nil && local.Dirty {
			stats.Completions.SkippedDirty++
			continue
		}

		rc.Dirty = false
		rc.LastSyncedAt = &now
		if err := r.store.PutHabitCompletion(ctx, rc); err != nil {
			r.logger.Printf("WARNING: failed to store pulled completion %s: %v", rc.ID, err)
			continue
		}
		stats.Completions.Pulled++
	}

	return nil
}
