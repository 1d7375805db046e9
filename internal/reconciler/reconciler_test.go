package reconciler

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ajandahq/ajanda-sync/internal/model"
	"github.com/ajandahq/ajanda-sync/internal/store"
)

// fakeRemote implements Remote in memory. It records the order of every
// call and can inject failures per record id or per collection.
type fakeRemote struct {
	mu    sync.Mutex
	calls []string

	tasks       []*model.Task
	habits      []*model.Habit
	completions []*model.HabitCompletion
	taskTypes   []*model.TaskType
	subjects    []*model.Subject
	topics      []*model.Topic

	pushed map[string]int // record id -> upsert count

	failUpsert map[string]error // record id -> error
	failList   map[string]error // collection -> error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		pushed:     make(map[string]int),
		failUpsert: make(map[string]error),
		failList:   make(map[string]error),
	}
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeRemote) upsert(collection, id string) error {
	f.record("upsert:" + collection + ":" + id)
	if err, ok := f.failUpsert[id]; ok {
		return err
	}
	f.mu.Lock()
	f.pushed[id]++
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) UpsertTask(_ context.Context, t *model.Task) error {
	return f.upsert("tasks", t.ID)
}

func (f *fakeRemote) UpsertHabit(_ context.Context, h *model.Habit) error {
	return f.upsert("habits", h.ID)
}

func (f *fakeRemote) UpsertHabitCompletion(_ context.Context, c *model.HabitCompletion) error {
	return f.upsert("habit_completions", c.ID)
}

func (f *fakeRemote) ListTasksByOwner(_ context.Context, ownerID string) ([]*model.Task, error) {
	f.record("list:tasks")
	if err, ok := f.failList["tasks"]; ok {
		return nil, err
	}
	var out []*model.Task
	for _, t := range f.tasks {
		if t.OwnerID == ownerID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRemote) ListHabitsByOwner(_ context.Context, ownerID string) ([]*model.Habit, error) {
	f.record("list:habits")
	if err, ok := f.failList["habits"]; ok {
		return nil, err
	}
	var out []*model.Habit
	for _, h := range f.habits {
		if h.OwnerID == ownerID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRemote) ListHabitCompletionsByOwner(_ context.Context, ownerID string) ([]*model.HabitCompletion, error) {
	f.record("list:habit_completions")
	if err, ok := f.failList["habit_completions"]; ok {
		return nil, err
	}
	var out []*model.HabitCompletion
	for _, c := range f.completions {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRemote) ListTaskTypes(_ context.Context) ([]*model.TaskType, error) {
	f.record("list:task_types")
	if err, ok := f.failList["task_types"]; ok {
		return nil, err
	}
	return f.taskTypes, nil
}

func (f *fakeRemote) ListSubjects(_ context.Context) ([]*model.Subject, error) {
	f.record("list:subjects")
	if err, ok := f.failList["subjects"]; ok {
		return nil, err
	}
	return f.subjects, nil
}

func (f *fakeRemote) ListTopics(_ context.Context) ([]*model.Topic, error) {
	f.record("list:topics")
	if err, ok := f.failList["topics"]; ok {
		return nil, err
	}
	return f.topics, nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return st
}

func newTestReconciler(t *testing.T) (*Reconciler, *store.Store, *fakeRemote) {
	t.Helper()
	st := setupTestStore(t)
	rem := newFakeRemote()
	rec := New(st, rem, nil, log.New(io.Discard, "", 0))
	return rec, st, rem
}

func mustPutTask(t *testing.T, st *store.Store, task *model.Task) {
	t.Helper()
	if err := st.PutTask(context.Background(), task); err != nil {
		t.Fatalf("PutTask failed: %v", err)
	}
}

func TestRunEmptyOwner(t *testing.T) {
	rec, _, _ := newTestReconciler(t)

	if _, err := rec.Run(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty owner id")
	}
}

func TestDirtyTaskPushedAndCleared(t *testing.T) {
	rec, st, rem := newTestReconciler(t)
	ctx := context.Background()

	task := model.NewTask("owner-1", "tt-exam", "Finish chapter 3")
	mustPutTask(t, st, task)

	stats, err := rec.Run(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Tasks.Pushed != 1 {
		t.Errorf("pushed = %d, want 1", stats.Tasks.Pushed)
	}
	if rem.pushed[task.ID] != 1 {
		t.Errorf("remote upsert count = %d, want 1", rem.pushed[task.ID])
	}

	got, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Dirty {
		t.Error("expected dirty flag cleared after successful push")
	}
	if got.LastSyncedAt == nil {
		t.Error("expected last_synced_at stamped after push")
	}
}

func TestPullOverwritesCleanLocal(t *testing.T) {
	rec, st, rem := newTestReconciler(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	local := &model.Task{
		ID: "t-1", OwnerID: "owner-1", TypeID: "tt-exam",
		Title: "Old title", Visible: true,
		CreatedAt: now, UpdatedAt: now,
		Dirty: false,
	}
	mustPutTask(t, st, local)

	remote := *local
	remote.Title = "Renamed by coach"
	rem.tasks = []*model.Task{&remote}

	stats, err := rec.Run(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Tasks.Pulled != 1 {
		t.Errorf("pulled = %d, want 1", stats.Tasks.Pulled)
	}

	got, _ := st.GetTask(ctx, "t-1")
	if got.Title != "Renamed by coach" {
		t.Errorf("title = %q, want remote version", got.Title)
	}
	if got.Dirty {
		t.Error("pulled record must be stored clean")
	}
	if got.LastSyncedAt == nil {
		t.Error("pulled record must have last_synced_at stamped")
	}
}

func TestPullSkipsDirtyLocal(t *testing.T) {
	rec, st, rem := newTestReconciler(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	local := &model.Task{
		ID: "t-1", OwnerID: "owner-1", TypeID: "tt-exam",
		Title: "Local edit in flight", Visible: true,
		CreatedAt: now, UpdatedAt: now,
		Dirty: true,
	}
	mustPutTask(t, st, local)

	// Make the push fail so the record is still dirty when the pull
	// phase sees the conflicting remote row.
	rem.failUpsert["t-1"] = fmt.Errorf("backend: 503")

	remote := *local
	remote.Title = "Remote version"
	remote.Dirty = false
	rem.tasks = []*model.Task{&remote}

	stats, err := rec.Run(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Tasks.PushFailed != 1 {
		t.Errorf("push_failed = %d, want 1", stats.Tasks.PushFailed)
	}
	if stats.Tasks.SkippedDirty != 1 {
		t.Errorf("skipped_dirty = %d, want 1", stats.Tasks.SkippedDirty)
	}

	got, _ := st.GetTask(ctx, "t-1")
	if got.Title != "Local edit in flight" {
		t.Errorf("title = %q, local edit was overwritten", got.Title)
	}
	if !got.Dirty {
		t.Error("record must stay dirty for retry on next pass")
	}
}

func TestReferencePullOverwritesUnconditionally(t *testing.T) {
	rec, st, rem := newTestReconciler(t)
	ctx := context.Background()

	stale := []*model.Subject{
		{ID: "s-1", Name: "Maths", Slug: "maths"},
		{ID: "s-99", Name: "Retired subject", Slug: "retired"},
	}
	if err := st.ReplaceSubjects(ctx, stale); err != nil {
		t.Fatalf("seed ReplaceSubjects failed: %v", err)
	}

	rem.subjects = []*model.Subject{{ID: "s-1", Name: "Mathematics", Slug: "maths"}}
	rem.taskTypes = []*model.TaskType{{ID: "tt-1", Name: "Exam Prep", Slug: "exam-prep"}}

	stats, err := rec.Run(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.ReferenceRows != 2 {
		t.Errorf("reference_rows = %d, want 2", stats.ReferenceRows)
	}

	subjects, _ := st.ListSubjects(ctx)
	if len(subjects) != 1 {
		t.Fatalf("expected 1 subject after pull, got %d", len(subjects))
	}
	if subjects[0].Name != "Mathematics" {
		t.Errorf("name = %q, want remote version", subjects[0].Name)
	}
}

func TestCallOrdering(t *testing.T) {
	rec, st, rem := newTestReconciler(t)
	ctx := context.Background()

	mustPutTask(t, st, model.NewTask("owner-1", "tt-exam", "Ordered push"))
	habit := model.NewHabit("owner-1", "Practice", model.FrequencyDaily)
	if err := st.PutHabit(ctx, habit); err != nil {
		t.Fatalf("PutHabit failed: %v", err)
	}
	completion := model.NewHabitCompletion("owner-1", habit.ID, time.Now().UTC())
	if err := st.PutHabitCompletion(ctx, completion); err != nil {
		t.Fatalf("PutHabitCompletion failed: %v", err)
	}

	if _, err := rec.Run(ctx, "owner-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	pos := func(call string) int {
		for i, c := range rem.calls {
			if c == call {
				return i
			}
		}
		t.Fatalf("call %q never made (calls: %v)", call, rem.calls)
		return -1
	}

	// References must complete before any mutable collection is touched.
	refs := pos("list:topics")
	for i, c := range rem.calls {
		if c == "list:task_types" || c == "list:subjects" || c == "list:topics" {
			continue
		}
		if i < refs {
			t.Fatalf("call %q at %d before reference pull finished at %d", c, i, refs)
		}
	}

	if pos("list:tasks") > pos("list:habits") {
		t.Error("task sync must complete before habit sync")
	}
	if pos("list:habits") > pos("list:habit_completions") {
		t.Error("habit sync must complete before completion sync")
	}
	if pos("upsert:habit_completions:"+completion.ID) > pos("list:habit_completions") {
		t.Error("completion push must precede completion pull")
	}
}

func TestPartialCompletionPushFailure(t *testing.T) {
	rec, st, rem := newTestReconciler(t)
	ctx := context.Background()

	c1 := model.NewHabitCompletion("owner-1", "h-1", time.Now().UTC().Add(-time.Hour))
	c2 := model.NewHabitCompletion("owner-1", "h-1", time.Now().UTC())
	if err := st.PutHabitCompletion(ctx, c1); err != nil {
		t.Fatalf("PutHabitCompletion failed: %v", err)
	}
	if err := st.PutHabitCompletion(ctx, c2); err != nil {
		t.Fatalf("PutHabitCompletion failed: %v", err)
	}

	rem.failUpsert[c1.ID] = fmt.Errorf("backend: 500")

	stats, err := rec.Run(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Completions.PushFailed != 1 || stats.Completions.Pushed != 1 {
		t.Errorf("completions = %+v, want 1 pushed 1 failed", stats.Completions)
	}

	g1, _ := st.GetHabitCompletion(ctx, c1.ID)
	g2, _ := st.GetHabitCompletion(ctx, c2.ID)
	if !g1.Dirty {
		t.Error("failed completion must stay dirty")
	}
	if g2.Dirty {
		t.Error("succeeding completion must be cleared despite earlier failure")
	}

	// Next pass retries only the failed record.
	delete(rem.failUpsert, c1.ID)
	stats, err = rec.Run(ctx, "owner-1")
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if stats.Completions.Pushed != 1 {
		t.Errorf("second pass pushed = %d, want 1", stats.Completions.Pushed)
	}
	if rem.pushed[c2.ID] != 1 {
		t.Errorf("clean completion re-pushed: count = %d", rem.pushed[c2.ID])
	}
}

func TestSecondPassPushesNothing(t *testing.T) {
	rec, st, rem := newTestReconciler(t)
	ctx := context.Background()

	task := model.NewTask("owner-1", "tt-exam", "Push once")
	mustPutTask(t, st, task)

	if _, err := rec.Run(ctx, "owner-1"); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	stats, err := rec.Run(ctx, "owner-1")
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if stats.Tasks.Pushed != 0 {
		t.Errorf("second pass pushed = %d, want 0", stats.Tasks.Pushed)
	}
	if rem.pushed[task.ID] != 1 {
		t.Errorf("upsert count = %d, want 1", rem.pushed[task.ID])
	}
}

func TestSubSyncFailureDoesNotStopPass(t *testing.T) {
	rec, st, rem := newTestReconciler(t)
	ctx := context.Background()

	habit := model.NewHabit("owner-1", "Survives task outage", model.FrequencyDaily)
	if err := st.PutHabit(ctx, habit); err != nil {
		t.Fatalf("PutHabit failed: %v", err)
	}

	rem.failList["tasks"] = fmt.Errorf("backend: 502")

	stats, err := rec.Run(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.SubSyncErrors != 1 {
		t.Errorf("sub_sync_errors = %d, want 1", stats.SubSyncErrors)
	}
	if stats.Habits.Pushed != 1 {
		t.Errorf("habit push did not run after task sub-sync failure: %+v", stats.Habits)
	}
}

func TestReferenceFailureDoesNotStopPass(t *testing.T) {
	rec, st, rem := newTestReconciler(t)
	ctx := context.Background()

	mustPutTask(t, st, model.NewTask("owner-1", "tt-exam", "Still pushed"))
	rem.failList["subjects"] = fmt.Errorf("backend: 500")

	stats, err := rec.Run(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.SubSyncErrors != 1 {
		t.Errorf("sub_sync_errors = %d, want 1", stats.SubSyncErrors)
	}
	if stats.Tasks.Pushed != 1 {
		t.Errorf("task push did not run after reference failure: %+v", stats.Tasks)
	}
}

// eventRecorder captures sink callbacks for assertion.
type eventRecorder struct {
	mu        sync.Mutex
	started   []string
	pushed    []string
	failed    []string
	completed int
}

func (e *eventRecorder) SyncStarted(ownerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, ownerID)
}

func (e *eventRecorder) RecordPushed(collection, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pushed = append(e.pushed, collection+":"+id)
}

func (e *eventRecorder) PushFailed(collection, id string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed = append(e.failed, collection+":"+id)
}

func (e *eventRecorder) SyncCompleted(string, *Stats, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed++
}

func TestEventsEmitted(t *testing.T) {
	st := setupTestStore(t)
	rem := newFakeRemote()
	sink := &eventRecorder{}
	rec := New(st, rem, sink, log.New(io.Discard, "", 0))
	ctx := context.Background()

	ok := model.NewTask("owner-1", "tt-exam", "Good push")
	bad := model.NewTask("owner-1", "tt-exam", "Bad push")
	mustPutTask(t, st, ok)
	mustPutTask(t, st, bad)
	rem.failUpsert[bad.ID] = fmt.Errorf("backend: 500")

	if _, err := rec.Run(ctx, "owner-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sink.started) != 1 || sink.started[0] != "owner-1" {
		t.Errorf("started events = %v", sink.started)
	}
	if len(sink.pushed) != 1 || sink.pushed[0] != "tasks:"+ok.ID {
		t.Errorf("pushed events = %v", sink.pushed)
	}
	if len(sink.failed) != 1 || sink.failed[0] != "tasks:"+bad.ID {
		t.Errorf("failed events = %v", sink.failed)
	}
	if sink.completed != 1 {
		t.Errorf("completed events = %d, want 1", sink.completed)
	}
}
