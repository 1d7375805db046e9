package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewTaskStartsDirty(t *testing.T) {
	task := NewTask("owner-1", "tt-exam", "Read chapter 2")

	if task.ID == "" {
		t.Error("expected generated id")
	}
	if !task.Dirty {
		t.Error("new task must start dirty")
	}
	if task.LastSyncedAt != nil {
		t.Error("new task must not have a sync timestamp")
	}
	if !task.Visible {
		t.Error("new task should default to visible")
	}
	if err := task.Validate(); err != nil {
		t.Errorf("new task should validate: %v", err)
	}
}

func TestTaskValidate(t *testing.T) {
	now := time.Now().UTC()
	valid := func() *Task {
		return &Task{
			ID: "t-1", OwnerID: "o-1", TypeID: "tt-1", Title: "ok",
			CreatedAt: now, UpdatedAt: now,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Task)
	}{
		{"missing id", func(t *Task) { t.ID = "" }},
		{"missing owner", func(t *Task) { t.OwnerID = "" }},
		{"missing title", func(t *Task) { t.Title = "" }},
		{"title too long", func(t *Task) { t.Title = strings.Repeat("x", 501) }},
		{"zero created_at", func(t *Task) { t.CreatedAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid()
			tt.mutate(task)
			if err := task.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid task rejected: %v", err)
	}
}

func TestTaskTouch(t *testing.T) {
	task := NewTask("owner-1", "tt-exam", "Touch me")
	task.Dirty = false
	before := task.UpdatedAt

	time.Sleep(time.Millisecond)
	task.Touch()

	if !task.Dirty {
		t.Error("Touch must mark the record dirty")
	}
	if !task.UpdatedAt.After(before) {
		t.Error("Touch must bump updated_at")
	}
}

func TestSyncFieldsExcludedFromJSON(t *testing.T) {
	synced := time.Now().UTC()
	task := NewTask("owner-1", "tt-exam", "Wire shape")
	task.LastSyncedAt = &synced

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, field := range []string{"dirty", "Dirty", "last_synced_at", "LastSyncedAt"} {
		if _, ok := m[field]; ok {
			t.Errorf("field %q must not be serialized", field)
		}
	}
	if m["id"] != task.ID {
		t.Errorf("id missing from wire form: %v", m)
	}
}

func TestFrequencyValid(t *testing.T) {
	for _, f := range []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly} {
		if !f.Valid() {
			t.Errorf("%q should be valid", f)
		}
	}
	if Frequency("yearly").Valid() {
		t.Error("yearly should be invalid")
	}
	if Frequency("").Valid() {
		t.Error("empty frequency should be invalid")
	}
}

func TestNewHabitDefaults(t *testing.T) {
	habit := NewHabit("owner-1", "Practice piano", FrequencyWeekly)

	if !habit.Dirty {
		t.Error("new habit must start dirty")
	}
	if !habit.Active {
		t.Error("new habit should be active")
	}
	if habit.StartDate == "" {
		t.Error("expected start_date set")
	}
	if err := habit.Validate(); err != nil {
		t.Errorf("new habit should validate: %v", err)
	}
}

func TestHabitValidateWeekdays(t *testing.T) {
	habit := NewHabit("owner-1", "Gym", FrequencyWeekly)
	habit.Weekdays = []int{1, 3, 5}
	if err := habit.Validate(); err != nil {
		t.Errorf("valid weekdays rejected: %v", err)
	}

	habit.Weekdays = []int{1, 7}
	if err := habit.Validate(); err == nil {
		t.Error("expected error for weekday 7")
	}

	habit.Weekdays = []int{-1}
	if err := habit.Validate(); err == nil {
		t.Error("expected error for weekday -1")
	}
}

func TestHabitValidateFrequency(t *testing.T) {
	habit := NewHabit("owner-1", "Read", FrequencyDaily)
	habit.Frequency = "fortnightly"
	if err := habit.Validate(); err == nil {
		t.Error("expected error for unknown frequency")
	}
}

func TestNewHabitCompletion(t *testing.T) {
	at := time.Date(2026, 8, 31, 22, 45, 0, 0, time.UTC)
	c := NewHabitCompletion("owner-1", "h-1", at)

	if !c.Dirty {
		t.Error("new completion must start dirty")
	}
	if c.CompletedOn != "2026-08-31" {
		t.Errorf("completed_on = %q, want 2026-08-31", c.CompletedOn)
	}
	if c.Count != 1 {
		t.Errorf("count = %d, want 1", c.Count)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("new completion should validate: %v", err)
	}
}

func TestHabitCompletionValidate(t *testing.T) {
	c := NewHabitCompletion("owner-1", "h-1", time.Now().UTC())

	c.Count = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for zero count")
	}

	c = NewHabitCompletion("owner-1", "", time.Now().UTC())
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing habit_id")
	}
}
