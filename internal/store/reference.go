package store

import (
	"context"
	"fmt"

	"github.com/ajandahq/ajanda-sync/internal/model"
)

// Reference collections mirror the backend verbatim. Replace* swaps the
// whole table inside a transaction so a partially applied pull can
// never leave a mixed snapshot behind.

// ReplaceTaskTypes overwrites the task_types table with the given rows.
func (s *Store) ReplaceTaskTypes(ctx context.Context, types []*model.TaskType) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_types`); err != nil {
		return fmt.Errorf("failed to clear task_types: %w", err)
	}

	for _, tt := range types {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO task_types (id, name, slug, icon, color) VALUES (?, ?, ?, ?, ?)`,
			tt.ID, tt.Name, tt.Slug, tt.Icon, tt.Color)
		if err != nil {
			return fmt.Errorf("failed to insert task type %s: %w", tt.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task_types: %w", err)
	}
	return nil
}

// ReplaceSubjects overwrites the subjects table with the given rows.
func (s *Store) ReplaceSubjects(ctx context.Context, subjects []*model.Subject) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subjects`); err != nil {
		return fmt.Errorf("failed to clear subjects: %w", err)
	}

	for _, sub := range subjects {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO subjects (id, name, slug, color) VALUES (?, ?, ?, ?)`,
			sub.ID, sub.Name, sub.Slug, sub.Color)
		if err != nil {
			return fmt.Errorf("failed to insert subject %s: %w", sub.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit subjects: %w", err)
	}
	return nil
}

// ReplaceTopics overwrites the topics table with the given rows.
func (s *Store) ReplaceTopics(ctx context.Context, topics []*model.Topic) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM topics`); err != nil {
		return fmt.Errorf("failed to clear topics: %w", err)
	}

	for _, tp := range topics {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO topics (id, subject_id, name, slug) VALUES (?, ?, ?, ?)`,
			tp.ID, tp.SubjectID, tp.Name, tp.Slug)
		if err != nil {
			return fmt.Errorf("failed to insert topic %s: %w", tp.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit topics: %w", err)
	}
	return nil
}

// ListTaskTypes returns all cached task types.
func (s *Store) ListTaskTypes(ctx context.Context) ([]*model.TaskType, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, name, slug, icon, color FROM task_types ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list task types: %w", err)
	}
	defer rows.Close()

	var types []*model.TaskType
	for rows.Next() {
		var tt model.TaskType
		if err := rows.Scan(&tt.ID, &tt.Name, &tt.Slug, &tt.Icon, &tt.Color); err != nil {
			return nil, fmt.Errorf("failed to scan task type: %w", err)
		}
		types = append(types, &tt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task types: %w", err)
	}
	return types, nil
}

// ListSubjects returns all cached subjects.
func (s *Store) ListSubjects(ctx context.Context) ([]*model.Subject, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, name, slug, color FROM subjects ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []*model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Slug, &sub.Color); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subjects: %w", err)
	}
	return subjects, nil
}

// ListTopics returns all cached topics, optionally filtered by subject.
func (s *Store) ListTopics(ctx context.Context, subjectID string) ([]*model.Topic, error) {
	query := `SELECT id, subject_id, name, slug FROM topics`
	var args []interface{}
	if subjectID != "" {
		query += ` WHERE subject_id = ?`
		args = append(args, subjectID)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var topics []*model.Topic
	for rows.Next() {
		var tp model.Topic
		if err := rows.Scan(&tp.ID, &tp.SubjectID, &tp.Name, &tp.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, &tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}
	return topics, nil
}
