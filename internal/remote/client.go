// Package remote translates collection operations into authenticated
// calls against the Ajanda backend, a PostgREST-style HTTP API over the
// managed relational tables.
//
// The adapter guarantees two things the reconciler depends on:
//   - Upsert is idempotent keyed by id (Prefer: resolution=merge-duplicates
//     with on_conflict=id), so retried pushes replace instead of duplicate.
//   - List calls return a complete current snapshot; there is no delta
//     or cursor fetch.
//
// Local-only sync fields never reach the wire because the model types
// exclude them from JSON.
//
// The adapter performs no retries and no backoff. A failed call leaves
// the local record dirty and the next scheduled pass retries it.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ajandahq/ajanda-sync/internal/model"
)

// Error is a failed backend call. Status is zero for transport errors.
type Error struct {
	Status int
	Body   string
	Op     string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote %s: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("remote %s: status %d: %s", e.Op, e.Status, e.Body)
}

// Client is the HTTP adapter for the Ajanda backend.
type Client struct {
	baseURL string
	apiKey  string
	token   string
	http    *http.Client
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. https://api.ajanda.app
	BaseURL string

	// APIKey is sent as the apikey header on every request.
	APIKey string

	// Token is the owner's bearer token.
	Token string

	// Timeout bounds each request (default 30s).
	Timeout time.Duration
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Ping reports whether the backend is reachable. Used by the sync
// trigger's connectivity probe; any response counts as online.
func (c *Client) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// UpsertTask inserts or replaces a task row, keyed by id.
func (c *Client) UpsertTask(ctx context.Context, t *model.Task) error {
	return upsert(c, ctx, "tasks", t)
}

// UpsertHabit inserts or replaces a habit row, keyed by id.
func (c *Client) UpsertHabit(ctx context.Context, h *model.Habit) error {
	return upsert(c, ctx, "habits", h)
}

// UpsertHabitCompletion inserts or replaces a completion row, keyed by id.
func (c *Client) UpsertHabitCompletion(ctx context.Context, hc *model.HabitCompletion) error {
	return upsert(c, ctx, "habit_completions", hc)
}

// ListTasksByOwner fetches the owner's full task snapshot.
func (c *Client) ListTasksByOwner(ctx context.Context, ownerID string) ([]*model.Task, error) {
	return listByOwner[model.Task](c, ctx, "tasks", ownerID)
}

// ListHabitsByOwner fetches the owner's full habit snapshot.
func (c *Client) ListHabitsByOwner(ctx context.Context, ownerID string) ([]*model.Habit, error) {
	return listByOwner[model.Habit](c, ctx, "habits", ownerID)
}

// ListHabitCompletionsByOwner fetches the owner's full completion snapshot.
func (c *Client) ListHabitCompletionsByOwner(ctx context.Context, ownerID string) ([]*model.HabitCompletion, error) {
	return listByOwner[model.HabitCompletion](c, ctx, "habit_completions", ownerID)
}

// ListTaskTypes fetches the entire task_types table.
func (c *Client) ListTaskTypes(ctx context.Context) ([]*model.TaskType, error) {
	return list[model.TaskType](c, ctx, "task_types", nil)
}

// ListSubjects fetches the entire subjects table.
func (c *Client) ListSubjects(ctx context.Context) ([]*model.Subject, error) {
	return list[model.Subject](c, ctx, "subjects", nil)
}

// ListTopics fetches the entire topics table.
func (c *Client) ListTopics(ctx context.Context) ([]*model.Topic, error) {
	return list[model.Topic](c, ctx, "topics", nil)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// upsert POSTs a single row with merge-duplicates resolution so a
// retried push replaces the existing row instead of inserting twice.
func upsert[T any](c *Client, ctx context.Context, table string, row *T) error {
	body, err := json.Marshal(row)
	if err != nil {
		return &Error{Op: "upsert " + table, Body: err.Error()}
	}

	u := fmt.Sprintf("%s/rest/v1/%s?on_conflict=id", c.baseURL, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return &Error{Op: "upsert " + table, Body: err.Error()}
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: "upsert " + table, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: "upsert " + table, Status: resp.StatusCode, Body: readBody(resp.Body)}
	}
	return nil
}

func listByOwner[T any](c *Client, ctx context.Context, table, ownerID string) ([]*T, error) {
	q := url.Values{}
	q.Set("owner_id", "eq."+ownerID)
	return list[T](c, ctx, table, q)
}

func list[T any](c *Client, ctx context.Context, table string, q url.Values) ([]*T, error) {
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &Error{Op: "list " + table, Body: err.Error()}
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: "list " + table, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "list " + table, Status: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var rows []*T
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &Error{Op: "list " + table, Body: fmt.Sprintf("decoding response: %v", err)}
	}
	return rows, nil
}

// readBody returns a truncated response body for error messages.
func readBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
