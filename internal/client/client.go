package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasktracker/internal/model"
)

// Client talks to the upstream task-management API. Status updates go through
// a fixed fallback chain because older deployments expose the status change
// as a generic PATCH or as bespoke /start and /complete actions instead of
// the dedicated status sub-resource.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type ListOptions struct {
	Status   string
	Page     int
	PageSize int
	Sort     string // dueDate | status
}

type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueAt       string `json:"dueAt,omitempty"`
}

type statusBody struct {
	Status string `json:"status"`
}

func (c *Client) List(ctx context.Context, opts ListOptions) ([]model.Task, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}

	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if !ok(resp.code) {
		return nil, terminalError(resp.code, bodyMessage(resp.body))
	}

	var tasks []model.Task
	if err := json.Unmarshal(resp.body, &tasks); err != nil {
		return nil, fmt.Errorf("decode task list: %w", err)
	}
	return tasks, nil
}

func (c *Client) Get(ctx context.Context, id string) (model.Task, error) {
	resp, err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		return model.Task{}, err
	}
	if !ok(resp.code) {
		return model.Task{}, terminalError(resp.code, bodyMessage(resp.body))
	}
	return decodeTask(resp.body)
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (model.Task, error) {
	resp, err := c.do(ctx, http.MethodPost, "/tasks", req)
	if err != nil {
		return model.Task{}, err
	}
	if !ok(resp.code) {
		return model.Task{}, terminalError(resp.code, bodyMessage(resp.body))
	}
	return decodeTask(resp.body)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if !ok(resp.code) {
		return terminalError(resp.code, bodyMessage(resp.body))
	}
	return nil
}

// UpdateStatus sets a task's status. Primary route is PUT on the status
// sub-resource. A transport failure or an explicit 400 rejection ends the
// chain immediately; a 400/404/405 without a message is read as "this
// deployment doesn't have that route" and triggers the fallbacks, strictly in
// order: generic PATCH on the task, then the verb-specific action when the
// target status has one. At most three calls go out.
func (c *Client) UpdateStatus(ctx context.Context, id, status string) (model.Task, error) {
	encID := url.PathEscape(id)

	primary, err := c.do(ctx, http.MethodPut, "/tasks/"+encID+"/status", statusBody{Status: status})
	if err != nil {
		// No response received: nothing to classify, no fallback.
		return model.Task{}, err
	}
	if ok(primary.code) {
		return decodeTask(primary.body)
	}

	msg := bodyMessage(primary.body)

	// A 400 carrying a reason is an authoritative rejection, not a shape
	// mismatch. Never mask it with a fallback.
	if primary.code == http.StatusBadRequest && msg != "" {
		return model.Task{}, errors.New(msg)
	}

	if primary.code == http.StatusBadRequest ||
		primary.code == http.StatusNotFound ||
		primary.code == http.StatusMethodNotAllowed {

		c.logger.Debug("status route rejected, trying fallbacks",
			zap.String("task_id", id),
			zap.Int("code", primary.code),
		)

		if resp, err := c.do(ctx, http.MethodPatch, "/tasks/"+encID, statusBody{Status: status}); err == nil && ok(resp.code) {
			if t, derr := decodeTask(resp.body); derr == nil {
				return t, nil
			}
		}

		var action string
		switch status {
		case model.StatusInProgress:
			action = "start"
		case model.StatusDone:
			action = "complete"
		}
		if action != "" {
			if resp, err := c.do(ctx, http.MethodPost, "/tasks/"+encID+"/"+action, nil); err == nil && ok(resp.code) {
				if t, derr := decodeTask(resp.body); derr == nil {
					return t, nil
				}
			}
		}
	}

	return model.Task{}, terminalError(primary.code, msg)
}

type response struct {
	code int
	body []byte
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &response{code: resp.StatusCode, body: data}, nil
}

func ok(code int) bool {
	return code >= 200 && code < 300
}

func decodeTask(body []byte) (model.Task, error) {
	var t model.Task
	if err := json.Unmarshal(body, &t); err != nil {
		return model.Task{}, fmt.Errorf("decode task: %w", err)
	}
	return t, nil
}

// bodyMessage pulls a human-readable message out of an error response body:
// a "message" or "error" field of a JSON object, a JSON string, or a bare
// plain-text body. Anything else yields the empty string.
func bodyMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return trimmed
	}
	switch b := v.(type) {
	case string:
		return strings.TrimSpace(b)
	case map[string]any:
		for _, key := range []string{"message", "error"} {
			if s, _ := b[key].(string); strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// terminalError builds the single error surfaced after a failed chain:
// the upstream's own message when it sent one, otherwise the status code,
// otherwise a generic failure.
func terminalError(code int, msg string) error {
	if msg != "" {
		return errors.New(msg)
	}
	if code != 0 {
		return fmt.Errorf("HTTP %d", code)
	}
	return errors.New("request failed")
}
