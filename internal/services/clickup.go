// ClickUp API implementation of [SourceService]
//
// Response types based on https://clickup.com/api/ (v2)
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/AskChad/ClickUp-Monday-sync/internal/ratelimit"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

const clickupBaseURL = "https://api.clickup.com/api/v2"

// ClickUpStatus represents a task's status object.
type ClickUpStatus struct {
	Status string `json:"status"`
	Color  string `json:"color"`
}

// ClickUpPriority represents a task's priority object.
type ClickUpPriority struct {
	ID       string `json:"id"`
	Priority string `json:"priority"`
}

// ClickUpUser represents a ClickUp member.
type ClickUpUser struct {
	ID       json.Number `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
}

// ClickUpTag represents a tag on a task.
type ClickUpTag struct {
	Name string `json:"name"`
}

// ClickUpCustomField represents a custom field definition, optionally with
// the task-specific value when returned inline on a task.
type ClickUpCustomField struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
}

// ClickUpAttachment represents a file attached to a task.
type ClickUpAttachment struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Size      json.Number `json:"size"`
	URL       string      `json:"url"`
	Extension string      `json:"extension"`
}

// ClickUpTask represents a ClickUp task.
type ClickUpTask struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Status       ClickUpStatus        `json:"status"`
	Priority     *ClickUpPriority     `json:"priority"`
	DueDate      string               `json:"due_date"`
	URL          string               `json:"url"`
	Parent       string               `json:"parent"`
	Assignees    []ClickUpUser        `json:"assignees"`
	Tags         []ClickUpTag         `json:"tags"`
	CustomFields []ClickUpCustomField `json:"custom_fields"`
	Attachments  []ClickUpAttachment  `json:"attachments"`
}

// ClickUpList represents a ClickUp list.
type ClickUpList struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TaskCount int    `json:"task_count"`
}

// ClickUpComment represents one comment on a task.
type ClickUpComment struct {
	ID          string      `json:"id"`
	CommentText string      `json:"comment_text"`
	User        ClickUpUser `json:"user"`
	Date        string      `json:"date"`
}

// ClickUpService implements [SourceService] for the ClickUp REST API.
//
// Every outbound call awaits the governor, executes through the backoff
// wrapper, then records the request against the shared quota.
type ClickUpService struct {
	baseURL    string
	token      string
	httpClient *http.Client
	governor   *ratelimit.Governor
	backoff    ratelimit.BackoffConfig
}

// NewClickUpService creates a ClickUp client throttled by the given governor.
func NewClickUpService(governor *ratelimit.Governor) *ClickUpService {
	return &ClickUpService{
		baseURL:    clickupBaseURL,
		httpClient: http.DefaultClient,
		governor:   governor,
		backoff:    ratelimit.DefaultBackoff(),
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (s *ClickUpService) SetBaseURL(url string) { s.baseURL = url }

// SetHTTPClient overrides the HTTP client. Used by tests.
func (s *ClickUpService) SetHTTPClient(c *http.Client) { s.httpClient = c }

// SetBackoff overrides the retry schedule. Used by tests.
func (s *ClickUpService) SetBackoff(cfg ratelimit.BackoffConfig) { s.backoff = cfg }

// Authenticate stores the access token. Expects "access_token" (a personal
// token or an OAuth2 access token) in credentials.
func (s *ClickUpService) Authenticate(ctx context.Context, credentials map[string]string) error {
	token, ok := credentials["access_token"]
	if !ok || token == "" {
		return fmt.Errorf("%w: missing access_token", shared.ErrMissingCredentials)
	}
	s.token = token
	return nil
}

func (s *ClickUpService) Name() string {
	return "ClickUp"
}

// doRequest performs a throttled, retried, authenticated request and decodes
// the JSON response into result.
func (s *ClickUpService) doRequest(ctx context.Context, method, endpoint string, result any) error {
	if s.token == "" {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.governor.WaitForReset(ctx); err != nil {
		return err
	}

	apiURL := s.baseURL + endpoint

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", s.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: clickup replied 429, retry-after %s", shared.ErrRateLimited, resp.Header.Get("Retry-After"))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: clickup status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}

	_, err := ratelimit.Do(ctx, s.backoff, op)
	s.governor.RecordRequest()
	return err
}

// GetList retrieves a list's metadata.
func (s *ClickUpService) GetList(ctx context.Context, listID string) (*List, error) {
	var list ClickUpList
	if err := s.doRequest(ctx, http.MethodGet, fmt.Sprintf("/list/%s", listID), &list); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrListNotFound, err)
	}
	return &List{ID: list.ID, Name: list.Name, TaskCount: list.TaskCount}, nil
}

// GetCustomFields retrieves the custom field definitions for a list.
func (s *ClickUpService) GetCustomFields(ctx context.Context, listID string) ([]CustomField, error) {
	var response struct {
		Fields []ClickUpCustomField `json:"fields"`
	}
	if err := s.doRequest(ctx, http.MethodGet, fmt.Sprintf("/list/%s/field", listID), &response); err != nil {
		return nil, err
	}

	fields := make([]CustomField, 0, len(response.Fields))
	for _, f := range response.Fields {
		fields = append(fields, CustomField{ID: f.ID, Name: f.Name, Type: f.Type})
	}
	return fields, nil
}

// GetTasks retrieves all tasks on a list, following pagination.
func (s *ClickUpService) GetTasks(ctx context.Context, listID string, filter TaskFilter) ([]Task, error) {
	var all []Task

	for page := 0; ; page++ {
		endpoint := fmt.Sprintf("/list/%s/task?page=%d", listID, page)
		if filter.IncludeClosed {
			endpoint += "&include_closed=true"
		}
		if filter.IncludeSubtasks {
			endpoint += "&subtasks=true"
		}

		var response struct {
			Tasks    []ClickUpTask `json:"tasks"`
			LastPage bool          `json:"last_page"`
		}
		if err := s.doRequest(ctx, http.MethodGet, endpoint, &response); err != nil {
			return nil, err
		}

		for _, t := range response.Tasks {
			all = append(all, convertClickUpTask(t))
		}

		if response.LastPage || len(response.Tasks) == 0 {
			break
		}
	}

	return all, nil
}

// GetTask retrieves one task's full detail, including attachments.
func (s *ClickUpService) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var raw ClickUpTask
	endpoint := fmt.Sprintf("/task/%s?include_subtasks=true", taskID)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTaskNotFound, err)
	}
	task := convertClickUpTask(raw)
	return &task, nil
}

// GetComments retrieves a task's comments, oldest first.
func (s *ClickUpService) GetComments(ctx context.Context, taskID string) ([]Comment, error) {
	var response struct {
		Comments []ClickUpComment `json:"comments"`
	}
	if err := s.doRequest(ctx, http.MethodGet, fmt.Sprintf("/task/%s/comment", taskID), &response); err != nil {
		return nil, err
	}

	// The API returns newest first.
	comments := make([]Comment, 0, len(response.Comments))
	for i := len(response.Comments) - 1; i >= 0; i-- {
		c := response.Comments[i]
		date, _ := strconv.ParseInt(c.Date, 10, 64)
		comments = append(comments, Comment{
			ID:     c.ID,
			Author: c.User.Username,
			Body:   c.CommentText,
			Date:   date,
		})
	}
	return comments, nil
}

// DownloadAttachment fetches an attachment's bytes from its signed URL.
//
// Attachment URLs are pre-signed and served outside the API host, so this
// bypasses the Authorization header but still goes through the governor.
func (s *ClickUpService) DownloadAttachment(ctx context.Context, att Attachment) ([]byte, error) {
	if err := s.governor.WaitForReset(ctx); err != nil {
		return nil, err
	}

	var data []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: attachment download status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read attachment: %w", err)
		}
		return nil
	}

	_, err := ratelimit.Do(ctx, s.backoff, op)
	s.governor.RecordRequest()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// convertClickUpTask maps the wire shape onto the service-neutral DTO.
func convertClickUpTask(t ClickUpTask) Task {
	task := Task{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Status:      t.Status.Status,
		URL:         t.URL,
		ParentID:    t.Parent,
	}

	if t.Priority != nil {
		if p, err := strconv.Atoi(t.Priority.ID); err == nil {
			task.Priority = p
		}
	}
	if t.DueDate != "" {
		if due, err := strconv.ParseInt(t.DueDate, 10, 64); err == nil {
			task.DueDate = due
		}
	}

	for _, a := range t.Assignees {
		task.Assignees = append(task.Assignees, User{ID: a.ID.String(), Name: a.Username})
	}
	for _, tag := range t.Tags {
		task.Tags = append(task.Tags, tag.Name)
	}
	for _, f := range t.CustomFields {
		if f.Value == nil {
			continue
		}
		task.CustomFields = append(task.CustomFields, CustomFieldValue{
			FieldID:   f.ID,
			FieldName: f.Name,
			Type:      f.Type,
			Value:     f.Value,
		})
	}
	for _, a := range t.Attachments {
		size, _ := a.Size.Int64()
		task.Attachments = append(task.Attachments, Attachment{
			ID:   a.ID,
			Name: a.Title,
			Size: size,
			URL:  a.URL,
		})
	}

	return task
}
