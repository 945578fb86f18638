// Monday.com API implementation of [TargetService]
//
// All calls go through the GraphQL endpoint except file uploads, which use
// the dedicated multipart endpoint. See https://developer.monday.com/api-reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/AskChad/ClickUp-Monday-sync/internal/ratelimit"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

const (
	mondayAPIURL  = "https://api.monday.com/v2"
	mondayFileURL = "https://api.monday.com/v2/file"

	mondayAPIVersion = "2024-10"
)

// MondayService implements [TargetService] for the Monday.com GraphQL API.
//
// Every query asks for the complexity block so the governor can track the
// account's point budget alongside the request count.
type MondayService struct {
	apiURL     string
	fileURL    string
	token      string
	httpClient *http.Client
	governor   *ratelimit.Governor
	backoff    ratelimit.BackoffConfig
}

// NewMondayService creates a Monday client throttled by the given governor.
func NewMondayService(governor *ratelimit.Governor) *MondayService {
	return &MondayService{
		apiURL:     mondayAPIURL,
		fileURL:    mondayFileURL,
		httpClient: http.DefaultClient,
		governor:   governor,
		backoff:    ratelimit.DefaultBackoff(),
	}
}

// SetAPIURL overrides the GraphQL endpoint. Used by tests.
func (s *MondayService) SetAPIURL(url string) { s.apiURL = url }

// SetFileURL overrides the file upload endpoint. Used by tests.
func (s *MondayService) SetFileURL(url string) { s.fileURL = url }

// SetHTTPClient overrides the HTTP client. Used by tests.
func (s *MondayService) SetHTTPClient(c *http.Client) { s.httpClient = c }

// SetBackoff overrides the retry schedule. Used by tests.
func (s *MondayService) SetBackoff(cfg ratelimit.BackoffConfig) { s.backoff = cfg }

// Authenticate stores the API token. Expects "api_token" in credentials.
func (s *MondayService) Authenticate(ctx context.Context, credentials map[string]string) error {
	token, ok := credentials["api_token"]
	if !ok || token == "" {
		return fmt.Errorf("%w: missing api_token", shared.ErrMissingCredentials)
	}
	s.token = token
	return nil
}

func (s *MondayService) Name() string {
	return "Monday"
}

// mondayComplexity mirrors the complexity block returned alongside every query.
type mondayComplexity struct {
	Query           int `json:"query"`
	Before          int `json:"before"`
	After           int `json:"after"`
	ResetInXSeconds int `json:"reset_in_x_seconds"`
}

type mondayError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type mondayResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []mondayError   `json:"errors"`
}

// doQuery performs a throttled, retried GraphQL request and decodes the data
// payload into result. The complexity block, when present, is fed to the
// governor's budget accounting.
func (s *MondayService) doQuery(ctx context.Context, query string, variables map[string]any, result any) error {
	if s.token == "" {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.governor.WaitForReset(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", s.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("API-Version", mondayAPIVersion)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: monday replied 429, retry-after %s", shared.ErrRateLimited, resp.Header.Get("Retry-After"))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: monday status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		var envelope mondayResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		if len(envelope.Errors) > 0 {
			first := envelope.Errors[0]
			if first.Extensions.Code == "ComplexityException" || strings.Contains(first.Message, "Complexity budget exhausted") {
				return fmt.Errorf("%w: %s", shared.ErrRateLimited, first.Message)
			}
			return fmt.Errorf("%w: %s", shared.ErrAPIRequest, first.Message)
		}

		s.recordComplexity(envelope.Data)

		if result != nil {
			if err := json.Unmarshal(envelope.Data, result); err != nil {
				return fmt.Errorf("failed to decode data: %w", err)
			}
		}
		return nil
	}

	_, err = ratelimit.Do(ctx, s.backoff, op)
	s.governor.RecordRequest()
	return err
}

// recordComplexity extracts the complexity block from a data payload and
// reports the spent points to the governor.
func (s *MondayService) recordComplexity(data json.RawMessage) {
	var probe struct {
		Complexity *mondayComplexity `json:"complexity"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.Complexity == nil {
		return
	}
	cost := probe.Complexity.Before - probe.Complexity.After
	if cost < 0 {
		cost = probe.Complexity.Query
	}
	s.governor.RecordCost(cost, time.Duration(probe.Complexity.ResetInXSeconds)*time.Second)
}

// CreateBoard creates a new board and returns it with an empty column set.
func (s *MondayService) CreateBoard(ctx context.Context, name, kind string) (*Board, error) {
	if kind == "" {
		kind = "public"
	}

	query := `mutation ($name: String!, $kind: BoardKind!) {
		complexity { query before after reset_in_x_seconds }
		create_board (board_name: $name, board_kind: $kind) { id name }
	}`

	var response struct {
		CreateBoard struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"create_board"`
	}
	vars := map[string]any{"name": name, "kind": kind}
	if err := s.doQuery(ctx, query, vars, &response); err != nil {
		return nil, err
	}

	return &Board{ID: response.CreateBoard.ID, Name: response.CreateBoard.Name}, nil
}

// CreateColumn adds a column of the given type to a board.
func (s *MondayService) CreateColumn(ctx context.Context, boardID, title, columnType string, settings map[string]any) (*Column, error) {
	query := `mutation ($boardID: ID!, $title: String!, $type: ColumnType!, $defaults: JSON) {
		complexity { query before after reset_in_x_seconds }
		create_column (board_id: $boardID, title: $title, column_type: $type, defaults: $defaults) { id title type }
	}`

	vars := map[string]any{"boardID": boardID, "title": title, "type": columnType}
	if len(settings) > 0 {
		defaults, err := json.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal column settings: %w", err)
		}
		vars["defaults"] = string(defaults)
	}

	var response struct {
		CreateColumn struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Type  string `json:"type"`
		} `json:"create_column"`
	}
	if err := s.doQuery(ctx, query, vars, &response); err != nil {
		return nil, err
	}

	return &Column{
		ID:    response.CreateColumn.ID,
		Title: response.CreateColumn.Title,
		Type:  response.CreateColumn.Type,
	}, nil
}

// CreateItem creates an item with the given name and column values.
func (s *MondayService) CreateItem(ctx context.Context, boardID, name string, columnValues map[string]any) (*Item, error) {
	query := `mutation ($boardID: ID!, $name: String!, $values: JSON) {
		complexity { query before after reset_in_x_seconds }
		create_item (board_id: $boardID, item_name: $name, column_values: $values) { id name }
	}`

	vars := map[string]any{"boardID": boardID, "name": name}
	if len(columnValues) > 0 {
		values, err := json.Marshal(columnValues)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal column values: %w", err)
		}
		vars["values"] = string(values)
	}

	var response struct {
		CreateItem struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"create_item"`
	}
	if err := s.doQuery(ctx, query, vars, &response); err != nil {
		return nil, err
	}

	return &Item{ID: response.CreateItem.ID, Name: response.CreateItem.Name, BoardID: boardID}, nil
}

// CreateSubitem creates a sub-item under an existing parent item.
func (s *MondayService) CreateSubitem(ctx context.Context, parentItemID, name string, columnValues map[string]any) (*Item, error) {
	query := `mutation ($parentID: ID!, $name: String!, $values: JSON) {
		complexity { query before after reset_in_x_seconds }
		create_subitem (parent_item_id: $parentID, item_name: $name, column_values: $values) {
			id name board { id }
		}
	}`

	vars := map[string]any{"parentID": parentItemID, "name": name}
	if len(columnValues) > 0 {
		values, err := json.Marshal(columnValues)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal column values: %w", err)
		}
		vars["values"] = string(values)
	}

	var response struct {
		CreateSubitem struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Board struct {
				ID string `json:"id"`
			} `json:"board"`
		} `json:"create_subitem"`
	}
	if err := s.doQuery(ctx, query, vars, &response); err != nil {
		return nil, err
	}

	return &Item{
		ID:      response.CreateSubitem.ID,
		Name:    response.CreateSubitem.Name,
		BoardID: response.CreateSubitem.Board.ID,
	}, nil
}

// ChangeColumnValue sets one column's value on an existing item.
func (s *MondayService) ChangeColumnValue(ctx context.Context, boardID, itemID, columnID string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal column value: %w", err)
	}

	query := `mutation ($boardID: ID!, $itemID: ID!, $columnID: String!, $value: JSON!) {
		complexity { query before after reset_in_x_seconds }
		change_column_value (board_id: $boardID, item_id: $itemID, column_id: $columnID, value: $value) { id }
	}`

	vars := map[string]any{
		"boardID":  boardID,
		"itemID":   itemID,
		"columnID": columnID,
		"value":    string(encoded),
	}
	return s.doQuery(ctx, query, vars, nil)
}

// CreateUpdate posts an update (comment) on an item.
func (s *MondayService) CreateUpdate(ctx context.Context, itemID, body string) (*Update, error) {
	query := `mutation ($itemID: ID!, $body: String!) {
		complexity { query before after reset_in_x_seconds }
		create_update (item_id: $itemID, body: $body) { id text_body }
	}`

	var response struct {
		CreateUpdate struct {
			ID       string `json:"id"`
			TextBody string `json:"text_body"`
		} `json:"create_update"`
	}
	vars := map[string]any{"itemID": itemID, "body": body}
	if err := s.doQuery(ctx, query, vars, &response); err != nil {
		return nil, err
	}

	return &Update{ID: response.CreateUpdate.ID, Body: response.CreateUpdate.TextBody}, nil
}

// AddFileToColumn uploads a file into a file-type column on an item.
//
// Uses the multipart file endpoint rather than the JSON one; the query still
// travels as a form field per the API contract.
func (s *MondayService) AddFileToColumn(ctx context.Context, itemID, columnID, fileName string, data []byte) (*Asset, error) {
	if s.token == "" {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.governor.WaitForReset(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`mutation ($file: File!) { add_file_to_column (item_id: %s, column_id: %q, file: $file) { id name file_size url } }`,
		itemID, columnID,
	)

	var asset *Asset
	op := func() error {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		if err := writer.WriteField("query", query); err != nil {
			return fmt.Errorf("failed to write query field: %w", err)
		}
		part, err := writer.CreateFormFile("variables[file]", fileName)
		if err != nil {
			return fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return fmt.Errorf("failed to write file part: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("failed to finalize multipart body: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.fileURL, &buf)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", s.token)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: monday replied 429, retry-after %s", shared.ErrRateLimited, resp.Header.Get("Retry-After"))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: upload status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		var envelope mondayResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if len(envelope.Errors) > 0 {
			return fmt.Errorf("%w: %s", shared.ErrAPIRequest, envelope.Errors[0].Message)
		}

		var response struct {
			AddFileToColumn struct {
				ID       string      `json:"id"`
				Name     string      `json:"name"`
				FileSize json.Number `json:"file_size"`
				URL      string      `json:"url"`
			} `json:"add_file_to_column"`
		}
		if err := json.Unmarshal(envelope.Data, &response); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}

		size, _ := response.AddFileToColumn.FileSize.Int64()
		asset = &Asset{
			ID:   response.AddFileToColumn.ID,
			Name: response.AddFileToColumn.Name,
			Size: size,
			URL:  response.AddFileToColumn.URL,
		}
		return nil
	}

	_, err := ratelimit.Do(ctx, s.backoff, op)
	s.governor.RecordRequest()
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// GetBoard retrieves a board including its columns.
func (s *MondayService) GetBoard(ctx context.Context, boardID string) (*Board, error) {
	query := `query ($boardID: [ID!]) {
		complexity { query before after reset_in_x_seconds }
		boards (ids: $boardID) {
			id name
			columns { id title type }
		}
	}`

	var response struct {
		Boards []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Columns []struct {
				ID    string `json:"id"`
				Title string `json:"title"`
				Type  string `json:"type"`
			} `json:"columns"`
		} `json:"boards"`
	}
	vars := map[string]any{"boardID": []string{boardID}}
	if err := s.doQuery(ctx, query, vars, &response); err != nil {
		return nil, err
	}
	if len(response.Boards) == 0 {
		return nil, fmt.Errorf("%w: board %s", shared.ErrBoardNotFound, boardID)
	}

	raw := response.Boards[0]
	board := &Board{ID: raw.ID, Name: raw.Name}
	for _, c := range raw.Columns {
		board.Columns = append(board.Columns, Column{ID: c.ID, Title: c.Title, Type: c.Type})
	}
	return board, nil
}

// SearchItems finds items on a board whose name column matches exactly.
func (s *MondayService) SearchItems(ctx context.Context, boardID, name string) ([]Item, error) {
	query := `query ($boardID: ID!, $name: CompareValue!) {
		complexity { query before after reset_in_x_seconds }
		items_page_by_column_values (board_id: $boardID, columns: [{column_id: "name", column_values: [$name]}]) {
			items { id name }
		}
	}`

	var response struct {
		ItemsPage struct {
			Items []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"items"`
		} `json:"items_page_by_column_values"`
	}
	vars := map[string]any{"boardID": boardID, "name": name}
	if err := s.doQuery(ctx, query, vars, &response); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(response.ItemsPage.Items))
	for _, it := range response.ItemsPage.Items {
		items = append(items, Item{ID: it.ID, Name: it.Name, BoardID: boardID})
	}
	return items, nil
}

// ListItems retrieves all items on a board, following cursor pagination.
func (s *MondayService) ListItems(ctx context.Context, boardID string) ([]Item, error) {
	var all []Item
	cursor := ""

	for {
		query := `query ($boardID: [ID!], $cursor: String) {
			complexity { query before after reset_in_x_seconds }
			boards (ids: $boardID) {
				items_page (limit: 100, cursor: $cursor) {
					cursor
					items { id name }
				}
			}
		}`

		vars := map[string]any{"boardID": []string{boardID}}
		if cursor != "" {
			vars["cursor"] = cursor
		}

		var response struct {
			Boards []struct {
				ItemsPage struct {
					Cursor string `json:"cursor"`
					Items  []struct {
						ID   string `json:"id"`
						Name string `json:"name"`
					} `json:"items"`
				} `json:"items_page"`
			} `json:"boards"`
		}
		if err := s.doQuery(ctx, query, vars, &response); err != nil {
			return nil, err
		}
		if len(response.Boards) == 0 {
			return nil, fmt.Errorf("%w: board %s", shared.ErrBoardNotFound, boardID)
		}

		page := response.Boards[0].ItemsPage
		for _, it := range page.Items {
			all = append(all, Item{ID: it.ID, Name: it.Name, BoardID: boardID})
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	return all, nil
}

// GetItemAssets retrieves the files already present on an item.
func (s *MondayService) GetItemAssets(ctx context.Context, itemID string) ([]Asset, error) {
	query := `query ($itemID: [ID!]) {
		complexity { query before after reset_in_x_seconds }
		items (ids: $itemID) {
			assets { id name file_size url }
		}
	}`

	var response struct {
		Items []struct {
			Assets []struct {
				ID       string      `json:"id"`
				Name     string      `json:"name"`
				FileSize json.Number `json:"file_size"`
				URL      string      `json:"url"`
			} `json:"assets"`
		} `json:"items"`
	}
	vars := map[string]any{"itemID": []string{itemID}}
	if err := s.doQuery(ctx, query, vars, &response); err != nil {
		return nil, err
	}
	if len(response.Items) == 0 {
		return nil, fmt.Errorf("%w: item %s", shared.ErrItemNotFound, itemID)
	}

	assets := make([]Asset, 0, len(response.Items[0].Assets))
	for _, a := range response.Items[0].Assets {
		size, _ := a.FileSize.Int64()
		assets = append(assets, Asset{ID: a.ID, Name: a.Name, Size: size, URL: a.URL})
	}
	return assets, nil
}
