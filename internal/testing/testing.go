// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/AskChad/ClickUp-Monday-sync/internal/services"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// MockSource is a configurable test double for [services.SourceService].
//
// Zero-value fields produce empty successful responses; set the function
// fields to script behavior per test.
type MockSource struct {
	Lists       map[string]*services.List
	Fields      map[string][]services.CustomField
	Tasks       map[string][]services.Task
	Details     map[string]*services.Task
	Comments    map[string][]services.Comment
	Attachments map[string][]byte

	// GetTaskFunc, when set, overrides detail lookups entirely.
	GetTaskFunc func(ctx context.Context, taskID string) (*services.Task, error)
	// GetCustomFieldsFunc, when set, overrides field lookups entirely.
	GetCustomFieldsFunc func(ctx context.Context, listID string) ([]services.CustomField, error)
	// FailDownloads makes every attachment download fail.
	FailDownloads bool
}

func (m *MockSource) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (m *MockSource) GetList(ctx context.Context, listID string) (*services.List, error) {
	if list, ok := m.Lists[listID]; ok {
		return list, nil
	}
	return nil, fmt.Errorf("%w: list %s", shared.ErrListNotFound, listID)
}

func (m *MockSource) GetCustomFields(ctx context.Context, listID string) ([]services.CustomField, error) {
	if m.GetCustomFieldsFunc != nil {
		return m.GetCustomFieldsFunc(ctx, listID)
	}
	return m.Fields[listID], nil
}

func (m *MockSource) GetTasks(ctx context.Context, listID string, filter services.TaskFilter) ([]services.Task, error) {
	tasks := m.Tasks[listID]
	var out []services.Task
	for _, t := range tasks {
		if t.ParentID != "" && !filter.IncludeSubtasks {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *MockSource) GetTask(ctx context.Context, taskID string) (*services.Task, error) {
	if m.GetTaskFunc != nil {
		return m.GetTaskFunc(ctx, taskID)
	}
	if detail, ok := m.Details[taskID]; ok {
		return detail, nil
	}
	for _, tasks := range m.Tasks {
		for i := range tasks {
			if tasks[i].ID == taskID {
				return &tasks[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: task %s", shared.ErrTaskNotFound, taskID)
}

func (m *MockSource) GetComments(ctx context.Context, taskID string) ([]services.Comment, error) {
	return m.Comments[taskID], nil
}

func (m *MockSource) DownloadAttachment(ctx context.Context, att services.Attachment) ([]byte, error) {
	if m.FailDownloads {
		return nil, fmt.Errorf("%w: download refused", shared.ErrAPIRequest)
	}
	if data, ok := m.Attachments[att.ID]; ok {
		return data, nil
	}
	return []byte(att.Name), nil
}

func (m *MockSource) Name() string { return "mock-source" }

// MockTarget is a stateful test double for [services.TargetService]. It
// records every mutation so tests can assert on what was created.
type MockTarget struct {
	mu sync.Mutex

	Boards   map[string]*services.Board
	Items    map[string][]services.Item // board id -> items
	Subitems map[string][]services.Item // parent item id -> subitems
	Updates  map[string][]string        // item id -> update bodies
	Assets   map[string][]services.Asset
	Values   map[string]map[string]any // item id -> column id -> value

	nextID int

	// CreateItemErr fails item creation for tasks whose name matches.
	CreateItemErr map[string]error
	// CreateBoardErr fails board creation.
	CreateBoardErr error
	// CreateColumnErr fails every column creation.
	CreateColumnErr error
	// FlakyItemFailures makes CreateItem fail this many times per name
	// before succeeding, to exercise retry paths.
	FlakyItemFailures map[string]int
}

func NewMockTarget() *MockTarget {
	return &MockTarget{
		Boards:   map[string]*services.Board{},
		Items:    map[string][]services.Item{},
		Subitems: map[string][]services.Item{},
		Updates:  map[string][]string{},
		Assets:   map[string][]services.Asset{},
		Values:   map[string]map[string]any{},
	}
}

func (m *MockTarget) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *MockTarget) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (m *MockTarget) CreateBoard(ctx context.Context, name, kind string) (*services.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateBoardErr != nil {
		return nil, m.CreateBoardErr
	}
	board := &services.Board{ID: m.id("board"), Name: name}
	m.Boards[board.ID] = board
	return board, nil
}

func (m *MockTarget) CreateColumn(ctx context.Context, boardID, title, columnType string, settings map[string]any) (*services.Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateColumnErr != nil {
		return nil, m.CreateColumnErr
	}
	board, ok := m.Boards[boardID]
	if !ok {
		return nil, fmt.Errorf("%w: board %s", shared.ErrBoardNotFound, boardID)
	}
	col := services.Column{ID: m.id("col"), Title: title, Type: columnType}
	board.Columns = append(board.Columns, col)
	return &col, nil
}

func (m *MockTarget) CreateItem(ctx context.Context, boardID, name string, columnValues map[string]any) (*services.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.CreateItemErr[name]; ok {
		return nil, err
	}
	if remaining, ok := m.FlakyItemFailures[name]; ok && remaining > 0 {
		m.FlakyItemFailures[name] = remaining - 1
		return nil, errors.New("transient item creation failure")
	}
	item := services.Item{ID: m.id("item"), Name: name, BoardID: boardID}
	m.Items[boardID] = append(m.Items[boardID], item)
	if len(columnValues) > 0 {
		m.Values[item.ID] = columnValues
	}
	return &item, nil
}

func (m *MockTarget) CreateSubitem(ctx context.Context, parentItemID, name string, columnValues map[string]any) (*services.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := services.Item{ID: m.id("sub"), Name: name}
	m.Subitems[parentItemID] = append(m.Subitems[parentItemID], item)
	if len(columnValues) > 0 {
		m.Values[item.ID] = columnValues
	}
	return &item, nil
}

func (m *MockTarget) ChangeColumnValue(ctx context.Context, boardID, itemID, columnID string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Values[itemID] == nil {
		m.Values[itemID] = map[string]any{}
	}
	m.Values[itemID][columnID] = value
	return nil
}

func (m *MockTarget) CreateUpdate(ctx context.Context, itemID, body string) (*services.Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates[itemID] = append(m.Updates[itemID], body)
	return &services.Update{ID: m.id("update"), Body: body}, nil
}

func (m *MockTarget) AddFileToColumn(ctx context.Context, itemID, columnID, fileName string, data []byte) (*services.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset := services.Asset{ID: m.id("asset"), Name: fileName, Size: int64(len(data))}
	m.Assets[itemID] = append(m.Assets[itemID], asset)
	return &asset, nil
}

func (m *MockTarget) GetBoard(ctx context.Context, boardID string) (*services.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if board, ok := m.Boards[boardID]; ok {
		return board, nil
	}
	return nil, fmt.Errorf("%w: board %s", shared.ErrBoardNotFound, boardID)
}

func (m *MockTarget) SearchItems(ctx context.Context, boardID, name string) ([]services.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []services.Item
	for _, item := range m.Items[boardID] {
		if item.Name == name {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *MockTarget) ListItems(ctx context.Context, boardID string) ([]services.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.Item(nil), m.Items[boardID]...), nil
}

func (m *MockTarget) GetItemAssets(ctx context.Context, itemID string) ([]services.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.Asset(nil), m.Assets[itemID]...), nil
}

func (m *MockTarget) Name() string { return "mock-target" }

// SeedBoard registers a board with items so file sync tests have something
// to match against. Returns the board id.
func (m *MockTarget) SeedBoard(name string, itemNames ...string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	board := &services.Board{ID: m.id("board"), Name: name}
	m.Boards[board.ID] = board
	for _, itemName := range itemNames {
		item := services.Item{ID: m.id("item"), Name: itemName, BoardID: board.ID}
		m.Items[board.ID] = append(m.Items[board.ID], item)
	}
	return board.ID
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// MustOpenDB opens an in-memory SQLite database with the schema migrated,
// closed automatically when the test finishes.
func MustOpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}
