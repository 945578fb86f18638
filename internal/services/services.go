package services

import (
	"context"
)

// SourceService defines read access to the task-management platform tasks
// and attachments are copied from.
type SourceService interface {
	// Authenticate validates credentials and prepares the client for use.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetList retrieves metadata for a single list.
	GetList(ctx context.Context, listID string) (*List, error)

	// GetCustomFields retrieves the custom field definitions for a list.
	GetCustomFields(ctx context.Context, listID string) ([]CustomField, error)

	// GetTasks retrieves all tasks on a list, honoring the filter.
	GetTasks(ctx context.Context, listID string, filter TaskFilter) ([]Task, error)

	// GetTask retrieves one task's full detail, including attachments.
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// GetComments retrieves the comments on a task, oldest first.
	GetComments(ctx context.Context, taskID string) ([]Comment, error)

	// DownloadAttachment fetches an attachment's bytes.
	DownloadAttachment(ctx context.Context, att Attachment) ([]byte, error)

	// Name returns the service name (e.g. "ClickUp")
	Name() string
}

// TargetService defines write access to the board-based platform items and
// columns are created in.
//
// Mutations are not transactional: a failure after partial creation leaves
// orphaned remote state that callers must tolerate.
type TargetService interface {
	// Authenticate validates credentials and prepares the client for use.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// CreateBoard creates a new board and returns it.
	CreateBoard(ctx context.Context, name, kind string) (*Board, error)

	// CreateColumn adds a column of the given type to a board.
	CreateColumn(ctx context.Context, boardID, title, columnType string, settings map[string]any) (*Column, error)

	// CreateItem creates an item with the given name and column values.
	CreateItem(ctx context.Context, boardID, name string, columnValues map[string]any) (*Item, error)

	// CreateSubitem creates a sub-item under an existing parent item.
	CreateSubitem(ctx context.Context, parentItemID, name string, columnValues map[string]any) (*Item, error)

	// ChangeColumnValue sets one column's value on an existing item.
	ChangeColumnValue(ctx context.Context, boardID, itemID, columnID string, value any) error

	// CreateUpdate posts an update (comment) on an item.
	CreateUpdate(ctx context.Context, itemID, body string) (*Update, error)

	// AddFileToColumn uploads a file into a file-type column on an item.
	AddFileToColumn(ctx context.Context, itemID, columnID, fileName string, data []byte) (*Asset, error)

	// GetBoard retrieves a board including its columns.
	GetBoard(ctx context.Context, boardID string) (*Board, error)

	// SearchItems finds items on a board by exact name.
	SearchItems(ctx context.Context, boardID, name string) ([]Item, error)

	// ListItems retrieves all items on a board.
	ListItems(ctx context.Context, boardID string) ([]Item, error)

	// GetItemAssets retrieves the files already present on an item.
	GetItemAssets(ctx context.Context, itemID string) ([]Asset, error)

	// Name returns the service name (e.g. "Monday")
	Name() string
}

// TaskFilter narrows a GetTasks call.
type TaskFilter struct {
	IncludeClosed   bool
	IncludeSubtasks bool
}

// List represents a source list's metadata.
type List struct {
	ID        string
	Name      string
	TaskCount int
}

// CustomField represents one custom field definition on a source list.
type CustomField struct {
	ID   string
	Name string
	Type string
}

// CustomFieldValue is one custom field's value on a task.
type CustomFieldValue struct {
	FieldID   string
	FieldName string
	Type      string
	Value     any
}

// User represents an assignee on a source task.
type User struct {
	ID   string
	Name string
}

// Task represents a source task.
type Task struct {
	ID           string
	Name         string
	Description  string
	Status       string
	Priority     int   // 1 (urgent) .. 4 (low); 0 when unset
	DueDate      int64 // milliseconds since epoch; 0 when unset
	URL          string
	ParentID     string
	Assignees    []User
	Tags         []string
	CustomFields []CustomFieldValue
	Attachments  []Attachment
}

// Comment represents one comment on a source task.
type Comment struct {
	ID     string
	Author string
	Body   string
	Date   int64 // milliseconds since epoch
}

// Attachment represents one file attached to a source task.
type Attachment struct {
	ID   string
	Name string
	Size int64
	URL  string
}

// Board represents a target board.
type Board struct {
	ID      string
	Name    string
	Columns []Column
}

// Column represents a column on a target board.
type Column struct {
	ID    string
	Title string
	Type  string
}

// Item represents an item on a target board.
type Item struct {
	ID      string
	Name    string
	BoardID string
}

// Update represents a posted update (comment) on a target item.
type Update struct {
	ID   string
	Body string
}

// Asset represents a file stored on a target item.
type Asset struct {
	ID   string
	Name string
	Size int64
	URL  string
}
