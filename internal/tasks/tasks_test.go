package tasks

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
	"github.com/AskChad/ClickUp-Monday-sync/internal/repositories"
	"github.com/AskChad/ClickUp-Monday-sync/internal/services"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
	tu "github.com/AskChad/ClickUp-Monday-sync/internal/testing"
)

type fixture struct {
	engine    *Engine
	jobs      *repositories.JobRepository
	fields    *repositories.FieldMappingRepository
	taskMaps  *repositories.TaskMappingRepository
	transfers *repositories.TransferRepository
	source    *tu.MockSource
	target    *tu.MockTarget
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := tu.MustOpenDB(t)

	f := &fixture{
		jobs:      repositories.NewJobRepository(db),
		fields:    repositories.NewFieldMappingRepository(db),
		taskMaps:  repositories.NewTaskMappingRepository(db),
		transfers: repositories.NewTransferRepository(db),
		source: &tu.MockSource{
			Lists:  map[string]*services.List{},
			Fields: map[string][]services.CustomField{},
			Tasks:  map[string][]services.Task{},
		},
		target: tu.NewMockTarget(),
	}

	cfg := shared.SyncConfig{BatchSize: 2, BatchDelayMS: 1, MaxRetries: 2}
	f.engine = NewEngine(f.jobs, f.fields, f.taskMaps, f.transfers, f.source, f.target, shared.NewLogger(io.Discard), cfg)
	return f
}

// runFileSync starts a file sync job and waits for it to finish.
func (f *fixture) runFileSync(t *testing.T, listID, boardID string, opts FileSyncOptions) *JobSnapshot {
	t.Helper()
	jobID, err := f.engine.StartFileSync(context.Background(), nil, listID, boardID, opts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	f.engine.Wait()

	snapshot, err := f.engine.JobStatus(jobID)
	if err != nil {
		t.Fatalf("expected snapshot, got %v", err)
	}
	return snapshot
}

// runReplication starts a replication job and waits for it to finish.
func (f *fixture) runReplication(t *testing.T, listID, boardName string, opts ReplicationOptions) *JobSnapshot {
	t.Helper()
	jobID, err := f.engine.StartReplication(context.Background(), nil, listID, boardName, opts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	f.engine.Wait()

	snapshot, err := f.engine.JobStatus(jobID)
	if err != nil {
		t.Fatalf("expected snapshot, got %v", err)
	}
	return snapshot
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("Missing Source List", func(t *testing.T) {
		_, err := f.engine.StartFileSync(ctx, nil, "", "board-1", FileSyncOptions{})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Unknown Replication Mode", func(t *testing.T) {
		_, err := f.engine.StartReplication(ctx, nil, "list-1", "", ReplicationOptions{Mode: "partial"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Nil Service", func(t *testing.T) {
		bare := NewEngine(f.jobs, f.fields, f.taskMaps, f.transfers, nil, f.target, shared.NewLogger(io.Discard), shared.SyncConfig{})
		_, err := bare.StartFileSync(ctx, nil, "list-1", "board-1", FileSyncOptions{})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

// Scenario: attachments land on matching items, tasks without attachments
// never enter the run, tasks without a match are skipped, and duplicates are
// detected against existing assets.
func TestFileSyncScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	boardID := f.target.SeedBoard("Sprint Board", "Fix Login", "Other Work")
	items, _ := f.target.ListItems(ctx, boardID)
	matched := items[0]

	// An asset already on the matched item, to trigger duplicate skip.
	f.target.Assets[matched.ID] = []services.Asset{{ID: "pre", Name: "dup.txt", Size: 4}}

	f.source.Lists["list-1"] = &services.List{ID: "list-1", Name: "Sprint", TaskCount: 3}
	f.source.Tasks["list-1"] = []services.Task{
		{
			ID:   "t1",
			Name: "fix login",
			URL:  "https://source/t1",
			Attachments: []services.Attachment{
				{ID: "a1", Name: "log.txt", Size: 7, URL: "https://files/a1"},
				{ID: "a2", Name: "dup.txt", Size: 4, URL: "https://files/a2"},
			},
		},
		{ID: "t2", Name: "No Files", URL: "https://source/t2"},
		{
			ID:          "t3",
			Name:        "Completely Unrelated",
			URL:         "https://source/t3",
			Attachments: []services.Attachment{{ID: "a3", Name: "x.txt", Size: 1, URL: "https://files/a3"}},
		},
	}

	snapshot := f.runFileSync(t, "list-1", boardID, FileSyncOptions{SkipDuplicates: true, LinkBack: true})

	if snapshot.Job.Status() != models.StatusCompleted {
		t.Fatalf("expected completed job, got %s (%v)", snapshot.Job.Status(), snapshot.Job.ErrorLog())
	}
	// Only t1 and t3 carry attachments; the attachment-free t2 must not
	// inflate the job total.
	if snapshot.Job.TotalItems() != 2 || snapshot.Job.ProcessedItems() != 2 {
		t.Errorf("expected 2/2 progress, got %d/%d", snapshot.Job.ProcessedItems(), snapshot.Job.TotalItems())
	}

	if snapshot.Transferred != 1 {
		t.Errorf("expected 1 transferred file, got %d", snapshot.Transferred)
	}
	if snapshot.SkippedFiles != 1 {
		t.Errorf("expected 1 skipped duplicate, got %d", snapshot.SkippedFiles)
	}

	// The upload created a file column lazily and put log.txt on the item.
	uploaded := f.target.Assets[matched.ID]
	var found bool
	for _, a := range uploaded {
		if a.Name == "log.txt" && a.Size == 7 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected log.txt uploaded onto matched item, got %v", uploaded)
	}

	board, _ := f.target.GetBoard(ctx, boardID)
	var fileCols, linkCols int
	for _, col := range board.Columns {
		switch col.Type {
		case "file":
			fileCols++
		case "link":
			linkCols++
		}
	}
	if fileCols != 1 {
		t.Errorf("expected exactly one lazily created file column, got %d", fileCols)
	}
	if linkCols != 1 {
		t.Errorf("expected link-back column, got %d", linkCols)
	}

	// Link-back wrote the source URL onto the item.
	values := f.target.Values[matched.ID]
	if len(values) == 0 {
		t.Error("expected a link-back column value on the matched item")
	}

	records, err := f.transfers.ListByJob(snapshot.Job.ID())
	if err != nil {
		t.Fatalf("expected transfer records, got %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 transfer records for t1, got %d", len(records))
	}
}

// Scenario: a full replication recreates structure and data, including
// custom columns, field mappings, sub-items, descriptions, and comments.
func TestReplicationFullScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.source.Lists["list-1"] = &services.List{ID: "list-1", Name: "Sprint", TaskCount: 2}
	f.source.Fields["list-1"] = []services.CustomField{
		{ID: "f1", Name: "Severity", Type: "drop_down"},
		{ID: "f2", Name: "Points", Type: "number"},
	}
	f.source.Tasks["list-1"] = []services.Task{
		{
			ID:          "t1",
			Name:        "Fix login",
			Description: "Users cannot sign in",
			Status:      "in progress",
			Priority:    1,
			DueDate:     1756339200000,
			CustomFields: []services.CustomFieldValue{
				{FieldID: "f1", FieldName: "Severity", Type: "drop_down", Value: "Critical"},
				{FieldID: "f2", FieldName: "Points", Type: "number", Value: 5.0},
			},
		},
		{ID: "t2", Name: "Write docs", Status: "open"},
		{ID: "t1a", Name: "Reset tokens", ParentID: "t1", Status: "blocked", Priority: 2},
	}
	f.source.Comments = map[string][]services.Comment{
		"t1": {{ID: "c1", Author: "kim", Body: "root cause found", Date: 1756300000000}},
	}

	snapshot := f.runReplication(t, "list-1", "Sprint Copy", ReplicationOptions{
		Mode:            ModeFull,
		IncludeSubtasks: true,
		IncludeComments: true,
	})

	if snapshot.Job.Status() != models.StatusCompleted {
		t.Fatalf("expected completed job, got %s (%v)", snapshot.Job.Status(), snapshot.Job.ErrorLog())
	}

	boardID := snapshot.Job.TargetBoardID()
	if boardID == "" {
		t.Fatal("expected target board recorded on the job")
	}
	if snapshot.Job.TargetBoardName() != "Sprint Copy" {
		t.Errorf("unexpected board name %q", snapshot.Job.TargetBoardName())
	}

	board, err := f.target.GetBoard(ctx, boardID)
	if err != nil {
		t.Fatalf("expected board, got %v", err)
	}
	// 5 standard columns plus one per custom field.
	if len(board.Columns) != 7 {
		t.Errorf("expected 7 columns, got %d: %v", len(board.Columns), board.Columns)
	}

	if snapshot.FieldMappings != 2 {
		t.Errorf("expected 2 field mappings, got %d", snapshot.FieldMappings)
	}

	items, _ := f.target.ListItems(ctx, boardID)
	if len(items) != 2 {
		t.Fatalf("expected 2 top-level items, got %d", len(items))
	}

	// Column values made it onto the first item.
	var loginItem services.Item
	for _, item := range items {
		if item.Name == "Fix login" {
			loginItem = item
		}
	}
	if loginItem.ID == "" {
		t.Fatal("expected item named after the source task")
	}
	if len(f.target.Values[loginItem.ID]) == 0 {
		t.Error("expected column values on the created item")
	}

	// Description and comment arrived as updates.
	updates := f.target.Updates[loginItem.ID]
	if len(updates) != 2 {
		t.Fatalf("expected description and comment updates, got %v", updates)
	}

	// The subtask became a sub-item of its parent, with its own field values.
	subs := f.target.Subitems[loginItem.ID]
	if len(subs) != 1 || subs[0].Name != "Reset tokens" {
		t.Fatalf("expected one sub-item, got %v", subs)
	}
	if len(f.target.Values[subs[0].ID]) == 0 {
		t.Error("expected status and priority values on the sub-item")
	}

	// Parent, sibling, and child mappings all persisted.
	if snapshot.TaskMappings != 3 {
		t.Errorf("expected 3 task mappings, got %d", snapshot.TaskMappings)
	}
	mapping, err := f.taskMaps.GetBySourceTask(snapshot.Job.ID(), "t1")
	if err != nil || mapping == nil {
		t.Fatalf("expected mapping for t1, got %v, %v", mapping, err)
	}
	if mapping.TargetItemID() != loginItem.ID {
		t.Errorf("mapping points at %s, want %s", mapping.TargetItemID(), loginItem.ID)
	}
	if mapping.SyncStatus() != models.SyncStatusSynced {
		t.Errorf("expected synced mapping, got %s", mapping.SyncStatus())
	}
}

// Scenario: preserve flags control whether assignees and due dates land on
// the created items.
func TestReplicationPreserveFlags(t *testing.T) {
	seed := func(f *fixture) {
		f.source.Lists["list-1"] = &services.List{ID: "list-1", Name: "Sprint"}
		f.source.Tasks["list-1"] = []services.Task{{
			ID:        "t1",
			Name:      "Fix login",
			Status:    "open",
			DueDate:   1756339200000,
			Assignees: []services.User{{ID: "u1", Name: "Kim"}},
		}}
	}

	itemValues := func(t *testing.T, f *fixture, opts ReplicationOptions) (map[string]string, map[string]any) {
		t.Helper()
		ctx := context.Background()

		snapshot := f.runReplication(t, "list-1", "Sprint Copy", opts)
		if snapshot.Job.Status() != models.StatusCompleted {
			t.Fatalf("expected completed job, got %s", snapshot.Job.Status())
		}

		board, err := f.target.GetBoard(ctx, snapshot.Job.TargetBoardID())
		if err != nil {
			t.Fatalf("expected board, got %v", err)
		}
		columns := map[string]string{}
		for _, c := range board.Columns {
			columns[c.Title] = c.ID
		}

		items, _ := f.target.ListItems(ctx, board.ID)
		if len(items) != 1 {
			t.Fatalf("expected one item, got %d", len(items))
		}
		return columns, f.target.Values[items[0].ID]
	}

	t.Run("preserved by request", func(t *testing.T) {
		f := newFixture(t)
		seed(f)

		columns, values := itemValues(t, f, ReplicationOptions{
			Mode:              ModeFull,
			PreserveAssignees: true,
			PreserveDates:     true,
		})

		if _, ok := values[columns["Due Date"]]; !ok {
			t.Error("expected due date carried onto the item")
		}
		if _, ok := values[columns["Assignees"]]; !ok {
			t.Error("expected assignees carried onto the item")
		}
	})

	t.Run("dropped when not preserved", func(t *testing.T) {
		f := newFixture(t)
		seed(f)

		columns, values := itemValues(t, f, ReplicationOptions{Mode: ModeFull})

		if _, ok := values[columns["Due Date"]]; ok {
			t.Error("expected due date dropped from the item")
		}
		if _, ok := values[columns["Assignees"]]; ok {
			t.Error("expected assignees dropped from the item")
		}
		if _, ok := values[columns["Status"]]; !ok {
			t.Error("expected status still carried onto the item")
		}
	})
}

// Scenario: structure_only stops after board and column creation.
func TestReplicationStructureOnlyScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.source.Lists["list-1"] = &services.List{ID: "list-1", Name: "Sprint"}
	f.source.Fields["list-1"] = []services.CustomField{{ID: "f1", Name: "Severity", Type: "drop_down"}}
	f.source.Tasks["list-1"] = []services.Task{{ID: "t1", Name: "Fix login"}}

	snapshot := f.runReplication(t, "list-1", "", ReplicationOptions{Mode: ModeStructureOnly})

	if snapshot.Job.Status() != models.StatusCompleted {
		t.Fatalf("expected completed job, got %s", snapshot.Job.Status())
	}
	// Board name falls back to the source list name.
	if snapshot.Job.TargetBoardName() != "Sprint" {
		t.Errorf("expected board named after the list, got %q", snapshot.Job.TargetBoardName())
	}
	if snapshot.Job.TotalItems() != 0 {
		t.Errorf("expected no migration work, got total %d", snapshot.Job.TotalItems())
	}
	if snapshot.FieldMappings != 1 {
		t.Errorf("expected field mapping persisted, got %d", snapshot.FieldMappings)
	}

	items, _ := f.target.ListItems(ctx, snapshot.Job.TargetBoardID())
	if len(items) != 0 {
		t.Errorf("expected no items created, got %d", len(items))
	}
	if snapshot.TaskMappings != 0 {
		t.Errorf("expected no task mappings, got %d", snapshot.TaskMappings)
	}
}

// Scenario: data_only creates a bare board and never reads the source field
// structure.
func TestReplicationDataOnlyScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.source.Lists["list-1"] = &services.List{ID: "list-1", Name: "Sprint"}
	f.source.Tasks["list-1"] = []services.Task{{ID: "t1", Name: "Fix login", Status: "open"}}
	f.source.GetCustomFieldsFunc = func(ctx context.Context, listID string) ([]services.CustomField, error) {
		t.Error("custom fields must not be fetched in data_only mode")
		return nil, errors.New("unexpected call")
	}

	snapshot := f.runReplication(t, "list-1", "Sprint Copy", ReplicationOptions{Mode: ModeDataOnly})

	if snapshot.Job.Status() != models.StatusCompleted {
		t.Fatalf("expected completed job, got %s (%v)", snapshot.Job.Status(), snapshot.Job.ErrorLog())
	}
	if snapshot.FieldMappings != 0 {
		t.Errorf("expected no field mappings, got %d", snapshot.FieldMappings)
	}

	board, err := f.target.GetBoard(ctx, snapshot.Job.TargetBoardID())
	if err != nil {
		t.Fatalf("expected board, got %v", err)
	}
	if len(board.Columns) != 0 {
		t.Errorf("expected no columns, got %v", board.Columns)
	}

	items, _ := f.target.ListItems(ctx, board.ID)
	if len(items) != 1 || items[0].Name != "Fix login" {
		t.Fatalf("expected the task migrated as a bare item, got %v", items)
	}
	if len(f.target.Values[items[0].ID]) != 0 {
		t.Errorf("expected no column values without columns, got %v", f.target.Values[items[0].ID])
	}
}

// Scenario: per-item failures are retried, recorded, and never halt the run;
// a transient failure recovers, a permanent one lands in the error log.
func TestReplicationFailureScenario(t *testing.T) {
	f := newFixture(t)

	f.source.Lists["list-1"] = &services.List{ID: "list-1", Name: "Sprint"}
	f.source.Tasks["list-1"] = []services.Task{
		{ID: "t1", Name: "Good Task"},
		{ID: "t2", Name: "Flaky Task"},
		{ID: "t3", Name: "Bad Task"},
	}
	f.target.FlakyItemFailures = map[string]int{"Flaky Task": 1}
	f.target.CreateItemErr = map[string]error{"Bad Task": errors.New("board locked")}

	snapshot := f.runReplication(t, "list-1", "Sprint Copy", ReplicationOptions{Mode: ModeFull})

	// Item failures do not fail the job.
	if snapshot.Job.Status() != models.StatusCompleted {
		t.Fatalf("expected completed job, got %s", snapshot.Job.Status())
	}
	if snapshot.Job.ProcessedItems() != 3 {
		t.Errorf("expected all 3 items processed, got %d", snapshot.Job.ProcessedItems())
	}

	// The flaky task recovered on retry, the bad one did not.
	if snapshot.TaskMappings != 2 {
		t.Errorf("expected 2 task mappings, got %d", snapshot.TaskMappings)
	}
	mapping, err := f.taskMaps.GetBySourceTask(snapshot.Job.ID(), "t3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mapping != nil {
		t.Errorf("expected no mapping for the failed task, got %+v", mapping)
	}

	log := snapshot.Job.ErrorLog()
	if len(log) == 0 {
		t.Fatal("expected the failure in the job error log")
	}
	var logged bool
	for _, entry := range log {
		if strings.Contains(entry.Message, "t3") && strings.Contains(entry.Message, "board locked") {
			logged = true
		}
	}
	if !logged {
		t.Errorf("expected error log entry naming t3, got %v", log)
	}
}
