package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// TaskMappingRepository implements models.Repository[*models.TaskMapping].
//
// A mapping's target item id is never reassigned after insert: Update only
// touches sync_status, so replays either reuse a mapping or insert a new row.
type TaskMappingRepository struct {
	db *sql.DB
}

// NewTaskMappingRepository creates a new TaskMappingRepository with the given database connection
func NewTaskMappingRepository(db *sql.DB) *TaskMappingRepository {
	return &TaskMappingRepository{db: db}
}

// Create inserts a new task mapping into the database with generated ID and sequence
func (r *TaskMappingRepository) Create(mapping *models.TaskMapping) error {
	sequence, err := NextSequence(r.db, "task_mappings")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	mapping.SetID(id)
	mapping.SetSequence(sequence)

	if err := mapping.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO task_mappings (
			id, sequence, job_id, source_task_id, source_parent_id,
			target_item_id, target_parent_id, source_payload, sync_status,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		mapping.JobID(),
		mapping.SourceTaskID(),
		nullable(mapping.SourceParentID()),
		mapping.TargetItemID(),
		nullable(mapping.TargetParentID()),
		nullable(mapping.SourcePayload()),
		string(mapping.SyncStatus()),
		mapping.CreatedAt(),
		mapping.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task mapping: %w", err)
	}

	return nil
}

// Get retrieves a task mapping by ID, excluding soft-deleted mappings
func (r *TaskMappingRepository) Get(id string) (*models.TaskMapping, error) {
	rows, err := r.db.Query(selectTaskMappings+" WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query task mapping: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan task mapping: %w", err)
		}
		return nil, fmt.Errorf("task mapping not found: %s", id)
	}

	return scanTaskMapping(rows)
}

// GetBySourceTask retrieves the mapping for one source task within a job, or nil if none exists.
func (r *TaskMappingRepository) GetBySourceTask(jobID, sourceTaskID string) (*models.TaskMapping, error) {
	rows, err := r.db.Query(selectTaskMappings+" WHERE job_id = ? AND source_task_id = ? AND deleted_at IS NULL", jobID, sourceTaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task mapping: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	return scanTaskMapping(rows)
}

// Update persists sync_status changes only; all other columns are immutable.
func (r *TaskMappingRepository) Update(mapping *models.TaskMapping) error {
	if err := mapping.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	mapping.SetUpdatedAt(now)

	result, err := r.db.Exec(
		"UPDATE task_mappings SET sync_status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		string(mapping.SyncStatus()), now, mapping.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update task mapping: %w", err)
	}
	return requireRow(result, fmt.Errorf("task mapping not found"), mapping.ID())
}

// SetSyncStatus updates the sync status for a mapping by ID.
func (r *TaskMappingRepository) SetSyncStatus(id string, status models.SyncStatus) error {
	result, err := r.db.Exec(
		"UPDATE task_mappings SET sync_status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		string(status), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	return requireRow(result, fmt.Errorf("task mapping not found"), id)
}

// Delete soft-deletes a task mapping by ID
func (r *TaskMappingRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE task_mappings SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete task mapping: %w", err)
	}
	return requireRow(result, fmt.Errorf("task mapping not found"), id)
}

// List retrieves all task mappings matching the given criteria
func (r *TaskMappingRepository) List(criteria map[string]any) ([]*models.TaskMapping, error) {
	query := selectTaskMappings + " WHERE deleted_at IS NULL"
	args := []any{}

	if jobID, ok := criteria["job_id"].(string); ok && jobID != "" {
		query += " AND job_id = ?"
		args = append(args, jobID)
	}
	if status, ok := criteria["sync_status"].(string); ok && status != "" {
		query += " AND sync_status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query task mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.TaskMapping
	for rows.Next() {
		mapping, err := scanTaskMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return mappings, nil
}

// ListByJob retrieves all task mappings created by one replication job.
func (r *TaskMappingRepository) ListByJob(jobID string) ([]*models.TaskMapping, error) {
	return r.List(map[string]any{"job_id": jobID})
}

const selectTaskMappings = `
	SELECT id, sequence, job_id, source_task_id, source_parent_id,
		target_item_id, target_parent_id, source_payload, sync_status,
		created_at, updated_at, deleted_at
	FROM task_mappings
`

func scanTaskMapping(rows *sql.Rows) (*models.TaskMapping, error) {
	var (
		id             string
		sequence       int
		jobID          string
		sourceTaskID   string
		sourceParentID sql.NullString
		targetItemID   string
		targetParentID sql.NullString
		sourcePayload  sql.NullString
		syncStatus     string
		createdAt      time.Time
		updatedAt      time.Time
		deletedAt      sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &jobID, &sourceTaskID, &sourceParentID,
		&targetItemID, &targetParentID, &sourcePayload, &syncStatus,
		&createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task mapping: %w", err)
	}

	mapping := models.NewTaskMapping(jobID, sourceTaskID, sourceParentID.String,
		targetItemID, targetParentID.String, sourcePayload.String)
	mapping.SetID(id)
	mapping.SetSequence(sequence)
	mapping.SetSyncStatus(models.SyncStatus(syncStatus))
	mapping.SetCreatedAt(createdAt)
	mapping.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		mapping.SetDeletedAt(&deletedAt.Time)
	}

	return mapping, nil
}
