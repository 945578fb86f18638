package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// JobRepository implements models.Repository[*models.JobRecord] for orchestration tracking.
//
// Beyond CRUD it provides the incremental mutations orchestrators rely on:
// atomic progress counters, append-only error log growth, and status
// transitions with start/completion stamping.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record into the database with generated ID and sequence
func (r *JobRepository) Create(job *models.JobRecord) error {
	sequence, err := NextSequence(r.db, "jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	job.SetID(id)
	job.SetSequence(sequence)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	errorLog, err := json.Marshal(job.ErrorLog())
	if err != nil {
		return fmt.Errorf("failed to encode error log: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, sequence, kind, status, source_list_id, target_board_id,
			target_board_name, total_items, processed_items, options,
			error_log, started_at, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		string(job.Kind()),
		string(job.Status()),
		job.SourceListID(),
		nullable(job.TargetBoardID()),
		nullable(job.TargetBoardName()),
		job.TotalItems(),
		job.ProcessedItems(),
		nullable(job.Options()),
		string(errorLog),
		job.StartedAt(),
		job.CompletedAt(),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// Get retrieves a job by ID, excluding soft-deleted jobs
func (r *JobRepository) Get(id string) (*models.JobRecord, error) {
	query := selectJobs + " WHERE id = ? AND deleted_at IS NULL"
	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		return nil, shared.ErrJobNotFound
	}

	return scanJob(rows)
}

// Update modifies an existing job record in the database
func (r *JobRepository) Update(job *models.JobRecord) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	errorLog, err := json.Marshal(job.ErrorLog())
	if err != nil {
		return fmt.Errorf("failed to encode error log: %w", err)
	}

	query := `
		UPDATE jobs
		SET status = ?, target_board_id = ?, target_board_name = ?,
			total_items = ?, processed_items = ?, error_log = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(job.Status()),
		nullable(job.TargetBoardID()),
		nullable(job.TargetBoardName()),
		job.TotalItems(),
		job.ProcessedItems(),
		string(errorLog),
		job.StartedAt(),
		job.CompletedAt(),
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return requireRow(result, shared.ErrJobNotFound, job.ID())
}

// Delete soft-deletes a job by ID
func (r *JobRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE jobs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return requireRow(result, shared.ErrJobNotFound, id)
}

// List retrieves all jobs matching the given criteria, excluding soft-deleted jobs
func (r *JobRepository) List(criteria map[string]any) ([]*models.JobRecord, error) {
	query := selectJobs + " WHERE deleted_at IS NULL"
	args := []any{}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.JobRecord
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// SetStatus transitions a job's status, stamping started_at on the first
// running-phase transition and completed_at on terminal states.
func (r *JobRepository) SetStatus(id string, status models.JobStatus) error {
	now := time.Now()

	query := "UPDATE jobs SET status = ?, updated_at = ?"
	args := []any{string(status), now}

	switch status {
	case models.StatusRunning, models.StatusCreating:
		query += ", started_at = COALESCE(started_at, ?)"
		args = append(args, now)
	case models.StatusCompleted, models.StatusFailed, models.StatusCancelled:
		query += ", completed_at = ?"
		args = append(args, now)
	}

	query += " WHERE id = ? AND deleted_at IS NULL"
	args = append(args, id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	return requireRow(result, shared.ErrJobNotFound, id)
}

// SetTotal sets the total item count for a job.
func (r *JobRepository) SetTotal(id string, total int) error {
	result, err := r.db.Exec("UPDATE jobs SET total_items = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL", total, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set job total: %w", err)
	}
	return requireRow(result, shared.ErrJobNotFound, id)
}

// AddProgress atomically increments the processed counter by delta.
func (r *JobRepository) AddProgress(id string, delta int) error {
	result, err := r.db.Exec("UPDATE jobs SET processed_items = processed_items + ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL", delta, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return requireRow(result, shared.ErrJobNotFound, id)
}

// SetTargetBoard persists the created target board's identity onto the job.
func (r *JobRepository) SetTargetBoard(id, boardID, boardName string) error {
	result, err := r.db.Exec("UPDATE jobs SET target_board_id = ?, target_board_name = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL", boardID, boardName, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set target board: %w", err)
	}
	return requireRow(result, shared.ErrJobNotFound, id)
}

// AppendError appends a timestamped message to the job's error log.
//
// The log is stored as a JSON array and only ever grows; this reads the
// current log and writes it back with the new entry in one transaction.
func (r *JobRepository) AppendError(id, msg string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRow("SELECT error_log FROM jobs WHERE id = ? AND deleted_at IS NULL", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return shared.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read error log: %w", err)
	}

	var entries []models.ErrorEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		entries = []models.ErrorEntry{}
	}
	entries = append(entries, models.ErrorEntry{Timestamp: time.Now(), Message: msg})

	encoded, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode error log: %w", err)
	}

	if _, err := tx.Exec("UPDATE jobs SET error_log = ?, updated_at = ? WHERE id = ?", string(encoded), time.Now(), id); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}

	return tx.Commit()
}

const selectJobs = `
	SELECT id, sequence, kind, status, source_list_id, target_board_id,
		target_board_name, total_items, processed_items, options, error_log,
		started_at, completed_at, created_at, updated_at, deleted_at
	FROM jobs
`

func scanJob(rows *sql.Rows) (*models.JobRecord, error) {
	var (
		id              string
		sequence        int
		kind            string
		status          string
		sourceListID    string
		targetBoardID   sql.NullString
		targetBoardName sql.NullString
		totalItems      int
		processedItems  int
		options         sql.NullString
		errorLog        string
		startedAt       sql.NullTime
		completedAt     sql.NullTime
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &kind, &status, &sourceListID, &targetBoardID,
		&targetBoardName, &totalItems, &processedItems, &options, &errorLog,
		&startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job := models.NewJobRecord(models.JobKind(kind), sourceListID, options.String)
	job.SetID(id)
	job.SetSequence(sequence)
	job.SetStatus(models.JobStatus(status))
	job.SetTargetBoardID(targetBoardID.String)
	job.SetTargetBoardName(targetBoardName.String)
	job.SetTotalItems(totalItems)
	job.SetProcessedItems(processedItems)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)

	var entries []models.ErrorEntry
	if err := json.Unmarshal([]byte(errorLog), &entries); err == nil {
		job.SetErrorLog(entries)
	}

	if startedAt.Valid {
		job.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		job.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		job.SetDeletedAt(&deletedAt.Time)
	}

	return job, nil
}

// nullable maps empty strings to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// requireRow converts a zero-rows-affected result into the given not-found error.
func requireRow(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}
