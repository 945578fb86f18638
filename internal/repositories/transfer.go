package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// TransferRepository implements models.Repository[*models.TransferRecord] for file transfer outcomes.
type TransferRepository struct {
	db *sql.DB
}

// NewTransferRepository creates a new TransferRepository with the given database connection
func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts a new transfer record into the database with generated ID and sequence
func (r *TransferRepository) Create(record *models.TransferRecord) error {
	sequence, err := NextSequence(r.db, "file_transfers")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	record.SetID(id)
	record.SetSequence(sequence)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO file_transfers (
			id, sequence, job_id, source_task_id, target_item_id, file_name,
			file_size, status, error_message, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		record.JobID(),
		record.SourceTaskID(),
		nullable(record.TargetItemID()),
		record.FileName(),
		record.FileSize(),
		string(record.Status()),
		nullable(record.ErrorMessage()),
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer record: %w", err)
	}

	return nil
}

// Get retrieves a transfer record by ID, excluding soft-deleted records
func (r *TransferRepository) Get(id string) (*models.TransferRecord, error) {
	rows, err := r.db.Query(selectTransfers+" WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan transfer record: %w", err)
		}
		return nil, fmt.Errorf("transfer record not found: %s", id)
	}

	return scanTransfer(rows)
}

// Update modifies an existing transfer record's status and error message
func (r *TransferRepository) Update(record *models.TransferRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	result, err := r.db.Exec(
		"UPDATE file_transfers SET status = ?, error_message = ?, target_item_id = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		string(record.Status()), nullable(record.ErrorMessage()), nullable(record.TargetItemID()), now, record.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update transfer record: %w", err)
	}
	return requireRow(result, fmt.Errorf("transfer record not found"), record.ID())
}

// Delete soft-deletes a transfer record by ID
func (r *TransferRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE file_transfers SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer record: %w", err)
	}
	return requireRow(result, fmt.Errorf("transfer record not found"), id)
}

// List retrieves all transfer records matching the given criteria
func (r *TransferRepository) List(criteria map[string]any) ([]*models.TransferRecord, error) {
	query := selectTransfers + " WHERE deleted_at IS NULL"
	args := []any{}

	if jobID, ok := criteria["job_id"].(string); ok && jobID != "" {
		query += " AND job_id = ?"
		args = append(args, jobID)
	}
	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer records: %w", err)
	}
	defer rows.Close()

	var records []*models.TransferRecord
	for rows.Next() {
		record, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// ListByJob retrieves all transfer records for one job.
func (r *TransferRepository) ListByJob(jobID string) ([]*models.TransferRecord, error) {
	return r.List(map[string]any{"job_id": jobID})
}

// CountByStatus returns the number of transfers in the given state for a job.
func (r *TransferRepository) CountByStatus(jobID string, status models.TransferStatus) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM file_transfers WHERE job_id = ? AND status = ? AND deleted_at IS NULL",
		jobID, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transfers: %w", err)
	}
	return count, nil
}

const selectTransfers = `
	SELECT id, sequence, job_id, source_task_id, target_item_id, file_name,
		file_size, status, error_message, created_at, updated_at, deleted_at
	FROM file_transfers
`

func scanTransfer(rows *sql.Rows) (*models.TransferRecord, error) {
	var (
		id           string
		sequence     int
		jobID        string
		sourceTaskID string
		targetItemID sql.NullString
		fileName     string
		fileSize     int64
		status       string
		errorMessage sql.NullString
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &jobID, &sourceTaskID, &targetItemID,
		&fileName, &fileSize, &status, &errorMessage, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transfer record: %w", err)
	}

	record := models.NewTransferRecord(jobID, sourceTaskID, targetItemID.String, fileName, fileSize)
	record.SetID(id)
	record.SetSequence(sequence)
	record.SetStatus(models.TransferStatus(status))
	record.SetErrorMessage(errorMessage.String)
	record.SetCreatedAt(createdAt)
	record.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		record.SetDeletedAt(&deletedAt.Time)
	}

	return record, nil
}
