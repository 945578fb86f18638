package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AskChad/ClickUp-Monday-sync/internal/models"
	"github.com/AskChad/ClickUp-Monday-sync/internal/shared"
)

// FieldMappingRepository implements models.Repository[*models.FieldMapping].
//
// Field mappings are written once during structure analysis and read during
// task transformation; Update exists for interface completeness only.
type FieldMappingRepository struct {
	db *sql.DB
}

// NewFieldMappingRepository creates a new FieldMappingRepository with the given database connection
func NewFieldMappingRepository(db *sql.DB) *FieldMappingRepository {
	return &FieldMappingRepository{db: db}
}

// Create inserts a new field mapping into the database with generated ID and sequence
func (r *FieldMappingRepository) Create(mapping *models.FieldMapping) error {
	sequence, err := NextSequence(r.db, "field_mappings")
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
		INSERT INTO field_mappings (
			id, sequence, job_id, source_field_id, source_field_name,
			source_field_type, target_column_id, target_column_title,
			target_column_type, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		mapping.JobID(),
		mapping.SourceFieldID(),
		mapping.SourceFieldName(),
		mapping.SourceFieldType(),
		mapping.TargetColumnID(),
		mapping.TargetColumnTitle(),
		mapping.TargetColumnType(),
		mapping.CreatedAt(),
		mapping.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert field mapping: %w", err)
	}

	return nil
}

// Get retrieves a field mapping by ID, excluding soft-deleted mappings
func (r *FieldMappingRepository) Get(id string) (*models.FieldMapping, error) {
	rows, err := r.db.Query(selectFieldMappings+" WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query field mapping: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan field mapping: %w", err)
		}
		return nil, fmt.Errorf("field mapping not found: %s", id)
	}

	return scanFieldMapping(rows)
}

// Update is not supported: field mappings are immutable after creation.
func (r *FieldMappingRepository) Update(mapping *models.FieldMapping) error {
	return fmt.Errorf("field mappings are immutable: %w", shared.ErrNotImplemented)
}

// Delete soft-deletes a field mapping by ID
func (r *FieldMappingRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE field_mappings SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete field mapping: %w", err)
	}
	return requireRow(result, fmt.Errorf("field mapping not found"), id)
}

// List retrieves all field mappings matching the given criteria
func (r *FieldMappingRepository) List(criteria map[string]any) ([]*models.FieldMapping, error) {
	query := selectFieldMappings + " WHERE deleted_at IS NULL"
	args := []any{}

	if jobID, ok := criteria["job_id"].(string); ok && jobID != "" {
		query += " AND job_id = ?"
		args = append(args, jobID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query field mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.FieldMapping
	for rows.Next() {
		mapping, err := scanFieldMapping(rows)
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

// ListByJob retrieves all field mappings created for one replication job.
func (r *FieldMappingRepository) ListByJob(jobID string) ([]*models.FieldMapping, error) {
	return r.List(map[string]any{"job_id": jobID})
}

const selectFieldMappings = `
	SELECT id, sequence, job_id, source_field_id, source_field_name,
		source_field_type, target_column_id, target_column_title,
		target_column_type, created_at, updated_at, deleted_at
	FROM field_mappings
`

func scanFieldMapping(rows *sql.Rows) (*models.FieldMapping, error) {
	var (
		id                string
		sequence          int
		jobID             string
		sourceFieldID     string
		sourceFieldName   string
		sourceFieldType   string
		targetColumnID    string
		targetColumnTitle string
		targetColumnType  string
		createdAt         time.Time
		updatedAt         time.Time
		deletedAt         sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &jobID, &sourceFieldID, &sourceFieldName,
		&sourceFieldType, &targetColumnID, &targetColumnTitle, &targetColumnType,
		&createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan field mapping: %w", err)
	}

	mapping := models.NewFieldMapping(jobID, sourceFieldID, sourceFieldName, sourceFieldType,
		targetColumnID, targetColumnTitle, targetColumnType)
	mapping.SetID(id)
	mapping.SetSequence(sequence)
	mapping.SetCreatedAt(createdAt)
	mapping.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		mapping.SetDeletedAt(&deletedAt.Time)
	}

	return mapping, nil
}
