// Package catalog is the sqlite-backed lookup of study schemas,
// survey tables, and account identities the packager needs to resolve
// a request into concrete table ids before it can run.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/domain/entity"
)

const schema = `
CREATE TABLE IF NOT EXISTS schema_fields (
	study_id   TEXT NOT NULL,
	schema_id  TEXT NOT NULL,
	revision   INTEGER NOT NULL,
	table_id   TEXT NOT NULL,
	field_name TEXT NOT NULL,
	field_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS survey_tables (
	study_id TEXT NOT NULL,
	table_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	user_id       TEXT PRIMARY KEY,
	email_address TEXT NOT NULL,
	health_code   TEXT NOT NULL DEFAULT ''
);
`

// Catalog is the sqlite-backed schema/survey/account store.
type Catalog struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string, logger *zap.Logger) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog db: %w", err)
	}
	return &Catalog{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// TableMapping resolves every schema registered for studyID into a
// TableMapping keyed by table id.
func (c *Catalog) TableMapping(ctx context.Context, studyID string) (*entity.TableMapping, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT schema_id, revision, table_id, field_name, field_type FROM schema_fields WHERE study_id = ? ORDER BY schema_id, revision, table_id`,
		studyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query schema fields for study %s: %w", studyID, err)
	}
	defer rows.Close()

	type key struct {
		schemaID string
		revision int
		tableID  string
	}
	fieldsByKey := make(map[key][]entity.FieldDefinition)
	var order []key

	for rows.Next() {
		var schemaID, tableID, fieldName, fieldType string
		var revision int
		if err := rows.Scan(&schemaID, &revision, &tableID, &fieldName, &fieldType); err != nil {
			return nil, fmt.Errorf("scan schema field: %w", err)
		}

		k := key{schemaID: schemaID, revision: revision, tableID: tableID}
		if _, ok := fieldsByKey[k]; !ok {
			order = append(order, k)
		}
		fieldsByKey[k] = append(fieldsByKey[k], entity.FieldDefinition{Name: fieldName, Type: entity.FieldType(fieldType)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema fields: %w", err)
	}

	mapping := entity.NewTableMapping()
	for _, k := range order {
		schema := &entity.UploadSchema{
			Key:    entity.SchemaKey{StudyID: studyID, SchemaID: k.schemaID, Revision: k.revision},
			Fields: fieldsByKey[k],
		}
		mapping.Add(k.tableID, schema)
	}

	return mapping, nil
}

// SurveyTables resolves the survey metadata table ids registered for
// studyID.
func (c *Catalog) SurveyTables(ctx context.Context, studyID string) (*entity.SurveyTableSet, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT table_id FROM survey_tables WHERE study_id = ?`, studyID)
	if err != nil {
		return nil, fmt.Errorf("query survey tables for study %s: %w", studyID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var tableID string
		if err := rows.Scan(&tableID); err != nil {
			return nil, fmt.Errorf("scan survey table: %w", err)
		}
		ids = append(ids, tableID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate survey tables: %w", err)
	}

	return entity.NewSurveyTableSet(ids...), nil
}

// AccountInfo resolves userID's identity context.
func (c *Catalog) AccountInfo(ctx context.Context, userID string) (*entity.AccountInfo, error) {
	row := c.db.QueryRowContext(ctx, `SELECT email_address, health_code FROM accounts WHERE user_id = ?`, userID)

	var email, healthCode string
	if err := row.Scan(&email, &healthCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no account registered for user %s", userID)
		}
		return nil, fmt.Errorf("query account %s: %w", userID, err)
	}

	return entity.NewAccountInfo(email, userID, healthCode)
}
