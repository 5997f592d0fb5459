package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaxsync/internal/common"
	"github.com/dmitrijs2005/vaxsync/internal/dbx"
	"github.com/dmitrijs2005/vaxsync/internal/server/models"
)

type table struct {
	name string
	// owner is the column naming the owning guardian, empty for shared data.
	owner string
}

var tables = map[models.Collection]table{
	models.CollectionGuardians: {name: "guardians", owner: "id"},
	models.CollectionPatients:  {name: "patients", owner: "guardian_id"},
	models.CollectionFAQs:      {name: "faqs"},
}

func lookup(c models.Collection) (table, error) {
	t, ok := tables[c]
	if !ok {
		return table{}, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	return t, nil
}

func (t table) ownerExpr() string {
	if t.owner == "" {
		return "''"
	}
	return t.owner
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.Record, error) {
	var (
		rec  models.Record
		body []byte
	)
	if err := s.Scan(&rec.ID, &rec.GuardianID, &body, &rec.Version, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode body of %s: %w", rec.ID, err)
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func (r *PostgresRepository) Get(ctx context.Context, c models.Collection, id string) (*models.Record, error) {
	t, err := lookup(c)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, %s, body, version, updated_at FROM %s WHERE id = $1`, t.ownerExpr(), t.name)

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) List(ctx context.Context, c models.Collection) ([]models.Record, error) {
	t, err := lookup(c)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, %s, body, version, updated_at FROM %s ORDER BY id`, t.ownerExpr(), t.name)
	return r.query(ctx, query)
}

func (r *PostgresRepository) ListByGuardian(ctx context.Context, c models.Collection, guardianID string) ([]models.Record, error) {
	t, err := lookup(c)
	if err != nil {
		return nil, err
	}
	if t.owner == "" {
		return nil, fmt.Errorf("%w: %q", ErrNotIndexed, c)
	}

	query := fmt.Sprintf(`SELECT id, %s, body, version, updated_at FROM %s WHERE %s = $1 ORDER BY id`, t.owner, t.name, t.owner)
	return r.query(ctx, query, guardianID)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Put inserts or replaces rec as is. It is used for seeding.
func (r *PostgresRepository) Put(ctx context.Context, c models.Collection, rec *models.Record) error {
	t, err := lookup(c)
	if err != nil {
		return err
	}

	body, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode body of %s: %w", rec.ID, err)
	}

	var query string
	args := []any{rec.ID, body, rec.Version, rec.UpdatedAt}
	if c == models.CollectionPatients {
		query = `INSERT INTO patients (id, body, version, updated_at, guardian_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, version = EXCLUDED.version,
		 updated_at = EXCLUDED.updated_at, guardian_id = EXCLUDED.guardian_id`
		args = append(args, rec.GuardianID)
	} else {
		query = fmt.Sprintf(`INSERT INTO %s (id, body, version, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, version = EXCLUDED.version,
		 updated_at = EXCLUDED.updated_at`, t.name)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update overwrites rec only while the stored version still equals
// expectedVersion, otherwise common.ErrVersionConflict is returned.
func (r *PostgresRepository) Update(ctx context.Context, c models.Collection, rec *models.Record, expectedVersion int64) error {
	t, err := lookup(c)
	if err != nil {
		return err
	}

	body, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode body of %s: %w", rec.ID, err)
	}

	query := fmt.Sprintf(`UPDATE %s SET body = $1, version = $2, updated_at = $3
		 WHERE id = $4 AND version = $5`, t.name)

	res, err := r.db.ExecContext(ctx, query, body, rec.Version, rec.UpdatedAt, rec.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrVersionConflict
	}
	return nil
}
