package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"testemunhas/api/internal/model"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) SaveImport(ctx context.Context, batch ImportBatch, cases []model.Case, witnesses []model.Testemunha) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM processos WHERE org_id=$1`, batch.OrgID); err != nil {
		return fmt.Errorf("clear processos: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM testemunhas WHERE org_id=$1`, batch.OrgID); err != nil {
		return fmt.Errorf("clear testemunhas: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO import_batches (id, org_id, source, summary, reconciliation)
		VALUES ($1, $2, $3, $4, $5)
	`, batch.ID, batch.OrgID, batch.Source, jsonOrEmpty(batch.Summary), jsonOrEmpty(batch.Reconciliation)); err != nil {
		return fmt.Errorf("insert import batch: %w", err)
	}

	for i, c := range cases {
		row, err := newCaseRow(batch.OrgID, batch.ID, i, c)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO processos (org_id, cnj_digits, cnj, batch_id, is_stub, reclamante, reclamada, comarca, uf, position, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, row.OrgID, row.CNJDigits, row.CNJ, row.BatchID, row.IsStub, row.Reclamante, row.Reclamada, row.Comarca, row.UF, row.Position, row.Data); err != nil {
			return fmt.Errorf("insert processo %s: %w", row.CNJ, err)
		}
	}
	for i, w := range witnesses {
		row, err := newWitnessRow(batch.OrgID, batch.ID, i, w)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO testemunhas (org_id, nome, batch_id, position, data)
			VALUES ($1, $2, $3, $4, $5)
		`, row.OrgID, row.Nome, row.BatchID, row.Position, row.Data); err != nil {
			return fmt.Errorf("insert testemunha %s: %w", row.Nome, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCases(ctx context.Context, orgID string) ([]model.Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cnj_digits, is_stub, data
		FROM processos
		WHERE org_id=$1
		ORDER BY position
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list processos: %w", err)
	}
	defer rows.Close()

	items := make([]model.Case, 0)
	for rows.Next() {
		var row caseRow
		if err := rows.Scan(&row.CNJDigits, &row.IsStub, &row.Data); err != nil {
			return nil, fmt.Errorf("scan processo: %w", err)
		}
		item, err := row.toCase()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processos: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListTestemunhas(ctx context.Context, orgID string) ([]model.Testemunha, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT nome, data
		FROM testemunhas
		WHERE org_id=$1
		ORDER BY position
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list testemunhas: %w", err)
	}
	defer rows.Close()

	items := make([]model.Testemunha, 0)
	for rows.Next() {
		var row witnessRow
		if err := rows.Scan(&row.Nome, &row.Data); err != nil {
			return nil, fmt.Errorf("scan testemunha: %w", err)
		}
		item, err := row.toWitness()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate testemunhas: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetCase(ctx context.Context, orgID, digits string) (model.Case, error) {
	var row caseRow
	err := s.db.QueryRowContext(ctx, `
		SELECT cnj_digits, is_stub, data
		FROM processos
		WHERE org_id=$1 AND cnj_digits=$2
	`, orgID, digits).Scan(&row.CNJDigits, &row.IsStub, &row.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get processo: %w", err)
	}
	return row.toCase()
}

func (s *PostgresStore) LatestImport(ctx context.Context, orgID string) (ImportBatch, error) {
	var item ImportBatch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, source, summary::text, reconciliation::text, created_at
		FROM import_batches
		WHERE org_id=$1
		ORDER BY created_at DESC
		LIMIT 1
	`, orgID).Scan(&item.ID, &item.OrgID, &item.Source, &item.Summary, &item.Reconciliation, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportBatch{}, ErrNotFound
	}
	if err != nil {
		return ImportBatch{}, fmt.Errorf("latest import: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) SaveAnalysisRun(ctx context.Context, run AnalysisRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, org_id, fingerprint, filters, summary, archive_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, run.OrgID, run.Fingerprint, jsonOrEmpty(run.Filters), jsonOrEmpty(run.Summary), run.ArchiveRef)
	if err != nil {
		return fmt.Errorf("insert analysis run: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnalysisRuns(ctx context.Context, orgID string, limit int) ([]AnalysisRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, fingerprint, filters::text, summary::text, archive_ref, created_at
		FROM analysis_runs
		WHERE org_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, orgID, runLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	defer rows.Close()

	items := make([]AnalysisRun, 0)
	for rows.Next() {
		var item AnalysisRun
		if err := rows.Scan(&item.ID, &item.OrgID, &item.Fingerprint, &item.Filters, &item.Summary, &item.ArchiveRef, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis runs: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func jsonOrEmpty(value string) string {
	if value == "" {
		return "{}"
	}
	return value
}
