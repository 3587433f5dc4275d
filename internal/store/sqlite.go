package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"testemunhas/api/internal/model"
)

// SQLiteStore is the single-file Repository used by the CLI and tests.
type SQLiteStore struct {
	db *sqlx.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS import_batches (
	id             TEXT PRIMARY KEY,
	org_id         TEXT NOT NULL,
	source         TEXT NOT NULL DEFAULT '',
	summary        TEXT NOT NULL DEFAULT '{}',
	reconciliation TEXT NOT NULL DEFAULT '{}',
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS processos (
	org_id     TEXT NOT NULL,
	cnj_digits TEXT NOT NULL,
	cnj        TEXT NOT NULL,
	batch_id   TEXT NOT NULL,
	is_stub    INTEGER NOT NULL DEFAULT 0,
	reclamante TEXT NOT NULL DEFAULT '',
	reclamada  TEXT NOT NULL DEFAULT '',
	comarca    TEXT NOT NULL DEFAULT '',
	uf         TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (org_id, cnj_digits)
);

CREATE TABLE IF NOT EXISTS testemunhas (
	org_id   TEXT NOT NULL,
	nome     TEXT NOT NULL,
	batch_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	data     TEXT NOT NULL,
	PRIMARY KEY (org_id, nome)
);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id          TEXT PRIMARY KEY,
	org_id      TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	filters     TEXT NOT NULL DEFAULT '{}',
	summary     TEXT NOT NULL DEFAULT '{}',
	archive_ref TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS analysis_runs_org_idx ON analysis_runs (org_id, created_at);
`

// sqliteBatch and sqliteRun keep timestamps as text.
type sqliteBatch struct {
	ID             string `db:"id"`
	OrgID          string `db:"org_id"`
	Source         string `db:"source"`
	Summary        string `db:"summary"`
	Reconciliation string `db:"reconciliation"`
	CreatedAt      string `db:"created_at"`
}

type sqliteRun struct {
	ID          string `db:"id"`
	OrgID       string `db:"org_id"`
	Fingerprint string `db:"fingerprint"`
	Filters     string `db:"filters"`
	Summary     string `db:"summary"`
	ArchiveRef  string `db:"archive_ref"`
	CreatedAt   string `db:"created_at"`
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveImport(ctx context.Context, batch ImportBatch, cases []model.Case, witnesses []model.Testemunha) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM processos WHERE org_id=?`, batch.OrgID); err != nil {
		return fmt.Errorf("clear processos: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM testemunhas WHERE org_id=?`, batch.OrgID); err != nil {
		return fmt.Errorf("clear testemunhas: %w", err)
	}

	createdAt := batch.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO import_batches (id, org_id, source, summary, reconciliation, created_at)
		VALUES (:id, :org_id, :source, :summary, :reconciliation, :created_at)
	`, sqliteBatch{
		ID:             batch.ID,
		OrgID:          batch.OrgID,
		Source:         batch.Source,
		Summary:        jsonOrEmpty(batch.Summary),
		Reconciliation: jsonOrEmpty(batch.Reconciliation),
		CreatedAt:      timeToString(createdAt),
	}); err != nil {
		return fmt.Errorf("insert import batch: %w", err)
	}

	for i, c := range cases {
		row, err := newCaseRow(batch.OrgID, batch.ID, i, c)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO processos (org_id, cnj_digits, cnj, batch_id, is_stub, reclamante, reclamada, comarca, uf, position, data)
			VALUES (:org_id, :cnj_digits, :cnj, :batch_id, :is_stub, :reclamante, :reclamada, :comarca, :uf, :position, :data)
		`, row); err != nil {
			return fmt.Errorf("insert processo %s: %w", row.CNJ, err)
		}
	}
	for i, w := range witnesses {
		row, err := newWitnessRow(batch.OrgID, batch.ID, i, w)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO testemunhas (org_id, nome, batch_id, position, data)
			VALUES (:org_id, :nome, :batch_id, :position, :data)
		`, row); err != nil {
			return fmt.Errorf("insert testemunha %s: %w", row.Nome, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListCases(ctx context.Context, orgID string) ([]model.Case, error) {
	var rows []caseRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM processos WHERE org_id=? ORDER BY position`, orgID); err != nil {
		return nil, fmt.Errorf("list processos: %w", err)
	}
	items := make([]model.Case, 0, len(rows))
	for _, row := range rows {
		item, err := row.toCase()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *SQLiteStore) ListTestemunhas(ctx context.Context, orgID string) ([]model.Testemunha, error) {
	var rows []witnessRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM testemunhas WHERE org_id=? ORDER BY position`, orgID); err != nil {
		return nil, fmt.Errorf("list testemunhas: %w", err)
	}
	items := make([]model.Testemunha, 0, len(rows))
	for _, row := range rows {
		item, err := row.toWitness()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *SQLiteStore) GetCase(ctx context.Context, orgID, digits string) (model.Case, error) {
	var row caseRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM processos WHERE org_id=? AND cnj_digits=?`, orgID, digits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get processo: %w", err)
	}
	return row.toCase()
}

func (s *SQLiteStore) LatestImport(ctx context.Context, orgID string) (ImportBatch, error) {
	var row sqliteBatch
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM import_batches WHERE org_id=? ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportBatch{}, ErrNotFound
	}
	if err != nil {
		return ImportBatch{}, fmt.Errorf("latest import: %w", err)
	}
	return ImportBatch{
		ID:             row.ID,
		OrgID:          row.OrgID,
		Source:         row.Source,
		Summary:        row.Summary,
		Reconciliation: row.Reconciliation,
		CreatedAt:      stringToTime(row.CreatedAt),
	}, nil
}

func (s *SQLiteStore) SaveAnalysisRun(ctx context.Context, run AnalysisRun) error {
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO analysis_runs (id, org_id, fingerprint, filters, summary, archive_ref, created_at)
		VALUES (:id, :org_id, :fingerprint, :filters, :summary, :archive_ref, :created_at)
	`, sqliteRun{
		ID:          run.ID,
		OrgID:       run.OrgID,
		Fingerprint: run.Fingerprint,
		Filters:     jsonOrEmpty(run.Filters),
		Summary:     jsonOrEmpty(run.Summary),
		ArchiveRef:  run.ArchiveRef,
		CreatedAt:   timeToString(createdAt),
	})
	if err != nil {
		return fmt.Errorf("insert analysis run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAnalysisRuns(ctx context.Context, orgID string, limit int) ([]AnalysisRun, error) {
	var rows []sqliteRun
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM analysis_runs WHERE org_id=? ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, orgID, runLimit(limit)); err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	items := make([]AnalysisRun, 0, len(rows))
	for _, row := range rows {
		items = append(items, AnalysisRun{
			ID:          row.ID,
			OrgID:       row.OrgID,
			Fingerprint: row.Fingerprint,
			Filters:     row.Filters,
			Summary:     row.Summary,
			ArchiveRef:  row.ArchiveRef,
			CreatedAt:   stringToTime(row.CreatedAt),
		})
	}
	return items, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// sqliteTime has fixed width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

func timeToString(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func stringToTime(value string) time.Time {
	t, err := time.Parse(sqliteTime, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
