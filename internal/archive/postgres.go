package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/liamcoop/fatechart/fate"
)

// PostgresStore keeps reports in a JSONB column.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres migrates the schema and connects.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if err := MigratePostgres(databaseURL); err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an existing connection pool whose schema is current.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, report *fate.Report) (*Record, error) {
	if report == nil {
		return nil, errors.New("report is required")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	rec := newRecord(report)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, name, day_master, archetype, rules_version, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, report.Birth.Name, report.Chart.DayMaster, report.Archetype.Name,
		report.RulesVersion, string(payload), rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec := Record{ID: id}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT report, created_at FROM reports WHERE id = $1
	`, id).Scan(&payload, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	if err := json.Unmarshal(payload, &rec.Report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, day_master, archetype, created_at
		FROM reports
		ORDER BY created_at DESC, id
		LIMIT $1
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.DayMaster, &sum.Archetype, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		sum.CreatedAt = sum.CreatedAt.UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
