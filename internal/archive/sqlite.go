package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/liamcoop/fatechart/fate"
)

// SQLiteStore keeps reports in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
// dsn is a file path or a file: URI.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applySQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// applySQLiteSchema runs the idempotent schema files in name order.
func applySQLiteSchema(ctx context.Context, db *sql.DB) error {
	const root = "migrations/sqlite"
	entries, err := fs.ReadDir(migrationFiles, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrationFiles, path.Join(root, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, report *fate.Report) (*Record, error) {
	if report == nil {
		return nil, errors.New("report is required")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	rec := newRecord(report)
	rec.CreatedAt = rec.CreatedAt.Truncate(time.Millisecond)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, name, day_master, archetype, rules_version, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID.String(), report.Birth.Name, report.Chart.DayMaster, report.Archetype.Name,
		report.RulesVersion, string(payload), rec.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	var (
		payload string
		millis  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT report, created_at FROM reports WHERE id = ?`, id.String(),
	).Scan(&payload, &millis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	rec := Record{ID: id, CreatedAt: time.UnixMilli(millis).UTC()}
	if err := json.Unmarshal([]byte(payload), &rec.Report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, day_master, archetype, created_at
		FROM reports
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum    Summary
			id     string
			millis int64
		)
		if err := rows.Scan(&id, &sum.Name, &sum.DayMaster, &sum.Archetype, &millis); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if sum.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("scan report id %q: %w", id, err)
		}
		sum.CreatedAt = time.UnixMilli(millis).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
