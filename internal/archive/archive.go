// Package archive stores generated reports so they can be fetched again and
// asked about later. Reports are kept as JSON documents keyed by a UUID.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/fatechart/fate"
	"github.com/liamcoop/fatechart/internal/logger"
)

// ErrNotFound is returned by Get for an unknown report ID.
var ErrNotFound = errors.New("report not found")

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Record is one archived report.
type Record struct {
	ID        uuid.UUID    `json:"id"`
	Report    *fate.Report `json:"report"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Summary is the list view of a record.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	DayMaster string    `json:"dayMaster"`
	Archetype string    `json:"archetype"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists reports.
type Store interface {
	Save(ctx context.Context, report *fate.Report) (*Record, error)
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	// List returns the newest summaries first.
	List(ctx context.Context, limit int) ([]Summary, error)
	Close() error
}

// Open picks a backend from a database URL: postgres:// and postgresql://
// select Postgres, sqlite:// and file: select SQLite, and an empty URL keeps
// reports in memory.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	var (
		store   Store
		backend string
		err     error
	)
	switch {
	case databaseURL == "":
		store, backend = NewMemoryStore(), "memory"
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err = OpenPostgres(ctx, databaseURL)
		backend = "postgres"
	case strings.HasPrefix(databaseURL, "sqlite://"):
		store, err = OpenSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
		backend = "sqlite"
	case strings.HasPrefix(databaseURL, "file:"):
		store, err = OpenSQLite(ctx, databaseURL)
		backend = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database URL scheme in %q", redact(databaseURL))
	}
	if err != nil {
		return nil, err
	}
	logger.Info("report archive opened", "backend", backend)
	return store, nil
}

func newRecord(report *fate.Report) *Record {
	return &Record{
		ID:        uuid.New(),
		Report:    report,
		CreatedAt: time.Now().UTC(),
	}
}

func (r *Record) summary() Summary {
	return Summary{
		ID:        r.ID,
		Name:      r.Report.Birth.Name,
		DayMaster: r.Report.Chart.DayMaster,
		Archetype: r.Report.Archetype.Name,
		CreatedAt: r.CreatedAt,
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

// redact drops everything before the host so credentials never reach logs.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return "<redacted>"
	}
	if _, host, ok := strings.Cut(rest, "@"); ok {
		return scheme + "://***@" + host
	}
	return url
}
