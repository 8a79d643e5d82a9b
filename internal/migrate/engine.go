// Package migrate keeps the relational schema in step with the application at
// startup. A brand-new database is bootstrapped from one baseline schema
// document; an existing one is moved forward by applying versioned .sql files
// in lexical filename order, with checksums recorded in a tracking table.
package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/foliobase/foliobase/pkg/apperr"
	"github.com/foliobase/foliobase/pkg/logger"
)

// SchemaFile is the baseline document applied on a fresh install instead of
// the incremental files.
const SchemaFile = "schema.sql"

const trackingTable = "schema_migrations"

// DB is the subset of pgxpool.Pool the engine needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Report is the outcome of a migration run, also served by the health
// endpoint for external monitoring.
type Report struct {
	Available   int              `json:"available"`
	Applied     int              `json:"applied"`
	Pending     int              `json:"pending"`
	UpToDate    bool             `json:"upToDate"`
	LastApplied string           `json:"lastApplied,omitempty"`
	Error       *apperr.AppError `json:"error,omitempty"`
}

// Engine applies migrations. Migrations run strictly sequentially in sorted
// version order; the engine is not safe for concurrent Run calls.
type Engine struct {
	db    DB
	files fs.FS
	// ForceFresh skips the table probe and treats the database as empty.
	ForceFresh bool
}

// NewEngine creates an Engine reading migration files from files.
func NewEngine(db DB, files fs.FS) *Engine {
	return &Engine{db: db, files: files}
}

// Run brings the schema up to date. A failed version halts the run but the
// returned report still describes partial progress so the host can boot in a
// known degraded state.
func (e *Engine) Run(ctx context.Context) Report {
	versions, err := e.availableVersions()
	if err != nil {
		return Report{Error: apperr.From(err)}
	}

	fresh := e.ForceFresh
	if !fresh {
		fresh, err = e.probeFresh(ctx)
		if err != nil {
			return Report{Available: len(versions), Error: apperr.From(err)}
		}
	}
	if fresh {
		return e.runFresh(ctx, versions)
	}
	return e.runIncremental(ctx, versions)
}

// runFresh applies the single baseline schema document and records every
// available version as applied, skipping file-by-file execution entirely.
func (e *Engine) runFresh(ctx context.Context, versions []string) Report {
	logger.Info("fresh install detected, applying baseline schema", "versions", len(versions))

	schema, err := fs.ReadFile(e.files, SchemaFile)
	if err != nil {
		return Report{Available: len(versions), Error: apperr.Migration(SchemaFile, err)}
	}
	if _, err := e.db.Exec(ctx, string(schema)); err != nil {
		return Report{Available: len(versions), Error: apperr.Migration(SchemaFile, err)}
	}
	if err := e.ensureTracking(ctx); err != nil {
		return Report{Available: len(versions), Error: apperr.From(err)}
	}
	for _, v := range versions {
		content, err := fs.ReadFile(e.files, v+".sql")
		if err != nil {
			return Report{Available: len(versions), Error: apperr.Migration(v, err)}
		}
		if err := e.record(ctx, v, checksum(content)); err != nil {
			return Report{Available: len(versions), Error: apperr.Migration(v, err)}
		}
	}
	return Report{
		Available:   len(versions),
		Applied:     len(versions),
		UpToDate:    true,
		LastApplied: last(versions),
	}
}

func (e *Engine) runIncremental(ctx context.Context, versions []string) Report {
	if err := e.ensureTracking(ctx); err != nil {
		return Report{Available: len(versions), Error: apperr.From(err)}
	}
	applied, err := e.appliedVersions(ctx)
	if err != nil {
		return Report{Available: len(versions), Error: apperr.From(err)}
	}

	report := Report{Available: len(versions), Applied: len(applied)}
	var pending []string
	for _, v := range versions {
		if _, ok := applied[v]; !ok {
			pending = append(pending, v)
		}
	}
	report.Pending = len(pending)

	for _, v := range pending {
		if err := e.applyOne(ctx, v); err != nil {
			// Stop at the first failure; later versions may depend on it.
			logger.Error("migration failed", "version", v, "error", err)
			report.Error = apperr.Migration(v, err)
			return report
		}
		logger.Info("migration applied", "version", v)
		report.Applied++
		report.Pending--
		report.LastApplied = v
	}
	report.UpToDate = true
	return report
}

// Status reports migration state without applying anything.
func (e *Engine) Status(ctx context.Context) Report {
	versions, err := e.availableVersions()
	if err != nil {
		return Report{Error: apperr.From(err)}
	}
	report := Report{Available: len(versions)}

	applied, err := e.appliedVersions(ctx)
	if err != nil {
		// No tracking table yet reads as nothing applied.
		report.Pending = len(versions)
		report.UpToDate = report.Pending == 0
		return report
	}
	for _, v := range versions {
		if _, ok := applied[v]; ok {
			report.Applied++
			report.LastApplied = v
		} else {
			report.Pending++
		}
	}
	report.UpToDate = report.Pending == 0
	return report
}

// probeFresh treats the database as a fresh install when neither the tracking
// table nor the core users table exists.
func (e *Engine) probeFresh(ctx context.Context) (bool, error) {
	var fresh bool
	err := e.db.QueryRow(ctx,
		"SELECT to_regclass('public.schema_migrations') IS NULL AND to_regclass('public.users') IS NULL",
	).Scan(&fresh)
	if err != nil {
		return false, fmt.Errorf("probe fresh install: %w", err)
	}
	return fresh, nil
}

func (e *Engine) ensureTracking(ctx context.Context) error {
	_, err := e.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+trackingTable+` (
		version TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("ensure tracking table: %w", err)
	}
	return nil
}

// availableVersions lists migration files sorted by filename. The filename
// minus extension is the version, so lexical order is apply order.
func (e *Engine) availableVersions() ([]string, error) {
	entries, err := fs.ReadDir(e.files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == SchemaFile || !strings.HasSuffix(name, ".sql") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(name, ".sql"))
	}
	sort.Strings(versions)
	return versions, nil
}

func (e *Engine) appliedVersions(ctx context.Context) (map[string]struct{}, error) {
	rows, err := e.db.Query(ctx, "SELECT version FROM "+trackingTable+" ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = struct{}{}
	}
	return applied, rows.Err()
}

func (e *Engine) applyOne(ctx context.Context, version string) error {
	content, err := fs.ReadFile(e.files, version+".sql")
	if err != nil {
		return err
	}
	if _, err := e.db.Exec(ctx, stripSelfTracking(string(content))); err != nil {
		return err
	}
	return e.record(ctx, version, checksum(content))
}

// record upserts the tracking row so a re-applied version refreshes its
// checksum and timestamp instead of duplicating the record.
func (e *Engine) record(ctx context.Context, version, sum string) error {
	_, err := e.db.Exec(ctx, `INSERT INTO `+trackingTable+` (version, checksum, applied_at)
		VALUES ($1, $2, now())
		ON CONFLICT (version) DO UPDATE SET checksum = EXCLUDED.checksum, applied_at = now()`,
		version, sum)
	return err
}

// stripSelfTracking drops statements that insert into the tracking table.
// Older migration files recorded themselves; executing those statements
// would double-book versions the engine already tracks. The statement may
// span lines, so skipping continues until its terminating semicolon.
func stripSelfTracking(sql string) string {
	lines := strings.Split(sql, "\n")
	kept := lines[:0]
	skipping := false
	for _, line := range lines {
		if skipping {
			if strings.Contains(line, ";") {
				skipping = false
			}
			continue
		}
		upper := strings.ToUpper(strings.TrimSpace(line))
		if strings.HasPrefix(upper, "INSERT INTO SCHEMA_MIGRATIONS") {
			skipping = !strings.Contains(line, ";")
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func last(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	return versions[len(versions)-1]
}
