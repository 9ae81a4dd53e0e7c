// Package history keeps a sqlite record of every source build attempt.
package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/xerrors"
	"k8s.io/utils/clock"

	_ "modernc.org/sqlite"
)

const (
	dbFileName    = "srcdeps-history.db"
	schemaVersion = 1
)

// Outcome is the result of one build attempt.
type Outcome string

const (
	// Built means the nested build ran and succeeded.
	Built Outcome = "built"
	// UpToDate means another holder of the build directory produced the artifact first.
	UpToDate Outcome = "up-to-date"
	Failed   Outcome = "failed"
)

type Record struct {
	GroupID      string
	ArtifactID   string
	Version      string
	RepositoryID string
	BuildDir     string
	Outcome      Outcome
	StartedAt    time.Time
	Duration     time.Duration
	Error        string
}

// Filter narrows SelectRecords. Empty fields match everything.
type Filter struct {
	GroupID    string
	ArtifactID string
	Outcome    Outcome
	Limit      int
}

type DB struct {
	client *sql.DB
	dir    string
	meta   MetadataClient
	clock  clock.Clock

	// serializes writers of the metadata file
	mu sync.Mutex
}

type Option func(*DB)

func WithClock(c clock.Clock) Option {
	return func(db *DB) {
		db.clock = c
	}
}

func Path(dir string) string {
	return filepath.Join(dir, dbFileName)
}

func New(dir string, opts ...Option) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, xerrors.Errorf("failed to mkdir: %w", err)
	}

	// several processes may record into the same file
	client, err := sql.Open("sqlite", Path(dir)+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, xerrors.Errorf("can't open db: %w", err)
	}
	client.SetMaxOpenConns(1)

	db := &DB{
		client: client,
		dir:    dir,
		meta:   NewMetadataClient(dir),
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Init creates the schema if it is missing and refuses databases written with
// another schema version.
func (db *DB) Init() error {
	meta, metaErr := db.meta.Get()
	switch {
	case metaErr == nil && meta.Version != schemaVersion:
		return xerrors.Errorf("history schema version %d is not supported, expected %d", meta.Version, schemaVersion)
	case metaErr != nil && !xerrors.Is(metaErr, os.ErrNotExist):
		return xerrors.Errorf("failed to read metadata: %w", metaErr)
	}

	if _, err := db.client.Exec("PRAGMA foreign_keys=true"); err != nil {
		return xerrors.Errorf("failed to enable 'foreign_keys': %w", err)
	}
	if _, err := db.client.Exec("CREATE TABLE IF NOT EXISTS artifacts(id INTEGER PRIMARY KEY, group_id TEXT, artifact_id TEXT)"); err != nil {
		return xerrors.Errorf("unable to create 'artifacts' table: %w", err)
	}
	if _, err := db.client.Exec(`CREATE TABLE IF NOT EXISTS builds(artifact_id INTEGER, version TEXT, repository_id TEXT, build_dir TEXT, outcome TEXT,
		started_at INTEGER, duration_ms INTEGER, error TEXT, foreign key (artifact_id) references artifacts(id))`); err != nil {
		return xerrors.Errorf("unable to create 'builds' table: %w", err)
	}
	if _, err := db.client.Exec("CREATE UNIQUE INDEX IF NOT EXISTS artifacts_idx ON artifacts(group_id, artifact_id)"); err != nil {
		return xerrors.Errorf("unable to create 'artifacts_idx' index: %w", err)
	}
	if _, err := db.client.Exec("CREATE INDEX IF NOT EXISTS builds_started_at_idx ON builds(started_at)"); err != nil {
		return xerrors.Errorf("unable to create 'builds_started_at_idx' index: %w", err)
	}

	if metaErr == nil {
		return nil
	}
	now := db.clock.Now().UTC()
	if err := db.meta.Update(Metadata{Version: schemaVersion, CreatedAt: now, UpdatedAt: now}); err != nil {
		return xerrors.Errorf("failed to update metadata: %w", err)
	}
	return nil
}

func (db *DB) Dir() string {
	return db.dir
}

func (db *DB) Close() error {
	return db.client.Close()
}

// Prune deletes the attempts started before t together with the artifacts
// left without any attempt, then compacts the database file.
func (db *DB) Prune(before time.Time) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.client.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM builds WHERE started_at < ?", before.UnixMilli())
	if err != nil {
		return 0, xerrors.Errorf("unable to delete from 'builds' table: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, xerrors.Errorf("rows affected error: %w", err)
	}
	if _, err = tx.Exec("DELETE FROM artifacts WHERE id NOT IN (SELECT artifact_id FROM builds)"); err != nil {
		return 0, xerrors.Errorf("unable to delete from 'artifacts' table: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, xerrors.Errorf("commit error: %w", err)
	}

	if err = db.VacuumDB(); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (db *DB) VacuumDB() error {
	if _, err := db.client.Exec("VACUUM"); err != nil {
		return xerrors.Errorf("vacuum database error: %w", err)
	}
	return nil
}

// Record stores a single attempt.
func (db *DB) Record(r Record) error {
	return db.InsertRecords([]Record{r})
}

func (db *DB) InsertRecords(records []Record) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.client.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range records {
		if _, err = tx.Exec(`INSERT INTO artifacts(group_id, artifact_id) VALUES (?, ?) ON CONFLICT(group_id, artifact_id) DO NOTHING`,
			r.GroupID, r.ArtifactID); err != nil {
			return xerrors.Errorf("unable to insert to 'artifacts' table: %w", err)
		}
		if _, err = tx.Exec(`INSERT INTO builds(artifact_id, version, repository_id, build_dir, outcome, started_at, duration_ms, error)
			VALUES ((SELECT id FROM artifacts WHERE group_id=? AND artifact_id=?), ?, ?, ?, ?, ?, ?, ?)`,
			r.GroupID, r.ArtifactID, r.Version, r.RepositoryID, r.BuildDir, string(r.Outcome),
			r.StartedAt.UnixMilli(), r.Duration.Milliseconds(), r.Error); err != nil {
			return xerrors.Errorf("unable to insert to 'builds' table: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return xerrors.Errorf("commit error: %w", err)
	}

	meta, err := db.meta.Get()
	if err != nil {
		return xerrors.Errorf("failed to read metadata: %w", err)
	}
	meta.UpdatedAt = db.clock.Now().UTC()
	if err = db.meta.Update(meta); err != nil {
		return xerrors.Errorf("failed to update metadata: %w", err)
	}
	return nil
}

// SelectRecords returns the matching attempts, most recent first.
func (db *DB) SelectRecords(f Filter) ([]Record, error) {
	var (
		conds []string
		args  []any
	)
	if f.GroupID != "" {
		conds = append(conds, "a.group_id = ?")
		args = append(args, f.GroupID)
	}
	if f.ArtifactID != "" {
		conds = append(conds, "a.artifact_id = ?")
		args = append(args, f.ArtifactID)
	}
	if f.Outcome != "" {
		conds = append(conds, "b.outcome = ?")
		args = append(args, string(f.Outcome))
	}

	query := `SELECT a.group_id, a.artifact_id, b.version, b.repository_id, b.build_dir, b.outcome, b.started_at, b.duration_ms, b.error
		FROM builds b JOIN artifacts a ON a.id = b.artifact_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY b.started_at DESC, b.rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.client.Query(query, args...)
	if err != nil {
		return nil, xerrors.Errorf("select records error: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                   Record
			outcome             string
			startedAt, duration int64
		)
		if err = rows.Scan(&r.GroupID, &r.ArtifactID, &r.Version, &r.RepositoryID, &r.BuildDir, &outcome, &startedAt, &duration, &r.Error); err != nil {
			return nil, xerrors.Errorf("scan row error: %w", err)
		}
		r.Outcome = Outcome(outcome)
		r.StartedAt = time.UnixMilli(startedAt).UTC()
		r.Duration = time.Duration(duration) * time.Millisecond
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return nil, xerrors.Errorf("rows error: %w", err)
	}
	return records, nil
}

func (db *DB) Metadata() (Metadata, error) {
	return db.meta.Get()
}
