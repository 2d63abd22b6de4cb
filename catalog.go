package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"Satchel/pkg/types"
)

// ========================================
// Catalog - staging history store
// ========================================

// Catalog persists staging runs and per-file records so that sync-back
// and history survive an application restart.
type Catalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex

	stmtInsertRun     *sql.Stmt
	stmtInsertFile    *sql.Stmt
	stmtBumpRunCount  *sql.Stmt
	stmtMarkPushed    *sql.Stmt
	stmtFindByLocal   *sql.Stmt
	stmtListRuns      *sql.Stmt
	stmtListRunsByDev *sql.Stmt
	stmtRunFiles      *sql.Stmt
}

const catalogSchemaSQL = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA temp_store = MEMORY;

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL,
    app_id TEXT NOT NULL,
    category TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    file_count INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_device ON runs(device_id);
CREATE INDEX IF NOT EXISTS idx_runs_time ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS staged_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    device_id TEXT NOT NULL,
    app_id TEXT NOT NULL,
    category TEXT NOT NULL,
    location TEXT NOT NULL,
    remote_path TEXT NOT NULL,
    local_path TEXT NOT NULL,
    checksum TEXT NOT NULL,
    size_bytes INTEGER DEFAULT 0,
    staged_at INTEGER NOT NULL,
    pushed_at INTEGER DEFAULT 0,
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_staged_files_run ON staged_files(run_id);
CREATE INDEX IF NOT EXISTS idx_staged_files_local ON staged_files(local_path, staged_at DESC);
`

// NewCatalog opens (creating if necessary) the catalog database under
// dataDir.
func NewCatalog(dataDir string) (*Catalog, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "catalog.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	c := &Catalog{db: db, dbPath: dbPath}

	if _, err := db.Exec(catalogSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	if err := c.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return c, nil
}

func (c *Catalog) prepareStatements() error {
	var err error

	c.stmtInsertRun, err = c.db.Prepare(`
		INSERT INTO runs (id, device_id, app_id, category, started_at, file_count)
		VALUES (?, ?, ?, ?, ?, 0)`)
	if err != nil {
		return err
	}

	c.stmtInsertFile, err = c.db.Prepare(`
		INSERT INTO staged_files (run_id, device_id, app_id, category, location,
			remote_path, local_path, checksum, size_bytes, staged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	c.stmtBumpRunCount, err = c.db.Prepare(`
		UPDATE runs SET file_count = file_count + 1 WHERE id = ?`)
	if err != nil {
		return err
	}

	c.stmtMarkPushed, err = c.db.Prepare(`
		UPDATE staged_files SET pushed_at = ?
		WHERE id = (SELECT id FROM staged_files WHERE local_path = ? ORDER BY staged_at DESC LIMIT 1)`)
	if err != nil {
		return err
	}

	c.stmtFindByLocal, err = c.db.Prepare(`
		SELECT run_id, device_id, app_id, category, location, remote_path,
			local_path, checksum, size_bytes, staged_at, pushed_at
		FROM staged_files WHERE local_path = ? ORDER BY staged_at DESC LIMIT 1`)
	if err != nil {
		return err
	}

	c.stmtListRuns, err = c.db.Prepare(`
		SELECT id, device_id, app_id, category, started_at, file_count
		FROM runs ORDER BY started_at DESC LIMIT ?`)
	if err != nil {
		return err
	}

	c.stmtListRunsByDev, err = c.db.Prepare(`
		SELECT id, device_id, app_id, category, started_at, file_count
		FROM runs WHERE device_id = ? ORDER BY started_at DESC LIMIT ?`)
	if err != nil {
		return err
	}

	c.stmtRunFiles, err = c.db.Prepare(`
		SELECT run_id, device_id, app_id, category, location, remote_path,
			local_path, checksum, size_bytes, staged_at, pushed_at
		FROM staged_files WHERE run_id = ? ORDER BY id`)
	if err != nil {
		return err
	}

	return nil
}

// BeginRun records a new staging run.
func (c *Catalog) BeginRun(run StagingRun) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.stmtInsertRun.Exec(run.ID, run.DeviceID, run.AppID, string(run.Category), run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecordFile records one staged file and bumps its run's file count.
func (c *Catalog) RecordFile(rec StagedFileRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.stmtInsertFile.Exec(
		rec.RunID, rec.DeviceID, rec.AppID, string(rec.Category), rec.Location,
		rec.RemotePath, rec.LocalPath, rec.Checksum, rec.SizeBytes, rec.StagedAt)
	if err != nil {
		return fmt.Errorf("failed to insert staged file: %w", err)
	}
	if _, err := c.stmtBumpRunCount.Exec(rec.RunID); err != nil {
		return fmt.Errorf("failed to update run count: %w", err)
	}
	return nil
}

// MarkPushed stamps the latest record for localPath as pushed.
func (c *Catalog) MarkPushed(localPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.stmtMarkPushed.Exec(time.Now().UnixMilli(), localPath)
	if err != nil {
		return fmt.Errorf("failed to mark pushed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no staged record for %s", localPath)
	}
	return nil
}

// FindByLocalPath returns the most recent staged record for a local
// file, or nil if the file was never staged.
func (c *Catalog) FindByLocalPath(localPath string) (*StagedFileRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, err := scanStagedFile(c.stmtFindByLocal.QueryRow(localPath))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query staged file: %w", err)
	}
	return rec, nil
}

// ListRuns returns recent runs, newest first. An empty deviceID lists
// runs across all devices.
func (c *Catalog) ListRuns(deviceID string, limit int) ([]StagingRun, error) {
	if limit <= 0 {
		limit = 50
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var rows *sql.Rows
	var err error
	if deviceID == "" {
		rows, err = c.stmtListRuns.Query(limit)
	} else {
		rows, err = c.stmtListRunsByDev.Query(deviceID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []StagingRun{}
	for rows.Next() {
		var run StagingRun
		var category string
		if err := rows.Scan(&run.ID, &run.DeviceID, &run.AppID, &category, &run.StartedAt, &run.FileCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Category = types.DeviceCategory(category)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunFiles returns the staged files of one run in staging order.
func (c *Catalog) RunFiles(runID string) ([]StagedFileRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.stmtRunFiles.Query(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run files: %w", err)
	}
	defer rows.Close()

	files := []StagedFileRecord{}
	for rows.Next() {
		rec, err := scanStagedFileRows(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *rec)
	}
	return files, rows.Err()
}

// CleanupOldRuns deletes runs (and their files, via cascade) older than
// maxAge.
func (c *Catalog) CleanupOldRuns(maxAge time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := c.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close releases the prepared statements and the database handle.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stmt := range []*sql.Stmt{
		c.stmtInsertRun, c.stmtInsertFile, c.stmtBumpRunCount,
		c.stmtMarkPushed, c.stmtFindByLocal, c.stmtListRuns,
		c.stmtListRunsByDev, c.stmtRunFiles,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStagedFile(row rowScanner) (*StagedFileRecord, error) {
	var rec StagedFileRecord
	var category string
	err := row.Scan(&rec.RunID, &rec.DeviceID, &rec.AppID, &category, &rec.Location,
		&rec.RemotePath, &rec.LocalPath, &rec.Checksum, &rec.SizeBytes,
		&rec.StagedAt, &rec.PushedAt)
	if err != nil {
		return nil, err
	}
	rec.Category = types.DeviceCategory(category)
	return &rec, nil
}

func scanStagedFileRows(rows *sql.Rows) (*StagedFileRecord, error) {
	rec, err := scanStagedFile(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan staged file: %w", err)
	}
	return rec, nil
}

// GetStagingHistory returns recent staging runs for a device (all
// devices when deviceID is empty), including the files of the most
// recent run.
func (a *App) GetStagingHistory(deviceID string, limit int) HistoryResult {
	if a.catalog == nil {
		return HistoryResult{Success: false, Error: "catalog is not available"}
	}
	runs, err := a.catalog.ListRuns(deviceID, limit)
	if err != nil {
		LogError("catalog").Err(err).Msg("Failed to list staging runs")
		return HistoryResult{Success: false, Error: err.Error()}
	}
	result := HistoryResult{Success: true, Runs: runs}
	if len(runs) > 0 {
		files, err := a.catalog.RunFiles(runs[0].ID)
		if err != nil {
			LogWarn("catalog").Err(err).Str("run", runs[0].ID).Msg("Failed to load run files")
		} else {
			result.Files = files
		}
	}
	return result
}
