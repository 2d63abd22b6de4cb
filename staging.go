package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Staged files live in one flat scratch directory; sidecars sit next to
// the data file they describe.
const (
	provenanceSuffix    = ".meta.json"
	snapshotSuffix      = ".orig.zst"
	maxConcurrentStages = 4
)

// ========================================
// Staging area
// ========================================

// stagingArea is the local scratch directory staged database files are
// pulled into. It is wiped at the start of every staging run so stale
// copies from a previous device or application never linger.
type stagingArea struct {
	dir string
	mu  sync.Mutex
}

func newStagingArea(dir string) *stagingArea {
	return &stagingArea{dir: dir}
}

func (s *stagingArea) Dir() string { return s.dir }

// Reset wipes and recreates the staging directory.
func (s *stagingArea) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	return nil
}

// ensure creates the staging directory if it does not exist yet,
// without wiping existing content.
func (s *stagingArea) ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.MkdirAll(s.dir, 0755)
}

// localPathFor maps a discovered file to its staged location. The
// sandbox location prefixes the filename so that equally named files
// from different locations never collide.
func (s *stagingArea) localPathFor(f DatabaseFile) string {
	prefix := strings.ReplaceAll(string(f.Location), "/", "-")
	return filepath.Join(s.dir, prefix+"__"+f.Filename)
}

// ========================================
// Staging operations
// ========================================

// StageDatabases discovers and stages every database file of one
// application. The staging area is wiped first, then files are pulled
// concurrently; one file failing to transfer or validate does not stop
// the rest.
func (a *App) StageDatabases(device Device, app AppRef) StageBatchResult {
	if err := ValidateDeviceID(device.ID); err != nil {
		return StageBatchResult{Success: false, Error: err.Error()}
	}

	timer := StartOperation("staging", "stage_databases").
		AddDetail("device", device.ID).
		AddDetail("app", app.ID)

	located := a.LocateDatabaseFiles(device, app)
	if !located.Success {
		timer.EndWithError(fmt.Errorf("%s", located.Error))
		return StageBatchResult{Success: false, Error: located.Error}
	}

	if err := a.staging.Reset(); err != nil {
		timer.EndWithError(err)
		return StageBatchResult{Success: false, Error: err.Error()}
	}
	if a.watcher != nil {
		a.watcher.Rearm(a.staging.Dir())
	}

	transport, err := a.transportFor(device)
	if err != nil {
		timer.EndWithError(err)
		return StageBatchResult{Success: false, Error: err.Error()}
	}

	runID := uuid.New().String()
	if a.catalog != nil {
		err := a.catalog.BeginRun(StagingRun{
			ID:        runID,
			DeviceID:  device.ID,
			AppID:     app.ID,
			Category:  device.Category,
			StartedAt: time.Now().UnixMilli(),
		})
		if err != nil {
			LogWarn("staging").Err(err).Msg("Failed to record staging run")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	results := make([]StageResult, len(located.Files))
	sem := make(chan struct{}, maxConcurrentStages)
	var wg sync.WaitGroup
	for i, file := range located.Files {
		wg.Add(1)
		go func(i int, file DatabaseFile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = a.stageFile(ctx, transport, runID, file)
		}(i, file)
	}
	wg.Wait()

	staged := 0
	for _, r := range results {
		if r.Success {
			staged++
		}
	}

	LogUserAction(ActionDatabaseStage, device.ID, map[string]interface{}{
		"app":    app.ID,
		"run":    runID,
		"staged": staged,
		"total":  len(results),
	})
	timer.AddDetail("staged", staged).AddDetail("total", len(results)).End()

	a.emit("staging-complete", map[string]interface{}{
		"runId":  runID,
		"staged": staged,
		"total":  len(results),
	})
	return StageBatchResult{Success: true, RunID: runID, Staged: results}
}

// StageDatabase stages a single previously located file without
// clearing the staging area.
func (a *App) StageDatabase(device Device, file DatabaseFile) StageResult {
	if err := ValidateDeviceID(device.ID); err != nil {
		return StageResult{Success: false, Error: err.Error(), File: file}
	}
	if err := a.staging.ensure(); err != nil {
		return StageResult{Success: false, Error: err.Error(), File: file}
	}

	transport, err := a.transportFor(device)
	if err != nil {
		return StageResult{Success: false, Error: err.Error(), File: file}
	}

	runID := uuid.New().String()
	if a.catalog != nil {
		err := a.catalog.BeginRun(StagingRun{
			ID:        runID,
			DeviceID:  device.ID,
			AppID:     file.App.ID,
			Category:  device.Category,
			StartedAt: time.Now().UnixMilli(),
		})
		if err != nil {
			LogWarn("staging").Err(err).Msg("Failed to record staging run")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultCmdTimeout)
	defer cancel()
	return a.stageFile(ctx, transport, runID, file)
}

// stageFile pulls one file into the staging area and records it. The
// staged copy gets a provenance sidecar, a compressed pristine snapshot
// and a validation verdict.
func (a *App) stageFile(ctx context.Context, transport deviceFileTransport, runID string, file DatabaseFile) StageResult {
	localPath := a.staging.localPathFor(file)

	if err := transport.pull(ctx, file.App, file.RemotePath, localPath); err != nil {
		LogWarn("staging").
			Str("remote", file.RemotePath).
			Err(err).
			Msg("Failed to pull database file")
		return StageResult{Success: false, Error: err.Error(), File: file}
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return StageResult{Success: false, Error: fmt.Sprintf("staged file missing: %v", err), File: file}
	}
	file.LocalPath = localPath
	file.SizeBytes = info.Size()
	file.Valid = validateSQLiteFile(localPath)

	prov := Provenance{
		DeviceID:    file.DeviceID,
		PackageName: file.App.ID,
		RemotePath:  file.RemotePath,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeProvenance(localPath, prov); err != nil {
		LogWarn("staging").Str("path", localPath).Err(err).Msg("Failed to write provenance sidecar")
	}

	checksum, err := fileChecksum(localPath)
	if err != nil {
		LogWarn("staging").Str("path", localPath).Err(err).Msg("Failed to checksum staged file")
	}
	if err := writeSnapshot(localPath); err != nil {
		LogWarn("staging").Str("path", localPath).Err(err).Msg("Failed to write pristine snapshot")
	}
	if a.watcher != nil {
		a.watcher.SetBaseline(localPath, checksum)
	}

	if a.catalog != nil {
		err := a.catalog.RecordFile(StagedFileRecord{
			RunID:      runID,
			DeviceID:   file.DeviceID,
			AppID:      file.App.ID,
			Category:   file.Category,
			Location:   string(file.Location),
			RemotePath: file.RemotePath,
			LocalPath:  localPath,
			Checksum:   checksum,
			SizeBytes:  file.SizeBytes,
			StagedAt:   time.Now().UnixMilli(),
		})
		if err != nil {
			LogWarn("staging").Err(err).Msg("Failed to record staged file")
		}
	}

	return StageResult{Success: true, File: file}
}

// RevertStaged restores a staged file to its pristine snapshot,
// discarding local edits.
func (a *App) RevertStaged(localPath string) OperationResult {
	if err := restoreSnapshot(localPath); err != nil {
		LogError("staging").Str("path", localPath).Err(err).Msg("Failed to revert staged file")
		return OperationResult{Success: false, Error: err.Error()}
	}
	if a.watcher != nil {
		checksum, err := fileChecksum(localPath)
		if err == nil {
			a.watcher.SetBaseline(localPath, checksum)
		}
	}
	LogUserAction(ActionDatabaseRevert, "", map[string]interface{}{"path": localPath})
	a.emit("staged-file-reverted", map[string]interface{}{"localPath": localPath})
	return OperationResult{Success: true}
}

// GetStagingDir returns the staging directory path.
func (a *App) GetStagingDir() string {
	return a.staging.Dir()
}

// ========================================
// Staged file helpers
// ========================================

func provenancePath(localPath string) string { return localPath + provenanceSuffix }
func snapshotPath(localPath string) string   { return localPath + snapshotSuffix }

func writeProvenance(localPath string, prov Provenance) error {
	data, err := json.MarshalIndent(prov, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal provenance: %w", err)
	}
	if err := os.WriteFile(provenancePath(localPath), data, 0644); err != nil {
		return fmt.Errorf("failed to write provenance: %w", err)
	}
	return nil
}

func readProvenance(localPath string) (*Provenance, error) {
	data, err := os.ReadFile(provenancePath(localPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read provenance: %w", err)
	}
	var prov Provenance
	if err := json.Unmarshal(data, &prov); err != nil {
		return nil, fmt.Errorf("failed to parse provenance: %w", err)
	}
	return &prov, nil
}

// fileChecksum returns the hex SHA-256 of a file.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeSnapshot stores a zstd-compressed copy of the pristine staged
// file for later revert and modification detection.
func writeSnapshot(localPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(snapshotPath(localPath))
	if err != nil {
		return err
	}
	defer dst.Close()

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// restoreSnapshot decompresses the pristine snapshot over the staged
// file.
func restoreSnapshot(localPath string) error {
	src, err := os.Open(snapshotPath(localPath))
	if err != nil {
		return fmt.Errorf("no pristine snapshot for %s: %w", localPath, err)
	}
	defer src.Close()

	dec, err := zstd.NewReader(src)
	if err != nil {
		return err
	}
	defer dec.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, dec.IOReadCloser()); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	return nil
}

// isSidecarFile reports whether a staging-directory entry is one of the
// sidecars rather than a staged database.
func isSidecarFile(name string) bool {
	return strings.HasSuffix(name, provenanceSuffix) || strings.HasSuffix(name, snapshotSuffix)
}

// validateSQLiteFile opens the file read-only and runs a quick
// integrity check. Non-database files sharing a .db extension fail
// here and are flagged rather than dropped.
func validateSQLiteFile(path string) bool {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&immutable=1")
	if err != nil {
		return false
	}
	defer db.Close()

	var verdict string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&verdict); err != nil {
		return false
	}
	return verdict == "ok"
}
