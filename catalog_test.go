package main

import (
	"testing"
	"time"
)

// setupTestCatalog creates a temporary Catalog for testing.
func setupTestCatalog(t *testing.T) (*Catalog, func()) {
	t.Helper()

	catalog, err := NewCatalog(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	cleanup := func() {
		catalog.Close()
	}
	return catalog, cleanup
}

func testRun(id, deviceID string) StagingRun {
	return StagingRun{
		ID:        id,
		DeviceID:  deviceID,
		AppID:     "com.example.notes",
		Category:  CategoryAndroid,
		StartedAt: time.Now().UnixMilli(),
	}
}

func testRecord(runID, localPath string) StagedFileRecord {
	return StagedFileRecord{
		RunID:      runID,
		DeviceID:   "emulator-5554",
		AppID:      "com.example.notes",
		Category:   CategoryAndroid,
		Location:   "databases",
		RemotePath: "/data/data/com.example.notes/databases/app.db",
		LocalPath:  localPath,
		Checksum:   "abc123",
		SizeBytes:  4096,
		StagedAt:   time.Now().UnixMilli(),
	}
}

func TestCatalogBeginRunAndRecordFile(t *testing.T) {
	catalog, cleanup := setupTestCatalog(t)
	defer cleanup()

	if err := catalog.BeginRun(testRun("run-1", "emulator-5554")); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := catalog.RecordFile(testRecord("run-1", "/staging/databases__app.db")); err != nil {
		t.Fatalf("RecordFile failed: %v", err)
	}
	if err := catalog.RecordFile(testRecord("run-1", "/staging/files__cache.db")); err != nil {
		t.Fatalf("RecordFile failed: %v", err)
	}

	runs, err := catalog.ListRuns("", 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	if runs[0].FileCount != 2 {
		t.Errorf("Expected file count 2, got %d", runs[0].FileCount)
	}
	if runs[0].Category != CategoryAndroid {
		t.Errorf("Expected category %s, got %s", CategoryAndroid, runs[0].Category)
	}
}

func TestCatalogListRunsByDevice(t *testing.T) {
	catalog, cleanup := setupTestCatalog(t)
	defer cleanup()

	catalog.BeginRun(testRun("run-1", "emulator-5554"))
	catalog.BeginRun(testRun("run-2", "00008030-AABBCCDD"))
	catalog.BeginRun(testRun("run-3", "emulator-5554"))

	runs, err := catalog.ListRuns("emulator-5554", 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs for device, got %d", len(runs))
	}
	for _, run := range runs {
		if run.DeviceID != "emulator-5554" {
			t.Errorf("Unexpected device in filtered result: %s", run.DeviceID)
		}
	}

	all, _ := catalog.ListRuns("", 10)
	if len(all) != 3 {
		t.Errorf("Expected 3 runs total, got %d", len(all))
	}
}

func TestCatalogRunFilesOrder(t *testing.T) {
	catalog, cleanup := setupTestCatalog(t)
	defer cleanup()

	catalog.BeginRun(testRun("run-1", "emulator-5554"))
	paths := []string{"/staging/a.db", "/staging/b.db", "/staging/c.db"}
	for _, p := range paths {
		catalog.RecordFile(testRecord("run-1", p))
	}

	files, err := catalog.RunFiles("run-1")
	if err != nil {
		t.Fatalf("RunFiles failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(files))
	}
	for i, f := range files {
		if f.LocalPath != paths[i] {
			t.Errorf("File %d: expected %s, got %s", i, paths[i], f.LocalPath)
		}
	}
}

func TestCatalogMarkPushed(t *testing.T) {
	catalog, cleanup := setupTestCatalog(t)
	defer cleanup()

	catalog.BeginRun(testRun("run-1", "emulator-5554"))
	catalog.RecordFile(testRecord("run-1", "/staging/databases__app.db"))

	if err := catalog.MarkPushed("/staging/databases__app.db"); err != nil {
		t.Fatalf("MarkPushed failed: %v", err)
	}

	rec, err := catalog.FindByLocalPath("/staging/databases__app.db")
	if err != nil {
		t.Fatalf("FindByLocalPath failed: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected a record")
	}
	if rec.PushedAt == 0 {
		t.Error("Expected pushed timestamp to be set")
	}
}

func TestCatalogMarkPushed_NoRecord(t *testing.T) {
	catalog, cleanup := setupTestCatalog(t)
	defer cleanup()

	if err := catalog.MarkPushed("/staging/never-staged.db"); err == nil {
		t.Error("Expected error for an unknown local path")
	}
}

func TestCatalogFindByLocalPath_Missing(t *testing.T) {
	catalog, cleanup := setupTestCatalog(t)
	defer cleanup()

	rec, err := catalog.FindByLocalPath("/staging/never-staged.db")
	if err != nil {
		t.Fatalf("FindByLocalPath failed: %v", err)
	}
	if rec != nil {
		t.Error("Expected nil record for a never-staged file")
	}
}

func TestCatalogFindByLocalPath_Latest(t *testing.T) {
	catalog, cleanup := setupTestCatalog(t)
	defer cleanup()

	catalog.BeginRun(testRun("run-1", "emulator-5554"))
	old := testRecord("run-1", "/staging/databases__app.db")
	old.Checksum = "old"
	old.StagedAt = time.Now().Add(-time.Hour).UnixMilli()
	catalog.RecordFile(old)

	catalog.BeginRun(testRun("run-2", "emulator-5554"))
	fresh := testRecord("run-2", "/staging/databases__app.db")
	fresh.Checksum = "fresh"
	catalog.RecordFile(fresh)

	rec, err := catalog.FindByLocalPath("/staging/databases__app.db")
	if err != nil {
		t.Fatalf("FindByLocalPath failed: %v", err)
	}
	if rec == nil || rec.Checksum != "fresh" {
		t.Errorf("Expected the most recent record, got %+v", rec)
	}
}

func TestCatalogCleanupOldRuns(t *testing.T) {
	catalog, cleanup := setupTestCatalog(t)
	defer cleanup()

	stale := testRun("run-old", "emulator-5554")
	stale.StartedAt = time.Now().Add(-48 * time.Hour).UnixMilli()
	catalog.BeginRun(stale)
	catalog.RecordFile(testRecord("run-old", "/staging/old.db"))
	catalog.BeginRun(testRun("run-new", "emulator-5554"))

	deleted, err := catalog.CleanupOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldRuns failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted run, got %d", deleted)
	}

	runs, _ := catalog.ListRuns("", 10)
	if len(runs) != 1 || runs[0].ID != "run-new" {
		t.Errorf("Expected only the recent run to survive, got %+v", runs)
	}

	// Cascade removes the old run's files.
	files, _ := catalog.RunFiles("run-old")
	if len(files) != 0 {
		t.Errorf("Expected cascade delete of run files, got %d", len(files))
	}
}
