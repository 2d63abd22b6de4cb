package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHasAndroidPathShape(t *testing.T) {
	cases := map[string]bool{
		"/data/data/com.example.notes/databases/app.db":            true,
		"/sdcard/Android/data/com.example.notes/files/cache.db":    true,
		"/Documents/store.sqlite":                                  false,
		"/Library/Caches/cache.db":                                 false,
		"/Users/dev/Library/Developer/CoreSimulator/data/notes.db": false,
		"": false,
	}
	for remote, want := range cases {
		if got := hasAndroidPathShape(remote); got != want {
			t.Errorf("hasAndroidPathShape(%q) = %v, want %v", remote, got, want)
		}
	}
}

func TestHasIOSPathShape(t *testing.T) {
	cases := map[string]bool{
		"/Documents/store.sqlite":                       true,
		"/Library/Preferences/settings.db":              true,
		"/Library/Caches/cache.db":                      true,
		"/data/data/com.example.notes/databases/app.db": false,
		"relative/path.db":                              false,
	}
	for remote, want := range cases {
		if got := hasIOSPathShape(remote); got != want {
			t.Errorf("hasIOSPathShape(%q) = %v, want %v", remote, got, want)
		}
	}
}

func TestStagedCategory_FromCatalog(t *testing.T) {
	app := &App{mcpMode: true}
	catalog, err := NewCatalog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer catalog.Close()
	app.catalog = catalog

	localPath := "/staging/Documents__store.sqlite"
	catalog.BeginRun(StagingRun{ID: "run-1", DeviceID: "00008030-AABB", AppID: "com.example.reader",
		Category: CategoryIOSDevice, StartedAt: time.Now().UnixMilli()})
	catalog.RecordFile(StagedFileRecord{RunID: "run-1", DeviceID: "00008030-AABB",
		AppID: "com.example.reader", Category: CategoryIOSDevice, Location: "Documents",
		RemotePath: "/Documents/store.sqlite", LocalPath: localPath,
		StagedAt: time.Now().UnixMilli()})

	category, err := app.stagedCategory(localPath, &Provenance{RemotePath: "/Documents/store.sqlite"})
	if err != nil {
		t.Fatalf("stagedCategory failed: %v", err)
	}
	if category != CategoryIOSDevice {
		t.Errorf("Expected %s, got %s", CategoryIOSDevice, category)
	}
}

func TestStagedCategory_HostPathMeansSimulator(t *testing.T) {
	app := &App{mcpMode: true}

	// Simulator pulls record an absolute host path that still exists.
	containerPath := filepath.Join(t.TempDir(), "store.sqlite")
	if err := os.WriteFile(containerPath, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	category, err := app.stagedCategory("/staging/Documents__store.sqlite",
		&Provenance{RemotePath: containerPath})
	if err != nil {
		t.Fatalf("stagedCategory failed: %v", err)
	}
	if category != CategorySimulator {
		t.Errorf("Expected %s, got %s", CategorySimulator, category)
	}
}

func TestStagedCategory_PathShapeFallback(t *testing.T) {
	app := &App{mcpMode: true}

	category, err := app.stagedCategory("/staging/databases__app.db",
		&Provenance{RemotePath: "/data/data/com.example.notes/databases/app.db"})
	if err != nil {
		t.Fatalf("stagedCategory failed: %v", err)
	}
	if category != CategoryAndroid {
		t.Errorf("Expected %s, got %s", CategoryAndroid, category)
	}

	category, err = app.stagedCategory("/staging/Documents__store.sqlite",
		&Provenance{RemotePath: "/Documents/store.sqlite"})
	if err != nil {
		t.Fatalf("stagedCategory failed: %v", err)
	}
	if category != CategoryIOSDevice {
		t.Errorf("Expected %s, got %s", CategoryIOSDevice, category)
	}
}

func TestStagedCategory_Undeterminable(t *testing.T) {
	app := &App{mcpMode: true}

	if _, err := app.stagedCategory("/staging/mystery.db",
		&Provenance{RemotePath: "/nonexistent/odd/place.db"}); err == nil {
		t.Error("Expected error for an unrecognisable remote path")
	}
}
