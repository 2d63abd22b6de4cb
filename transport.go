package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Database file extensions recognised by the locator.
var dbExtensions = []string{".db", ".sqlite", ".sqlite3", ".sqlitedb", ".db3"}

// hasDatabaseExtension reports whether a filename carries one of the
// recognised SQLite extensions.
func hasDatabaseExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range dbExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// filterDatabaseNames keeps the entries of a directory listing that look
// like database files.
func filterDatabaseNames(lines []string) []string {
	var names []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if hasDatabaseExtension(line) {
			names = append(names, line)
		}
	}
	return names
}

// deviceFileTransport is the per-category access mechanism behind the
// locator and both transfer directions. Adding a device category means
// adding one implementation, not patching every dispatch site.
type deviceFileTransport interface {
	category() DeviceCategory
	// locations returns the fixed, ordered sandbox locations searched
	// for this category.
	locations() []SandboxLocation
	// listDatabases returns remote paths of database files under one
	// sandbox location of the given application.
	listDatabases(ctx context.Context, app AppRef, loc SandboxLocation) ([]string, error)
	pull(ctx context.Context, app AppRef, remotePath, localPath string) error
	push(ctx context.Context, app AppRef, localPath, remotePath string) error
}

// transportFor returns the transport implementation for a device.
func (a *App) transportFor(device Device) (deviceFileTransport, error) {
	switch device.Category {
	case CategoryAndroid:
		if a.tools.adb == "" {
			return nil, fmt.Errorf("adb is not available")
		}
		return &androidTransport{app: a, deviceID: device.ID}, nil
	case CategorySimulator:
		if a.tools.xcrun == "" {
			return nil, fmt.Errorf("xcrun is not available")
		}
		return &simulatorTransport{app: a, udid: device.ID, containers: make(map[string]string)}, nil
	case CategoryIOSDevice:
		if a.tools.afcClient == "" {
			return nil, fmt.Errorf("afcclient is not available")
		}
		return &physicalIOSTransport{app: a, udid: device.ID}, nil
	default:
		return nil, fmt.Errorf("unknown device category: %s", device.Category)
	}
}

// ========================================
// Android (devices and emulators)
// ========================================

const (
	androidInternalRoot = "/data/data"
	androidExternalRoot = "/sdcard/Android/data"
	androidTempDir      = "/data/local/tmp"
)

// elevatedCopyError reports a failed run-as copy on the two-hop push
// path. The staged file is already on the device at TempPath, so the
// caller can surface ready-to-run recovery commands.
type elevatedCopyError struct {
	DeviceID   string
	Package    string
	TempPath   string
	RemotePath string
	cause      error
}

func (e *elevatedCopyError) Error() string {
	return fmt.Sprintf("elevated copy to %s failed: %v", e.RemotePath, e.cause)
}

func (e *elevatedCopyError) Unwrap() error { return e.cause }

// ManualSteps returns shell commands a user can run to finish the copy
// by hand.
func (e *elevatedCopyError) ManualSteps() string {
	return fmt.Sprintf(
		"The file was uploaded to %s but could not be copied into the app sandbox. To finish manually, run:\n"+
			"  adb -s %s shell run-as %s cp %s %s\n"+
			"  adb -s %s shell rm %s",
		e.TempPath,
		e.DeviceID, e.Package, e.TempPath, e.RemotePath,
		e.DeviceID, e.TempPath)
}

type androidTransport struct {
	app      *App
	deviceID string
}

func (t *androidTransport) category() DeviceCategory { return CategoryAndroid }

func (t *androidTransport) locations() []SandboxLocation {
	return []SandboxLocation{
		LocDatabases,
		LocFiles,
		LocSharedPrefs,
		LocExternalFiles,
		LocExternalDatabases,
	}
}

// isExternalLocation reports whether a location lives under the
// world-readable external storage root.
func isExternalLocation(loc SandboxLocation) bool {
	return loc == LocExternalFiles || loc == LocExternalDatabases
}

// remoteDir resolves a sandbox location to its on-device directory.
func (t *androidTransport) remoteDir(app AppRef, loc SandboxLocation) string {
	switch loc {
	case LocExternalFiles:
		return path.Join(androidExternalRoot, app.ID, "files")
	case LocExternalDatabases:
		return path.Join(androidExternalRoot, app.ID, "databases")
	default:
		return path.Join(androidInternalRoot, app.ID, string(loc))
	}
}

func (t *androidTransport) listDatabases(ctx context.Context, app AppRef, loc SandboxLocation) ([]string, error) {
	dir := t.remoteDir(app, loc)

	var output string
	var err error
	if isExternalLocation(loc) {
		output, err = t.app.runAdb(ctx, "-s", t.deviceID, "shell", "ls", "-1", dir)
	} else {
		// App-private storage needs the package's own uid; run-as only
		// works for debuggable applications.
		output, err = t.app.runAdb(ctx, "-s", t.deviceID, "shell", "run-as", app.ID, "ls", "-1", dir)
	}
	if err != nil {
		return nil, err
	}

	names := filterDatabaseNames(strings.Split(output, "\n"))
	remotes := make([]string, 0, len(names))
	for _, name := range names {
		remotes = append(remotes, path.Join(dir, name))
	}
	return remotes, nil
}

func (t *androidTransport) pull(ctx context.Context, app AppRef, remotePath, localPath string) error {
	if strings.HasPrefix(remotePath, androidExternalRoot) {
		// External storage is world readable; a plain pull suffices.
		if _, err := t.app.runAdb(ctx, "-s", t.deviceID, "pull", remotePath, localPath); err != nil {
			return err
		}
		return nil
	}

	// Private storage: run as the owning package, cat the file and
	// redirect the raw stream into the local copy.
	if ctx == nil {
		c, cancel := context.WithTimeout(context.Background(), defaultCmdTimeout)
		defer cancel()
		ctx = c
	}
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer out.Close()

	cmd := t.app.newAdbCommand(ctx, "-s", t.deviceID, "exec-out", "run-as", app.ID, "cat", remotePath)
	cmd.Stdout = out
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("run-as cat failed: %w, output: %s", err, stderr.String())
	}
	return nil
}

func (t *androidTransport) push(ctx context.Context, app AppRef, localPath, remotePath string) error {
	if strings.HasPrefix(remotePath, androidExternalRoot) {
		if _, err := t.app.runAdb(ctx, "-s", t.deviceID, "push", localPath, remotePath); err != nil {
			return err
		}
		return nil
	}

	// Two-hop strategy for app-private paths: push to a world-writable
	// temp path, then copy into the sandbox as the owning package.
	tempPath := path.Join(androidTempDir, filepath.Base(localPath))
	if _, err := t.app.runAdb(ctx, "-s", t.deviceID, "push", localPath, tempPath); err != nil {
		return fmt.Errorf("push to temp path failed: %w", err)
	}

	if _, err := t.app.runAdb(ctx, "-s", t.deviceID, "shell", "run-as", app.ID, "cp", tempPath, remotePath); err != nil {
		return &elevatedCopyError{
			DeviceID:   t.deviceID,
			Package:    app.ID,
			TempPath:   tempPath,
			RemotePath: remotePath,
			cause:      err,
		}
	}

	// Cleanup is best effort; a leftover temp file is harmless.
	if _, err := t.app.runAdb(ctx, "-s", t.deviceID, "shell", "rm", tempPath); err != nil {
		LogWarn("transport").Str("device", t.deviceID).Str("path", tempPath).Err(err).Msg("Temp cleanup failed")
	}
	return nil
}

// ========================================
// iOS simulators
// ========================================

type simulatorTransport struct {
	app  *App
	udid string

	// containers caches resolved data container paths per bundle id.
	containers map[string]string
}

func (t *simulatorTransport) category() DeviceCategory { return CategorySimulator }

func (t *simulatorTransport) locations() []SandboxLocation {
	return []SandboxLocation{
		LocDocuments,
		LocLibrary,
		LocLibraryCaches,
		LocLibraryPreferences,
	}
}

// container resolves the simulator app's data container directory on the
// host filesystem.
func (t *simulatorTransport) container(ctx context.Context, app AppRef) (string, error) {
	if dir, ok := t.containers[app.ID]; ok {
		return dir, nil
	}
	output, err := t.app.runTool(ctx, t.app.tools.xcrun, "simctl", "get_app_container", t.udid, app.ID, "data")
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(output)
	if dir == "" {
		return "", fmt.Errorf("empty container path for %s", app.ID)
	}
	t.containers[app.ID] = dir
	return dir, nil
}

func (t *simulatorTransport) listDatabases(ctx context.Context, app AppRef, loc SandboxLocation) ([]string, error) {
	container, err := t.container(ctx, app)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(container, filepath.FromSlash(string(loc)))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var remotes []string
	for _, entry := range entries {
		if entry.IsDir() || !hasDatabaseExtension(entry.Name()) {
			continue
		}
		remotes = append(remotes, filepath.Join(dir, entry.Name()))
	}
	return remotes, nil
}

// Simulator containers live on the host filesystem, so transfers in both
// directions are plain file copies.
func (t *simulatorTransport) pull(ctx context.Context, app AppRef, remotePath, localPath string) error {
	return copyFile(remotePath, localPath)
}

func (t *simulatorTransport) push(ctx context.Context, app AppRef, localPath, remotePath string) error {
	return copyFile(localPath, remotePath)
}

// ========================================
// Physical iOS devices
// ========================================

type physicalIOSTransport struct {
	app  *App
	udid string
}

func (t *physicalIOSTransport) category() DeviceCategory { return CategoryIOSDevice }

func (t *physicalIOSTransport) locations() []SandboxLocation {
	return []SandboxLocation{
		LocDocuments,
		LocLibrary,
		LocLibraryCaches,
		LocLibraryPreferences,
	}
}

// afc runs afcclient against the application container over the AFC
// house-arrest protocol.
func (t *physicalIOSTransport) afc(ctx context.Context, app AppRef, args ...string) (string, error) {
	full := append([]string{"--udid", t.udid, "--container", app.ID}, args...)
	return t.app.runTool(ctx, t.app.tools.afcClient, full...)
}

func (t *physicalIOSTransport) listDatabases(ctx context.Context, app AppRef, loc SandboxLocation) ([]string, error) {
	dir := "/" + string(loc)
	output, err := t.afc(ctx, app, "ls", dir)
	if err != nil {
		return nil, err
	}

	names := filterDatabaseNames(strings.Split(output, "\n"))
	remotes := make([]string, 0, len(names))
	for _, name := range names {
		remotes = append(remotes, path.Join(dir, name))
	}
	return remotes, nil
}

func (t *physicalIOSTransport) pull(ctx context.Context, app AppRef, remotePath, localPath string) error {
	_, err := t.afc(ctx, app, "get", remotePath, localPath)
	return err
}

func (t *physicalIOSTransport) push(ctx context.Context, app AppRef, localPath, remotePath string) error {
	// Delete first: some AFC backends silently merge or rename on put
	// over an existing file. A failed delete just means nothing was
	// there to remove.
	if _, err := t.afc(ctx, app, "rm", remotePath); err != nil {
		LogDebug("transport").Str("path", remotePath).Err(err).Msg("Pre-put delete skipped")
	}
	_, err := t.afc(ctx, app, "put", localPath, remotePath)
	return err
}

// copyFile copies src to dst, replacing dst.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
