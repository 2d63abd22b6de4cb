package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// LocateDatabaseFiles searches the fixed sandbox locations of one
// application for SQLite database files. Locations are queried
// concurrently; a location that fails to list (missing directory,
// non-debuggable app, permission denial) contributes nothing and the
// search continues. Results keep the declared location order.
func (a *App) LocateDatabaseFiles(device Device, app AppRef) LocateResult {
	if err := ValidateDeviceID(device.ID); err != nil {
		return LocateResult{Success: false, Error: err.Error()}
	}
	if app.ID == "" {
		return LocateResult{Success: false, Error: "application id is required"}
	}

	timer := StartOperation("dbfiles", "locate_databases").
		AddDetail("device", device.ID).
		AddDetail("app", app.ID)

	transport, err := a.transportFor(device)
	if err != nil {
		timer.EndWithError(err)
		return LocateResult{Success: false, Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultCmdTimeout)
	defer cancel()

	files := locateDatabases(ctx, transport, device, app)

	LogUserAction(ActionDatabaseLocate, device.ID, map[string]interface{}{
		"app":   app.ID,
		"count": len(files),
	})
	timer.AddDetail("count", len(files)).End()
	return LocateResult{Success: true, Files: files}
}

// locateDatabases fans one listing query out per sandbox location and
// reassembles the results in location order. No de-duplication: the
// same filename under two locations is two distinct files.
func locateDatabases(ctx context.Context, transport deviceFileTransport, device Device, app AppRef) []DatabaseFile {
	locations := transport.locations()
	results := make([][]DatabaseFile, len(locations))

	var wg sync.WaitGroup
	for i, loc := range locations {
		wg.Add(1)
		go func(i int, loc SandboxLocation) {
			defer wg.Done()
			remotes, err := transport.listDatabases(ctx, app, loc)
			if err != nil {
				LogDebug("locator").
					Str("device", device.ID).
					Str("app", app.ID).
					Str("location", string(loc)).
					Err(err).
					Msg("Location listing failed")
				return
			}
			files := make([]DatabaseFile, 0, len(remotes))
			for _, remote := range remotes {
				files = append(files, DatabaseFile{
					RemotePath: remote,
					Filename:   remoteBase(transport.category(), remote),
					Location:   loc,
					Category:   transport.category(),
					App:        app,
					DeviceID:   device.ID,
				})
			}
			results[i] = files
		}(i, loc)
	}
	wg.Wait()

	var all []DatabaseFile
	for _, files := range results {
		all = append(all, files...)
	}
	return all
}

// remoteBase extracts the filename component of a remote path. Simulator
// paths are host paths, everything else is slash separated.
func remoteBase(category DeviceCategory, remote string) string {
	if category == CategorySimulator {
		return filepath.Base(remote)
	}
	return path.Base(remote)
}

// LocateAndroidDatabases locates database files of one Android package.
func (a *App) LocateAndroidDatabases(deviceID, packageName string) LocateResult {
	return a.LocateDatabaseFiles(
		Device{ID: deviceID, Category: CategoryAndroid},
		AppRef{ID: packageName})
}

// LocateSimulatorDatabases locates database files of one simulator app.
func (a *App) LocateSimulatorDatabases(udid, bundleID string) LocateResult {
	return a.LocateDatabaseFiles(
		Device{ID: udid, Category: CategorySimulator},
		AppRef{ID: bundleID})
}

// LocateIOSDeviceDatabases locates database files of one app on a
// physical iOS device.
func (a *App) LocateIOSDeviceDatabases(udid, bundleID string) LocateResult {
	return a.LocateDatabaseFiles(
		Device{ID: udid, Category: CategoryIOSDevice},
		AppRef{ID: bundleID})
}

// GetStagedFileInfo returns size and provenance for a staged local file.
func (a *App) GetStagedFileInfo(localPath string) (map[string]interface{}, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat staged file: %w", err)
	}
	result := map[string]interface{}{
		"localPath": localPath,
		"sizeBytes": info.Size(),
		"modTime":   info.ModTime(),
	}
	if a.watcher != nil {
		result["dirty"] = a.watcher.IsDirty(localPath)
	}
	if prov, err := readProvenance(localPath); err == nil {
		result["provenance"] = prov
	}
	return result, nil
}

// ListStagedFiles describes the files currently in the staging area,
// flagging those whose content drifted from the pristine snapshot.
// Descriptors are rebuilt from the provenance sidecars and the catalog,
// so the listing survives an application restart.
func (a *App) ListStagedFiles() LocateResult {
	entries, err := os.ReadDir(a.staging.Dir())
	if err != nil {
		// Nothing staged yet.
		return LocateResult{Success: true, Files: []DatabaseFile{}}
	}

	files := []DatabaseFile{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || isSidecarFile(name) || !hasDatabaseExtension(name) {
			continue
		}
		localPath := filepath.Join(a.staging.Dir(), name)
		file := DatabaseFile{LocalPath: localPath, Filename: name, Valid: true}
		if info, err := entry.Info(); err == nil {
			file.SizeBytes = info.Size()
		}
		if prov, err := readProvenance(localPath); err == nil {
			file.DeviceID = prov.DeviceID
			file.App = AppRef{ID: prov.PackageName, Name: prov.PackageName}
			file.RemotePath = prov.RemotePath
			file.Filename = path.Base(prov.RemotePath)
		}
		if a.catalog != nil {
			if rec, err := a.catalog.FindByLocalPath(localPath); err == nil && rec != nil {
				file.Location = SandboxLocation(rec.Location)
				file.Category = rec.Category
			}
		}
		if a.watcher != nil {
			file.Dirty = a.watcher.IsDirty(localPath)
		}
		files = append(files, file)
	}
	return LocateResult{Success: true, Files: files}
}
