package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// PushDatabase writes a locally edited database file back to its origin
// on the device. The transfer mechanism depends on the device category
// and, on Android, on whether the target path is app private.
func (a *App) PushDatabase(device Device, app AppRef, localPath, remotePath string) PushResult {
	if err := ValidateDeviceID(device.ID); err != nil {
		return PushResult{Success: false, Error: err.Error()}
	}
	if _, err := os.Stat(localPath); err != nil {
		return PushResult{Success: false, Error: fmt.Sprintf("local file unavailable: %v", err)}
	}

	timer := StartOperation("syncback", "push_database").
		AddDetail("device", device.ID).
		AddDetail("remote", remotePath)

	transport, err := a.transportFor(device)
	if err != nil {
		timer.EndWithError(err)
		return PushResult{Success: false, Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultCmdTimeout)
	defer cancel()

	if err := transport.push(ctx, app, localPath, remotePath); err != nil {
		timer.EndWithError(err)
		var elevated *elevatedCopyError
		if errors.As(err, &elevated) {
			// The staged copy made it to the device; hand the user the
			// exact commands to finish the job.
			LogError("syncback").
				Str("device", device.ID).
				Str("remote", remotePath).
				Err(err).
				Msg("Elevated copy failed, manual recovery required")
			return PushResult{
				Success:     false,
				Error:       err.Error(),
				ManualSteps: elevated.ManualSteps(),
			}
		}
		LogError("syncback").
			Str("device", device.ID).
			Str("remote", remotePath).
			Err(err).
			Msg("Push failed")
		return PushResult{Success: false, Error: err.Error()}
	}

	a.afterPush(localPath)

	LogUserAction(ActionDatabasePush, device.ID, map[string]interface{}{
		"app":    app.ID,
		"remote": remotePath,
	})
	timer.End()
	a.emit("push-complete", map[string]interface{}{
		"localPath":  localPath,
		"remotePath": remotePath,
	})
	return PushResult{Success: true}
}

// PushStaged pushes a staged file back using its recorded provenance,
// so callers only need the local path. Addressing comes from the
// sidecar; the device category comes from the catalog.
func (a *App) PushStaged(localPath string) PushResult {
	prov, err := readProvenance(localPath)
	if err != nil {
		return PushResult{Success: false, Error: fmt.Sprintf("no provenance for staged file: %v", err)}
	}

	category, err := a.stagedCategory(localPath, prov)
	if err != nil {
		return PushResult{Success: false, Error: err.Error()}
	}

	return a.PushDatabase(
		Device{ID: prov.DeviceID, Category: category},
		AppRef{ID: prov.PackageName},
		localPath,
		prov.RemotePath)
}

// stagedCategory resolves the device category of a staged file from the
// catalog, falling back to the shape of the recorded remote path.
func (a *App) stagedCategory(localPath string, prov *Provenance) (DeviceCategory, error) {
	if a.catalog != nil {
		if rec, err := a.catalog.FindByLocalPath(localPath); err == nil && rec != nil {
			return rec.Category, nil
		}
	}
	// Simulator files were pulled from an absolute host container path
	// that still exists; Android paths start at a known root.
	if _, err := os.Stat(prov.RemotePath); err == nil {
		return CategorySimulator, nil
	}
	switch {
	case hasAndroidPathShape(prov.RemotePath):
		return CategoryAndroid, nil
	case hasIOSPathShape(prov.RemotePath):
		return CategoryIOSDevice, nil
	}
	return "", fmt.Errorf("cannot determine device category for %s", localPath)
}

func hasAndroidPathShape(remote string) bool {
	return strings.HasPrefix(remote, androidInternalRoot) || strings.HasPrefix(remote, androidExternalRoot)
}

func hasIOSPathShape(remote string) bool {
	for _, loc := range []SandboxLocation{LocDocuments, LocLibrary} {
		if strings.HasPrefix(remote, "/"+string(loc)) {
			return true
		}
	}
	return false
}

// afterPush refreshes the pristine snapshot and checksum so the pushed
// content becomes the new baseline.
func (a *App) afterPush(localPath string) {
	if err := a.catalogMarkPushed(localPath); err != nil {
		LogWarn("syncback").Str("path", localPath).Err(err).Msg("Failed to mark pushed in catalog")
	}
	if err := writeSnapshot(localPath); err != nil {
		LogWarn("syncback").Str("path", localPath).Err(err).Msg("Failed to refresh snapshot")
		return
	}
	if a.watcher != nil {
		if checksum, err := fileChecksum(localPath); err == nil {
			a.watcher.SetBaseline(localPath, checksum)
		}
	}
}

func (a *App) catalogMarkPushed(localPath string) error {
	if a.catalog == nil {
		return nil
	}
	return a.catalog.MarkPushed(localPath)
}
