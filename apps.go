package main

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// ListApplications lists user-installed applications on a device. Dispatch
// is purely a function of the device category. A per-device query failure
// yields an empty list, never an error envelope: sibling devices and the
// rest of the pipeline keep working.
func (a *App) ListApplications(device Device) AppListResult {
	if err := ValidateDeviceID(device.ID); err != nil {
		return AppListResult{Error: err.Error()}
	}
	a.updateLastActive(device.ID)

	var (
		apps []AppRef
		err  error
	)
	switch device.Category {
	case CategoryAndroid:
		apps, err = a.androidApps(nil, device.ID)
	case CategorySimulator:
		apps, err = a.simulatorApps(nil, device.ID)
	case CategoryIOSDevice:
		apps, err = a.iosDeviceApps(nil, device.ID)
	default:
		return AppListResult{Error: fmt.Sprintf("unknown device category: %s", device.Category)}
	}

	if err != nil {
		LogWarn("apps").Str("device", device.ID).Err(err).Msg("Application listing failed")
		return AppListResult{Success: true, Apps: []AppRef{}}
	}

	LogInfo("apps").Str("device", device.ID).Int("count", len(apps)).Msg("Applications listed")
	return AppListResult{Success: true, Apps: apps}
}

// androidApps lists third-party packages via the package manager.
func (a *App) androidApps(ctx context.Context, deviceID string) ([]AppRef, error) {
	output, err := a.runAdb(ctx, "-s", deviceID, "shell", "pm", "list", "packages", "-3")
	if err != nil {
		return nil, err
	}

	apps := parsePmPackages(output)

	// Display names default to the package id; the label cache can
	// upgrade them when a previous session resolved something nicer.
	if a.cacheService != nil {
		for i := range apps {
			if label, ok := a.cacheService.GetLabel(apps[i].ID); ok {
				apps[i].Name = label
			}
		}
	}
	return apps, nil
}

// SetAppLabel stores a user-chosen display label for an application id.
func (a *App) SetAppLabel(appID, label string) {
	if a.cacheService == nil || appID == "" {
		return
	}
	a.cacheService.SetLabel(appID, label)
	if err := a.cacheService.SaveLabels(); err != nil {
		LogWarn("apps").Err(err).Msg("Failed to persist app labels")
	}
}

// parsePmPackages parses "pm list packages" output into refs sorted
// lexicographically by package id.
func parsePmPackages(output string) []AppRef {
	var apps []AppRef
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "package:") {
			continue
		}
		id := strings.TrimPrefix(line, "package:")
		apps = append(apps, AppRef{ID: id, Name: id})
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps
}

// simulatorApps lists user apps installed in a booted simulator. simctl
// emits an NeXTSTEP-style plist; plutil converts it to JSON for parsing.
func (a *App) simulatorApps(ctx context.Context, udid string) ([]AppRef, error) {
	if a.tools.xcrun == "" || a.tools.plutil == "" {
		return nil, fmt.Errorf("xcrun/plutil are not available")
	}
	if ctx == nil {
		c, cancel := context.WithTimeout(context.Background(), defaultCmdTimeout)
		defer cancel()
		ctx = c
	}

	listCmd := a.newCommand(ctx, a.tools.xcrun, "simctl", "listapps", udid)
	plist, err := listCmd.Output()
	if err != nil {
		return nil, fmt.Errorf("simctl listapps failed: %w", err)
	}

	convCmd := a.newCommand(ctx, a.tools.plutil, "-convert", "json", "-o", "-", "--", "-")
	convCmd.Stdin = bytes.NewReader(plist)
	jsonOut, err := convCmd.Output()
	if err != nil {
		return nil, fmt.Errorf("plutil conversion failed: %w", err)
	}

	return parseSimctlApps(string(jsonOut)), nil
}

// parseSimctlApps extracts user applications from the JSON form of a
// "simctl listapps" dump, keyed by bundle identifier.
func parseSimctlApps(jsonOutput string) []AppRef {
	var apps []AppRef
	gjson.Parse(jsonOutput).ForEach(func(bundleID, info gjson.Result) bool {
		if info.Get("ApplicationType").String() != "User" {
			return true
		}
		name := info.Get("CFBundleDisplayName").String()
		if name == "" {
			name = info.Get("CFBundleName").String()
		}
		if name == "" {
			name = bundleID.String()
		}
		apps = append(apps, AppRef{ID: bundleID.String(), Name: name})
		return true
	})
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps
}

// iosDeviceApps lists user apps on a physical device via ideviceinstaller.
func (a *App) iosDeviceApps(ctx context.Context, udid string) ([]AppRef, error) {
	if a.tools.ideviceInstaller == "" {
		return nil, fmt.Errorf("ideviceinstaller is not available")
	}
	output, err := a.runTool(ctx, a.tools.ideviceInstaller, "-u", udid, "-l", "-o", "list_user")
	if err != nil {
		return nil, err
	}
	return parseIdeviceInstallerApps(output), nil
}

// parseIdeviceInstallerApps parses "bundleId, version, appName" lines. A
// line that does not match the comma shape still yields a ref: the display
// name is derived from the last dot-segment of its first whitespace token.
func parseIdeviceInstallerApps(output string) []AppRef {
	var apps []AppRef
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "CFBundleIdentifier") || strings.HasPrefix(line, "Total:") {
			continue
		}

		parts := strings.SplitN(line, ",", 3)
		if len(parts) == 3 {
			id := strings.TrimSpace(parts[0])
			name := strings.Trim(strings.TrimSpace(parts[2]), `"`)
			if name == "" {
				name = id
			}
			apps = append(apps, AppRef{ID: id, Name: name})
			continue
		}

		token := strings.Fields(line)[0]
		token = strings.TrimSuffix(token, ",")
		segments := strings.Split(token, ".")
		apps = append(apps, AppRef{ID: token, Name: segments[len(segments)-1]})
	}
	return apps
}
