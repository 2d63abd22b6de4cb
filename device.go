package main

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// deviceIDPattern validates device identifiers: Android serials
// (alphanumeric, "emulator-5554"), wireless serials (IP:port) and iOS
// UDIDs (hex with dashes).
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:\-]+$`)

// ValidateDeviceID rejects identifiers that could smuggle shell syntax
// into a tool invocation.
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if len(deviceID) > 256 {
		return fmt.Errorf("device ID too long (max 256 characters)")
	}
	if !deviceIDPattern.MatchString(deviceID) {
		return fmt.Errorf("invalid device ID format: contains illegal characters")
	}
	return nil
}

// simRuntimePattern matches CoreSimulator runtime identifiers such as
// "com.apple.CoreSimulator.SimRuntime.iOS-17-2".
var simRuntimePattern = regexp.MustCompile(`^com\.apple\.CoreSimulator\.SimRuntime\.([A-Za-z]+)-(.+)$`)

// ListDevices enumerates devices across all three sources. It never fails
// as a whole: a source whose tooling is missing or whose query errors
// contributes an empty list and the others still report.
func (a *App) ListDevices() DeviceListResult {
	timer := StartOperation("device", "list_devices")

	var (
		android, sims, physical []Device
		wg                      sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		android, err = a.androidDevices(nil)
		if err != nil {
			LogWarn("device").Err(err).Msg("Android enumeration unavailable")
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		sims, err = a.simulatorDevices(nil)
		if err != nil {
			LogWarn("device").Err(err).Msg("Simulator enumeration unavailable")
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		physical, err = a.iosDevices(nil)
		if err != nil {
			LogWarn("device").Err(err).Msg("iOS device enumeration unavailable")
		}
	}()
	wg.Wait()

	devices := make([]Device, 0, len(android)+len(sims)+len(physical))
	devices = append(devices, android...)
	devices = append(devices, sims...)
	devices = append(devices, physical...)

	// Pinned device first, then most recently used.
	if a.cacheService != nil {
		lastActive := a.cacheService.GetAllLastActive()
		pinned := a.cacheService.GetPinnedDevice()
		sort.SliceStable(devices, func(i, j int) bool {
			if (devices[i].ID == pinned) != (devices[j].ID == pinned) {
				return devices[i].ID == pinned
			}
			return lastActive[devices[i].ID] > lastActive[devices[j].ID]
		})
	}

	a.mu.Lock()
	if len(devices) != a.lastDevCount {
		LogInfo("device").
			Int("count", len(devices)).
			Int("prev", a.lastDevCount).
			Msg("Device list changed")
		a.lastDevCount = len(devices)
	}
	a.mu.Unlock()

	timer.AddDetail("count", len(devices)).End()
	return DeviceListResult{Success: true, Devices: devices}
}

// androidDevices lists devices and emulators reported by adb.
func (a *App) androidDevices(ctx context.Context) ([]Device, error) {
	output, err := a.runAdb(ctx, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseAdbDevices(output), nil
}

// parseAdbDevices parses "adb devices -l" tabular output.
func parseAdbDevices(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices attached") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		d := Device{
			ID:       parts[0],
			State:    parts[1],
			Category: CategoryAndroid,
			Model:    "Unknown",
			Name:     "Android Device",
		}
		for _, p := range parts[2:] {
			if !strings.Contains(p, ":") {
				continue
			}
			kv := strings.SplitN(p, ":", 2)
			switch kv[0] {
			case "model":
				d.Model = strings.TrimSpace(strings.ReplaceAll(kv[1], "_", " "))
			case "device":
				d.Name = kv[1]
			}
		}
		devices = append(devices, d)
	}
	return devices
}

// simulatorDevices lists currently booted iOS simulators.
func (a *App) simulatorDevices(ctx context.Context) ([]Device, error) {
	if a.tools.xcrun == "" {
		return nil, fmt.Errorf("xcrun is not available")
	}
	output, err := a.runTool(ctx, a.tools.xcrun, "simctl", "list", "devices", "--json")
	if err != nil {
		return nil, err
	}
	return parseSimctlDevices(output), nil
}

// parseSimctlDevices extracts booted simulators from "simctl list devices
// --json" output. The devices object is keyed by runtime identifier.
func parseSimctlDevices(jsonOutput string) []Device {
	var devices []Device
	gjson.Get(jsonOutput, "devices").ForEach(func(runtimeKey, list gjson.Result) bool {
		osVersion := simRuntimeLabel(runtimeKey.String())
		list.ForEach(func(_, dev gjson.Result) bool {
			if dev.Get("state").String() != "Booted" {
				return true
			}
			name := dev.Get("name").String()
			devices = append(devices, Device{
				ID:        dev.Get("udid").String(),
				Name:      name,
				Model:     name,
				Category:  CategorySimulator,
				State:     "Booted",
				OSVersion: osVersion,
			})
			return true
		})
		return true
	})
	return devices
}

// simRuntimeLabel turns "com.apple.CoreSimulator.SimRuntime.iOS-17-2"
// into "iOS 17.2".
func simRuntimeLabel(runtimeID string) string {
	m := simRuntimePattern.FindStringSubmatch(runtimeID)
	if m == nil {
		return "Unknown"
	}
	return m[1] + " " + strings.ReplaceAll(m[2], "-", ".")
}

// iosDevices lists physical iOS devices. Raw UDIDs come from idevice_id;
// per-UDID details are fetched concurrently from ideviceinfo. An info
// failure produces a partial record instead of dropping the device.
func (a *App) iosDevices(ctx context.Context) ([]Device, error) {
	if a.tools.ideviceID == "" {
		return nil, fmt.Errorf("idevice_id is not available")
	}
	output, err := a.runTool(ctx, a.tools.ideviceID, "-l")
	if err != nil {
		return nil, err
	}

	var udids []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			udids = append(udids, line)
		}
	}
	if len(udids) == 0 {
		return nil, nil
	}

	devices := make([]Device, len(udids))
	var wg sync.WaitGroup
	for i, udid := range udids {
		wg.Add(1)
		go func(i int, udid string) {
			defer wg.Done()
			infoCtx, cancel := context.WithTimeout(context.Background(), infoCmdTimeout)
			defer cancel()
			out, err := a.runTool(infoCtx, a.tools.ideviceInfo, "-u", udid)
			if err != nil {
				LogWarn("device").Str("udid", udid).Err(err).Msg("ideviceinfo query failed")
				devices[i] = Device{ID: udid, Category: CategoryIOSDevice, Name: "Unknown", Error: err.Error()}
				return
			}
			devices[i] = deviceFromIdeviceInfo(udid, out)
		}(i, udid)
	}
	wg.Wait()

	return devices, nil
}

// parseIdeviceInfo parses the colon-delimited "Key: Value" lines emitted
// by ideviceinfo into a property bag.
func parseIdeviceInfo(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kv := strings.SplitN(line, ":", 2)
		if len(kv) != 2 {
			continue
		}
		props[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return props
}

// deviceFromIdeviceInfo builds a device record from an ideviceinfo dump.
func deviceFromIdeviceInfo(udid, output string) Device {
	props := parseIdeviceInfo(output)

	name := props["DeviceName"]
	if name == "" {
		name = props["Model"]
	}
	if name == "" {
		name = "Unknown"
	}

	model := props["ProductType"]
	if model == "" {
		model = props["Model"]
	}

	return Device{
		ID:        udid,
		Name:      name,
		Model:     model,
		Category:  CategoryIOSDevice,
		State:     "connected",
		OSVersion: props["ProductVersion"],
	}
}

// GetDeviceInfo returns the raw property bag for a device, keyed by the
// mechanism appropriate to its category.
func (a *App) GetDeviceInfo(deviceID string, category DeviceCategory) DeviceInfoResult {
	if err := ValidateDeviceID(deviceID); err != nil {
		return DeviceInfoResult{Error: err.Error()}
	}

	switch category {
	case CategoryAndroid:
		output, err := a.runAdb(nil, "-s", deviceID, "shell", "getprop")
		if err != nil {
			return DeviceInfoResult{Error: err.Error()}
		}
		return DeviceInfoResult{Success: true, Props: parseGetprop(output)}
	case CategoryIOSDevice:
		output, err := a.runTool(nil, a.tools.ideviceInfo, "-u", deviceID)
		if err != nil {
			return DeviceInfoResult{Error: err.Error()}
		}
		return DeviceInfoResult{Success: true, Props: parseIdeviceInfo(output)}
	case CategorySimulator:
		output, err := a.runTool(nil, a.tools.xcrun, "simctl", "list", "devices", "--json")
		if err != nil {
			return DeviceInfoResult{Error: err.Error()}
		}
		for _, d := range parseSimctlDevices(output) {
			if d.ID == deviceID {
				return DeviceInfoResult{Success: true, Props: map[string]string{
					"Name":      d.Name,
					"OSVersion": d.OSVersion,
					"State":     d.State,
				}}
			}
		}
		return DeviceInfoResult{Error: fmt.Sprintf("simulator %s is not booted", deviceID)}
	default:
		return DeviceInfoResult{Error: fmt.Sprintf("unknown device category: %s", category)}
	}
}

// parseGetprop parses "[key]: [value]" lines from adb shell getprop.
func parseGetprop(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "]: [", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimPrefix(parts[0], "[")
		val := strings.TrimSuffix(parts[1], "]")
		props[key] = val
	}
	return props
}

// TogglePinDevice pins/unpins a device by id
func (a *App) TogglePinDevice(deviceID string) {
	if a.cacheService == nil {
		return
	}
	if a.cacheService.GetPinnedDevice() == deviceID {
		a.cacheService.SetPinnedDevice("")
	} else {
		a.cacheService.SetPinnedDevice(deviceID)
	}
	go a.cacheService.SaveSettings()
}
