package main

import (
	"sync"
	"testing"
)

// ==================== ListDevices ====================

// With no tools resolved every source degrades to an empty
// contribution, so enumeration is cheap enough to hammer from several
// goroutines the way the monitor callback and a frontend call can
// overlap in practice.
func TestListDevicesConcurrent(t *testing.T) {
	app := &App{mcpMode: true}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := app.ListDevices()
			if !result.Success {
				t.Error("ListDevices should always succeed")
			}
			if result.Devices == nil {
				t.Error("Expected an empty slice, not nil")
			}
		}()
	}
	wg.Wait()
}

// ==================== ValidateDeviceID ====================

func TestValidateDeviceID(t *testing.T) {
	valid := []string{
		"emulator-5554",
		"R58M123ABC",
		"192.168.1.100:5555",
		"00008110-000A1D2E3F4G5H6I",
		"ABCD1234-EF56-7890-AB12-CD34EF567890",
	}
	for _, id := range valid {
		if err := ValidateDeviceID(id); err != nil {
			t.Errorf("ValidateDeviceID(%q) should pass, got %v", id, err)
		}
	}

	invalid := []string{
		"",
		"device id with spaces",
		"device;rm -rf /",
		"dev$(whoami)",
		"dev`id`",
	}
	for _, id := range invalid {
		if err := ValidateDeviceID(id); err == nil {
			t.Errorf("ValidateDeviceID(%q) should fail", id)
		}
	}
}

// ==================== adb devices -l ====================

func TestParseAdbDevices(t *testing.T) {
	output := `List of devices attached
emulator-5554          device product:sdk_gphone64_arm64 model:sdk_gphone64_arm64 device:emu64a transport_id:1
R58M123ABC             device usb:337641472X product:beyond1 model:SM_G973F device:beyond1 transport_id:2
192.168.1.100:5555     offline transport_id:3
`
	devices := parseAdbDevices(output)
	if len(devices) != 3 {
		t.Fatalf("Expected 3 devices, got %d", len(devices))
	}

	if devices[0].ID != "emulator-5554" || devices[0].State != "device" {
		t.Errorf("Unexpected first device: %+v", devices[0])
	}
	if devices[0].Category != CategoryAndroid {
		t.Errorf("Expected android category, got %s", devices[0].Category)
	}
	if devices[1].Model != "SM G973F" {
		t.Errorf("Model underscores should become spaces, got %q", devices[1].Model)
	}
	if devices[1].Name != "beyond1" {
		t.Errorf("Expected device token as name, got %q", devices[1].Name)
	}
	if devices[2].State != "offline" {
		t.Errorf("Expected offline state, got %q", devices[2].State)
	}
}

func TestParseAdbDevices_NoTokens(t *testing.T) {
	output := `List of devices attached
emulator-5554	device
`
	devices := parseAdbDevices(output)
	if len(devices) != 1 {
		t.Fatalf("Expected 1 device, got %d", len(devices))
	}
	if devices[0].Model != "Unknown" {
		t.Errorf("Expected Unknown model fallback, got %q", devices[0].Model)
	}
	if devices[0].Name != "Android Device" {
		t.Errorf("Expected generic name fallback, got %q", devices[0].Name)
	}
}

func TestParseAdbDevices_Empty(t *testing.T) {
	if devices := parseAdbDevices("List of devices attached\n\n"); len(devices) != 0 {
		t.Errorf("Expected no devices, got %d", len(devices))
	}
}

// ==================== simctl list devices ====================

func TestParseSimctlDevices(t *testing.T) {
	jsonOutput := `{
  "devices": {
    "com.apple.CoreSimulator.SimRuntime.iOS-17-2": [
      {"udid": "AAAA-1111", "name": "iPhone 15 Pro", "state": "Booted"},
      {"udid": "BBBB-2222", "name": "iPhone 15", "state": "Shutdown"}
    ],
    "com.apple.CoreSimulator.SimRuntime.iOS-16-4": [
      {"udid": "CCCC-3333", "name": "iPhone 14", "state": "Booted"}
    ]
  }
}`
	devices := parseSimctlDevices(jsonOutput)
	if len(devices) != 2 {
		t.Fatalf("Expected 2 booted simulators, got %d", len(devices))
	}

	byID := map[string]Device{}
	for _, d := range devices {
		byID[d.ID] = d
	}
	pro, ok := byID["AAAA-1111"]
	if !ok {
		t.Fatal("Booted iPhone 15 Pro should be listed")
	}
	if pro.OSVersion != "iOS 17.2" {
		t.Errorf("Expected runtime label 'iOS 17.2', got %q", pro.OSVersion)
	}
	if pro.Category != CategorySimulator || pro.State != "Booted" {
		t.Errorf("Unexpected simulator record: %+v", pro)
	}
	if _, ok := byID["BBBB-2222"]; ok {
		t.Error("Shutdown simulator should be filtered out")
	}
}

func TestSimRuntimeLabel(t *testing.T) {
	cases := map[string]string{
		"com.apple.CoreSimulator.SimRuntime.iOS-17-2":     "iOS 17.2",
		"com.apple.CoreSimulator.SimRuntime.iOS-16-4":     "iOS 16.4",
		"com.apple.CoreSimulator.SimRuntime.watchOS-10-0": "watchOS 10.0",
		"garbage": "Unknown",
	}
	for input, want := range cases {
		if got := simRuntimeLabel(input); got != want {
			t.Errorf("simRuntimeLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

// ==================== ideviceinfo ====================

func TestParseIdeviceInfo(t *testing.T) {
	output := `DeviceName: Dana's iPhone
ProductType: iPhone14,2
ProductVersion: 17.1.1
UniqueDeviceID: 00008110-000A1D2E3F4G5H6I
`
	props := parseIdeviceInfo(output)
	if props["DeviceName"] != "Dana's iPhone" {
		t.Errorf("Unexpected DeviceName: %q", props["DeviceName"])
	}
	if props["ProductType"] != "iPhone14,2" {
		t.Errorf("Unexpected ProductType: %q", props["ProductType"])
	}
}

func TestDeviceFromIdeviceInfo(t *testing.T) {
	output := `DeviceName: Dana's iPhone
ProductType: iPhone14,2
ProductVersion: 17.1.1
`
	d := deviceFromIdeviceInfo("00008110-AAAA", output)
	if d.Name != "Dana's iPhone" {
		t.Errorf("Unexpected name: %q", d.Name)
	}
	if d.Model != "iPhone14,2" {
		t.Errorf("Unexpected model: %q", d.Model)
	}
	if d.OSVersion != "17.1.1" {
		t.Errorf("Unexpected OS version: %q", d.OSVersion)
	}
	if d.Category != CategoryIOSDevice || d.State != "connected" {
		t.Errorf("Unexpected record: %+v", d)
	}
}

func TestDeviceFromIdeviceInfo_Fallbacks(t *testing.T) {
	// DeviceName missing, Model present
	d := deviceFromIdeviceInfo("udid-1", "Model: MQ0D3LL/A\n")
	if d.Name != "MQ0D3LL/A" {
		t.Errorf("Name should fall back to Model, got %q", d.Name)
	}

	// Nothing usable
	d = deviceFromIdeviceInfo("udid-2", "")
	if d.Name != "Unknown" {
		t.Errorf("Name should fall back to Unknown, got %q", d.Name)
	}
}

// ==================== getprop ====================

func TestParseGetprop(t *testing.T) {
	output := `[ro.product.model]: [Pixel 6]
[ro.build.version.release]: [14]
[ro.build.version.sdk]: [34]
malformed line
`
	props := parseGetprop(output)
	if props["ro.product.model"] != "Pixel 6" {
		t.Errorf("Unexpected model: %q", props["ro.product.model"])
	}
	if props["ro.build.version.sdk"] != "34" {
		t.Errorf("Unexpected sdk: %q", props["ro.build.version.sdk"])
	}
	if len(props) != 3 {
		t.Errorf("Expected 3 props, got %d", len(props))
	}
}
