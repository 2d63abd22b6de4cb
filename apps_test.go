package main

import (
	"testing"
)

// ==================== pm list packages ====================

func TestParsePmPackages(t *testing.T) {
	output := `package:com.zebra.notes
package:com.acme.todo
package:org.example.reader
`
	apps := parsePmPackages(output)
	if len(apps) != 3 {
		t.Fatalf("Expected 3 packages, got %d", len(apps))
	}

	// Sorted by package id
	want := []string{"com.acme.todo", "com.zebra.notes", "org.example.reader"}
	for i, id := range want {
		if apps[i].ID != id {
			t.Errorf("apps[%d].ID = %q, want %q", i, apps[i].ID, id)
		}
	}
	if apps[0].Name != apps[0].ID {
		t.Errorf("Name should default to package id, got %q", apps[0].Name)
	}
}

func TestParsePmPackages_IgnoresNoise(t *testing.T) {
	output := "\nWARNING: linker: something\npackage:com.example.app\n\n"
	apps := parsePmPackages(output)
	if len(apps) != 1 || apps[0].ID != "com.example.app" {
		t.Errorf("Unexpected result: %+v", apps)
	}
}

// ==================== simctl listapps ====================

func TestParseSimctlApps(t *testing.T) {
	jsonOutput := `{
  "com.apple.mobilesafari": {
    "ApplicationType": "System",
    "CFBundleDisplayName": "Safari"
  },
  "com.example.notes": {
    "ApplicationType": "User",
    "CFBundleDisplayName": "Notes Plus",
    "CFBundleName": "notes"
  },
  "com.example.todo": {
    "ApplicationType": "User",
    "CFBundleName": "todo"
  },
  "com.example.bare": {
    "ApplicationType": "User"
  }
}`
	apps := parseSimctlApps(jsonOutput)
	if len(apps) != 3 {
		t.Fatalf("Expected 3 user apps, got %d", len(apps))
	}

	byID := map[string]string{}
	for _, app := range apps {
		byID[app.ID] = app.Name
	}
	if _, ok := byID["com.apple.mobilesafari"]; ok {
		t.Error("System apps should be filtered out")
	}
	if byID["com.example.notes"] != "Notes Plus" {
		t.Errorf("CFBundleDisplayName should win, got %q", byID["com.example.notes"])
	}
	if byID["com.example.todo"] != "todo" {
		t.Errorf("CFBundleName is the fallback, got %q", byID["com.example.todo"])
	}
	if byID["com.example.bare"] != "com.example.bare" {
		t.Errorf("Bundle id is the last fallback, got %q", byID["com.example.bare"])
	}
}

// ==================== ideviceinstaller ====================

func TestParseIdeviceInstallerApps(t *testing.T) {
	output := `CFBundleIdentifier, CFBundleVersion, CFBundleDisplayName
com.example.notes, "1.2.0", "Notes"
com.example.todo, "3", "Todo App"
`
	apps := parseIdeviceInstallerApps(output)
	if len(apps) != 2 {
		t.Fatalf("Expected 2 apps, got %d", len(apps))
	}
	if apps[0].ID != "com.example.notes" || apps[0].Name != "Notes" {
		t.Errorf("Unexpected first app: %+v", apps[0])
	}
	if apps[1].Name != "Todo App" {
		t.Errorf("Quoted names should be unwrapped, got %q", apps[1].Name)
	}
}

func TestParseIdeviceInstallerApps_MalformedLine(t *testing.T) {
	// Older ideviceinstaller builds emit lines without the full
	// three-column shape.
	output := `CFBundleIdentifier, CFBundleVersion, CFBundleDisplayName
com.example.reader 1.0
`
	apps := parseIdeviceInstallerApps(output)
	if len(apps) != 1 {
		t.Fatalf("Expected 1 app, got %d", len(apps))
	}
	if apps[0].ID != "com.example.reader" {
		t.Errorf("ID should be the first whitespace token, got %q", apps[0].ID)
	}
	if apps[0].Name != "reader" {
		t.Errorf("Name should be the last dot segment, got %q", apps[0].Name)
	}
}

func TestParseIdeviceInstallerApps_Empty(t *testing.T) {
	output := "CFBundleIdentifier, CFBundleVersion, CFBundleDisplayName\nTotal: 0 apps\n"
	if apps := parseIdeviceInstallerApps(output); len(apps) != 0 {
		t.Errorf("Expected no apps, got %+v", apps)
	}
}
