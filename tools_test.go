package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestLocateToolEnvOverride(t *testing.T) {
	// Env overrides win unconditionally; the path is returned without a
	// stat so users can point at wrappers the locator cannot probe.
	t.Setenv("SATCHEL_ADB_PATH", "/opt/custom/adb")

	if got := locateTool(toolADB); got != "/opt/custom/adb" {
		t.Errorf("Expected env override path, got %q", got)
	}
}

func TestLocateToolEnvOverride_PerTool(t *testing.T) {
	t.Setenv("SATCHEL_AFCCLIENT_PATH", "/opt/custom/afcclient")

	if got := locateTool(toolAfcClient); got != "/opt/custom/afcclient" {
		t.Errorf("Expected env override path, got %q", got)
	}
	// The override for one tool must not leak into another.
	if got := locateTool(toolIdeviceID); got == "/opt/custom/afcclient" {
		t.Error("Override leaked across tools")
	}
}

func TestLocateToolMissing(t *testing.T) {
	if got := locateTool("definitely-not-a-real-tool-xyz"); got != "" {
		t.Errorf("Expected empty path for an unknown tool, got %q", got)
	}
}

func TestBundledToolPath(t *testing.T) {
	p := bundledToolPath(toolADB)
	if p == "" {
		t.Skip("Executable path unavailable")
	}

	want := filepath.Join("tools", runtime.GOOS, toolADB)
	if runtime.GOOS == "windows" {
		want += ".exe"
	}
	if !strings.HasSuffix(p, want) {
		t.Errorf("Expected bundled path ending in %q, got %q", want, p)
	}

	exe, err := os.Executable()
	if err != nil {
		t.Skip("Executable path unavailable")
	}
	if !strings.HasPrefix(p, filepath.Dir(exe)) {
		t.Errorf("Bundled path should live next to the executable: %q", p)
	}
}

func TestEnvOverridesCoverAllTools(t *testing.T) {
	tools := []string{
		toolADB, toolIdeviceID, toolIdeviceInfo, toolIdeviceInstaller,
		toolAfcClient, toolXcrun, toolPlutil,
	}
	for _, name := range tools {
		if envOverrides[name] == "" {
			t.Errorf("Tool %s has no environment override", name)
		}
	}
}
