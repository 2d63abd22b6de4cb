package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
)

// Tool names resolved by the locator. adb covers both Android devices and
// emulators; the idevice* and afcclient binaries come from libimobiledevice
// and are only needed for physical iOS devices; xcrun/plutil are macOS
// system tools used for the simulator path.
const (
	toolADB              = "adb"
	toolIdeviceID        = "idevice_id"
	toolIdeviceInfo      = "ideviceinfo"
	toolIdeviceInstaller = "ideviceinstaller"
	toolAfcClient        = "afcclient"
	toolXcrun            = "xcrun"
	toolPlutil           = "plutil"
)

// toolSet holds resolved paths for the external binaries. An empty path
// means the tool is unavailable; the dependent device source then
// contributes nothing instead of failing enumeration.
type toolSet struct {
	adb              string
	ideviceID        string
	ideviceInfo      string
	ideviceInstaller string
	afcClient        string
	xcrun            string
	plutil           string
}

// envOverrides maps tool names to their environment override variables.
var envOverrides = map[string]string{
	toolADB:              "SATCHEL_ADB_PATH",
	toolIdeviceID:        "SATCHEL_IDEVICE_ID_PATH",
	toolIdeviceInfo:      "SATCHEL_IDEVICEINFO_PATH",
	toolIdeviceInstaller: "SATCHEL_IDEVICEINSTALLER_PATH",
	toolAfcClient:        "SATCHEL_AFCCLIENT_PATH",
	toolXcrun:            "SATCHEL_XCRUN_PATH",
	toolPlutil:           "SATCHEL_PLUTIL_PATH",
}

// locateTools resolves every external binary. Resolution order per tool:
// environment override (a .env file next to the executable is honoured),
// bundled tools/<goos>/ directory next to the executable, then PATH.
func locateTools() toolSet {
	// Best effort; a missing .env file is the normal case.
	_ = godotenv.Load()
	if exe, err := os.Executable(); err == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exe), ".env"))
	}

	return toolSet{
		adb:              locateTool(toolADB),
		ideviceID:        locateTool(toolIdeviceID),
		ideviceInfo:      locateTool(toolIdeviceInfo),
		ideviceInstaller: locateTool(toolIdeviceInstaller),
		afcClient:        locateTool(toolAfcClient),
		xcrun:            locateTool(toolXcrun),
		plutil:           locateTool(toolPlutil),
	}
}

// locateTool resolves a single tool path, or "" when unavailable.
func locateTool(name string) string {
	if env := envOverrides[name]; env != "" {
		if p := os.Getenv(env); p != "" {
			return p
		}
	}

	if p := bundledToolPath(name); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if p, err := exec.LookPath(name); err == nil {
		return p
	}

	return ""
}

// bundledToolPath constructs the path a bundled binary would have next to
// the executable. Pure path construction; existence is checked by callers.
func bundledToolPath(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(exe), "tools", runtime.GOOS, name)
}
