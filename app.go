package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"Satchel/pkg/cache"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

const (
	// Default wall clock budget for one external tool invocation. A hung
	// tool fails its branch instead of stalling the whole operation.
	defaultCmdTimeout = 30 * time.Second

	// Budget for quick per-device info queries.
	infoCmdTimeout = 5 * time.Second
)

// App is the engine bound to the desktop shell. All device and file
// operations hang off this struct; entry points return response envelopes
// and never raise errors across the binding boundary.
type App struct {
	ctx   context.Context
	tools toolSet

	// mcpMode suppresses frontend event emission when the engine runs
	// headless behind the MCP stdio server.
	mcpMode bool
	version string

	cacheService *cache.Service
	catalog      *Catalog
	staging      *stagingArea
	watcher      *stagingWatcher
	dataDir      string

	// Device monitor
	deviceMonitorCancel context.CancelFunc
	deviceMonitorMu     sync.Mutex

	// lastDevCount is shared between the monitor's refresh callback and
	// direct ListDevices calls.
	mu           sync.Mutex
	lastDevCount int
}

// NewApp creates a new App instance
func NewApp(version string) *App {
	app := &App{
		version: version,
	}
	app.initServices()
	return app
}

// startup is called when the shell starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	LogAppState(StateStarting, map[string]interface{}{"version": a.version})

	a.tools = locateTools()
	LogInfo("app").
		Str("adb", a.tools.adb).
		Str("idevice_id", a.tools.ideviceID).
		Str("afcclient", a.tools.afcClient).
		Msg("Tool paths resolved")

	a.StartDeviceMonitor()
	LogAppState(StateReady, nil)
}

// Shutdown is called when the application is closing
func (a *App) Shutdown(ctx context.Context) {
	LogAppState(StateShuttingDown, nil)
	a.StopDeviceMonitor()
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			LogError("app").Err(err).Msg("Error closing staging catalog")
		}
	}
	LogAppState(StateStopped, nil)
	CloseLogger()
}

// initServices wires the persistent services under the user config dir.
func (a *App) initServices() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	appConfigDir := filepath.Join(configDir, "Satchel")
	_ = os.MkdirAll(appConfigDir, 0755)
	a.dataDir = filepath.Join(appConfigDir, "data")

	if err := InitLogger(PersistentLogConfig(appConfigDir)); err != nil {
		fmt.Printf("Failed to init persistent logging: %v\n", err)
	}

	svc, err := cache.NewService(cache.Config{ConfigDir: appConfigDir})
	if err != nil {
		LogError("app").Err(err).Msg("Cache service unavailable")
	} else {
		a.cacheService = svc
	}

	catalog, err := NewCatalog(a.dataDir)
	if err != nil {
		LogError("app").Err(err).Msg("Staging catalog unavailable")
	} else {
		a.catalog = catalog
	}

	a.staging = newStagingArea(filepath.Join(os.TempDir(), "satchel-staging"))

	watcher, err := newStagingWatcher(a)
	if err != nil {
		LogError("app").Err(err).Msg("Staging watcher unavailable")
	} else {
		a.watcher = watcher
	}
}

// GetAppVersion returns the application version
func (a *App) GetAppVersion() string {
	return a.version
}

// SetMCPMode marks the engine as running headless behind the MCP server.
func (a *App) SetMCPMode(on bool) {
	a.mcpMode = on
}

// emit sends an event to the frontend unless running headless.
func (a *App) emit(event string, data interface{}) {
	if a.mcpMode || a.ctx == nil {
		return
	}
	wailsRuntime.EventsEmit(a.ctx, event, data)
}

// updateLastActive updates the last active timestamp for a device
func (a *App) updateLastActive(deviceID string) {
	if deviceID == "" || a.cacheService == nil {
		return
	}
	a.cacheService.SetLastActive(deviceID, time.Now().Unix())
	go a.cacheService.SaveSettings()
}

// ========================================
// Command helpers
// ========================================

// newCommand creates an exec.Cmd with proxy variables stripped from the
// environment; adb in particular misbehaves behind system HTTP proxies.
func (a *App) newCommand(ctx context.Context, bin string, args ...string) *exec.Cmd {
	var cmd *exec.Cmd
	if ctx != nil {
		cmd = exec.CommandContext(ctx, bin, args...)
	} else {
		cmd = exec.Command(bin, args...)
	}

	env := os.Environ()
	newEnv := make([]string, 0, len(env))
	proxyVars := []string{"HTTP_PROXY", "HTTPS_PROXY", "ALL_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "all_proxy", "no_proxy"}

	for _, e := range env {
		isProxy := false
		for _, v := range proxyVars {
			if strings.HasPrefix(e, v+"=") {
				isProxy = true
				break
			}
		}
		if !isProxy {
			newEnv = append(newEnv, e)
		}
	}
	cmd.Env = newEnv
	return cmd
}

// newAdbCommand creates an adb command for the resolved adb binary.
func (a *App) newAdbCommand(ctx context.Context, args ...string) *exec.Cmd {
	return a.newCommand(ctx, a.tools.adb, args...)
}

// runTool runs a binary to completion under a default timeout when the
// caller passes a nil context, returning combined output.
func (a *App) runTool(ctx context.Context, bin string, args ...string) (string, error) {
	if bin == "" {
		return "", fmt.Errorf("tool not available")
	}
	if ctx == nil {
		c, cancel := context.WithTimeout(context.Background(), defaultCmdTimeout)
		defer cancel()
		ctx = c
	}

	cmd := a.newCommand(ctx, bin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%s failed: %w, output: %s", filepath.Base(bin), err, string(output))
	}
	return string(output), nil
}

// runAdb runs an adb command to completion.
func (a *App) runAdb(ctx context.Context, args ...string) (string, error) {
	if a.tools.adb == "" {
		return "", fmt.Errorf("adb is not available")
	}
	return a.runTool(ctx, a.tools.adb, args...)
}
