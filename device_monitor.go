package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ========================================
// Device Monitor - connection tracking
// ========================================

// Connection changes come from two sources: adb track-devices streams
// Android attach/detach in real time, while simulators and physical iOS
// devices are polled on a ticker. Both funnel into one debounced,
// rate-limited refresh that emits "devices-changed".

const (
	monitorDebounce     = 300 * time.Millisecond
	monitorPollInterval = 5 * time.Second
	monitorRestartDelay = 2 * time.Second
)

// StartDeviceMonitor starts tracking device connections. Safe to call
// again; a running monitor is stopped first.
func (a *App) StartDeviceMonitor() {
	a.deviceMonitorMu.Lock()
	defer a.deviceMonitorMu.Unlock()

	if a.deviceMonitorCancel != nil {
		a.deviceMonitorCancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.deviceMonitorCancel = cancel

	m := &deviceMonitor{
		app: a,
		// At most two refreshes per second regardless of how noisy the
		// track-devices stream gets during USB renegotiation.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
	go m.trackAndroid(ctx)
	go m.pollApple(ctx)
	LogInfo("monitor").Msg("Device monitor started")
}

// StopDeviceMonitor stops connection tracking.
func (a *App) StopDeviceMonitor() {
	a.deviceMonitorMu.Lock()
	defer a.deviceMonitorMu.Unlock()

	if a.deviceMonitorCancel != nil {
		a.deviceMonitorCancel()
		a.deviceMonitorCancel = nil
	}
}

type deviceMonitor struct {
	app     *App
	limiter *rate.Limiter

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	appleMu   sync.Mutex
	lastApple string
}

// scheduleRefresh coalesces bursts of change notifications into one
// device list refresh.
func (m *deviceMonitor) scheduleRefresh(ctx context.Context) {
	m.debounceMu.Lock()
	defer m.debounceMu.Unlock()
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = time.AfterFunc(monitorDebounce, func() {
		if ctx.Err() != nil {
			return
		}
		if !m.limiter.Allow() {
			return
		}
		result := m.app.ListDevices()
		if !result.Success {
			LogWarn("monitor").Str("error", result.Error).Msg("Device refresh failed")
			return
		}
		m.app.emit("devices-changed", result.Devices)
	})
}

// trackAndroid follows the adb track-devices stream. Each frame is a
// 4-hex-digit length prefix followed by that many payload bytes; any
// frame means the device set changed. The stream restarts if the adb
// server goes away.
func (m *deviceMonitor) trackAndroid(ctx context.Context) {
	if m.app.tools.adb == "" {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cmd := m.app.newAdbCommand(ctx, "track-devices")
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			LogWarn("monitor").Err(err).Msg("Failed to create track-devices pipe")
			time.Sleep(monitorRestartDelay)
			continue
		}
		if err := cmd.Start(); err != nil {
			LogWarn("monitor").Err(err).Msg("Failed to start track-devices")
			time.Sleep(monitorRestartDelay)
			continue
		}

		buf := make([]byte, 4)
		for {
			select {
			case <-ctx.Done():
				cmd.Process.Kill()
				return
			default:
			}

			if _, err := stdout.Read(buf); err != nil {
				break
			}

			var length int
			fmt.Sscanf(string(buf), "%04x", &length)
			if length > 0 {
				payload := make([]byte, length)
				if _, err := stdout.Read(payload); err != nil {
					break
				}
			}

			m.scheduleRefresh(ctx)
		}

		cmd.Wait()
		LogInfo("monitor").Msg("track-devices disconnected, restarting")
		time.Sleep(monitorRestartDelay)
	}
}

// pollApple polls simulator and physical iOS presence. There is no
// push channel for either, so a cheap fingerprint of the current set is
// compared each tick and a refresh is scheduled only on change.
func (m *deviceMonitor) pollApple(ctx context.Context) {
	if m.app.tools.xcrun == "" && m.app.tools.ideviceID == "" {
		return
	}

	ticker := time.NewTicker(monitorPollInterval)
	defer ticker.Stop()

	m.checkApple(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkApple(ctx)
		}
	}
}

func (m *deviceMonitor) checkApple(ctx context.Context) {
	fingerprint := m.appleFingerprint(ctx)

	m.appleMu.Lock()
	changed := fingerprint != m.lastApple
	m.lastApple = fingerprint
	m.appleMu.Unlock()

	if changed {
		m.scheduleRefresh(ctx)
	}
}

// appleFingerprint concatenates the ids of booted simulators and
// connected physical devices into a comparable string.
func (m *deviceMonitor) appleFingerprint(ctx context.Context) string {
	c, cancel := context.WithTimeout(ctx, infoCmdTimeout)
	defer cancel()

	var fp string
	if m.app.tools.xcrun != "" {
		if output, err := m.app.runTool(c, m.app.tools.xcrun, "simctl", "list", "devices", "--json"); err == nil {
			for _, dev := range parseSimctlDevices(output) {
				fp += "sim:" + dev.ID + ";"
			}
		}
	}
	if m.app.tools.ideviceID != "" {
		if output, err := m.app.runTool(c, m.app.tools.ideviceID, "-l"); err == nil {
			fp += "ios:" + output
		}
	}
	return fp
}
