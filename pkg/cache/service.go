package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Settings represents persistent application settings
type Settings struct {
	LastActive   map[string]int64 `json:"lastActive"`
	PinnedDevice string           `json:"pinnedDevice"`
}

// Service manages label cache and settings persistence
type Service struct {
	configDir    string
	labelPath    string
	settingsPath string

	labels   map[string]string
	labelsMu sync.RWMutex

	lastActive   map[string]int64
	lastActiveMu sync.RWMutex

	pinnedDevice string
	pinnedMu     sync.RWMutex

	logFunc func(format string, args ...interface{})
}

// Config for creating a new Service
type Config struct {
	ConfigDir string
	LogFunc   func(format string, args ...interface{})
}

// NewService creates a new cache Service instance
func NewService(cfg Config) (*Service, error) {
	configDir := cfg.ConfigDir
	if configDir == "" {
		var err error
		configDir, err = os.UserConfigDir()
		if err != nil {
			configDir = os.TempDir()
		}
		configDir = filepath.Join(configDir, "Satchel")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	s := &Service{
		configDir:    configDir,
		labelPath:    filepath.Join(configDir, "label_cache.json"),
		settingsPath: filepath.Join(configDir, "settings.json"),
		labels:       make(map[string]string),
		lastActive:   make(map[string]int64),
		logFunc:      cfg.LogFunc,
	}

	s.loadLabels()
	s.loadSettings()

	return s, nil
}

func (s *Service) log(format string, args ...interface{}) {
	if s.logFunc != nil {
		s.logFunc(format, args...)
	}
}

// ========================================
// Label cache
// ========================================

// GetLabel returns a cached display label if one exists
func (s *Service) GetLabel(appID string) (string, bool) {
	s.labelsMu.RLock()
	defer s.labelsMu.RUnlock()
	label, exists := s.labels[appID]
	return label, exists
}

// SetLabel caches a display label for an application id
func (s *Service) SetLabel(appID, label string) {
	if appID == "" || label == "" {
		return
	}
	s.labelsMu.Lock()
	s.labels[appID] = label
	s.labelsMu.Unlock()
}

// ClearLabels clears the label cache
func (s *Service) ClearLabels() {
	s.labelsMu.Lock()
	s.labels = make(map[string]string)
	s.labelsMu.Unlock()
}

// SaveLabels persists the label cache to disk
func (s *Service) SaveLabels() error {
	s.labelsMu.RLock()
	data, err := json.Marshal(s.labels)
	s.labelsMu.RUnlock()

	if err != nil {
		s.log("Error marshaling label cache: %v", err)
		return err
	}

	if err := os.WriteFile(s.labelPath, data, 0644); err != nil {
		s.log("Error saving label cache to %s: %v", s.labelPath, err)
		return err
	}
	return nil
}

func (s *Service) loadLabels() {
	s.labelsMu.Lock()
	defer s.labelsMu.Unlock()

	data, err := os.ReadFile(s.labelPath)
	if err != nil {
		return
	}

	_ = json.Unmarshal(data, &s.labels)
}

// ========================================
// Settings
// ========================================

// GetLastActive returns the last active timestamp for a device
func (s *Service) GetLastActive(deviceID string) int64 {
	s.lastActiveMu.RLock()
	defer s.lastActiveMu.RUnlock()
	return s.lastActive[deviceID]
}

// SetLastActive updates the last active timestamp for a device
func (s *Service) SetLastActive(deviceID string, timestamp int64) {
	s.lastActiveMu.Lock()
	s.lastActive[deviceID] = timestamp
	s.lastActiveMu.Unlock()
}

// GetAllLastActive returns a copy of all last active timestamps
func (s *Service) GetAllLastActive() map[string]int64 {
	s.lastActiveMu.RLock()
	defer s.lastActiveMu.RUnlock()
	result := make(map[string]int64, len(s.lastActive))
	for k, v := range s.lastActive {
		result[k] = v
	}
	return result
}

// GetPinnedDevice returns the pinned device id
func (s *Service) GetPinnedDevice() string {
	s.pinnedMu.RLock()
	defer s.pinnedMu.RUnlock()
	return s.pinnedDevice
}

// SetPinnedDevice sets the pinned device id
func (s *Service) SetPinnedDevice(id string) {
	s.pinnedMu.Lock()
	s.pinnedDevice = id
	s.pinnedMu.Unlock()
}

// SaveSettings persists settings to disk
func (s *Service) SaveSettings() error {
	s.lastActiveMu.RLock()
	lastActive := make(map[string]int64)
	for k, v := range s.lastActive {
		lastActive[k] = v
	}
	s.lastActiveMu.RUnlock()

	s.pinnedMu.RLock()
	pinnedDevice := s.pinnedDevice
	s.pinnedMu.RUnlock()

	settings := Settings{
		LastActive:   lastActive,
		PinnedDevice: pinnedDevice,
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(s.settingsPath, data, 0644)
}

func (s *Service) loadSettings() {
	if s.settingsPath == "" {
		return
	}
	data, err := os.ReadFile(s.settingsPath)
	if err != nil {
		return
	}
	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return
	}

	s.lastActiveMu.Lock()
	if settings.LastActive != nil {
		s.lastActive = settings.LastActive
	}
	s.lastActiveMu.Unlock()

	s.pinnedMu.Lock()
	s.pinnedDevice = settings.PinnedDevice
	s.pinnedMu.Unlock()
}

// ConfigDir returns the configuration directory path
func (s *Service) ConfigDir() string {
	return s.configDir
}
