package mcp

import (
	"sync"
)

// MockCall records a method call for verification
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockSatchelApp is a mock implementation of SatchelApp for testing
type MockSatchelApp struct {
	mu    sync.Mutex
	Calls []MockCall

	// Discovery
	ListDevicesResult         DeviceListResult
	GetDeviceInfoResult       DeviceInfoResult
	ListApplicationsResult    AppListResult
	LocateDatabaseFilesResult LocateResult

	// Staging and sync-back
	StageDatabasesResult    StageBatchResult
	PushStagedResult        PushResult
	RevertStagedResult      OperationResult
	GetStagingHistoryResult HistoryResult
	StagingDir              string

	// Utility
	AppVersion string
}

// NewMockSatchelApp creates a new MockSatchelApp with sensible defaults
func NewMockSatchelApp() *MockSatchelApp {
	return &MockSatchelApp{
		Calls:      make([]MockCall, 0),
		AppVersion: "1.0.0-test",
		StagingDir: "/tmp/satchel-staging-test",

		ListDevicesResult:         DeviceListResult{Success: true, Devices: []Device{}},
		GetDeviceInfoResult:       DeviceInfoResult{Success: true, Props: map[string]string{}},
		ListApplicationsResult:    AppListResult{Success: true, Apps: []AppRef{}},
		LocateDatabaseFilesResult: LocateResult{Success: true, Files: []DatabaseFile{}},
		StageDatabasesResult:      StageBatchResult{Success: true},
		PushStagedResult:          PushResult{Success: true},
		RevertStagedResult:        OperationResult{Success: true},
		GetStagingHistoryResult:   HistoryResult{Success: true},
	}
}

// recordCall records a method call
func (m *MockSatchelApp) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// GetCalls returns all recorded calls
func (m *MockSatchelApp) GetCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall{}, m.Calls...)
}

// ResetCalls clears all recorded calls
func (m *MockSatchelApp) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = make([]MockCall, 0)
}

// WasMethodCalled checks if a method was called
func (m *MockSatchelApp) WasMethodCalled(method string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.Calls {
		if call.Method == method {
			return true
		}
	}
	return false
}

// GetLastCallByMethod returns the last call to a specific method
func (m *MockSatchelApp) GetLastCallByMethod(method string) *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Calls) - 1; i >= 0; i-- {
		if m.Calls[i].Method == method {
			return &m.Calls[i]
		}
	}
	return nil
}

// SatchelApp implementation

func (m *MockSatchelApp) ListDevices() DeviceListResult {
	m.recordCall("ListDevices")
	return m.ListDevicesResult
}

func (m *MockSatchelApp) GetDeviceInfo(deviceID string, category DeviceCategory) DeviceInfoResult {
	m.recordCall("GetDeviceInfo", deviceID, category)
	return m.GetDeviceInfoResult
}

func (m *MockSatchelApp) ListApplications(device Device) AppListResult {
	m.recordCall("ListApplications", device)
	return m.ListApplicationsResult
}

func (m *MockSatchelApp) LocateDatabaseFiles(device Device, app AppRef) LocateResult {
	m.recordCall("LocateDatabaseFiles", device, app)
	return m.LocateDatabaseFilesResult
}

func (m *MockSatchelApp) StageDatabases(device Device, app AppRef) StageBatchResult {
	m.recordCall("StageDatabases", device, app)
	return m.StageDatabasesResult
}

func (m *MockSatchelApp) PushStaged(localPath string) PushResult {
	m.recordCall("PushStaged", localPath)
	return m.PushStagedResult
}

func (m *MockSatchelApp) RevertStaged(localPath string) OperationResult {
	m.recordCall("RevertStaged", localPath)
	return m.RevertStagedResult
}

func (m *MockSatchelApp) GetStagingHistory(deviceID string, limit int) HistoryResult {
	m.recordCall("GetStagingHistory", deviceID, limit)
	return m.GetStagingHistoryResult
}

func (m *MockSatchelApp) GetStagingDir() string {
	m.recordCall("GetStagingDir")
	return m.StagingDir
}

func (m *MockSatchelApp) GetAppVersion() string {
	m.recordCall("GetAppVersion")
	return m.AppVersion
}
