package mcp

import (
	"testing"
)

// TestNewMCPServer tests server creation
func TestNewMCPServer(t *testing.T) {
	mock := NewMockSatchelApp()
	server := NewMCPServer(mock)

	if server == nil {
		t.Fatal("NewMCPServer should not return nil")
	}
	if server.app == nil {
		t.Error("server.app should not be nil")
	}
	if server.server == nil {
		t.Error("server.server (underlying MCP server) should not be nil")
	}

	// Version is read from the app during initialization
	if !mock.WasMethodCalled("GetAppVersion") {
		t.Error("GetAppVersion should be called during server creation")
	}
}

func TestMCPServer_IsRunning(t *testing.T) {
	mock := NewMockSatchelApp()
	server := NewMCPServer(mock)

	if server.IsRunning() {
		t.Error("Server should not be running initially")
	}
}

func TestMCPServer_Stop(t *testing.T) {
	mock := NewMockSatchelApp()
	server := NewMCPServer(mock)

	// Stop should not panic even when not running
	server.Stop()

	if server.IsRunning() {
		t.Error("Server should not be running after Stop")
	}
}

// TestMockSatchelApp_Interface verifies MockSatchelApp implements SatchelApp
func TestMockSatchelApp_Interface(t *testing.T) {
	var _ SatchelApp = (*MockSatchelApp)(nil)
}

func TestMockSatchelApp_RecordsCalls(t *testing.T) {
	mock := NewMockSatchelApp()

	mock.ListDevices()
	mock.GetDeviceInfo("device1", CategoryAndroid)
	mock.PushStaged("/tmp/x.db")

	calls := mock.GetCalls()
	if len(calls) != 3 {
		t.Fatalf("Expected 3 calls, got %d", len(calls))
	}
	if calls[0].Method != "ListDevices" {
		t.Errorf("Expected first call to be ListDevices, got %s", calls[0].Method)
	}
	if calls[1].Args[0] != "device1" {
		t.Errorf("Expected device1 argument, got %v", calls[1].Args[0])
	}

	mock.ResetCalls()
	if len(mock.GetCalls()) != 0 {
		t.Error("ResetCalls should clear recorded calls")
	}
}
