package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

// Helper to create a CallToolRequest with arguments
func makeToolRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// Helper to get text content from result
func getTextContent(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// ==================== device_list ====================

func TestHandleDeviceList_Success(t *testing.T) {
	mock := NewMockSatchelApp()
	mock.ListDevicesResult = DeviceListResult{
		Success: true,
		Devices: []Device{
			{ID: "emulator-5554", Name: "Pixel 6", Category: CategoryAndroid, State: "device"},
			{ID: "ABCD-1234", Name: "iPhone 15", Category: CategorySimulator, OSVersion: "iOS 17.2", State: "Booted"},
		},
	}
	server := NewMCPServer(mock)

	result, err := server.handleDeviceList(context.Background(), makeToolRequest(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "emulator-5554") {
		t.Error("Result should contain the Android serial")
	}
	if !strings.Contains(text, "iPhone 15") {
		t.Error("Result should contain the simulator name")
	}
	if !strings.Contains(text, "2 device") {
		t.Error("Result should mention 2 devices")
	}
}

func TestHandleDeviceList_NoDevices(t *testing.T) {
	mock := NewMockSatchelApp()
	server := NewMCPServer(mock)

	result, err := server.handleDeviceList(context.Background(), makeToolRequest(nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(strings.ToLower(text), "no device") {
		t.Errorf("Result should indicate no devices, got: %s", text)
	}
}

func TestHandleDeviceList_Error(t *testing.T) {
	mock := NewMockSatchelApp()
	mock.ListDevicesResult = DeviceListResult{Success: false, Error: "adb not found"}
	server := NewMCPServer(mock)

	_, err := server.handleDeviceList(context.Background(), makeToolRequest(nil))
	if err == nil {
		t.Error("Expected error, got nil")
	}
}

// ==================== device_info ====================

func TestHandleDeviceInfo_Success(t *testing.T) {
	mock := NewMockSatchelApp()
	mock.GetDeviceInfoResult = DeviceInfoResult{
		Success: true,
		Props: map[string]string{
			"ro.product.model": "Pixel 6",
		},
	}
	server := NewMCPServer(mock)

	result, err := server.handleDeviceInfo(context.Background(), makeToolRequest(map[string]interface{}{
		"device_id": "emulator-5554",
		"category":  "android",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "Pixel 6") {
		t.Error("Result should contain the model property")
	}

	lastCall := mock.GetLastCallByMethod("GetDeviceInfo")
	if lastCall == nil {
		t.Fatal("GetDeviceInfo should have been called")
	}
	if lastCall.Args[0] != "emulator-5554" {
		t.Errorf("Expected device_id 'emulator-5554', got %v", lastCall.Args[0])
	}
	if lastCall.Args[1] != CategoryAndroid {
		t.Errorf("Expected android category, got %v", lastCall.Args[1])
	}
}

func TestHandleDeviceInfo_MissingDeviceId(t *testing.T) {
	mock := NewMockSatchelApp()
	server := NewMCPServer(mock)

	_, err := server.handleDeviceInfo(context.Background(), makeToolRequest(map[string]interface{}{
		"category": "android",
	}))
	if err == nil {
		t.Error("Expected error for missing device_id")
	}
}

// ==================== app_list ====================

func TestHandleAppList_Success(t *testing.T) {
	mock := NewMockSatchelApp()
	mock.ListApplicationsResult = AppListResult{
		Success: true,
		Apps: []AppRef{
			{ID: "com.example.notes", Name: "Notes"},
			{ID: "com.example.todo", Name: "Todo"},
		},
	}
	server := NewMCPServer(mock)

	result, err := server.handleAppList(context.Background(), makeToolRequest(map[string]interface{}{
		"device_id": "emulator-5554",
		"category":  "android",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "com.example.notes") {
		t.Error("Result should contain package ids")
	}
	if !strings.Contains(text, "2 application") {
		t.Error("Result should mention 2 applications")
	}
}

func TestHandleAppList_BadCategory(t *testing.T) {
	mock := NewMockSatchelApp()
	server := NewMCPServer(mock)

	_, err := server.handleAppList(context.Background(), makeToolRequest(map[string]interface{}{
		"device_id": "emulator-5554",
		"category":  "windows-phone",
	}))
	if err == nil {
		t.Error("Expected error for unknown category")
	}
}

// ==================== db_locate ====================

func TestHandleDBLocate_Success(t *testing.T) {
	mock := NewMockSatchelApp()
	mock.LocateDatabaseFilesResult = LocateResult{
		Success: true,
		Files: []DatabaseFile{
			{
				Filename:   "notes.db",
				RemotePath: "/data/data/com.example.notes/databases/notes.db",
				Location:   "databases",
				Category:   CategoryAndroid,
			},
		},
	}
	server := NewMCPServer(mock)

	result, err := server.handleDBLocate(context.Background(), makeToolRequest(map[string]interface{}{
		"device_id": "emulator-5554",
		"category":  "android",
		"app_id":    "com.example.notes",
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := getTextContent(result)
	if !strings.Contains(text, "notes.db") {
		t.Error("Result should contain the database filename")
	}
	if !strings.Contains(text, "databases") {
		t.Error("Result should contain the sandbox location")
	}
}

func TestHandleDBLocate_MissingAppId(t *testing.T) {
	mock := NewMockSatchelApp()
	server := NewMCPServer(mock)

	_, err := server.handleDBLocate(context.Background(), makeToolRequest(map[string]interface{}{
		"device_id": "emulator-5554",
		"category":  "android",
	}))
	if err == nil {
		t.Error("Expected error for missing app_id")
	}
}
