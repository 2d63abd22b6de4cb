package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerDiscoveryTools registers device, application and database
// discovery tools
func (s *MCPServer) registerDiscoveryTools() {
	// device_list - List connected devices across all categories
	s.server.AddTool(
		mcp.NewTool("device_list",
			mcp.WithDescription("List connected Android devices, booted iOS simulators and physical iOS devices"),
		),
		s.handleDeviceList,
	)

	// device_info - Get device properties
	s.server.AddTool(
		mcp.NewTool("device_info",
			mcp.WithDescription("Get detailed properties of a specific device"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device identifier (ADB serial or UDID)"),
			),
			mcp.WithString("category",
				mcp.Required(),
				mcp.Description("Device category: android, ios-simulator or ios-device"),
			),
		),
		s.handleDeviceInfo,
	)

	// app_list - List user applications on a device
	s.server.AddTool(
		mcp.NewTool("app_list",
			mcp.WithDescription("List user-installed applications on a device"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device identifier"),
			),
			mcp.WithString("category",
				mcp.Required(),
				mcp.Description("Device category: android, ios-simulator or ios-device"),
			),
		),
		s.handleAppList,
	)

	// db_locate - Find database files in an app sandbox
	s.server.AddTool(
		mcp.NewTool("db_locate",
			mcp.WithDescription("Locate SQLite database files inside an application's sandbox"),
			mcp.WithString("device_id",
				mcp.Required(),
				mcp.Description("Device identifier"),
			),
			mcp.WithString("category",
				mcp.Required(),
				mcp.Description("Device category: android, ios-simulator or ios-device"),
			),
			mcp.WithString("app_id",
				mcp.Required(),
				mcp.Description("Package name or bundle identifier"),
			),
		),
		s.handleDBLocate,
	)
}

// Tool handlers

func (s *MCPServer) handleDeviceList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.app.ListDevices()
	if !result.Success {
		return nil, fmt.Errorf("failed to list devices: %s", result.Error)
	}

	if len(result.Devices) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("No devices connected"),
			},
		}, nil
	}

	text := fmt.Sprintf("Found %d device(s):\n\n", len(result.Devices))
	for i, d := range result.Devices {
		text += fmt.Sprintf("%d. %s (%s)\n   Name: %s, Model: %s, OS: %s\n",
			i+1, d.ID, d.Category, d.Name, d.Model, d.OSVersion)
		if d.Error != "" {
			text += fmt.Sprintf("   Warning: %s\n", d.Error)
		}
	}

	jsonData, _ := json.MarshalIndent(result.Devices, "", "  ")

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
			mcp.NewTextContent(fmt.Sprintf("\nJSON data:\n```json\n%s\n```", string(jsonData))),
		},
	}, nil
}

func (s *MCPServer) handleDeviceInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	deviceID, ok := args["device_id"].(string)
	if !ok || deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	category, ok := args["category"].(string)
	if !ok || category == "" {
		return nil, fmt.Errorf("category is required")
	}

	result := s.app.GetDeviceInfo(deviceID, DeviceCategory(category))
	if !result.Success {
		return nil, fmt.Errorf("failed to get device info: %s", result.Error)
	}

	text := fmt.Sprintf("Device: %s\n\n", deviceID)
	for key, value := range result.Props {
		text += fmt.Sprintf("%s: %s\n", key, value)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}, nil
}

func (s *MCPServer) handleAppList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	device, err := deviceFromArgs(request)
	if err != nil {
		return nil, err
	}

	result := s.app.ListApplications(device)
	if !result.Success {
		return nil, fmt.Errorf("failed to list applications: %s", result.Error)
	}

	if len(result.Apps) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("No user applications found"),
			},
		}, nil
	}

	text := fmt.Sprintf("Found %d application(s):\n\n", len(result.Apps))
	for i, app := range result.Apps {
		text += fmt.Sprintf("%d. %s (%s)\n", i+1, app.Name, app.ID)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}, nil
}

func (s *MCPServer) handleDBLocate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	device, err := deviceFromArgs(request)
	if err != nil {
		return nil, err
	}
	appID, ok := request.GetArguments()["app_id"].(string)
	if !ok || appID == "" {
		return nil, fmt.Errorf("app_id is required")
	}

	result := s.app.LocateDatabaseFiles(device, AppRef{ID: appID})
	if !result.Success {
		return nil, fmt.Errorf("failed to locate databases: %s", result.Error)
	}

	if len(result.Files) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(fmt.Sprintf("No database files found for %s", appID)),
			},
		}, nil
	}

	text := fmt.Sprintf("Found %d database file(s) for %s:\n\n", len(result.Files), appID)
	for i, f := range result.Files {
		text += fmt.Sprintf("%d. %s\n   Location: %s\n   Remote: %s\n",
			i+1, f.Filename, f.Location, f.RemotePath)
	}

	jsonData, _ := json.MarshalIndent(result.Files, "", "  ")

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
			mcp.NewTextContent(fmt.Sprintf("\nJSON data:\n```json\n%s\n```", string(jsonData))),
		},
	}, nil
}

// deviceFromArgs builds a Device from the device_id and category tool
// arguments.
func deviceFromArgs(request mcp.CallToolRequest) (Device, error) {
	args := request.GetArguments()
	deviceID, ok := args["device_id"].(string)
	if !ok || deviceID == "" {
		return Device{}, fmt.Errorf("device_id is required")
	}
	category, ok := args["category"].(string)
	if !ok || category == "" {
		return Device{}, fmt.Errorf("category is required")
	}
	switch DeviceCategory(category) {
	case CategoryAndroid, CategorySimulator, CategoryIOSDevice:
	default:
		return Device{}, fmt.Errorf("unknown category: %s", category)
	}
	return Device{ID: deviceID, Category: DeviceCategory(category)}, nil
}
