// Package mcp provides the MCP (Model Context Protocol) server for Satchel.
// This allows external AI clients (like Claude Desktop) to browse devices
// and stage database files without the desktop window.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"Satchel/pkg/types"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Type aliases from shared types package
// This avoids code duplication and ensures type consistency
type (
	Device           = types.Device
	DeviceCategory   = types.DeviceCategory
	AppRef           = types.AppRef
	DatabaseFile     = types.DatabaseFile
	StagingRun       = types.StagingRun
	StagedFileRecord = types.StagedFileRecord
	DeviceListResult = types.DeviceListResult
	DeviceInfoResult = types.DeviceInfoResult
	AppListResult    = types.AppListResult
	LocateResult     = types.LocateResult
	StageResult      = types.StageResult
	StageBatchResult = types.StageBatchResult
	PushResult       = types.PushResult
	HistoryResult    = types.HistoryResult
	OperationResult  = types.OperationResult
)

const (
	CategoryAndroid   = types.CategoryAndroid
	CategorySimulator = types.CategorySimulator
	CategoryIOSDevice = types.CategoryIOSDevice
)

// SatchelApp is the surface the MCP server needs from the main App.
// This allows loose coupling between MCP and the main application.
type SatchelApp interface {
	// Discovery
	ListDevices() DeviceListResult
	GetDeviceInfo(deviceID string, category DeviceCategory) DeviceInfoResult
	ListApplications(device Device) AppListResult
	LocateDatabaseFiles(device Device, app AppRef) LocateResult

	// Staging and sync-back
	StageDatabases(device Device, app AppRef) StageBatchResult
	PushStaged(localPath string) PushResult
	RevertStaged(localPath string) OperationResult
	GetStagingHistory(deviceID string, limit int) HistoryResult
	GetStagingDir() string

	// Utility
	GetAppVersion() string
}

// MCPServer wraps the MCP server and exposes Satchel's engine as tools
type MCPServer struct {
	app       SatchelApp
	server    *server.MCPServer
	stdio     *server.StdioServer
	mu        sync.Mutex
	isRunning bool
}

// NewMCPServer creates a new MCP server for Satchel
func NewMCPServer(app SatchelApp) *MCPServer {
	mcpServer := server.NewMCPServer(
		"satchel-db-browser",
		app.GetAppVersion(),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)

	s := &MCPServer{
		app:    app,
		server: mcpServer,
	}

	s.registerTools()
	s.registerResources()

	return s
}

func (s *MCPServer) registerTools() {
	s.registerDiscoveryTools()
	s.registerTransferTools()
}

func (s *MCPServer) registerResources() {
	s.server.AddResource(
		mcp.NewResource(
			"satchel://devices",
			"Connected devices, simulators and emulators",
			mcp.WithMIMEType("application/json"),
		),
		s.handleDevicesResource,
	)

	s.server.AddResource(
		mcp.NewResource(
			"satchel://staging/history",
			"Recent staging runs",
			mcp.WithMIMEType("application/json"),
		),
		s.handleHistoryResource,
	)
}

func (s *MCPServer) handleDevicesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	result := s.app.ListDevices()
	if !result.Success {
		return nil, fmt.Errorf("failed to list devices: %s", result.Error)
	}
	data, err := json.MarshalIndent(result.Devices, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "satchel://devices",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *MCPServer) handleHistoryResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	result := s.app.GetStagingHistory("", 50)
	if !result.Success {
		return nil, fmt.Errorf("failed to load staging history: %s", result.Error)
	}
	data, err := json.MarshalIndent(result.Runs, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "satchel://staging/history",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// Start starts the MCP server (blocking - for CLI mode)
// This method blocks until the server shuts down
func (s *MCPServer) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("MCP server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	return s.run()
}

// StartAsync starts the MCP server in a goroutine (non-blocking)
func (s *MCPServer) StartAsync() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("MCP server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	go s.run()
	return nil
}

func (s *MCPServer) run() error {
	s.stdio = server.NewStdioServer(s.server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	go func() {
		<-sigChan
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "[MCP] Satchel MCP Server started")
	err := s.stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[MCP] Server error: %v\n", err)
	}

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()

	return err
}

// Stop stops the MCP server
func (s *MCPServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The server stops when stdin closes or the context is cancelled
	s.isRunning = false
}

// IsRunning returns whether the MCP server is running
func (s *MCPServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
