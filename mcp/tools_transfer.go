package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerTransferTools registers staging and sync-back tools
func (s *MCPServer) registerTransferTools() {
	// db_stage - Pull an app's databases into the staging area
	s.server.AddTool(
		mcp.NewTool("db_stage",
			mcp.WithDescription("Stage every database file of an application into the local staging area for editing"),
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
		s.handleDBStage,
	)

	// db_push - Push a staged file back to its origin
	s.server.AddTool(
		mcp.NewTool("db_push",
			mcp.WithDescription("Push a previously staged database file back to the device it came from"),
			mcp.WithString("local_path",
				mcp.Required(),
				mcp.Description("Path of the staged file on the local machine"),
			),
		),
		s.handleDBPush,
	)

	// db_revert - Discard local edits to a staged file
	s.server.AddTool(
		mcp.NewTool("db_revert",
			mcp.WithDescription("Restore a staged database file to the pristine copy pulled from the device"),
			mcp.WithString("local_path",
				mcp.Required(),
				mcp.Description("Path of the staged file on the local machine"),
			),
		),
		s.handleDBRevert,
	)

	// staging_history - Recent staging runs
	s.server.AddTool(
		mcp.NewTool("staging_history",
			mcp.WithDescription("List recent staging runs and the files of the latest run"),
			mcp.WithString("device_id",
				mcp.Description("Limit history to one device (optional)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of runs to return (default: 20)"),
			),
		),
		s.handleStagingHistory,
	)
}

func (s *MCPServer) handleDBStage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	device, err := deviceFromArgs(request)
	if err != nil {
		return nil, err
	}
	appID, ok := request.GetArguments()["app_id"].(string)
	if !ok || appID == "" {
		return nil, fmt.Errorf("app_id is required")
	}

	result := s.app.StageDatabases(device, AppRef{ID: appID})
	if !result.Success {
		return nil, fmt.Errorf("failed to stage databases: %s", result.Error)
	}

	staged := 0
	text := ""
	for _, r := range result.Staged {
		if r.Success {
			staged++
			valid := "valid"
			if !r.File.Valid {
				valid = "NOT a valid SQLite database"
			}
			text += fmt.Sprintf("- %s (%s, %d bytes, %s)\n  Staged at: %s\n",
				r.File.Filename, r.File.Location, r.File.SizeBytes, valid, r.File.LocalPath)
		} else {
			text += fmt.Sprintf("- %s FAILED: %s\n", r.File.Filename, r.Error)
		}
	}
	header := fmt.Sprintf("Staged %d of %d file(s) for %s (run %s)\nStaging directory: %s\n\n",
		staged, len(result.Staged), appID, result.RunID, s.app.GetStagingDir())

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(header + text),
		},
	}, nil
}

func (s *MCPServer) handleDBPush(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	localPath, ok := request.GetArguments()["local_path"].(string)
	if !ok || localPath == "" {
		return nil, fmt.Errorf("local_path is required")
	}

	result := s.app.PushStaged(localPath)
	if !result.Success {
		text := fmt.Sprintf("Push failed: %s", result.Error)
		if result.ManualSteps != "" {
			text += "\n\n" + result.ManualSteps
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(text),
			},
			IsError: true,
		}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("Pushed %s back to its origin device", localPath)),
		},
	}, nil
}

func (s *MCPServer) handleDBRevert(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	localPath, ok := request.GetArguments()["local_path"].(string)
	if !ok || localPath == "" {
		return nil, fmt.Errorf("local_path is required")
	}

	result := s.app.RevertStaged(localPath)
	if !result.Success {
		return nil, fmt.Errorf("failed to revert: %s", result.Error)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("Reverted %s to its pristine copy", localPath)),
		},
	}, nil
}

func (s *MCPServer) handleStagingHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	deviceID, _ := args["device_id"].(string)
	limit := 20
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	result := s.app.GetStagingHistory(deviceID, limit)
	if !result.Success {
		return nil, fmt.Errorf("failed to load staging history: %s", result.Error)
	}

	if len(result.Runs) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("No staging runs recorded"),
			},
		}, nil
	}

	text := fmt.Sprintf("Found %d staging run(s):\n\n", len(result.Runs))
	for i, run := range result.Runs {
		text += fmt.Sprintf("%d. %s\n   Device: %s (%s), App: %s, Files: %d\n",
			i+1, run.ID, run.DeviceID, run.Category, run.AppID, run.FileCount)
	}
	if len(result.Files) > 0 {
		text += "\nFiles of the latest run:\n"
		for _, f := range result.Files {
			pushed := ""
			if f.PushedAt > 0 {
				pushed = " [pushed]"
			}
			text += fmt.Sprintf("- %s <- %s%s\n", f.LocalPath, f.RemotePath, pushed)
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}, nil
}
