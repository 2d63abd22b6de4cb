package main

import (
	"context"
	"embed"
	"os"
	"runtime"

	"Satchel/mcp"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
)

//go:embed all:frontend/dist
var assets embed.FS

var appVersion = "0.1.0"

func main() {
	app := NewApp(appVersion)

	// Headless mode: serve the engine over MCP stdio instead of
	// opening a window.
	for _, arg := range os.Args[1:] {
		if arg == "--mcp" {
			app.SetMCPMode(true)
			app.startup(context.Background())
			defer app.Shutdown(context.Background())
			StartMCPServer(app)
			return
		}
	}

	var applicationMenu *menu.Menu
	if runtime.GOOS == "darwin" {
		applicationMenu = menu.NewMenu()
		applicationMenu.Append(menu.AppMenu())
		applicationMenu.Append(menu.WindowMenu())
	}

	err := wails.Run(&options.App{
		Title:     "Satchel",
		Width:     1200,
		Height:    760,
		MinWidth:  960,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		Menu:             applicationMenu,
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.Shutdown,
		WindowStartState: options.Normal,
		Mac: &mac.Options{
			TitleBar: &mac.TitleBar{
				TitlebarAppearsTransparent: true,
				FullSizeContent:            true,
				HideToolbarSeparator:       true,
			},
			Appearance:           mac.NSAppearanceNameDarkAqua,
			WebviewIsTransparent: true,
			WindowIsTranslucent:  true,
			About: &mac.AboutInfo{
				Title:   "Satchel",
				Message: "Browse and edit databases inside mobile app sandboxes",
			},
		},
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}

// StartMCPServer serves the engine over MCP stdio until stdin closes.
func StartMCPServer(app *App) {
	mcpServer := mcp.NewMCPServer(app)
	if err := mcpServer.Start(); err != nil {
		LogError("mcp").Err(err).Msg("Failed to start MCP server")
	}
}
