package main

import "Satchel/pkg/types"

// Shared DTOs live in pkg/types so the mcp package can consume them
// without importing the application package.
type (
	DeviceCategory   = types.DeviceCategory
	Device           = types.Device
	AppRef           = types.AppRef
	SandboxLocation  = types.SandboxLocation
	DatabaseFile     = types.DatabaseFile
	Provenance       = types.Provenance
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

	LocDatabases          = types.LocDatabases
	LocFiles              = types.LocFiles
	LocSharedPrefs        = types.LocSharedPrefs
	LocExternalFiles      = types.LocExternalFiles
	LocExternalDatabases  = types.LocExternalDatabases
	LocDocuments          = types.LocDocuments
	LocLibrary            = types.LocLibrary
	LocLibraryCaches      = types.LocLibraryCaches
	LocLibraryPreferences = types.LocLibraryPreferences
)

// AppSettings contains persistent application settings
type AppSettings struct {
	LastActive   map[string]int64 `json:"lastActive"`
	PinnedDevice string           `json:"pinnedDevice"`
}
