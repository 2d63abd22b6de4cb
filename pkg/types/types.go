package types

// DeviceCategory identifies which transport family a device belongs to.
type DeviceCategory string

const (
	CategoryAndroid   DeviceCategory = "android"
	CategorySimulator DeviceCategory = "ios-simulator"
	CategoryIOSDevice DeviceCategory = "ios-device"
)

// Device represents a connected device, emulator or simulator
type Device struct {
	ID        string         `json:"id"` // serial (Android) or UDID (iOS)
	Name      string         `json:"name"`
	Model     string         `json:"model"`
	Category  DeviceCategory `json:"category"`
	State     string         `json:"state"`
	OSVersion string         `json:"osVersion"`
	// Error is set on a partial record when the per-device info query
	// failed but the device id itself was reported.
	Error string `json:"error,omitempty"`
}

// AppRef identifies an installed application on a device
type AppRef struct {
	ID   string `json:"id"` // package name or bundle identifier
	Name string `json:"name"`
}

// SandboxLocation is a well-known sub-directory of an application sandbox
// where database files conventionally live.
type SandboxLocation string

const (
	LocDatabases          SandboxLocation = "databases"
	LocFiles              SandboxLocation = "files"
	LocSharedPrefs        SandboxLocation = "shared_prefs"
	LocExternalFiles      SandboxLocation = "external-files"
	LocExternalDatabases  SandboxLocation = "external-databases"
	LocDocuments          SandboxLocation = "Documents"
	LocLibrary            SandboxLocation = "Library"
	LocLibraryCaches      SandboxLocation = "Library/Caches"
	LocLibraryPreferences SandboxLocation = "Library/Preferences"
)

// DatabaseFile describes one SQLite file found inside an application sandbox.
// LocalPath is empty until the file has been staged.
type DatabaseFile struct {
	LocalPath  string          `json:"localPath"`
	RemotePath string          `json:"remotePath"`
	Filename   string          `json:"filename"`
	Location   SandboxLocation `json:"location"`
	Category   DeviceCategory  `json:"category"`
	App        AppRef          `json:"app"`
	DeviceID   string          `json:"deviceId"`
	Dirty      bool            `json:"dirty"`
	Valid      bool            `json:"valid"`
	SizeBytes  int64           `json:"sizeBytes"`
}

// Provenance is the sidecar record written next to every staged file.
// Schema is stable on disk: {deviceId, packageName, remotePath, timestamp}.
type Provenance struct {
	DeviceID    string `json:"deviceId"`
	PackageName string `json:"packageName"`
	RemotePath  string `json:"remotePath"`
	Timestamp   string `json:"timestamp"` // UTC, RFC 3339
}

// StagingRun is one recorded discovery/staging batch.
type StagingRun struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"deviceId"`
	AppID     string         `json:"appId"`
	Category  DeviceCategory `json:"category"`
	StartedAt int64          `json:"startedAt"` // unix millis
	FileCount int            `json:"fileCount"`
}

// StagedFileRecord is one staged file row from the catalog.
type StagedFileRecord struct {
	RunID      string         `json:"runId"`
	DeviceID   string         `json:"deviceId"`
	AppID      string         `json:"appId"`
	Category   DeviceCategory `json:"category"`
	RemotePath string         `json:"remotePath"`
	LocalPath  string         `json:"localPath"`
	Location   string         `json:"location"`
	Checksum   string         `json:"checksum"`
	SizeBytes  int64          `json:"sizeBytes"`
	StagedAt   int64          `json:"stagedAt"`
	PushedAt   int64          `json:"pushedAt,omitempty"`
}

// Response envelopes. Engine entry points never raise across the API
// boundary; failures are reported through Success/Error.

type DeviceListResult struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Devices []Device `json:"devices"`
}

type DeviceInfoResult struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Props   map[string]string `json:"props,omitempty"`
}

type AppListResult struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Apps    []AppRef `json:"apps"`
}

type LocateResult struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Files   []DatabaseFile `json:"files"`
}

type StageResult struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	File    DatabaseFile `json:"file"`
}

type StageBatchResult struct {
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	RunID   string        `json:"runId,omitempty"`
	Staged  []StageResult `json:"staged"`
}

type PushResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// ManualSteps holds ready-to-run shell commands when the elevated
	// copy step of an Android private-path push failed.
	ManualSteps string `json:"manualSteps,omitempty"`
}

// OperationResult is the envelope for operations with no payload.
type OperationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type HistoryResult struct {
	Success bool               `json:"success"`
	Error   string             `json:"error,omitempty"`
	Runs    []StagingRun       `json:"runs"`
	Files   []StagedFileRecord `json:"files,omitempty"`
}
