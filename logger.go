package main

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ========================================
// Structured logging
// ========================================

// Logger is the global zerolog instance.
var Logger zerolog.Logger

var persistentLogger *PersistentLogger

// LogLevel selects the minimum emitted level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// LogConfig controls log output and retention.
type LogConfig struct {
	Level      LogLevel
	Console    bool
	File       bool
	FilePath   string
	MaxSizeMB  int // rotate when the current file exceeds this
	MaxAgeDays int
	MaxBackups int
	Compress   bool
	TimeFormat string
}

// DefaultLogConfig returns the console-only configuration used until
// startup wires the persistent sink.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      LogLevelInfo,
		Console:    true,
		File:       false,
		MaxSizeMB:  10,
		MaxAgeDays: 7,
		MaxBackups: 5,
		Compress:   true,
		TimeFormat: time.RFC3339,
	}
}

// PersistentLogConfig returns the file-backed configuration rooted at the
// app data directory.
func PersistentLogConfig(appDataPath string) LogConfig {
	logDir := filepath.Join(appDataPath, "logs")
	return LogConfig{
		Level:      LogLevelInfo,
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(logDir, "satchel.log"),
		MaxSizeMB:  10,
		MaxAgeDays: 7,
		MaxBackups: 5,
		Compress:   true,
		TimeFormat: time.RFC3339,
	}
}

// PersistentLogger manages log file rotation and cleanup.
type PersistentLogger struct {
	mu          sync.Mutex
	config      LogConfig
	currentFile *os.File
	currentSize int64
	logDir      string
}

func NewPersistentLogger(config LogConfig) (*PersistentLogger, error) {
	logDir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	pl := &PersistentLogger{
		config: config,
		logDir: logDir,
	}

	if err := pl.openFile(); err != nil {
		return nil, err
	}

	go pl.cleanupRoutine()

	return pl, nil
}

// Write implements io.Writer.
func (pl *PersistentLogger) Write(p []byte) (n int, err error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.config.MaxSizeMB > 0 && pl.currentSize+int64(len(p)) > int64(pl.config.MaxSizeMB)*1024*1024 {
		if err := pl.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = pl.currentFile.Write(p)
	pl.currentSize += int64(n)
	return n, err
}

func (pl *PersistentLogger) openFile() error {
	file, err := os.OpenFile(pl.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	pl.currentFile = file
	pl.currentSize = info.Size()
	return nil
}

func (pl *PersistentLogger) rotate() error {
	if pl.currentFile != nil {
		pl.currentFile.Close()
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	rotatedPath := filepath.Join(pl.logDir, fmt.Sprintf("satchel_%s.log", timestamp))

	if err := os.Rename(pl.config.FilePath, rotatedPath); err != nil {
		return pl.openFile()
	}

	if pl.config.Compress {
		go pl.compressFile(rotatedPath)
	}

	return pl.openFile()
}

func (pl *PersistentLogger) compressFile(filePath string) {
	src, err := os.Open(filePath)
	if err != nil {
		return
	}
	defer src.Close()

	dst, err := os.Create(filePath + ".gz")
	if err != nil {
		return
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	defer gz.Close()

	if _, err := io.Copy(gz, src); err != nil {
		os.Remove(filePath + ".gz")
		return
	}

	os.Remove(filePath)
}

func (pl *PersistentLogger) cleanupRoutine() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	pl.cleanup()

	for range ticker.C {
		pl.cleanup()
	}
}

func (pl *PersistentLogger) cleanup() {
	files, err := filepath.Glob(filepath.Join(pl.logDir, "satchel_*.log*"))
	if err != nil {
		return
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var fileInfos []fileInfo

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		fileInfos = append(fileInfos, fileInfo{path: f, modTime: info.ModTime()})
	}

	sort.Slice(fileInfos, func(i, j int) bool {
		return fileInfos[i].modTime.After(fileInfos[j].modTime)
	})

	now := time.Now()
	for i, fi := range fileInfos {
		if pl.config.MaxAgeDays > 0 && now.Sub(fi.modTime) > time.Duration(pl.config.MaxAgeDays)*24*time.Hour {
			os.Remove(fi.path)
			continue
		}

		if pl.config.MaxBackups > 0 && i >= pl.config.MaxBackups {
			os.Remove(fi.path)
		}
	}
}

func (pl *PersistentLogger) Close() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.currentFile != nil {
		return pl.currentFile.Close()
	}
	return nil
}

// InitLogger initialises the global logger with the given config.
func InitLogger(config LogConfig) error {
	var writers []io.Writer

	if config.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
		writers = append(writers, consoleWriter)
	}

	if config.File && config.FilePath != "" {
		pl, err := NewPersistentLogger(config)
		if err != nil {
			return err
		}
		persistentLogger = pl
		writers = append(writers, pl)
	}

	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	multi := zerolog.MultiLevelWriter(writers...)

	var level zerolog.Level
	switch config.Level {
	case LogLevelDebug:
		level = zerolog.DebugLevel
	case LogLevelInfo:
		level = zerolog.InfoLevel
	case LogLevelWarn:
		level = zerolog.WarnLevel
	case LogLevelError:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	Logger = zerolog.New(multi).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	return nil
}

// CloseLogger flushes and closes the persistent sink.
func CloseLogger() {
	if persistentLogger != nil {
		persistentLogger.Close()
	}
}

// Convenience module loggers

func LogDebug(module string) *zerolog.Event {
	return Logger.Debug().Str("module", module)
}

func LogInfo(module string) *zerolog.Event {
	return Logger.Info().Str("module", module)
}

func LogWarn(module string) *zerolog.Event {
	return Logger.Warn().Str("module", module)
}

func LogError(module string) *zerolog.Event {
	return Logger.Error().Str("module", module)
}

// ========================================
// User interaction logging
// ========================================

// UserAction identifies a user-triggered operation.
type UserAction string

const (
	ActionDeviceSelect UserAction = "device_select"
	ActionAppSelect    UserAction = "app_select"

	ActionDatabaseLocate UserAction = "database_locate"
	ActionDatabaseStage  UserAction = "database_stage"
	ActionDatabasePush   UserAction = "database_push"
	ActionDatabaseRevert UserAction = "database_revert"

	ActionSettingsChange UserAction = "settings_change"
)

// UserInteractionLog records user behaviour under its own category.
type UserInteractionLog struct {
	logger zerolog.Logger
}

var userInteractionLog *UserInteractionLog

func InitUserInteractionLog() {
	userInteractionLog = &UserInteractionLog{
		logger: Logger.With().Str("category", "user_interaction").Logger(),
	}
}

// LogUserAction records a user operation with structured details.
func LogUserAction(action UserAction, deviceID string, details map[string]interface{}) {
	if userInteractionLog == nil {
		InitUserInteractionLog()
	}

	event := userInteractionLog.logger.Info().
		Str("action", string(action)).
		Str("device_id", deviceID).
		Time("timestamp", time.Now())

	for k, v := range details {
		switch val := v.(type) {
		case string:
			event.Str(k, val)
		case int:
			event.Int(k, val)
		case int64:
			event.Int64(k, val)
		case float64:
			event.Float64(k, val)
		case bool:
			event.Bool(k, val)
		case error:
			event.Err(val)
		default:
			event.Interface(k, val)
		}
	}

	event.Msg("User action")
}

// ========================================
// Application state logging
// ========================================

type AppState string

const (
	StateStarting     AppState = "starting"
	StateReady        AppState = "ready"
	StateShuttingDown AppState = "shutting_down"
	StateStopped      AppState = "stopped"
)

func LogAppState(state AppState, details map[string]interface{}) {
	event := Logger.Info().
		Str("category", "app_state").
		Str("state", string(state)).
		Time("timestamp", time.Now())

	for k, v := range details {
		switch val := v.(type) {
		case string:
			event.Str(k, val)
		case int:
			event.Int(k, val)
		case int64:
			event.Int64(k, val)
		case float64:
			event.Float64(k, val)
		case bool:
			event.Bool(k, val)
		case error:
			event.Err(val)
		default:
			event.Interface(k, val)
		}
	}

	event.Msg("App state changed")
}

// LogErrorWithContext records an error with structured context.
func LogErrorWithContext(module string, err error, context map[string]interface{}) {
	event := Logger.Error().
		Str("module", module).
		Err(err).
		Time("timestamp", time.Now())

	for k, v := range context {
		switch val := v.(type) {
		case string:
			event.Str(k, val)
		case int:
			event.Int(k, val)
		case int64:
			event.Int64(k, val)
		case float64:
			event.Float64(k, val)
		case bool:
			event.Bool(k, val)
		default:
			event.Interface(k, val)
		}
	}

	event.Msg("Error occurred")
}

// ========================================
// Operation timing
// ========================================

// OperationTimer measures one logical operation end to end.
type OperationTimer struct {
	module    string
	operation string
	startTime time.Time
	details   map[string]interface{}
}

func StartOperation(module, operation string) *OperationTimer {
	return &OperationTimer{
		module:    module,
		operation: operation,
		startTime: time.Now(),
		details:   make(map[string]interface{}),
	}
}

func (t *OperationTimer) AddDetail(key string, value interface{}) *OperationTimer {
	t.details[key] = value
	return t
}

func (t *OperationTimer) End() {
	duration := time.Since(t.startTime)

	event := Logger.Info().
		Str("module", t.module).
		Str("category", "performance").
		Str("operation", t.operation).
		Dur("duration", duration).
		Int64("duration_ms", duration.Milliseconds())

	for k, v := range t.details {
		switch val := v.(type) {
		case string:
			event.Str(k, val)
		case int:
			event.Int(k, val)
		case int64:
			event.Int64(k, val)
		case float64:
			event.Float64(k, val)
		case bool:
			event.Bool(k, val)
		default:
			event.Interface(k, val)
		}
	}

	event.Msg("Operation completed")
}

func (t *OperationTimer) EndWithError(err error) {
	duration := time.Since(t.startTime)

	event := Logger.Error().
		Str("module", t.module).
		Str("category", "performance").
		Str("operation", t.operation).
		Dur("duration", duration).
		Int64("duration_ms", duration.Milliseconds()).
		Err(err)

	for k, v := range t.details {
		switch val := v.(type) {
		case string:
			event.Str(k, val)
		case int:
			event.Int(k, val)
		case int64:
			event.Int64(k, val)
		case float64:
			event.Float64(k, val)
		case bool:
			event.Bool(k, val)
		default:
			event.Interface(k, val)
		}
	}

	event.Msg("Operation failed")
}

// ========================================
// Log file queries (exposed to the shell)
// ========================================

func GetLogFilePath() string {
	if persistentLogger != nil {
		return persistentLogger.config.FilePath
	}
	return ""
}

func GetLogDir() string {
	if persistentLogger != nil {
		return persistentLogger.logDir
	}
	return ""
}

// ListLogFiles returns all log files, newest first.
func ListLogFiles() ([]string, error) {
	if persistentLogger == nil {
		return nil, fmt.Errorf("persistent logger not initialized")
	}

	pattern := filepath.Join(persistentLogger.logDir, "satchel*.log*")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	type fileWithTime struct {
		path    string
		modTime time.Time
	}
	var filesWithTime []fileWithTime
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		filesWithTime = append(filesWithTime, fileWithTime{path: f, modTime: info.ModTime()})
	}

	sort.Slice(filesWithTime, func(i, j int) bool {
		return filesWithTime[i].modTime.After(filesWithTime[j].modTime)
	})

	result := make([]string, len(filesWithTime))
	for i, f := range filesWithTime {
		result[i] = f.path
	}
	return result, nil
}

// ReadRecentLogs returns the last n lines of the current log file.
func ReadRecentLogs(lines int) ([]string, error) {
	if persistentLogger == nil {
		return nil, fmt.Errorf("persistent logger not initialized")
	}

	content, err := os.ReadFile(persistentLogger.config.FilePath)
	if err != nil {
		return nil, err
	}

	allLines := strings.Split(string(content), "\n")
	if len(allLines) <= lines {
		return allLines, nil
	}

	return allLines[len(allLines)-lines:], nil
}

func init() {
	_ = InitLogger(DefaultLogConfig())
}
