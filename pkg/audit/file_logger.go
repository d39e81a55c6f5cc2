package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const currentLogName = "audit.log"

// FileLogger writes audit events as newline-delimited JSON with size-based rotation
type FileLogger struct {
	basePath string
	file     *os.File
	mu       sync.Mutex
	encoder  *json.Encoder
	maxSize  int64 // Max file size in bytes before rotation
	maxFiles int   // Max number of rotated files to keep
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	BasePath string // Base directory for audit logs
	MaxSize  int64  // Max file size in bytes (default: 10MB)
	MaxFiles int    // Max number of rotated files to keep (default: 5)
}

// DefaultFileLoggerConfig returns default configuration
func DefaultFileLoggerConfig(basePath string) FileLoggerConfig {
	return FileLoggerConfig{
		BasePath: basePath,
		MaxSize:  10 * 1024 * 1024, // 10MB
		MaxFiles: 5,
	}
}

// NewFileLogger creates a new file-based audit logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.BasePath == "" {
		return nil, errors.New("audit log directory is required")
	}
	if err := os.MkdirAll(config.BasePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	logger := &FileLogger{
		basePath: config.BasePath,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}
	if logger.maxSize <= 0 {
		logger.maxSize = 10 * 1024 * 1024
	}
	if logger.maxFiles <= 0 {
		logger.maxFiles = 5
	}

	if err := logger.openLogFile(); err != nil {
		return nil, err
	}
	return logger, nil
}

// openLogFile opens the current log file, rotating it first when it is full
func (l *FileLogger) openLogFile() error {
	filename := filepath.Join(l.basePath, currentLogName)

	if info, err := os.Stat(filename); err == nil && info.Size() >= l.maxSize {
		if err := l.rotateFile(); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}

	l.file = file
	l.encoder = json.NewEncoder(file)
	return nil
}

// rotateFile renames the current file with a timestamp suffix
func (l *FileLogger) rotateFile() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	timestamp := time.Now().UTC().Format("20060102T150405.000000000")
	rotated := filepath.Join(l.basePath, fmt.Sprintf("audit-%s.log", timestamp))
	if err := os.Rename(filepath.Join(l.basePath, currentLogName), rotated); err != nil {
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	return l.cleanupOldFiles()
}

// cleanupOldFiles removes the oldest rotated files beyond the retention limit.
// Rotated names sort chronologically.
func (l *FileLogger) cleanupOldFiles() error {
	files, err := filepath.Glob(filepath.Join(l.basePath, "audit-*.log"))
	if err != nil {
		return err
	}
	if len(files) <= l.maxFiles {
		return nil
	}

	var errs []error
	for _, file := range files[:len(files)-l.maxFiles] {
		if err := os.Remove(file); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log appends an event to the current file
func (l *FileLogger) Log(ctx context.Context, event *AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New("audit log is closed")
	}

	if info, err := l.file.Stat(); err == nil && info.Size() >= l.maxSize {
		l.file.Close()
		l.file = nil
		if err := l.openLogFile(); err != nil {
			return err
		}
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Close closes the file logger
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// ReadLogs reads up to count events from the current file. A count of zero reads all.
func (l *FileLogger) ReadLogs(count int) ([]*AuditEvent, error) {
	file, err := os.Open(filepath.Join(l.basePath, currentLogName))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*AuditEvent
	decoder := json.NewDecoder(file)
	for {
		var event AuditEvent
		if err := decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode audit log entry: %w", err)
		}
		events = append(events, &event)

		if count > 0 && len(events) >= count {
			break
		}
	}
	return events, nil
}

// Dir returns the directory holding the log files
func (l *FileLogger) Dir() string {
	return l.basePath
}
