package attendance

import (
	"context"
	"os"
	"sync"

	"github.com/benmeehan/attendance-agent/internal/models"
	"github.com/benmeehan/attendance-agent/pkg/file"
	"github.com/rs/zerolog"
)

// FileStore keeps attendance history in a single JSON file.
type FileStore struct {
	filePath   string
	fileClient file.FileOperations
	logger     zerolog.Logger
	mu         sync.Mutex
}

// NewFileStore initializes a new FileStore
func NewFileStore(filePath string, fileClient file.FileOperations, logger zerolog.Logger) *FileStore {
	return &FileStore{
		filePath:   filePath,
		fileClient: fileClient,
		logger:     logger,
	}
}

// load reads the records from the file. Callers hold mu.
func (fs *FileStore) load() ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	if err := fs.fileClient.ReadJsonFile(fs.filePath, &records); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		fs.logger.Error().Err(err).Str("path", fs.filePath).Msg("Failed to read attendance file")
		return nil, err
	}
	return records, nil
}

// RecordAttendance appends a record and rewrites the file atomically.
func (fs *FileStore) RecordAttendance(_ context.Context, record models.AttendanceRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	records, err := fs.load()
	if err != nil {
		return err
	}
	records = append(records, record)

	if err := fs.fileClient.WriteJsonFile(fs.filePath, records); err != nil {
		fs.logger.Error().Err(err).Str("path", fs.filePath).Msg("Failed to write attendance file")
		return err
	}
	return nil
}

// ListAttendance returns the matching records, newest first.
func (fs *FileStore) ListAttendance(_ context.Context, filter Filter) ([]models.AttendanceRecord, error) {
	fs.mu.Lock()
	records, err := fs.load()
	fs.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	return out, nil
}
