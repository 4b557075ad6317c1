package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/benmeehan/attendance-agent/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RecordModel is the GORM model for attendance records.
type RecordModel struct {
	ID             string `gorm:"primaryKey"`
	Date           string `gorm:"index"`
	Subject        string
	SubjectCode    string `gorm:"index"`
	RollNo         string
	Status         string `gorm:"index"`
	Timestamp      *time.Time
	DistanceMeters *float64
	Latitude       *float64
	Longitude      *float64
}

// TableName pins the table name independent of the struct name.
func (RecordModel) TableName() string {
	return "attendance_records"
}

// SQLiteStore implements Repository using GORM and SQLite.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens the database at path and migrates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return newSQLiteStore(db)
}

func newSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&RecordModel{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// RecordAttendance inserts the record. Duplicate IDs are rejected by the primary key.
func (s *SQLiteStore) RecordAttendance(ctx context.Context, record models.AttendanceRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	model := toRecordModel(record)
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListAttendance returns the matching records, newest first.
func (s *SQLiteStore) ListAttendance(ctx context.Context, filter Filter) ([]models.AttendanceRecord, error) {
	q := s.db.WithContext(ctx).Model(&RecordModel{})
	if filter.Status != "" && filter.Status != "All" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Query != "" {
		like := "%" + escapeLike(strings.ToLower(filter.Query)) + "%"
		q = q.Where(`(LOWER(subject) LIKE ? ESCAPE '\' OR LOWER(subject_code) LIKE ? ESCAPE '\' OR date LIKE ? ESCAPE '\')`,
			like, like, "%"+escapeLike(filter.Query)+"%")
	}

	var rows []RecordModel
	if err := q.Order("date DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]models.AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRecordModel(r))
	}
	sortNewestFirst(out)
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern escaped with '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecordModel(r models.AttendanceRecord) RecordModel {
	return RecordModel{
		ID:             r.ID,
		Date:           r.Date,
		Subject:        r.Subject,
		SubjectCode:    r.SubjectCode,
		RollNo:         r.RollNo,
		Status:         r.Status,
		Timestamp:      r.Timestamp,
		DistanceMeters: r.DistanceMeters,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
	}
}

func fromRecordModel(m RecordModel) models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:             m.ID,
		Date:           m.Date,
		Subject:        m.Subject,
		SubjectCode:    m.SubjectCode,
		RollNo:         m.RollNo,
		Status:         m.Status,
		Timestamp:      m.Timestamp,
		DistanceMeters: m.DistanceMeters,
		Latitude:       m.Latitude,
		Longitude:      m.Longitude,
	}
}
