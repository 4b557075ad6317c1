package attendance

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/benmeehan/attendance-agent/internal/constants"
	"github.com/benmeehan/attendance-agent/internal/models"
)

// ErrInvalidRecord is returned when a record is missing required fields.
var ErrInvalidRecord = errors.New("invalid attendance record")

// Store accepts committed attendance records.
type Store interface {
	RecordAttendance(ctx context.Context, record models.AttendanceRecord) error
}

// HistoryQuery lists previously recorded attendance.
type HistoryQuery interface {
	ListAttendance(ctx context.Context, filter Filter) ([]models.AttendanceRecord, error)
}

// Repository is a backend that supports both writes and history queries.
type Repository interface {
	Store
	HistoryQuery
}

// Filter narrows a history query. An empty Status (or "All") matches every status; Query
// matches subject and subject code case-insensitively, and the date verbatim.
type Filter struct {
	Status string
	Query  string
}

// Matches reports whether record passes the filter.
func (f Filter) Matches(record models.AttendanceRecord) bool {
	if f.Status != "" && f.Status != "All" && record.Status != f.Status {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(record.Subject), q) ||
		strings.Contains(strings.ToLower(record.SubjectCode), q) ||
		strings.Contains(record.Date, f.Query)
}

// Summarize counts records by status. OD sessions count as attended.
func Summarize(records []models.AttendanceRecord) models.AttendanceSummary {
	var s models.AttendanceSummary
	for _, r := range records {
		s.Total++
		switch r.Status {
		case constants.StatusPresent:
			s.Present++
		case constants.StatusAbsent:
			s.Absent++
		case constants.StatusOD:
			s.OD++
		}
	}
	if s.Total > 0 {
		s.Percentage = float64(s.Present+s.OD) / float64(s.Total) * 100
	}
	return s
}

func validateRecord(r models.AttendanceRecord) error {
	switch {
	case r.ID == "":
		return errors.Join(ErrInvalidRecord, errors.New("id is required"))
	case r.Date == "":
		return errors.Join(ErrInvalidRecord, errors.New("date is required"))
	case r.Subject == "" && r.SubjectCode == "":
		return errors.Join(ErrInvalidRecord, errors.New("subject is required"))
	}
	switch r.Status {
	case constants.StatusPresent, constants.StatusAbsent, constants.StatusOD:
		return nil
	default:
		return errors.Join(ErrInvalidRecord, errors.New("unknown status "+r.Status))
	}
}

// sortNewestFirst orders records by date, then timestamp, descending.
func sortNewestFirst(records []models.AttendanceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date > records[j].Date
		}
		ti, tj := records[i].Timestamp, records[j].Timestamp
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
}
