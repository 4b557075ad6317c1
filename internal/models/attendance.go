package models

import (
	"time"
)

// AttendanceRecord is one attendance entry for a subject on a given date.
type AttendanceRecord struct {
	ID             string     `json:"id"`
	Date           string     `json:"date"`
	Subject        string     `json:"subject"`
	SubjectCode    string     `json:"subject_code"`
	RollNo         string     `json:"roll_no,omitempty"`
	Status         string     `json:"status"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
	DistanceMeters *float64   `json:"distance_meters,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
}

// AttendanceSummary aggregates a set of records.
type AttendanceSummary struct {
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	OD         int     `json:"od"`
	Percentage float64 `json:"percentage"`
}
