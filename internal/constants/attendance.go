package constants

// Attendance statuses
const (
	// StatusPresent marks a committed geofenced check-in
	StatusPresent = "Present"
	// StatusAbsent marks a session with no check-in
	StatusAbsent = "Absent"
	// StatusOD marks a session covered by an approved On-Duty pass
	StatusOD = "OD"
)

// OD pass statuses
const (
	PassPending  = "Pending"
	PassApproved = "Approved"
	PassRejected = "Rejected"
)

// DateLayout is the calendar date format used on attendance records.
const DateLayout = "2006-01-02"
