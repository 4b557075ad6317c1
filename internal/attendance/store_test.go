package attendance

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/attendance-agent/internal/constants"
	"github.com/benmeehan/attendance-agent/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/benmeehan/attendance-agent/pkg/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func sampleHistory() []models.AttendanceRecord {
	return []models.AttendanceRecord{
		{ID: "1", Date: "2023-11-15", Status: constants.StatusPresent, Subject: "Data Structures & Algorithms", SubjectCode: "CS301", Timestamp: ts("2023-11-15T09:05:00Z")},
		{ID: "2", Date: "2023-11-14", Status: constants.StatusAbsent, Subject: "Operating Systems", SubjectCode: "CS302"},
		{ID: "3", Date: "2023-11-13", Status: constants.StatusOD, Subject: "Computer Networks", SubjectCode: "CS304", Timestamp: ts("2023-11-13T11:15:00Z")},
		{ID: "4", Date: "2023-11-12", Status: constants.StatusPresent, Subject: "Database Management Systems", SubjectCode: "CS305", Timestamp: ts("2023-11-12T14:00:00Z")},
		{ID: "5", Date: "2023-11-10", Status: constants.StatusAbsent, Subject: "Machine Learning", SubjectCode: "AI401"},
	}
}

func ids(records []models.AttendanceRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilter_Matches(t *testing.T) {
	history := sampleHistory()

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"everything", Filter{}, []string{"1", "2", "3", "4", "5"}},
		{"all status", Filter{Status: "All"}, []string{"1", "2", "3", "4", "5"}},
		{"present only", Filter{Status: constants.StatusPresent}, []string{"1", "4"}},
		{"subject case-insensitive", Filter{Query: "operating"}, []string{"2"}},
		{"subject code", Filter{Query: "cs30"}, []string{"1", "2", "3", "4"}},
		{"date substring", Filter{Query: "2023-11-1"}, []string{"1", "2", "3", "4", "5"}},
		{"status and text", Filter{Status: constants.StatusAbsent, Query: "ai4"}, []string{"5"}},
		{"no match", Filter{Query: "chemistry"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := []string{}
			for _, r := range history {
				if tc.filter.Matches(r) {
					got = append(got, r.ID)
				}
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleHistory())
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Present)
	assert.Equal(t, 2, s.Absent)
	assert.Equal(t, 1, s.OD)
	assert.InDelta(t, 60.0, s.Percentage, 1e-9)

	assert.Equal(t, models.AttendanceSummary{}, Summarize(nil))
}

func TestValidateRecord(t *testing.T) {
	ok := models.AttendanceRecord{ID: "x", Date: "2024-01-01", Subject: "OS", Status: constants.StatusPresent}
	require.NoError(t, validateRecord(ok))

	bad := ok
	bad.Status = "Late"
	assert.True(t, errors.Is(validateRecord(bad), ErrInvalidRecord))

	bad = ok
	bad.ID = ""
	assert.True(t, errors.Is(validateRecord(bad), ErrInvalidRecord))
}

func TestFileStore_RecordAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.json")
	store := NewFileStore(path, file.NewFileService(), zerolog.Nop())
	ctx := context.Background()

	// missing file reads as empty history
	records, err := store.ListAttendance(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	for _, r := range sampleHistory() {
		require.NoError(t, store.RecordAttendance(ctx, r))
	}

	records, err = store.ListAttendance(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(records))

	records, err = store.ListAttendance(ctx, Filter{Status: constants.StatusOD})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(records))

	// a second store over the same file sees the same history
	reopened := NewFileStore(path, file.NewFileService(), zerolog.Nop())
	records, err = reopened.ListAttendance(ctx, Filter{Query: "networks"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(records))
}

func TestFileStore_RejectsInvalidRecord(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "a.json"), file.NewFileService(), zerolog.Nop())
	err := store.RecordAttendance(context.Background(), models.AttendanceRecord{ID: "1"})
	assert.True(t, errors.Is(err, ErrInvalidRecord))
}

func TestSQLiteStore_RecordAndList(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	for _, r := range sampleHistory() {
		require.NoError(t, store.RecordAttendance(ctx, r))
	}

	records, err := store.ListAttendance(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(records))
	assert.Equal(t, "CS301", records[0].SubjectCode)
	require.NotNil(t, records[0].Timestamp)
	assert.True(t, records[0].Timestamp.Equal(*ts("2023-11-15T09:05:00Z")))

	records, err = store.ListAttendance(ctx, Filter{Status: constants.StatusPresent, Query: "DATABASE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, ids(records))

	records, err = store.ListAttendance(ctx, Filter{Query: "2023-11-14"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(records))

	// primary key rejects a second write of the same record
	assert.Error(t, store.RecordAttendance(ctx, sampleHistory()[0]))
}

func TestRedisStore_RecordAndList(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(mr.Addr(), "")
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	// written out of order, read newest first
	history := sampleHistory()
	for _, i := range []int{3, 0, 4, 2, 1} {
		require.NoError(t, store.RecordAttendance(ctx, history[i]))
	}
	assert.True(t, mr.Exists("attendance:records"))

	records, err := store.ListAttendance(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(records))
	assert.Equal(t, "CS301", records[0].SubjectCode)
	require.NotNil(t, records[0].Timestamp)
	assert.True(t, records[0].Timestamp.Equal(*ts("2023-11-15T09:05:00Z")))
	assert.Nil(t, records[1].Timestamp)

	records, err = store.ListAttendance(ctx, Filter{Status: constants.StatusPresent, Query: "DATABASE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, ids(records))

	err = store.RecordAttendance(ctx, models.AttendanceRecord{ID: "6"})
	assert.True(t, errors.Is(err, ErrInvalidRecord))
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(mr.Addr(), "history")
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.RecordAttendance(ctx, sampleHistory()[0]))
	_, err := mr.Push("history", "not json")
	require.NoError(t, err)

	_, err = store.ListAttendance(ctx, Filter{})
	assert.ErrorContains(t, err, "failed to decode attendance record")
}

func TestRedisStore_PingUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(mr.Addr(), "")
	defer store.Close()
	mr.Close()

	assert.Error(t, store.Ping(context.Background()))
}

// Every backend must return exactly what Filter.Matches accepts, including for queries
// that carry SQL wildcard characters.
func TestBackends_FilterConsistency(t *testing.T) {
	ctx := context.Background()
	history := append(sampleHistory(), models.AttendanceRecord{
		ID: "6", Date: "2023-11-09", Status: constants.StatusPresent, Subject: "Lab_Work 100%", SubjectCode: "LAB_1",
	})

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	defer sqliteStore.Close()

	redisStore := NewRedisStore(miniredis.RunT(t).Addr(), "")
	defer redisStore.Close()

	backends := map[string]Repository{
		"file":   NewFileStore(filepath.Join(t.TempDir(), "attendance.json"), file.NewFileService(), zerolog.Nop()),
		"sqlite": sqliteStore,
		"redis":  redisStore,
	}
	for _, backend := range backends {
		for _, r := range history {
			require.NoError(t, backend.RecordAttendance(ctx, r))
		}
	}

	cases := []struct {
		filter Filter
		want   []string
	}{
		{Filter{Query: "%"}, []string{"6"}},
		{Filter{Query: "_"}, []string{"6"}},
		{Filter{Query: "C_302"}, []string{}},
		{Filter{Query: "lab_w"}, []string{"6"}},
		{Filter{Query: "100%"}, []string{"6"}},
		{Filter{Query: `\`}, []string{}},
		{Filter{Query: "2023-11-1_"}, []string{}},
		{Filter{Query: "cs30"}, []string{"1", "2", "3", "4"}},
		{Filter{Status: constants.StatusPresent, Query: "_"}, []string{"6"}},
		{Filter{Status: constants.StatusAbsent}, []string{"2", "5"}},
	}
	for _, tc := range cases {
		matched := []string{}
		for _, r := range history {
			if tc.filter.Matches(r) {
				matched = append(matched, r.ID)
			}
		}
		require.Equal(t, tc.want, matched, "Filter.Matches %+v", tc.filter)

		for name, backend := range backends {
			records, err := backend.ListAttendance(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(records), "%s %+v", name, tc.filter)
		}
	}
}
