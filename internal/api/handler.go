package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/benmeehan/attendance-agent/internal/attendance"
	"github.com/benmeehan/attendance-agent/internal/checkin"
	"github.com/benmeehan/attendance-agent/internal/odpass"
	"github.com/benmeehan/attendance-agent/pkg/geo"
	"github.com/benmeehan/attendance-agent/pkg/insights"
	"github.com/benmeehan/attendance-agent/pkg/location"
	"github.com/benmeehan/attendance-agent/pkg/profile"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxDocumentSize caps a single uploaded document.
const maxDocumentSize = 10 << 20

// MachineFactory builds the check-in machine for a new session.
type MachineFactory func(session checkin.Session) (*checkin.Machine, error)

// Dependencies are the collaborators the handlers call into.
type Dependencies struct {
	NewMachine     MachineFactory
	DefaultSession checkin.Session
	Anchor         geo.Anchor
	History        attendance.HistoryQuery
	Advisor        insights.AttendanceAdvisor
	Analyzer       insights.DocumentAnalyzer
	Passes         *odpass.Service
	Profile        profile.ProfileStore
}

// Handler serves the REST API. It owns the check-in machine of the current session.
type Handler struct {
	deps   Dependencies
	logger zerolog.Logger

	mu      sync.Mutex
	machine *checkin.Machine
}

// NewHandler opens the default session.
func NewHandler(deps Dependencies, logger zerolog.Logger) (*Handler, error) {
	machine, err := deps.NewMachine(deps.DefaultSession)
	if err != nil {
		return nil, err
	}
	return &Handler{deps: deps, logger: logger, machine: machine}, nil
}

// Close shuts the current session's machine down.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.machine.Close()
}

// Snapshot returns the state of the current session.
func (h *Handler) Snapshot() checkin.State {
	return h.current().Snapshot()
}

func (h *Handler) current() *checkin.Machine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.machine
}

type checkinView struct {
	State          checkin.Phase        `json:"state"`
	Session        checkin.Session      `json:"session"`
	Attempt        *checkin.Attempt     `json:"attempt,omitempty"`
	WithinRange    *bool                `json:"within_range,omitempty"`
	DistanceMeters *float64             `json:"distance_meters,omitempty"`
	CanCommit      bool                 `json:"can_commit"`
	Failure        location.FailureKind `json:"failure,omitempty"`
	Error          string               `json:"error,omitempty"`
	Anchor         geo.Anchor           `json:"anchor"`
}

func (h *Handler) view(s checkin.State) checkinView {
	v := checkinView{
		State:     s.Phase,
		Session:   s.Session,
		Attempt:   s.Attempt,
		CanCommit: s.CanCommit(),
		Failure:   s.Failure,
		Error:     s.Error,
		Anchor:    h.deps.Anchor,
	}
	if s.Attempt != nil {
		v.WithinRange = s.Attempt.WithinRange
		v.DistanceMeters = s.Attempt.DistanceMeters
	}
	return v
}

func (h *Handler) getCheckin(c *gin.Context) {
	c.JSON(http.StatusOK, h.view(h.current().Snapshot()))
}

func (h *Handler) newSession(c *gin.Context) {
	var req struct {
		Subject     string `json:"subject" binding:"required"`
		SubjectCode string `json:"subject_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := checkin.Session{Subject: req.Subject, SubjectCode: req.SubjectCode}
	machine, err := h.deps.NewMachine(session)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to open check-in session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	previous := h.machine
	h.machine = machine
	h.mu.Unlock()
	_ = previous.Close()

	h.logger.Info().Str("subject_code", session.SubjectCode).Msg("Check-in session opened")
	c.JSON(http.StatusCreated, h.view(machine.Snapshot()))
}

// dispatch runs one of the verification actions and, with ?wait=1, blocks until it settles.
func (h *Handler) dispatch(action func(*checkin.Machine, *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		machine := h.current()
		if err := action(machine, c); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "checkin": h.view(machine.Snapshot())})
			return
		}

		if c.Query("wait") == "" || c.Query("wait") == "0" {
			c.JSON(http.StatusAccepted, h.view(machine.Snapshot()))
			return
		}
		state, err := machine.Wait(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "checkin": h.view(state)})
			return
		}
		c.JSON(http.StatusOK, h.view(state))
	}
}

func (h *Handler) commit(c *gin.Context) {
	machine := h.current()
	record, err := machine.Commit(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "checkin": h.view(machine.Snapshot())})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": record, "checkin": h.view(machine.Snapshot())})
}

func (h *Handler) listAttendance(c *gin.Context) {
	records, err := h.deps.History.ListAttendance(c.Request.Context(), attendance.Filter{
		Status: c.Query("status"),
		Query:  c.Query("q"),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list attendance")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) attendanceSummary(c *gin.Context) {
	records, err := h.deps.History.ListAttendance(c.Request.Context(), attendance.Filter{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, attendance.Summarize(records))
}

func (h *Handler) attendanceInsights(c *gin.Context) {
	records, err := h.deps.History.ListAttendance(c.Request.Context(), attendance.Filter{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	summary := attendance.Summarize(records)
	advice := h.deps.Advisor.Advise(c.Request.Context(), summary.Percentage)
	c.JSON(http.StatusOK, gin.H{"percentage": summary.Percentage, "advice": advice})
}

func (h *Handler) listPasses(c *gin.Context) {
	passes, err := h.deps.Passes.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"passes": passes})
}

func (h *Handler) submitPass(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	docs := make([]odpass.Document, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		doc, err := readDocument(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		docs = append(docs, doc)
	}

	pass, err := h.deps.Passes.Submit(c.Request.Context(), c.PostForm("title"), docs)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, pass)
}

func (h *Handler) approvePass(c *gin.Context) {
	var req struct {
		MentorName string `json:"mentor_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pass, err := h.deps.Passes.Approve(c.Request.Context(), c.Param("id"), req.MentorName)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, pass)
}

func (h *Handler) rejectPass(c *gin.Context) {
	pass, err := h.deps.Passes.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, pass)
}

func (h *Handler) analyzeDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := readDocument(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.deps.Analyzer.Analyze(c.Request.Context(), doc.Data, doc.ContentType))
}

func (h *Handler) getProfile(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Profile.Get())
}

func (h *Handler) updateProfile(c *gin.Context) {
	var changes profile.StudentProfile
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.deps.Profile.Update(changes)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to update profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func readDocument(fh *multipart.FileHeader) (odpass.Document, error) {
	if fh.Size > maxDocumentSize {
		return odpass.Document{}, errors.New(fh.Filename + " exceeds the 10MB limit")
	}
	f, err := fh.Open()
	if err != nil {
		return odpass.Document{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxDocumentSize))
	if err != nil {
		return odpass.Document{}, err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return odpass.Document{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, checkin.ErrCommitRejected),
		errors.Is(err, checkin.ErrInvalidTransition),
		errors.Is(err, odpass.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, odpass.ErrPassNotFound):
		return http.StatusNotFound
	case errors.Is(err, odpass.ErrNoDocuments):
		return http.StatusBadRequest
	case errors.Is(err, checkin.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
