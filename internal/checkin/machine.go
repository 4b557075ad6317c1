package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/attendance-agent/internal/attendance"
	"github.com/benmeehan/attendance-agent/internal/constants"
	"github.com/benmeehan/attendance-agent/internal/models"
	"github.com/benmeehan/attendance-agent/internal/telemetry"
	"github.com/benmeehan/attendance-agent/pkg/geo"
	"github.com/benmeehan/attendance-agent/pkg/location"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrCommitRejected is returned when Commit is called outside RangeResult{within range}.
	ErrCommitRejected = errors.New("commit rejected")
	// ErrInvalidTransition is returned when an action is not legal in the current phase.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("check-in machine is closed")
)

// Option customizes a Machine.
type Option func(*Machine)

// WithVerifyTimeout bounds every provider call. Defaults to constants.DefaultVerifyTimeout.
func WithVerifyTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDGenerator replaces the uuid generator used for attempts and records.
func WithIDGenerator(newID func() string) Option {
	return func(m *Machine) { m.newID = newID }
}

// Machine drives one check-in session: verify location against the anchor, then commit
// a Present record. A new verification supersedes any in-flight one; results that arrive
// for a superseded request are dropped.
type Machine struct {
	provider location.Provider
	store    attendance.Store
	anchor   geo.Anchor
	session  Session
	timeout  time.Duration
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.Mutex
	phase      Phase
	attempt    *Attempt
	failure    location.FailureKind
	failureErr error
	generation uint64
	cancel     context.CancelFunc
	settled    chan struct{}
	closed     bool
}

// NewMachine returns an Idle machine. The anchor must be valid.
func NewMachine(provider location.Provider, store attendance.Store, anchor geo.Anchor, session Session, logger zerolog.Logger, opts ...Option) (*Machine, error) {
	if provider == nil {
		return nil, errors.New("position provider is required")
	}
	if store == nil {
		return nil, errors.New("attendance store is required")
	}
	if err := anchor.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		provider: provider,
		store:    store,
		anchor:   anchor,
		session:  session,
		timeout:  constants.DefaultVerifyTimeout,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
		phase:    Idle,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.baseCtx, m.baseCancel = context.WithCancel(context.Background())
	return m, nil
}

// StartVerification dispatches a fresh high-accuracy position request. It is legal in
// every phase except Committed.
func (m *Machine) StartVerification(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUsableLocked(ctx); err != nil {
		return err
	}
	if m.phase == Committed {
		return fmt.Errorf("%w: session already committed", ErrInvalidTransition)
	}
	m.dispatchLocked()
	return nil
}

// Retry re-requests the position after a provider failure.
func (m *Machine) Retry(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUsableLocked(ctx); err != nil {
		return err
	}
	if m.phase != ProviderFailed {
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, m.phase)
	}
	m.dispatchLocked()
	return nil
}

// Reverify re-checks the position after a range result.
func (m *Machine) Reverify(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUsableLocked(ctx); err != nil {
		return err
	}
	if m.phase != RangeResult {
		return fmt.Errorf("%w: reverify from %s", ErrInvalidTransition, m.phase)
	}
	m.dispatchLocked()
	return nil
}

// Commit writes exactly one Present record for the current attempt and moves to
// Committed. A store failure leaves the machine in RangeResult.
func (m *Machine) Commit(ctx context.Context) (models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return models.AttendanceRecord{}, ErrClosed
	}
	if !m.snapshotLocked().CanCommit() {
		telemetry.Commits.WithLabelValues("rejected").Inc()
		m.logger.Warn().Str("phase", string(m.phase)).Msg("Commit rejected")
		return models.AttendanceRecord{}, fmt.Errorf("%w: phase %s", ErrCommitRejected, m.phase)
	}

	now := m.now()
	lat, lng := m.attempt.Coordinate.Latitude, m.attempt.Coordinate.Longitude
	record := models.AttendanceRecord{
		ID:             m.newID(),
		Date:           now.Format(constants.DateLayout),
		Subject:        m.session.Subject,
		SubjectCode:    m.session.SubjectCode,
		RollNo:         m.session.RollNo,
		Status:         constants.StatusPresent,
		Timestamp:      &now,
		DistanceMeters: m.attempt.DistanceMeters,
		Latitude:       &lat,
		Longitude:      &lng,
	}

	if err := m.store.RecordAttendance(ctx, record); err != nil {
		telemetry.Commits.WithLabelValues("store_error").Inc()
		m.logger.Error().Err(err).Str("attempt_id", m.attempt.ID).Msg("Failed to record attendance")
		return models.AttendanceRecord{}, fmt.Errorf("record attendance: %w", err)
	}

	committed := *m.attempt
	committed.Committed = true
	committed.RecordID = record.ID
	m.attempt = &committed
	m.phase = Committed

	telemetry.Commits.WithLabelValues("ok").Inc()
	m.logger.Info().
		Str("attempt_id", committed.ID).
		Str("record_id", record.ID).
		Str("subject_code", record.SubjectCode).
		Msg("Attendance committed")
	return record, nil
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Wait blocks until no verification is in flight and returns the settled state.
func (m *Machine) Wait(ctx context.Context) (State, error) {
	for {
		m.mu.Lock()
		if m.closed {
			s := m.snapshotLocked()
			m.mu.Unlock()
			return s, ErrClosed
		}
		if m.phase != Verifying {
			s := m.snapshotLocked()
			m.mu.Unlock()
			return s, nil
		}
		settled := m.settled
		m.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			return m.Snapshot(), ctx.Err()
		}
	}
}

// Close cancels any in-flight verification and waits for it to return.
func (m *Machine) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.generation++
	m.settleLocked()
	m.mu.Unlock()

	m.baseCancel()
	m.wg.Wait()
	return nil
}

func (m *Machine) checkUsableLocked(ctx context.Context) error {
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (m *Machine) dispatchLocked() {
	if m.cancel != nil {
		m.cancel()
	}
	m.settleLocked()

	m.generation++
	gen := m.generation
	m.attempt = &Attempt{ID: m.newID(), RequestedAt: m.now()}
	m.phase = Verifying
	m.failure = ""
	m.failureErr = nil

	ctx, cancel := context.WithTimeout(m.baseCtx, m.timeout)
	settled := make(chan struct{})
	m.cancel = cancel
	m.settled = settled

	m.logger.Debug().
		Str("attempt_id", m.attempt.ID).
		Uint64("generation", gen).
		Msg("Dispatching position request")

	m.wg.Add(1)
	go m.resolve(ctx, cancel, gen)
}

// settleLocked releases everyone waiting on the current request.
func (m *Machine) settleLocked() {
	if m.settled != nil {
		close(m.settled)
		m.settled = nil
	}
}

func (m *Machine) resolve(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer m.wg.Done()
	defer cancel()

	start := time.Now()
	coord, err := m.provider.RequestPosition(ctx, location.Options{HighAccuracy: true})
	telemetry.ProviderLatency.Observe(time.Since(start).Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		telemetry.Superseded.Inc()
		m.logger.Debug().Uint64("generation", gen).Msg("Discarding superseded position result")
		return
	}
	defer m.settleLocked()
	m.cancel = nil

	if err != nil {
		kind := location.KindOf(err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = location.Timeout
		}
		m.phase = ProviderFailed
		m.failure = kind
		m.failureErr = err
		telemetry.Verifications.WithLabelValues(string(kind)).Inc()
		m.logger.Warn().Err(err).Str("kind", string(kind)).Str("attempt_id", m.attempt.ID).Msg("Position request failed")
		return
	}

	distance, within := m.anchor.Contains(coord.Point())
	resolved := *m.attempt
	resolved.Coordinate = &coord
	resolved.DistanceMeters = &distance
	resolved.WithinRange = &within
	m.attempt = &resolved
	m.phase = RangeResult

	outcome := "out_of_range"
	if within {
		outcome = "in_range"
	}
	telemetry.Verifications.WithLabelValues(outcome).Inc()
	telemetry.Distance.Observe(distance)
	m.logger.Info().
		Str("attempt_id", resolved.ID).
		Str("anchor", m.anchor.Name).
		Float64("distance_m", distance).
		Bool("within_range", within).
		Msg("Location verified")
}

func (m *Machine) snapshotLocked() State {
	s := State{Phase: m.phase, Session: m.session}
	if m.attempt != nil {
		a := *m.attempt
		s.Attempt = &a
	}
	if m.phase == ProviderFailed {
		s.Failure = m.failure
		if m.failureErr != nil {
			s.Error = m.failureErr.Error()
		}
	}
	return s
}
