package odpass

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benmeehan/attendance-agent/internal/constants"
	"github.com/benmeehan/attendance-agent/internal/models"
	"github.com/benmeehan/attendance-agent/internal/telemetry"
	"github.com/benmeehan/attendance-agent/internal/utils"
	"github.com/benmeehan/attendance-agent/pkg/insights"
	"github.com/benmeehan/attendance-agent/pkg/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTitle names a pass when neither the applicant nor the analysis provides one.
const DefaultTitle = "New Event Participation"

var (
	ErrPassNotFound      = errors.New("od pass not found")
	ErrInvalidTransition = errors.New("od pass is not pending")
	ErrNoDocuments       = errors.New("at least one document is required")
)

// Document is one uploaded supporting file.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Service runs the OD pass workflow: submit with documents, then approve or reject.
type Service struct {
	repo     Repository
	analyzer insights.DocumentAnalyzer
	storage  s3.ObjectStorageClient
	pool     *utils.WorkerPool
	logger   zerolog.Logger
	now      func() time.Time

	// serializes status transitions
	mu sync.Mutex
}

// NewService wires the workflow. storage may be nil, in which case only the document
// names are kept on the pass.
func NewService(repo Repository, analyzer insights.DocumentAnalyzer, storage s3.ObjectStorageClient, pool *utils.WorkerPool, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		analyzer: analyzer,
		storage:  storage,
		pool:     pool,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit analyses and stores every document concurrently, then saves a Pending pass.
// An empty title takes the first detected document type. If any document fails, the
// ones already uploaded are removed again.
func (s *Service) Submit(ctx context.Context, title string, docs []Document) (models.ODPass, error) {
	if len(docs) == 0 {
		return models.ODPass{}, ErrNoDocuments
	}

	id := "OD-" + strings.ToUpper(uuid.NewString()[:8])
	analyses := make([]models.DocumentAnalysis, len(docs))
	links := make([]string, len(docs))
	objects := make([]string, len(docs))
	errs := make([]error, len(docs))

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		err := s.pool.Submit(ctx, func() {
			defer wg.Done()
			analyses[i] = s.analyzer.Analyze(ctx, doc.Data, doc.ContentType)
			objects[i], links[i], errs[i] = s.store(ctx, id, i, doc)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
			break
		}
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		s.logger.Error().Err(err).Str("pass_id", id).Msg("Failed to process OD pass documents")
		s.removeUploaded(ctx, id, objects)
		return models.ODPass{}, err
	}

	now := s.now()
	pass := models.ODPass{
		ID:        id,
		Title:     passTitle(title, analyses),
		Status:    constants.PassPending,
		Date:      now.Format(constants.DateLayout),
		Documents: links,
		Analyses:  analyses,
		CreatedAt: now,
	}
	if err := s.repo.Save(ctx, pass); err != nil {
		s.removeUploaded(ctx, id, objects)
		return models.ODPass{}, err
	}

	telemetry.ODPassTransitions.WithLabelValues(constants.PassPending).Inc()
	s.logger.Info().Str("pass_id", id).Str("title", pass.Title).Int("documents", len(docs)).Msg("OD pass submitted")
	return pass, nil
}

// Approve marks a pending pass approved by mentor.
func (s *Service) Approve(ctx context.Context, id, mentor string) (models.ODPass, error) {
	return s.transition(ctx, id, func(pass *models.ODPass) {
		pass.Status = constants.PassApproved
		pass.MentorName = mentor
		pass.ApprovalDate = s.now().Format(constants.DateLayout)
	})
}

// Reject marks a pending pass rejected.
func (s *Service) Reject(ctx context.Context, id string) (models.ODPass, error) {
	return s.transition(ctx, id, func(pass *models.ODPass) {
		pass.Status = constants.PassRejected
	})
}

// Get returns a single pass.
func (s *Service) Get(ctx context.Context, id string) (models.ODPass, error) {
	return s.repo.Get(ctx, id)
}

// List returns every pass, newest first.
func (s *Service) List(ctx context.Context) ([]models.ODPass, error) {
	return s.repo.List(ctx)
}

func (s *Service) transition(ctx context.Context, id string, apply func(*models.ODPass)) (models.ODPass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pass, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.ODPass{}, err
	}
	if pass.Status != constants.PassPending {
		return models.ODPass{}, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, pass.Status)
	}

	apply(&pass)
	if err := s.repo.Save(ctx, pass); err != nil {
		return models.ODPass{}, err
	}

	telemetry.ODPassTransitions.WithLabelValues(pass.Status).Inc()
	s.logger.Info().Str("pass_id", id).Str("status", pass.Status).Msg("OD pass status changed")
	return pass, nil
}

// store uploads doc and returns the object name (empty when nothing was uploaded) and
// the link kept on the pass.
func (s *Service) store(ctx context.Context, id string, i int, doc Document) (string, string, error) {
	name := filepath.Base(doc.Name)
	if name == "." || name == "/" || name == "" {
		name = fmt.Sprintf("document-%d", i+1)
	}
	if s.storage == nil {
		return "", name, nil
	}
	object := id + "/" + name
	link, err := s.storage.Upload(ctx, object, doc.Data, doc.ContentType)
	if err != nil {
		return "", "", err
	}
	return object, link, nil
}

func (s *Service) removeUploaded(ctx context.Context, id string, objects []string) {
	// the submission may have failed because ctx ended
	ctx = context.WithoutCancel(ctx)
	for _, object := range objects {
		if object == "" {
			continue
		}
		if err := s.storage.Remove(ctx, object); err != nil {
			s.logger.Warn().Err(err).Str("pass_id", id).Str("object", object).Msg("Failed to remove orphaned OD pass document")
		}
	}
}

func passTitle(title string, analyses []models.DocumentAnalysis) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	for _, a := range analyses {
		if dt := strings.TrimSpace(a.DocumentType); dt != "" && dt != "Unknown" {
			return dt
		}
	}
	return DefaultTitle
}
