package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/benmeehan/attendance-agent/internal/models"
	"github.com/benmeehan/attendance-agent/internal/telemetry"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-3-flash-preview"

	// FallbackAdvice is returned whenever the model cannot produce tips.
	FallbackAdvice = "Keep showing up consistently to maintain your academic performance!"

	analysisPrompt = "Analyze this document for an On-Duty (OD) pass application. Check if it contains signs of a Mentor, HOD, and if it's a participation certificate or a formal letter. Return a JSON report."
)

var errEmptyResponse = errors.New("model returned no text")

// FallbackAnalysis is the degraded report returned when a document cannot be analyzed.
func FallbackAnalysis() models.DocumentAnalysis {
	return models.DocumentAnalysis{
		IsValid:            false,
		DetectedSignatures: []string{},
		DocumentType:       "Unknown",
		Summary:            "Could not analyze document at this time.",
	}
}

// ContentGenerator is the subset of the genai models API used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// DocumentAnalyzer reports on an uploaded OD pass document. It never fails.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) models.DocumentAnalysis
}

// AttendanceAdvisor turns an attendance percentage into short advice. It never fails.
type AttendanceAdvisor interface {
	Advise(ctx context.Context, percentage float64) string
}

// NewGeminiGenerator creates a genai client for the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey string) (ContentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client.Models, nil
}

// Service implements DocumentAnalyzer and AttendanceAdvisor on top of a ContentGenerator.
// A nil generator answers every call with the fallback.
type Service struct {
	generator ContentGenerator
	model     string
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewService returns a Service. Zero model and timeout take defaults.
func NewService(generator ContentGenerator, model string, timeout time.Duration, logger zerolog.Logger) *Service {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{generator: generator, model: model, timeout: timeout, logger: logger}
}

// Analyze asks the model for a structured report on image.
func (s *Service) Analyze(ctx context.Context, image []byte, mimeType string) models.DocumentAnalysis {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: analysisPrompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	}

	text, err := s.generate(ctx, contents, config)
	if err != nil {
		return s.fallbackAnalysis(err)
	}

	var analysis models.DocumentAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return s.fallbackAnalysis(fmt.Errorf("decode analysis: %w", err))
	}
	if analysis.DetectedSignatures == nil {
		analysis.DetectedSignatures = []string{}
	}
	return analysis
}

// Advise asks the model for tips on keeping attendance up.
func (s *Service) Advise(ctx context.Context, percentage float64) string {
	prompt := "My current attendance is " + strconv.FormatFloat(percentage, 'f', -1, 64) +
		"%. Give me 3 short professional tips to maintain or improve it for my academic record."

	text, err := s.generate(ctx, genai.Text(prompt), nil)
	if err != nil {
		telemetry.AIFallbacks.WithLabelValues("advice").Inc()
		s.logger.Warn().Err(err).Msg("Attendance advice unavailable, using fallback")
		return FallbackAdvice
	}
	return text
}

func (s *Service) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	if s.generator == nil {
		return "", errors.New("ai is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.generator.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return "", err
	}
	text := responseText(resp)
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

func (s *Service) fallbackAnalysis(err error) models.DocumentAnalysis {
	telemetry.AIFallbacks.WithLabelValues("analysis").Inc()
	s.logger.Warn().Err(err).Msg("Document analysis failed, using fallback")
	return FallbackAnalysis()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"is_valid": {Type: genai.TypeBoolean},
			"detected_signatures": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"document_type": {Type: genai.TypeString},
			"summary":       {Type: genai.TypeString},
		},
		Required: []string{"is_valid", "detected_signatures", "document_type", "summary"},
	}
}
