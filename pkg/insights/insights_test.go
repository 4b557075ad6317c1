package insights

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, config)
	resp, _ := args.Get(0).(*genai.GenerateContentResponse)
	return resp, args.Error(1)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestAnalyze_DecodesStructuredReport(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, "test-model", mock.Anything, mock.Anything).
		Return(textResponse(`{"is_valid":true,"detected_signatures":["Mentor","HOD"],"document_type":"Participation Certificate","summary":"Hackathon certificate signed by HOD."}`), nil)

	s := NewService(gen, "test-model", 0, zerolog.Nop())
	got := s.Analyze(context.Background(), []byte{0xff, 0xd8}, "image/png")

	assert.True(t, got.IsValid)
	assert.Equal(t, []string{"Mentor", "HOD"}, got.DetectedSignatures)
	assert.Equal(t, "Participation Certificate", got.DocumentType)

	require.Len(t, gen.Calls, 1)
	contents := gen.Calls[0].Arguments.Get(2).([]*genai.Content)
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, analysisPrompt, contents[0].Parts[0].Text)
	assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MIMEType)

	config := gen.Calls[0].Arguments.Get(3).(*genai.GenerateContentConfig)
	assert.Equal(t, "application/json", config.ResponseMIMEType)
	assert.ElementsMatch(t, []string{"is_valid", "detected_signatures", "document_type", "summary"}, config.ResponseSchema.Required)
}

func TestAnalyze_FallsBackOnFailure(t *testing.T) {
	cases := map[string]struct {
		resp *genai.GenerateContentResponse
		err  error
	}{
		"transport error": {nil, errors.New("503 unavailable")},
		"empty response":  {&genai.GenerateContentResponse{}, nil},
		"not json":        {textResponse("I think this is a certificate"), nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			gen := new(mockGenerator)
			gen.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tc.resp, tc.err)

			got := NewService(gen, "", 0, zerolog.Nop()).Analyze(context.Background(), []byte("x"), "")
			assert.Equal(t, FallbackAnalysis(), got)
			assert.NotNil(t, got.DetectedSignatures)
		})
	}
}

func TestAnalyze_NilGeneratorFallsBack(t *testing.T) {
	got := NewService(nil, "", 0, zerolog.Nop()).Analyze(context.Background(), []byte("x"), "image/jpeg")
	assert.Equal(t, FallbackAnalysis(), got)
}

func TestAdvise(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, DefaultModel, mock.Anything, (*genai.GenerateContentConfig)(nil)).
		Return(textResponse("1. Arrive early.\n2. Track your absences.\n3. Apply for OD passes on time."), nil)

	s := NewService(gen, "", 0, zerolog.Nop())
	assert.Equal(t, "1. Arrive early.\n2. Track your absences.\n3. Apply for OD passes on time.", s.Advise(context.Background(), 82.5))

	contents := gen.Calls[0].Arguments.Get(2).([]*genai.Content)
	assert.Equal(t, "My current attendance is 82.5%. Give me 3 short professional tips to maintain or improve it for my academic record.", contents[0].Parts[0].Text)
}

func TestAdvise_FallsBackOnFailure(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

	s := NewService(gen, "", 0, zerolog.Nop())
	assert.Equal(t, FallbackAdvice, s.Advise(context.Background(), 60))
	assert.Equal(t, FallbackAdvice, NewService(nil, "", 0, zerolog.Nop()).Advise(context.Background(), 60))
}
