package outreach

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-audit/internal/model"
	"github.com/sells-group/prospect-audit/pkg/anthropic"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*anthropic.MessageResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Model:   "claude-haiku-4-5-20251001",
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

var (
	biz    = &model.Business{ID: "biz-1", Name: "Acme Plumbing", Niche: "plumber", Location: "Austin TX"}
	result = &model.AuditResult{
		Keyword:   "plumber austin tx",
		TargetURL: "https://acme.com",
		Metrics: model.Metrics{
			WordCountCurrent:  200,
			WordCountTarget:   1000,
			PageScore:         41,
			MissingTerms:      []string{"drain cleaning", "water heater", "emergency", "leak", "repipe", "sewer"},
			MissingTermsCount: 17,
		},
		Score: model.Score{PriorityScore: 95, Tier: model.TierHot, Reasons: []string{"Severe content gap", "17 important terms missing from the page"}},
	}
)

func TestDraft(t *testing.T) {
	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			len(req.System) == 1 &&
			len(req.Messages) == 1 &&
			req.Messages[0].Role == "user"
	})).Return(textResponse("Subject: Acme's site is missing 17 terms\n\nHi there,\nQuick note."), nil)

	d, err := NewDrafter(llm, Config{}).Draft(context.Background(), biz, result)
	require.NoError(t, err)
	assert.Equal(t, "Acme's site is missing 17 terms", d.Subject)
	assert.Equal(t, "Hi there,\nQuick note.", d.Body)
	assert.Equal(t, "claude-haiku-4-5-20251001", d.Model)
	llm.AssertExpectations(t)
}

func TestDraft_NoSubjectLine(t *testing.T) {
	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("Just a body."), nil)

	d, err := NewDrafter(llm, Config{Model: "claude-sonnet-4-5-20250929"}).Draft(context.Background(), biz, result)
	require.NoError(t, err)
	assert.Empty(t, d.Subject)
	assert.Equal(t, "Just a body.", d.Body)
}

func TestDraft_EmptyResponse(t *testing.T) {
	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("Subject: only a subject"), nil)

	_, err := NewDrafter(llm, Config{}).Draft(context.Background(), biz, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty draft")
}

func TestDraft_LLMError(t *testing.T) {
	llm := &mockLLM{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	_, err := NewDrafter(llm, Config{}).Draft(context.Background(), biz, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestDraft_NilResult(t *testing.T) {
	_, err := NewDrafter(&mockLLM{}, Config{}).Draft(context.Background(), biz, nil)
	assert.Error(t, err)
}

func TestPrompt(t *testing.T) {
	p := Prompt(biz, result)
	assert.Contains(t, p, "Business: Acme Plumbing")
	assert.Contains(t, p, "Location: Austin TX")
	assert.Contains(t, p, "Page word count: 200 (top competitors target 1000)")
	assert.Contains(t, p, "Optimization score: 41/100")
	assert.Contains(t, p, "Missing important terms: 17 (e.g. drain cleaning, water heater, emergency, leak, repipe)")
	assert.NotContains(t, p, "sewer")
	assert.Contains(t, p, "Findings: Severe content gap; 17 important terms missing from the page")
}

func TestPrompt_SparseAudit(t *testing.T) {
	p := Prompt(nil, &model.AuditResult{Keyword: "business", TargetURL: "https://x.com"})
	assert.Contains(t, p, "Search phrase: business")
	assert.NotContains(t, p, "word count")
	assert.NotContains(t, p, "Missing")
}

func TestSplitDraft(t *testing.T) {
	s, b := splitDraft("  Subject:  Hello \n\n Body text  ")
	assert.Equal(t, "Hello", s)
	assert.Equal(t, "Body text", b)

	s, b = splitDraft("Subject: only")
	assert.Equal(t, "only", s)
	assert.Empty(t, b)
}
