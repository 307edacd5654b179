// Package outreach turns a completed audit into a cold-email draft.
package outreach

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-audit/internal/model"
	"github.com/sells-group/prospect-audit/pkg/anthropic"
)

const systemPrompt = `You write short, specific cold emails for an SEO agency.
Use only the audit facts provided. No placeholders, no invented statistics.
Reply with the subject on the first line prefixed by "Subject: ", a blank
line, then a plain-text body of at most 150 words.`

// Draft is a generated email.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Model   string `json:"model"`
}

// Config controls generation.
type Config struct {
	Model     string
	MaxTokens int64
}

// Drafter generates outreach drafts with an LLM.
type Drafter struct {
	client anthropic.Client
	cfg    Config
}

// NewDrafter creates a Drafter.
func NewDrafter(client anthropic.Client, cfg Config) *Drafter {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	return &Drafter{client: client, cfg: cfg}
}

// Draft writes an email for biz from result.
func (d *Drafter) Draft(ctx context.Context, biz *model.Business, result *model.AuditResult) (*Draft, error) {
	if result == nil {
		return nil, eris.New("outreach: audit result is required")
	}

	resp, err := d.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     d.cfg.Model,
		MaxTokens: d.cfg.MaxTokens,
		System: []anthropic.SystemBlock{
			{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{{Role: "user", Content: Prompt(biz, result)}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "outreach: generate draft")
	}
	resp.Usage.LogCost(d.cfg.Model, "outreach")

	subject, body := splitDraft(resp.Text())
	if body == "" {
		return nil, eris.New("outreach: model returned an empty draft")
	}
	return &Draft{Subject: subject, Body: body, Model: resp.Model}, nil
}

// Prompt renders the audit facts the model may use.
func Prompt(biz *model.Business, result *model.AuditResult) string {
	var b strings.Builder
	if biz != nil {
		fmt.Fprintf(&b, "Business: %s\n", biz.Name)
		if biz.Niche != "" {
			fmt.Fprintf(&b, "Niche: %s\n", biz.Niche)
		}
		if biz.Location != "" {
			fmt.Fprintf(&b, "Location: %s\n", biz.Location)
		}
	}
	m := result.Metrics
	fmt.Fprintf(&b, "Website: %s\n", result.TargetURL)
	fmt.Fprintf(&b, "Search phrase: %s\n", result.Keyword)
	if m.WordCountTarget > 0 {
		fmt.Fprintf(&b, "Page word count: %d (top competitors target %d)\n", m.WordCountCurrent, m.WordCountTarget)
	}
	if m.PageScore > 0 {
		fmt.Fprintf(&b, "Optimization score: %.0f/100\n", m.PageScore)
	}
	if m.MissingTermsCount > 0 {
		shown := m.MissingTerms
		if len(shown) > 5 {
			shown = shown[:5]
		}
		fmt.Fprintf(&b, "Missing important terms: %d (e.g. %s)\n", m.MissingTermsCount, strings.Join(shown, ", "))
	}
	if len(result.Score.Reasons) > 0 {
		fmt.Fprintf(&b, "Findings: %s\n", strings.Join(result.Score.Reasons, "; "))
	}
	return b.String()
}

// splitDraft separates a leading "Subject:" line from the body.
func splitDraft(text string) (subject, body string) {
	text = strings.TrimSpace(text)
	first, rest, found := strings.Cut(text, "\n")
	if s, ok := strings.CutPrefix(strings.TrimSpace(first), "Subject:"); ok {
		if !found {
			rest = ""
		}
		return strings.TrimSpace(s), strings.TrimSpace(rest)
	}
	return "", text
}
