package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportBody = `{
	"wordCount": {"current": 420, "target": 1500, "avg": 1320},
	"pageScore": {"pageScore": 61.5},
	"competitors": [{"url": "a"}, {"url": "b"}, {"url": "c"}],
	"tagCounts": [
		{"tagLabel": "H2", "mine": 1, "comp": 6},
		{"tagLabel": "", "mine": 3}
	],
	"terms": [
		{"phrase": "drain cleaning", "count": 0},
		{"phrase": "water heater", "count": 4},
		{"term": {"phrase": "sewer line"}, "contentCount": 0},
		{"phrase": "leak detection"}
	],
	"relatedQuestions": ["how much does a plumber cost", {"question": "do plumbers fix water heaters"}],
	"variations": ["plumbers", {"phrase": "plumbing service"}],
	"schemaTypes": [{"@type": "LocalBusiness"}, "FAQPage"]
}`

func TestMetrics_FullReport(t *testing.T) {
	m := Metrics(json.RawMessage(reportBody))

	assert.Equal(t, 420, m.WordCountCurrent)
	assert.Equal(t, 1500, m.WordCountTarget)
	assert.Equal(t, 1320, m.WordCountAverage)
	assert.InDelta(t, 61.5, m.PageScore, 0.001)
	assert.Equal(t, 3, m.CompetitorCount)
	require.Len(t, m.TagCounts, 1)
	assert.Equal(t, "H2", m.TagCounts[0].Tag)
	assert.Equal(t, 1, m.TagCounts[0].Current)
	assert.Equal(t, 6, m.TagCounts[0].Target)
	assert.Equal(t, []string{"drain cleaning", "sewer line", "leak detection"}, m.MissingTerms)
	assert.Equal(t, 3, m.MissingTermsCount)
	assert.Equal(t, []string{"how much does a plumber cost", "do plumbers fix water heaters"}, m.RelatedQuestions)
	assert.Equal(t, []string{"plumbers", "plumbing service"}, m.Variations)
	assert.Equal(t, []string{"LocalBusiness", "FAQPage"}, m.SchemaTypes)
}

func TestMetrics_SameAcrossEnvelopes(t *testing.T) {
	flat := Metrics(json.RawMessage(reportBody))

	shapes := map[string]string{
		"data.report": `{"status":"SUCCESS","data":{"report":` + reportBody + `}}`,
		"report":      `{"status":"SUCCESS","value":100,"report":` + reportBody + `}`,
		"data":        `{"data":` + reportBody + `}`,
	}
	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, flat, Metrics(json.RawMessage(raw)))
		})
	}
}

func TestMetrics_EmptyAndMalformed(t *testing.T) {
	for _, raw := range []string{`{}`, ``, `null`, `not json`, `[1,2,3]`, `{"data":"oops","report":7}`} {
		t.Run(raw, func(t *testing.T) {
			m := Metrics(json.RawMessage(raw))
			assert.Zero(t, m.WordCountCurrent)
			assert.Zero(t, m.WordCountTarget)
			assert.Zero(t, m.WordCountAverage)
			assert.Zero(t, m.PageScore)
			assert.Zero(t, m.CompetitorCount)
			assert.Empty(t, m.TagCounts)
			assert.Empty(t, m.MissingTerms)
			assert.Zero(t, m.MissingTermsCount)
			assert.Empty(t, m.RelatedQuestions)
		})
	}
}

func TestMetrics_AlternateKeys(t *testing.T) {
	raw := `{"currentWordCount": "310", "targetWordCount": 900.4, "averageWordCount": 850,
		"popScore": 140, "competitorCount": 7}`
	m := Metrics(json.RawMessage(raw))

	assert.Equal(t, 310, m.WordCountCurrent)
	assert.Equal(t, 900, m.WordCountTarget)
	assert.Equal(t, 850, m.WordCountAverage)
	assert.InDelta(t, 100, m.PageScore, 0.001, "score is clamped to 100")
	assert.Equal(t, 7, m.CompetitorCount)
}

func TestMetrics_FirstPresentKeyWins(t *testing.T) {
	raw := `{"wordCount": {"average": 1000, "avg": 5}}`
	assert.Equal(t, 1000, Metrics(json.RawMessage(raw)).WordCountAverage)

	raw = `{"wordCount": {"average": null, "avg": 5}}`
	assert.Equal(t, 5, Metrics(json.RawMessage(raw)).WordCountAverage)
}

func TestMetrics_MissingTermsCapped(t *testing.T) {
	terms := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		terms = append(terms, fmt.Sprintf(`{"phrase":"term %d","count":0}`, i))
	}
	raw := `{"terms":[` + strings.Join(terms, ",") + `]}`

	m := Metrics(json.RawMessage(raw))
	assert.Len(t, m.MissingTerms, MaxMissingTerms)
	assert.Equal(t, 30, m.MissingTermsCount)
	assert.Equal(t, "term 0", m.MissingTerms[0])
}

func TestMetrics_TermWithoutCountIsMissing(t *testing.T) {
	raw := `{"terms":[{"phrase":"a","target":3},{"phrase":"b","count":2},{"phrase":"c","count":0}]}`

	m := Metrics(json.RawMessage(raw))
	assert.Equal(t, []string{"a", "c"}, m.MissingTerms)
	assert.Equal(t, 2, m.MissingTermsCount)
}

func TestPreparedTerms(t *testing.T) {
	raw := `{"status":"SUCCESS","data":{"prepareId":"p1","lsaPhrases":[{"phrase":"a"}],"variations":["b"]}}`
	p := PreparedTerms(json.RawMessage(raw))

	assert.Equal(t, "p1", p.PrepareID)
	assert.JSONEq(t, `[{"phrase":"a"}]`, string(p.LSIPhrases))
	assert.JSONEq(t, `["b"]`, string(p.Variations))
}

func TestPreparedTerms_Missing(t *testing.T) {
	p := PreparedTerms(json.RawMessage(`{"status":"SUCCESS"}`))
	assert.Empty(t, p.PrepareID)
	assert.Nil(t, p.LSIPhrases)
	assert.Nil(t, p.Variations)
}
