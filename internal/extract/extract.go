// Package extract normalizes loosely structured report payloads into
// model.Metrics. The remote API nests the same fields at different depths and
// under different names depending on code path, so every leaf is read through
// an ordered list of alternate paths and falls back to a zero value.
package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/prospect-audit/internal/model"
)

// MaxMissingTerms caps the missing-term list; the true count is kept separately.
const MaxMissingTerms = 20

// envelopes are unwrapped in order before leaf fields are read.
var envelopes = []string{"data", "report"}

// Alternate paths per leaf, most specific first.
var (
	currentPaths    = []string{"wordCount.current", "wordCount.currentWordCount", "wordCount.mine", "currentWordCount", "word_count.current"}
	targetPaths     = []string{"wordCount.target", "wordCount.targetWordCount", "wordCount.recommended", "targetWordCount", "word_count.target"}
	averagePaths    = []string{"wordCount.average", "wordCount.avg", "wordCount.competitorAvg", "averageWordCount", "avgWordCount", "word_count.average"}
	pageScorePaths  = []string{"pageScore.pageScore", "pageScore.score", "pageScore", "popScore", "score"}
	competitorLists = []string{"competitors", "competitorUrls"}
	competitorCount = []string{"competitorCount", "competitorsCount", "numCompetitors"}
	tagCountPaths   = []string{"tagCounts", "tag_counts"}
	termPaths       = []string{"terms", "lsiTerms", "keywordTerms"}
	questionPaths   = []string{"relatedQuestions", "peopleAlsoAsk", "questions"}
	variationPaths  = []string{"variations", "keywordVariations", "variationTerms"}
	schemaPaths     = []string{"schemaTypes", "schemas", "schema"}

	tagNameKeys    = []string{"tagLabel", "tag", "name"}
	tagCurrentKeys = []string{"mine", "current", "count"}
	tagTargetKeys  = []string{"comp", "target", "competitorAvg"}
	termNameKeys   = []string{"phrase", "term.phrase", "term", "name", "keyword"}
	termCountKeys  = []string{"count", "current", "mine", "contentCount", "usage.current"}
	questionKeys   = []string{"question", "title", "text"}
	variationKeys  = []string{"phrase", "term", "name"}
	schemaKeys     = []string{"type", "@type", "name"}
)

// Metrics extracts normalized metrics from a report payload. It never fails:
// malformed or partial input degrades to zero values.
func Metrics(raw json.RawMessage) model.Metrics {
	root := Unwrap(gjson.ParseBytes(raw))

	m := model.Metrics{
		WordCountCurrent: firstInt(root, currentPaths...),
		WordCountTarget:  firstInt(root, targetPaths...),
		WordCountAverage: firstInt(root, averagePaths...),
		PageScore:        clamp(firstFloat(root, pageScorePaths...), 0, 100),
		CompetitorCount:  competitors(root),
		TagCounts:        tagCounts(root),
		RelatedQuestions: stringList(root, questionPaths, questionKeys),
		Variations:       stringList(root, variationPaths, variationKeys),
		SchemaTypes:      stringList(root, schemaPaths, schemaKeys),
	}
	m.MissingTerms, m.MissingTermsCount = missingTerms(root)
	return m
}

// Unwrap descends through the known envelope keys, keeping the current level
// when an envelope is absent.
func Unwrap(doc gjson.Result) gjson.Result {
	for _, key := range envelopes {
		if inner := doc.Get(key); inner.IsObject() {
			doc = inner
		}
	}
	return doc
}

func first(root gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := root.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func firstFloat(root gjson.Result, paths ...string) float64 {
	for _, p := range paths {
		if f, ok := number(root.Get(p)); ok {
			return f
		}
	}
	return 0
}

func firstInt(root gjson.Result, paths ...string) int {
	return int(math.Round(firstFloat(root, paths...)))
}

func firstArray(root gjson.Result, paths ...string) []gjson.Result {
	for _, p := range paths {
		if r := root.Get(p); r.IsArray() {
			return r.Array()
		}
	}
	return nil
}

func firstText(item gjson.Result, keys ...string) string {
	if item.Type == gjson.String {
		return strings.TrimSpace(item.Str)
	}
	for _, k := range keys {
		if r := item.Get(k); r.Type == gjson.String && strings.TrimSpace(r.Str) != "" {
			return strings.TrimSpace(r.Str)
		}
	}
	return ""
}

func competitors(root gjson.Result) int {
	if list := firstArray(root, competitorLists...); list != nil {
		return len(list)
	}
	return firstInt(root, competitorCount...)
}

func tagCounts(root gjson.Result) []model.TagCount {
	items := firstArray(root, tagCountPaths...)
	out := make([]model.TagCount, 0, len(items))
	for _, item := range items {
		tag := firstText(item, tagNameKeys...)
		if tag == "" {
			continue
		}
		out = append(out, model.TagCount{
			Tag:     tag,
			Current: firstInt(item, tagCurrentKeys...),
			Target:  firstInt(item, tagTargetKeys...),
		})
	}
	return out
}

// missingTerms lists terms whose recorded count is zero. A term with no
// count field at all counts as missing.
func missingTerms(root gjson.Result) ([]string, int) {
	missing := []string{}
	total := 0
	for _, item := range firstArray(root, termPaths...) {
		name := firstText(item, termNameKeys...)
		if name == "" {
			continue
		}
		if item.Type != gjson.String && firstFloat(item, termCountKeys...) > 0 {
			continue
		}
		total++
		if len(missing) < MaxMissingTerms {
			missing = append(missing, name)
		}
	}
	return missing, total
}

func stringList(root gjson.Result, paths, keys []string) []string {
	items := firstArray(root, paths...)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := firstText(item, keys...); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
