package audit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/prospect-audit/internal/model"
)

const fallbackKeyword = "business"

// Keyword builds the search phrase for b: niche plus location, then business
// name, then a literal fallback. A niche without a location is not used on
// its own.
func Keyword(b *model.Business) string {
	niche := strings.TrimSpace(b.Niche)
	location := strings.TrimSpace(b.Location)

	var kw string
	switch {
	case niche != "" && location != "":
		kw = niche + " " + location
	case strings.TrimSpace(b.Name) != "":
		kw = b.Name
	default:
		return fallbackKeyword
	}
	// Casers are stateful; build one per call.
	return cases.Lower(language.English).String(strings.Join(strings.Fields(kw), " "))
}

// NormalizeURL adds an https scheme when raw has none. Empty input stays
// empty.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return u
	}
	return "https://" + strings.TrimPrefix(u, "//")
}
