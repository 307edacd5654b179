package extract

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Prepared is what the term-discovery step hands to report generation.
type Prepared struct {
	PrepareID  string
	LSIPhrases json.RawMessage
	Variations json.RawMessage
}

// PreparedTerms reads the term-discovery result. PrepareID is empty when the
// payload does not carry one; the list fields are omitted when absent.
func PreparedTerms(raw json.RawMessage) Prepared {
	root := Unwrap(gjson.ParseBytes(raw))

	p := Prepared{}
	if r := first(root, "prepareId", "prepare_id"); r.Exists() {
		p.PrepareID = r.String()
	}
	if r := first(root, "lsaPhrases", "lsiPhrases", "lsi_phrases"); r.IsArray() {
		p.LSIPhrases = json.RawMessage(r.Raw)
	}
	if r := first(root, "variations", "keywordVariations"); r.IsArray() {
		p.Variations = json.RawMessage(r.Raw)
	}
	return p
}
