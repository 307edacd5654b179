package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-audit/internal/model"
)

const savedReport = `{"status":"SUCCESS","data":{"report":{
	"wordCount": {"current": 420, "target": 1500, "avg": 1320},
	"pageScore": {"pageScore": 61.5},
	"terms": [{"phrase": "drain cleaning", "count": 0}, {"phrase": "water heater", "count": 4}]
}}}`

func TestScorePayload(t *testing.T) {
	out := scorePayload(json.RawMessage(savedReport))

	assert.Equal(t, 420, out.Metrics.WordCountCurrent)
	assert.Equal(t, 1500, out.Metrics.WordCountTarget)
	assert.Equal(t, []string{"drain cleaning"}, out.Metrics.MissingTerms)
	assert.Equal(t, 80, out.Score.PriorityScore)
	assert.Equal(t, model.TierHot, out.Score.Tier)
}

func TestScoreCmd_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(savedReport), 0o600))

	var buf bytes.Buffer
	scoreCmd.SetOut(&buf)
	defer scoreCmd.SetOut(nil)

	require.NoError(t, scoreCmd.RunE(scoreCmd, []string{path}))

	var out scoreOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, model.TierHot, out.Score.Tier)
	assert.InDelta(t, 61.5, out.Metrics.PageScore, 0.001)
}

func TestReadPayload_Stdin(t *testing.T) {
	raw, err := readPayload(strings.NewReader(`{"wordCount":{"current":1}}`), "-")
	require.NoError(t, err)
	assert.JSONEq(t, `{"wordCount":{"current":1}}`, string(raw))
}

func TestReadPayload_Errors(t *testing.T) {
	_, err := readPayload(strings.NewReader("not json"), "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")

	_, err = readPayload(nil, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read payload")
}
