package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-audit/internal/extract"
	"github.com/sells-group/prospect-audit/internal/model"
	"github.com/sells-group/prospect-audit/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score <report.json>",
	Short: "Extract metrics and score a saved report payload",
	Long: `Score a report payload saved from the create-report step without
calling the remote API. Pass "-" to read the payload from stdin.

Examples:
  score testdata/report.json
  cat report.json | score -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readPayload(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), scorePayload(raw))
	},
}

type scoreOutput struct {
	Metrics model.Metrics `json:"metrics"`
	Score   model.Score   `json:"score"`
}

func scorePayload(raw json.RawMessage) scoreOutput {
	m := extract.Metrics(raw)
	return scoreOutput{Metrics: m, Score: scoring.Score(m)}
}

func readPayload(stdin io.Reader, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read payload %s", path)
	}
	if !json.Valid(data) {
		return nil, eris.Errorf("payload %s is not valid JSON", path)
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
