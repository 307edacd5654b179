package main

import (
	"encoding/json"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-audit/internal/model"
	"github.com/sells-group/prospect-audit/internal/outreach"
)

var auditDraft bool

var auditCmd = &cobra.Command{
	Use:   "audit <business-id>",
	Short: "Run one audit synchronously and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAuditEnv(ctx, "audit")
		if err != nil {
			return err
		}
		defer env.Close()

		businessID := args[0]
		log := zap.L().With(zap.String("business_id", businessID))

		result, err := env.Pipeline.Run(ctx, businessID, func(msg string) {
			log.Info("audit progress", zap.String("stage", msg))
		})
		if err != nil {
			return eris.Wrapf(err, "audit %s", businessID)
		}

		out := auditOutput{BusinessID: businessID, Result: result}
		if auditDraft {
			if env.Drafter == nil {
				return eris.New("--draft requires an Anthropic key (AUDIT_ANTHROPIC_KEY)")
			}
			biz, err := env.Store.GetBusiness(ctx, businessID)
			if err != nil {
				return eris.Wrap(err, "load business for draft")
			}
			if out.Draft, err = env.Drafter.Draft(ctx, biz, result); err != nil {
				return eris.Wrap(err, "draft outreach")
			}
		}

		return writeJSON(cmd.OutOrStdout(), out)
	},
}

type auditOutput struct {
	BusinessID string             `json:"business_id"`
	Result     *model.AuditResult `json:"result"`
	Draft      *outreach.Draft    `json:"draft,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

func init() {
	auditCmd.Flags().BoolVar(&auditDraft, "draft", false, "also generate an outreach email draft")
	rootCmd.AddCommand(auditCmd)
}
