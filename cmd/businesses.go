package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-audit/internal/model"
	"github.com/sells-group/prospect-audit/internal/store"
)

var businessesCmd = &cobra.Command{
	Use:   "businesses",
	Short: "Inspect prospect businesses and their latest audit",
}

// -- businesses list --

var businessesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List businesses ordered by priority score",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tier, _ := cmd.Flags().GetString("tier")
		unaudited, _ := cmd.Flags().GetBool("unaudited")
		limit, _ := cmd.Flags().GetInt("limit")

		businesses, err := st.ListBusinesses(ctx, store.BusinessFilter{
			Tier:      model.Tier(strings.ToLower(tier)),
			Unaudited: unaudited,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "businesses list")
		}

		if len(businesses) == 0 {
			fmt.Fprintln(os.Stderr, "No businesses found.")
			return nil
		}

		formatBusinessList(cmd.OutOrStdout(), businesses)
		return nil
	},
}

// -- businesses show --

var businessesShowCmd = &cobra.Command{
	Use:   "show <business-id>",
	Short: "Show one business as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		biz, err := st.GetBusiness(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "businesses show")
		}
		return writeJSON(cmd.OutOrStdout(), biz)
	},
}

// -- businesses stats --

var businessesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count businesses per tier",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		businesses, err := st.ListBusinesses(ctx, store.BusinessFilter{})
		if err != nil {
			return eris.Wrap(err, "businesses stats")
		}

		formatTierStats(cmd.OutOrStdout(), computeTierStats(businesses))
		return nil
	},
}

func init() {
	businessesListCmd.Flags().String("tier", "", "filter by tier (hot, warm, cold)")
	businessesListCmd.Flags().Bool("unaudited", false, "only businesses without an audit")
	businessesListCmd.Flags().Int("limit", 50, "max number of businesses to display")

	businessesCmd.AddCommand(businessesListCmd)
	businessesCmd.AddCommand(businessesShowCmd)
	businessesCmd.AddCommand(businessesStatsCmd)
	rootCmd.AddCommand(businessesCmd)
}

// tierStats holds per-tier counts.
type tierStats struct {
	Total     int
	Hot       int
	Warm      int
	Cold      int
	Unaudited int
	AvgScore  float64
}

func computeTierStats(businesses []model.Business) tierStats {
	var s tierStats
	s.Total = len(businesses)

	var scored, sum int
	for _, b := range businesses {
		if b.AuditedAt == nil {
			s.Unaudited++
			continue
		}
		switch b.Tier {
		case model.TierHot:
			s.Hot++
		case model.TierWarm:
			s.Warm++
		case model.TierCold:
			s.Cold++
		}
		scored++
		sum += b.PriorityScore
	}
	if scored > 0 {
		s.AvgScore = float64(sum) / float64(scored)
	}
	return s
}

// formatBusinessList writes a tabular list of businesses to out.
func formatBusinessList(out io.Writer, businesses []model.Business) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tTIER\tPRIORITY\tPOP\tAUDITED")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t--------\t---\t-------")

	for _, b := range businesses {
		name := b.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		tier, priority, popScore, audited := "-", "-", "-", "never"
		if b.AuditedAt != nil {
			tier = string(b.Tier)
			priority = fmt.Sprintf("%d", b.PriorityScore)
			popScore = fmt.Sprintf("%.1f", b.PopScore)
			audited = b.AuditedAt.Format("2006-01-02 15:04")
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(b.ID), name, tier, priority, popScore, audited)
	}
	_ = w.Flush()
}

// formatTierStats writes aggregate stats to out.
func formatTierStats(out io.Writer, s tierStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total businesses:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Hot:\t%d\n", s.Hot)
	_, _ = fmt.Fprintf(w, "Warm:\t%d\n", s.Warm)
	_, _ = fmt.Fprintf(w, "Cold:\t%d\n", s.Cold)
	_, _ = fmt.Fprintf(w, "Unaudited:\t%d\n", s.Unaudited)
	if s.AvgScore > 0 {
		_, _ = fmt.Fprintf(w, "Avg priority:\t%.1f\n", s.AvgScore)
	}
	_ = w.Flush()
}

// truncateID shortens long ids for compact display.
func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
