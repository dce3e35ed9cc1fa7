package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/capacity-engine/api"
	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
)

func newBonusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bonus",
		Short: "Show weekly bonus eligibility per client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			tracker, month, err := opts.tracker(s)
			if err != nil {
				return err
			}
			results, err := tracker.WeeklyBonusEligibilityFor(ctx, month)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch opts.format {
			case FormatJSON:
				return writeJSON(out, api.NewBonusResponse(month, results))
			case FormatCSV:
				return writeBonusCSV(out, results)
			default:
				return writeBonusMarkdown(out, styler{enabled: isTerminal(out)}, month, results)
			}
		},
	}
}

func writeBonusMarkdown(out io.Writer, st styler, month calendar.Month, results []quota.EligibilityResult) error {
	fmt.Fprintf(out, "%s\n\n", st.header(fmt.Sprintf("Weekly bonus %s", month)))
	if len(results) == 0 {
		_, err := fmt.Fprintln(out, st.silent("No tracked clients."))
		return err
	}

	fmt.Fprintln(out, "| Client | Target | Weeks | Eligible |")
	fmt.Fprintln(out, "|---|---|---|---|")
	for _, r := range results {
		weeks := make([]string, len(r.Weeks))
		for i, w := range r.Weeks {
			weeks[i] = fmt.Sprintf("%s/%s", hours(w.BilledHours), hours(w.Target))
		}
		fmt.Fprintf(out, "| %s | %s | %d/%d (%s) | %s |\n",
			r.Name, hours(r.MonthlyTarget), r.WeeksHit, r.TotalWeeks,
			strings.Join(weeks, ", "), st.verdict(r.Eligible))
	}
	return nil
}

// writeBonusCSV emits one record per client and window.
func writeBonusCSV(out io.Writer, results []quota.EligibilityResult) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{
		"client_id", "name", "eligible", "week_start", "week_end",
		"days_in_window", "target", "billed_hours", "hit_target",
	}); err != nil {
		return err
	}

	for _, r := range results {
		for _, wk := range r.Weeks {
			if err := w.Write([]string{
				r.ClientID, r.Name, strconv.FormatBool(r.Eligible),
				wk.Period.Start.String(), wk.Period.End.String(),
				strconv.Itoa(wk.DaysInWindow), hours(wk.Target), hours(wk.BilledHours),
				strconv.FormatBool(wk.HitTarget),
			}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}
