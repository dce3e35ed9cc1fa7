package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/capacity-engine/api"
	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
)

var trackerUse = map[quota.Scope]struct{ use, short string }{
	quota.ScopeResource:   {"resources", "Show the resource tracker"},
	quota.ScopeClient:     {"clients", "Show the client tracker"},
	quota.ScopeSubAccount: {"accounts", "Show the sub-account tracker"},
}

func newTrackerCmd(opts *options, scope quota.Scope) *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   trackerUse[scope].use,
		Short: trackerUse[scope].short,
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

			var rows []quota.TrackerResult
			switch scope {
			case quota.ScopeResource:
				rows, err = tracker.ResourceTracker(ctx, month)
			case quota.ScopeClient:
				rows, err = tracker.ClientTracker(ctx, month)
			default:
				rows, err = tracker.AccountTracker(ctx, month, clientID)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch opts.format {
			case FormatJSON:
				return writeJSON(out, api.NewTrackerResponse(scope, month, tracker, rows))
			case FormatCSV:
				return writeTrackerCSV(out, scope, rows)
			default:
				return writeTrackerMarkdown(out, styler{enabled: isTerminal(out)}, scope, month, tracker.AsOf(), rows)
			}
		},
	}

	if scope == quota.ScopeSubAccount {
		cmd.Flags().StringVar(&clientID, "client", "", "only sub-accounts of this client")
	}
	return cmd
}

// =============================================================================
// RENDERERS
// =============================================================================

func trackerHeader(scope quota.Scope) []string {
	cols := []string{"Name", "Target", "Adjusted", "Expected", "Billed"}
	if scope == quota.ScopeResource {
		cols = append(cols, "Prebilled")
	}
	return append(cols, "%", "Pacing", "Status", "Days")
}

func writeTrackerMarkdown(out io.Writer, st styler, scope quota.Scope, month calendar.Month, asOf calendar.Date, rows []quota.TrackerResult) error {
	fmt.Fprintf(out, "%s\n\n", st.header(fmt.Sprintf("%s tracker %s (as of %s)", scopeTitle(scope), month, asOf)))
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, st.silent("No tracked quotas."))
		return err
	}

	header := trackerHeader(scope)
	fmt.Fprintf(out, "| %s |\n", strings.Join(header, " | "))
	fmt.Fprintf(out, "|%s\n", strings.Repeat("---|", len(header)))
	for _, r := range rows {
		cells := []string{
			r.Name,
			hours(r.MonthlyTarget),
			hours(r.AdjustedTarget),
			hours(r.ExpectedHoursToDate),
			hours(r.BilledHours),
		}
		if scope == quota.ScopeResource {
			cells = append(cells, hours(prebilledOrZero(r)))
		}
		cells = append(cells,
			hours(r.PercentageComplete),
			signed(r.Pacing),
			st.status(r.Status),
			fmt.Sprintf("%d/%d", r.WorkingDaysElapsed, r.AvailableWorkingDays),
		)
		fmt.Fprintf(out, "| %s |\n", strings.Join(cells, " | "))
	}
	return nil
}

func writeTrackerCSV(out io.Writer, scope quota.Scope, rows []quota.TrackerResult) error {
	w := csv.NewWriter(out)
	header := []string{
		"subject_id", "name", "parent_id", "monthly_target", "adjusted_target",
		"expected_hours_to_date", "billed_hours",
	}
	if scope == quota.ScopeResource {
		header = append(header, "prebilled_hours")
	}
	header = append(header,
		"percentage_complete", "pacing", "status",
		"standard_working_days", "available_working_days", "working_days_elapsed",
	)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		rec := []string{
			r.SubjectID, r.Name, r.ParentID,
			hours(r.MonthlyTarget), hours(r.AdjustedTarget),
			hours(r.ExpectedHoursToDate), hours(r.BilledHours),
		}
		if scope == quota.ScopeResource {
			rec = append(rec, hours(prebilledOrZero(r)))
		}
		rec = append(rec,
			hours(r.PercentageComplete), hours(r.Pacing), string(r.Status),
			strconv.Itoa(r.StandardWorkingDays),
			strconv.Itoa(r.AvailableWorkingDays),
			strconv.Itoa(r.WorkingDaysElapsed),
		)
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// HELPERS
// =============================================================================

func hours(d decimal.Decimal) string { return d.StringFixed(1) }

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + hours(d)
	}
	return hours(d)
}

func prebilledOrZero(r quota.TrackerResult) decimal.Decimal {
	if r.PrebilledHours == nil {
		return decimal.Zero
	}
	return *r.PrebilledHours
}

func scopeTitle(scope quota.Scope) string {
	switch scope {
	case quota.ScopeResource:
		return "Resource"
	case quota.ScopeClient:
		return "Client"
	default:
		return "Sub-account"
	}
}
