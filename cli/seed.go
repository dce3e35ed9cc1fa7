package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/capacity-engine/api"
)

func newSeedCmd(opts *options) *cobra.Command {
	ids := make([]string, 0, len(api.Scenarios()))
	for _, s := range api.Scenarios() {
		ids = append(ids, s.ID)
	}

	return &cobra.Command{
		Use:       "seed <scenario>",
		Short:     "Reset the store and load a demo scenario",
		Long:      "Reset the store and load a demo scenario.\n\nScenarios: " + strings.Join(ids, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: ids,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			today, err := opts.queryDate()
			if err != nil {
				return err
			}
			if err := api.Seed(ctx, s, args[0], today); err != nil {
				return err
			}

			for _, sc := range api.Scenarios() {
				if sc.ID != args[0] || sc.Month == "" {
					continue
				}
				view := "resources"
				if sc.Category == "bonus" {
					view = "bonus"
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s. Try: quotactl %s --month %s --as-of %s\n", sc.ID, view, sc.Month, sc.AsOf)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s.\n", args[0])
			return err
		},
	}
}
