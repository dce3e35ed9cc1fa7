/*
Package cli implements quotactl, the terminal front end of the tracker.

COMMANDS:
  quotactl resources              Resource tracker
  quotactl clients                Client tracker
  quotactl accounts [--client X]  Sub-account tracker
  quotactl bonus                  Weekly bonus eligibility
  quotactl seed <scenario>        Reset the store and load a demo scenario

GLOBAL FLAGS:
  --config      YAML config file (see config/config.go)
  --driver      sqlite | postgres
  --db          sqlite path
  --dsn         postgres connection string
  --format      md | csv | json (default md)
  --month       YYYY-MM (default: month of --as-of)
  --as-of       YYYY-MM-DD (default: today)
  --resolution  current | versioned

Flags win over the environment, which wins over the config file.
*/
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/config"
	"github.com/warp/capacity-engine/quota"
	"github.com/warp/capacity-engine/store"
)

// Output formats.
const (
	FormatMarkdown = "md"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

type options struct {
	configPath string
	driver     string
	db         string
	dsn        string
	format     string
	month      string
	asOf       string
	resolution string

	cfg   config.Config
	today func() calendar.Date
}

// NewRootCmd builds the quotactl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{today: calendar.Today}

	root := &cobra.Command{
		Use:           "quotactl",
		Short:         "Quota and capacity tracking from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML config file")
	pf.StringVar(&opts.driver, "driver", "", "storage driver (sqlite or postgres)")
	pf.StringVar(&opts.db, "db", "", "sqlite database path")
	pf.StringVar(&opts.dsn, "dsn", "", "postgres connection string")
	pf.StringVar(&opts.format, "format", FormatMarkdown, "output format: md, csv or json")
	pf.StringVar(&opts.month, "month", "", "month to report (YYYY-MM)")
	pf.StringVar(&opts.asOf, "as-of", "", "query date (YYYY-MM-DD)")
	pf.StringVar(&opts.resolution, "resolution", "", "quota resolution: current or versioned")

	root.AddCommand(
		newTrackerCmd(opts, quota.ScopeResource),
		newTrackerCmd(opts, quota.ScopeClient),
		newTrackerCmd(opts, quota.ScopeSubAccount),
		newBonusCmd(opts),
		newSeedCmd(opts),
	)
	return root
}

// Execute runs quotactl with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// load resolves the layered configuration and validates the format flag.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Read(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Driver = o.driver
	}
	if flags.Changed("db") {
		cfg.DB = o.db
	}
	if flags.Changed("dsn") {
		cfg.DSN = o.dsn
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	switch o.format {
	case FormatMarkdown, FormatCSV, FormatJSON:
	default:
		return fmt.Errorf("unknown format %q (want md, csv or json)", o.format)
	}
	return nil
}

func (o *options) openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, o.cfg)
}

// queryDate returns --as-of or today.
func (o *options) queryDate() (calendar.Date, error) {
	if o.asOf == "" {
		return o.today(), nil
	}
	return calendar.ParseDate(o.asOf)
}

// tracker builds a Tracker and the month to report from the query flags.
func (o *options) tracker(src quota.Source) (*quota.Tracker, calendar.Month, error) {
	asOf, err := o.queryDate()
	if err != nil {
		return nil, calendar.Month{}, err
	}

	month := calendar.MonthOf(asOf)
	if o.month != "" {
		if month, err = calendar.ParseMonth(o.month); err != nil {
			return nil, calendar.Month{}, err
		}
	}

	res, err := quota.ParseResolution(o.resolution)
	if err != nil {
		return nil, calendar.Month{}, err
	}
	return quota.NewTracker(src).At(asOf).WithResolution(res), month, nil
}
