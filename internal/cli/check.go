package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"limitedwatch/internal/alert"
	"limitedwatch/internal/config"
	"limitedwatch/internal/feed"
	"limitedwatch/internal/market"
	logx "limitedwatch/pkg/logx"
)

var checkFormat string

func init() {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch the item table once and print matching items",
		Long:  "Fetches and filters the item table with the configured criteria and prints the matches. No chat connection is made and nothing is sent.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), configManager(cmd), checkFormat)
		},
	}
	cmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "output format: text or json")
	RootCmd.AddCommand(cmd)
}

type checkItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	RAP       float64 `json:"rap"`
	Reduction float64 `json:"reduction"`
	Demand    string  `json:"demand"`
	Trend     string  `json:"trend"`
	Severity  string  `json:"severity"`
	URL       string  `json:"url"`
}

func runCheck(ctx context.Context, w io.Writer, cfgm *config.ConfigManager, format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := cfgm.Parse()
	if err != nil {
		return err
	}
	fc, err := cfg.FeedConfig()
	if err != nil {
		return err
	}
	crit := cfg.Criteria()
	if err := crit.Validate(); err != nil {
		return err
	}

	cat, err := feed.New(fc, logx.Nop()).Catalog(ctx)
	if err != nil {
		return err
	}
	cands := market.SelectCandidates(cat, crit)

	items := make([]checkItem, 0, len(cands))
	for _, c := range cands {
		items = append(items, checkItem{
			ID:        c.ID,
			Name:      c.Name,
			Price:     c.Price,
			RAP:       c.RAP,
			Reduction: c.Reduction,
			Demand:    market.DemandLabel(c.Demand),
			Trend:     market.TrendLabel(c.Trend),
			Severity:  c.Severity().Name,
			URL:       alert.CatalogURL(c.ID),
		})
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tPRICE\tRAP\tREDUCTION\tDEMAND\tTREND\n")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f%%\t%s\t%s\n", it.ID, it.Name,
			alert.FormatAmount(it.Price), alert.FormatAmount(it.RAP), it.Reduction, it.Demand, it.Trend)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d of %d items match\n", len(items), cat.Len())
	return err
}
