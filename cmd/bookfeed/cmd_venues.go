package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/bookfeed/internal/api"
	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/poller"
	"github.com/rickgao/bookfeed/internal/venue"
)

var venuesProbe bool

var venuesCmd = &cobra.Command{
	Use:   "venues",
	Short: "List supported venues",
	Long: `List the venue catalog with its endpoints. With --probe, call each
venue's public REST time endpoint and report latency and clock skew.

Examples:
  bookfeed venues
  bookfeed venues --probe`,
	RunE: runVenues,
}

func init() {
	rootCmd.AddCommand(venuesCmd)
	venuesCmd.Flags().BoolVar(&venuesProbe, "probe", false, "probe each venue's REST endpoint")
}

func runVenues(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	venues := venue.NewCatalog(venueOverrides(cfg)).List()

	var results map[model.VenueID]poller.Result
	if venuesProbe {
		logger := newLogger(cfg.Log, cmd.ErrOrStderr())
		sources := poller.SourcesFor(venues,
			api.WithLogger(logger),
			api.WithTimeout(cfg.Poller.Timeout),
			api.WithRetries(cfg.Poller.MaxRetries, 250*time.Millisecond),
		)
		p := poller.New(pollerConfig(cfg), sources, nil, nil, logger)

		results = make(map[model.VenueID]poller.Result)
		for _, r := range p.PollAll(cmd.Context()) {
			results[r.Venue] = r
		}
	}

	return printVenues(cmd.OutOrStdout(), venues, results)
}

func printVenues(out io.Writer, venues []model.Venue, results map[model.VenueID]poller.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if results == nil {
		fmt.Fprintln(w, "ID\tNAME\tSTREAM\tREST")
		for _, v := range venues {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.Name, v.WSURL, v.RestURL)
		}
		return w.Flush()
	}

	fmt.Fprintln(w, "ID\tNAME\tREST\tSTATUS\tLATENCY\tSKEW")
	for _, v := range venues {
		r, ok := results[v.ID]
		switch {
		case !ok:
			fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\t-\n", v.ID, v.Name, v.RestURL)
		case r.OK:
			fmt.Fprintf(w, "%s\t%s\t%s\tok\t%s\t%s\n", v.ID, v.Name, v.RestURL,
				r.Latency.Round(time.Millisecond), r.Skew.Round(time.Millisecond))
		default:
			fmt.Fprintf(w, "%s\t%s\t%s\tfail: %s\t%s\t-\n", v.ID, v.Name, v.RestURL,
				r.Error, r.Latency.Round(time.Millisecond))
		}
	}
	return w.Flush()
}
