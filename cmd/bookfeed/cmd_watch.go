package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/bookfeed/internal/feed"
	"github.com/rickgao/bookfeed/internal/loop"
	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/venue"
)

var (
	watchVenue    string
	watchSymbol   string
	watchDuration time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect one subscription and print its deliveries",
	Long: `Open a single venue stream and print every delivered book until the
duration elapses or the process is interrupted.

Examples:
  bookfeed watch --venue okx --symbol BTC-USDT
  bookfeed watch --venue deribit --symbol BTC-PERPETUAL --duration 30s`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchVenue, "venue", "", "venue id (okx, bybit, deribit)")
	watchCmd.Flags().StringVar(&watchSymbol, "symbol", "", "venue symbol (e.g. BTC-USDT)")
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "stop after this long (0 = until interrupted)")
	watchCmd.MarkFlagRequired("venue")
	watchCmd.MarkFlagRequired("symbol")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if watchDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchDuration)
		defer cancel()
	}

	lp := loop.New(loop.RealClock(), logger)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go lp.Run(loopCtx)
	defer func() {
		stopLoop()
		<-lp.Done()
	}()

	svc := feed.NewService(feedConfig(cfg), venue.NewCatalog(venueOverrides(cfg)), lp, logger)

	out := cmd.OutOrStdout()
	if err := svc.Connect(ctx, model.VenueID(watchVenue), watchSymbol, printDelivery(out)); err != nil {
		return fmt.Errorf("connect %s/%s: %w", watchVenue, watchSymbol, err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.DisconnectAll(shutdownCtx); err != nil && !errors.Is(err, loop.ErrStopped) {
		return err
	}
	return nil
}

// printDelivery writes one line per delivered book.
func printDelivery(w io.Writer) model.Callback {
	return func(md model.MarketData) {
		if md.Book.Empty() {
			fmt.Fprintf(w, "%s %s %s empty\n",
				md.LastUpdate.Format(time.TimeOnly), md.Venue, md.Book.Symbol)
			return
		}
		fmt.Fprintf(w, "%s %s %s bid=%g ask=%g depth=%d/%d\n",
			md.LastUpdate.Format(time.TimeOnly), md.Venue, md.Book.Symbol,
			md.Book.BestBid(), md.Book.BestAsk(), len(md.Book.Bids), len(md.Book.Asks))
	}
}
