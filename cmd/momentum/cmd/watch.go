package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/momentum/metrics"
	"github.com/rustyeddy/momentum/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rank the universe on a schedule and serve metrics",
	Long: `Watch runs the ranking job on schedule.spec (standard cron, default
Fridays at 16:30) and serves:

  GET /metrics            Prometheus metrics
  GET /healthz            liveness
  GET /rankings/latest    the most recent ranking as JSON

Example:
  momentum watch -c momentum.yaml --run-now`,
	RunE: runWatch,
}

var (
	watchRunNow bool
	watchAddr   string
	watchTZ     string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchRunNow, "run-now", false, "rank once at startup")
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "listen address; overrides metrics.addr")
	watchCmd.Flags().StringVar(&watchTZ, "tz", "", "time zone of the schedule, e.g. Asia/Kolkata")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := *cfg
	if watchAddr != "" {
		c.Metrics.Addr = watchAddr
	}

	f, closeFeed, err := buildFeed(&c, logger)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	defer closeFeed()

	m := metrics.New()
	scorer, err := buildScorer(&c, m, logger)
	if err != nil {
		return err
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.OnRanking(func(_ scheduler.Ranking, err error) { m.ObserveRanking(err) }),
	}
	if watchTZ != "" {
		loc, err := time.LoadLocation(watchTZ)
		if err != nil {
			return fmt.Errorf("tz: %w", err)
		}
		opts = append(opts, scheduler.WithLocation(loc))
	}
	ranker := &scheduler.Ranker{Feed: f, Scorer: scorer, TopN: c.Schedule.TopN, Log: logger}
	s, err := scheduler.New(c.Schedule.Spec, ranker, opts...)
	if err != nil {
		return err
	}

	router := m.Router()
	router.Handle("/rankings/latest", s).Methods(http.MethodGet)
	srv := &http.Server{
		Addr:              c.Metrics.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	if watchRunNow {
		if _, err := s.RunNow(ctx); err != nil {
			logger.Error().Err(err).Msg("initial ranking failed")
		}
	}
	s.Start()
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Watching %q, next run %s\n", c.Schedule.Spec, s.Next().Format(time.RFC1123))

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	<-s.Stop().Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdown); serr != nil && err == nil {
		err = serr
	}
	return err
}
