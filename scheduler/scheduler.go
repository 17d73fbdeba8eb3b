// Package scheduler runs the ranking job on a cron schedule.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs a Ranker on a standard five-field cron spec and keeps
// the latest ranking.
type Scheduler struct {
	cron    *cron.Cron
	ranker  *Ranker
	spec    cron.Schedule
	log     zerolog.Logger
	loc     *time.Location
	now     func() time.Time
	timeout time.Duration
	observe []func(Ranking, error)

	mu     sync.RWMutex
	latest *Ranking
}

type Option func(*Scheduler)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// WithTimeout bounds each scheduled run. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// OnRanking is called after every run, scheduled or manual.
func OnRanking(fn func(Ranking, error)) Option {
	return func(s *Scheduler) { s.observe = append(s.observe, fn) }
}

// New parses spec and registers the ranking job. Nothing runs until Start.
func New(spec string, ranker *Ranker, opts ...Option) (*Scheduler, error) {
	if ranker == nil {
		return nil, fmt.Errorf("scheduler: Ranker is required")
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		ranker:  ranker,
		spec:    sched,
		log:     zerolog.Nop(),
		now:     time.Now,
		timeout: 10 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	copts := []cron.Option{cron.WithLogger(cronLogger{s.log})}
	if s.loc != nil {
		copts = append(copts, cron.WithLocation(s.loc))
	}
	s.cron = cron.New(copts...)
	s.cron.Schedule(sched, cron.FuncJob(s.tick))
	return s, nil
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if _, err := s.RunNow(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled ranking failed")
	}
}

// RunNow ranks the current date immediately.
func (s *Scheduler) RunNow(ctx context.Context) (Ranking, error) {
	r, err := s.ranker.Rank(ctx, s.now())
	if err == nil {
		s.mu.Lock()
		s.latest = &r
		s.mu.Unlock()
	}
	for _, fn := range s.observe {
		fn(r, err)
	}
	return r, err
}

// Latest returns the most recent successful ranking.
func (s *Scheduler) Latest() (Ranking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Ranking{}, false
	}
	return *s.latest, true
}

// Next is the first scheduled run after the scheduler's clock.
func (s *Scheduler) Next() time.Time {
	now := s.now()
	if s.loc != nil {
		now = now.In(s.loc)
	}
	return s.spec.Next(now)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Time("next", s.Next()).Msg("scheduler started")
}

// Stop halts the schedule and returns a context done when any running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.log.Info().Msg("scheduler stopped")
	return ctx
}

// ServeHTTP writes the latest ranking as JSON, or 404 before the first
// run.
func (s *Scheduler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	r, ok := s.Latest()
	if !ok {
		http.Error(w, "no ranking yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(r)
}

// cronLogger sends cron's own messages through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
