package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/momentum/market"
)

// HTTPOptions tune the HTTP feed client.
type HTTPOptions struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxRetries    uint64
	// RetryInterval is the first backoff delay.
	RetryInterval time.Duration
	// TripAfter consecutive failures opens the breaker for BreakerTimeout.
	TripAfter      uint32
	BreakerTimeout time.Duration
	MaxStaleDays   int
	Client         *http.Client
	Logger         zerolog.Logger
}

// StatusError is returned for non-2xx responses other than 404.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTP is a DataFeed backed by the market data API. Calls are rate
// limited, retried with exponential backoff and guarded by a circuit
// breaker so a dead upstream fails fast.
type HTTP struct {
	base     *url.URL
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	retries  uint64
	interval time.Duration
	maxStale time.Duration
	log      zerolog.Logger
}

func NewHTTP(baseURL string, opts HTTPOptions) (*HTTP, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("feed url %q: scheme and host are required", baseURL)
	}

	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RatePerSecond == 0 {
		opts.RatePerSecond = 5
	}
	if opts.Burst == 0 {
		opts.Burst = 1
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.TripAfter == 0 {
		opts.TripAfter = 5
	}
	if opts.BreakerTimeout == 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	h := &HTTP{
		base:     base,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		retries:  opts.MaxRetries,
		interval: opts.RetryInterval,
		maxStale: staleness(opts.MaxStaleDays),
		log:      opts.Logger,
	}

	trip := opts.TripAfter
	h.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "feed:" + base.Host,
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			h.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("feed circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return h, nil
}

func (h *HTTP) Universe(ctx context.Context, date time.Time) ([]string, error) {
	var syms []string
	found, err := h.get(ctx, "/api/v1/universe", date, &syms)
	if err != nil || !found {
		return nil, err
	}
	sort.Strings(syms)
	return syms, nil
}

func (h *HTTP) Snapshot(ctx context.Context, symbol string, date time.Time) (market.Snapshot, bool, error) {
	var s market.Snapshot
	found, err := h.get(ctx, "/api/v1/indicators/"+url.PathEscape(symbol), date, &s)
	if err != nil || !found {
		return market.Snapshot{}, false, err
	}
	if s.Symbol == "" {
		s.Symbol = symbol
	}
	if s.Date.IsZero() {
		s.Date = market.Day(date)
	}
	if h.stale(s.Date, date) {
		return market.Snapshot{}, false, nil
	}
	return s, true, nil
}

func (h *HTTP) Price(ctx context.Context, symbol string, date time.Time) (float64, bool, error) {
	var body struct {
		Date  string  `json:"date"`
		Close float64 `json:"close"`
	}
	found, err := h.get(ctx, "/api/v1/marketdata/"+url.PathEscape(symbol), date, &body)
	if err != nil || !found || body.Close <= 0 {
		return 0, false, err
	}
	if body.Date != "" {
		if d, err := market.ParseDate(body.Date); err == nil && h.stale(d, date) {
			return 0, false, nil
		}
	}
	return body.Close, true, nil
}

func (h *HTTP) stale(obs, date time.Time) bool {
	return h.maxStale >= 0 && market.Day(date).Sub(market.Day(obs)) > h.maxStale
}

// get fetches path?date= into out. A 404 reports found=false.
func (h *HTTP) get(ctx context.Context, path string, date time.Time, out any) (bool, error) {
	u := *h.base
	u.Path += path
	u.RawQuery = url.Values{"date": {date.Format(market.DateLayout)}}.Encode()
	target := u.String()

	found := true
	op := func() error {
		if err := h.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			found = false
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return &StatusError{StatusCode: resp.StatusCode, URL: target}
		case resp.StatusCode >= 300:
			return backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, URL: target})
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s: %w", target, err))
		}
		return nil
	}

	_, err := h.breaker.Execute(func() (interface{}, error) {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = h.interval
		eb.MaxElapsedTime = 0
		b := backoff.WithContext(backoff.WithMaxRetries(eb, h.retries), ctx)
		return nil, backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
			h.log.Debug().Err(err).Dur("wait", wait).Str("url", target).Msg("retrying feed request")
		})
	})
	if err != nil {
		return false, fmt.Errorf("feed get %s: %w", path, err)
	}
	return found, nil
}
