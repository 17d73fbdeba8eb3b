package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/momentum/feed"
	"github.com/rustyeddy/momentum/market"
	"github.com/rustyeddy/momentum/scoring"
)

// closeScorer scores by close price so rankings are predictable.
type closeScorer struct{}

func (closeScorer) Score(snaps []market.Snapshot) []scoring.Result {
	out := make([]scoring.Result, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, scoring.Result{Symbol: s.Symbol, Date: s.Date, Score: s.Close, Composite: s.Close})
	}
	scoring.Sort(out)
	return out
}

var friday = time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

func newRanker(t *testing.T) *Ranker {
	t.Helper()
	mem := feed.NewMemory(3)
	mem.Add(
		market.Snapshot{Symbol: "AAA", Date: friday, Close: 30},
		market.Snapshot{Symbol: "BBB", Date: friday, Close: 50},
		market.Snapshot{Symbol: "CCC", Date: friday, Close: 0},
		// Too old for a three day staleness bound.
		market.Snapshot{Symbol: "OLD", Date: friday.AddDate(0, 0, -10), Close: 90},
	)
	return &Ranker{Feed: listedFeed{Memory: mem, extra: []string{"OLD"}}, Scorer: closeScorer{}, TopN: 5}
}

// listedFeed lists extra symbols in the universe whether or not they have
// fresh data, like an index membership file would.
type listedFeed struct {
	*feed.Memory
	extra []string
}

func (f listedFeed) Universe(ctx context.Context, date time.Time) ([]string, error) {
	syms, err := f.Memory.Universe(ctx, date)
	return append(syms, f.extra...), err
}

func TestRank(t *testing.T) {
	t.Parallel()

	r := newRanker(t)
	got, err := r.Rank(context.Background(), friday.Add(15*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, friday, got.Date)
	require.Len(t, got.Results, 3)
	assert.Equal(t, "BBB", got.Results[0].Symbol)
	// Zero scores are not candidates.
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, []string{"BBB", "AAA"}, []string{got.Candidates[0].Symbol, got.Candidates[1].Symbol})
	assert.Equal(t, []string{"OLD"}, got.Gaps)

	r.TopN = 1
	got, err = r.Rank(context.Background(), friday)
	require.NoError(t, err)
	assert.Len(t, got.Candidates, 1)
}

func TestRankRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := (&Ranker{}).Rank(context.Background(), friday)
	assert.Error(t, err)
}

type failingFeed struct{ *feed.Memory }

func (failingFeed) Universe(context.Context, time.Time) ([]string, error) {
	return nil, errors.New("upstream down")
}

func TestRankUniverseError(t *testing.T) {
	t.Parallel()

	r := &Ranker{Feed: failingFeed{feed.NewMemory(0)}, Scorer: closeScorer{}}
	_, err := r.Rank(context.Background(), friday)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "universe 2024-03-08")
}

func TestNewRejectsBadSpec(t *testing.T) {
	t.Parallel()

	_, err := New("every friday", newRanker(t))
	assert.Error(t, err)

	_, err = New("30 16 * * 5", nil)
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	t.Parallel()

	// Wednesday morning; the next Friday 16:30 is two days away.
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	s, err := New("30 16 * * 5", newRanker(t), WithClock(func() time.Time { return now }), WithLocation(time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 8, 16, 30, 0, 0, time.UTC), s.Next())
}

func TestRunNowKeepsLatest(t *testing.T) {
	t.Parallel()

	var seen []error
	s, err := New("30 16 * * 5", newRanker(t),
		WithClock(func() time.Time { return friday }),
		OnRanking(func(_ Ranking, err error) { seen = append(seen, err) }),
	)
	require.NoError(t, err)

	_, ok := s.Latest()
	assert.False(t, ok)

	r, err := s.RunNow(context.Background())
	require.NoError(t, err)
	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, r.Date, latest.Date)
	assert.Equal(t, []error{nil}, seen)
}

func TestServeHTTP(t *testing.T) {
	t.Parallel()

	s, err := New("30 16 * * 5", newRanker(t), WithClock(func() time.Time { return friday }))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rankings/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err = s.RunNow(context.Background())
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rankings/latest", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var got Ranking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got.Candidates, 2)
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s, err := New("30 16 * * 5", newRanker(t))
	require.NoError(t, err)
	s.Start()
	ctx := s.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stop did not finish")
	}
}
