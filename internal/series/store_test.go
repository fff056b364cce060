package series

import (
	"math"
	"testing"

	"ChartSync/internal/domain/models"
)

var testKey = models.SeriesKey{Instrument: "BTC-USD", Granularity: models.Gran1m}

func mk(t int64, close float64) models.Candle {
	return models.Candle{Time: t, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func times(s *Store) []int64 {
	snap := s.Snapshot()
	out := make([]int64, len(snap))
	for i, c := range snap {
		out[i] = c.Time
	}
	return out
}

func eqTimes(got []int64, want ...int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

const base = int64(1_700_000_000)

func TestMergeKeepsSortedUnique(t *testing.T) {
	s := New(testKey, 0)
	s.Replace([]models.Candle{mk(base+100, 10), mk(base+160, 11), mk(base+220, 12)})

	// Scenario: replace an existing time and insert a new one, out of order.
	s.Merge([]models.Candle{mk(base+280, 101), mk(base+160, 99)})

	if !eqTimes(times(s), base+100, base+160, base+220, base+280) {
		t.Fatalf("unexpected times %v", times(s))
	}
	snap := s.Snapshot()
	if snap[1].Close != 99 {
		t.Fatalf("expected close 99 at merged time, got %v", snap[1].Close)
	}
}

func TestMergeIdempotent(t *testing.T) {
	s := New(testKey, 0)
	batch := []models.Candle{mk(base+60, 5), mk(base+120, 6), mk(base+180, 7)}
	s.Merge(batch)
	once := s.Snapshot()
	s.Merge(batch)
	twice := s.Snapshot()

	if len(once) != len(twice) {
		t.Fatalf("merge not idempotent: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if !once[i].Equal(twice[i]) {
			t.Fatalf("merge not idempotent at %d", i)
		}
	}
}

func TestMergeInterleavedStaysStrictlyAscending(t *testing.T) {
	s := New(testKey, 0)
	s.Merge([]models.Candle{mk(base+300, 1), mk(base+60, 2)})
	s.Prepend([]models.Candle{mk(base, 3)})
	s.Merge([]models.Candle{mk(base+180, 4), mk(base+300, 5), mk(base+120, 6)})
	if _, err := s.UpdateTail(mk(base+360, 7)); err != nil {
		t.Fatalf("updateTail: %v", err)
	}

	ts := times(s)
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			t.Fatalf("series not strictly ascending: %v", ts)
		}
	}
}

func TestReplaceDedupesLastWriteWins(t *testing.T) {
	s := New(testKey, 0)
	n := s.Replace([]models.Candle{mk(base+60, 1), mk(base+60, 2), mk(base+120, 3)})
	if n != 2 {
		t.Fatalf("expected 2 resident, got %d", n)
	}
	snap := s.Snapshot()
	if snap[0].Close != 2 {
		t.Fatalf("last write should win, got close %v", snap[0].Close)
	}
}

func TestPrependEvictsOldestKeepsTail(t *testing.T) {
	s := New(testKey, 3)
	s.Replace([]models.Candle{mk(base+100, 1), mk(base+160, 2), mk(base+220, 3)})

	s.Prepend([]models.Candle{mk(base+40, 4)})

	// The prepended candle is immediately the oldest and is evicted first;
	// the tail must survive.
	if !eqTimes(times(s), base+100, base+160, base+220) {
		t.Fatalf("unexpected times after prepend+evict: %v", times(s))
	}
}

func TestPrependDropsNonOlderCandles(t *testing.T) {
	s := New(testKey, 0)
	s.Replace([]models.Candle{mk(base+100, 1), mk(base+160, 2)})

	n := s.Prepend([]models.Candle{mk(base+40, 3), mk(base+100, 9), mk(base+200, 9)})
	if n != 1 {
		t.Fatalf("expected only the strictly-older candle inserted, got %d", n)
	}
	if !eqTimes(times(s), base+40, base+100, base+160) {
		t.Fatalf("unexpected times %v", times(s))
	}
	if snap := s.Snapshot(); snap[1].Close != 1 {
		t.Fatalf("prepend must not overwrite resident candles")
	}
}

func TestUpdateTailStaleRejected(t *testing.T) {
	s := New(testKey, 0)
	s.Replace([]models.Candle{mk(base+100, 1), mk(base+160, 2)})

	if _, err := s.UpdateTail(mk(base+100, 50)); err != ErrStaleTail {
		t.Fatalf("expected ErrStaleTail, got %v", err)
	}
	if snap := s.Snapshot(); snap[0].Close != 1 || snap[1].Close != 2 {
		t.Fatalf("stale update must be a no-op")
	}
}

func TestUpdateTailSamePeriodOverwrites(t *testing.T) {
	s := New(testKey, 0)
	s.Replace([]models.Candle{mk(base+100, 1)})

	c := mk(base+100, 7)
	c.High = 9
	res, err := s.UpdateTail(c)
	if err != nil || res != TailUpdated {
		t.Fatalf("expected TailUpdated, got %v %v", res, err)
	}
	last, _ := s.Last()
	if last.Close != 7 || last.High != 9 {
		t.Fatalf("tail stores exactly what it is given, got %+v", last)
	}
}

func TestUpdateTailAppendEnforcesCap(t *testing.T) {
	s := New(testKey, 2)
	s.Replace([]models.Candle{mk(base+100, 1), mk(base+160, 2)})

	if res, err := s.UpdateTail(mk(base+220, 3)); err != nil || res != TailAppended {
		t.Fatalf("expected append, got %v %v", res, err)
	}
	if !eqTimes(times(s), base+160, base+220) {
		t.Fatalf("expected eviction from the oldest end, got %v", times(s))
	}
}

func TestSanitizeDropsMalformed(t *testing.T) {
	s := New(testKey, 0)
	bad := []models.Candle{
		{Time: base + 60, Open: 0, High: 1, Low: 1, Close: 1},                      // zero price
		{Time: base + 120, Open: -1, High: 1, Low: 1, Close: 1},                    // negative
		{Time: base + 180, Open: math.NaN(), High: 1, Low: 1, Close: 1},            // NaN
		{Time: 1000, Open: 1, High: 1, Low: 1, Close: 1},                           // epoch unit error
		{Time: base * 1000, Open: 1, High: 1, Low: 1, Close: 1},                    // milliseconds
		{Time: base + 240, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: -1},     // negative volume
		{Time: base + 300, Open: 1, High: 2, Low: 0.5, Close: math.Inf(1)},         // infinite
		{Time: base + 360, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 3},     // valid
	}
	if n := s.Merge(bad); n != 1 {
		t.Fatalf("expected 1 applied, got %d", n)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 resident, got %d", s.Len())
	}
}

func TestEmptyBatchIsNoop(t *testing.T) {
	s := New(testKey, 0)
	s.Replace([]models.Candle{mk(base+100, 1)})
	before := s.Snapshot()

	if n := s.Merge([]models.Candle{{Time: base + 200, Open: -5, High: 1, Low: 1, Close: 1}}); n != 0 {
		t.Fatalf("expected no-op, applied %d", n)
	}
	after := s.Snapshot()
	if len(before) != len(after) || !before[0].Equal(after[0]) {
		t.Fatalf("empty filtered batch must leave the series unchanged")
	}
}

func TestNormalizeWidensEnvelope(t *testing.T) {
	s := New(testKey, 0)
	s.Merge([]models.Candle{{Time: base + 60, Open: 10, High: 9.5, Low: 10.2, Close: 11, Volume: 1}})
	snap := s.Snapshot()
	if snap[0].High != 11 || snap[0].Low != 10 {
		t.Fatalf("expected envelope widened to body, got H=%v L=%v", snap[0].High, snap[0].Low)
	}
}

func TestCapNeverExceededAfterMerge(t *testing.T) {
	s := New(testKey, 5)
	batch := make([]models.Candle, 0, 20)
	for i := int64(0); i < 20; i++ {
		batch = append(batch, mk(base+i*60, float64(i+1)))
	}
	s.Merge(batch)
	if s.Len() != 5 {
		t.Fatalf("expected cap enforcement, got %d", s.Len())
	}
	last, _ := s.Last()
	if last.Time != base+19*60 {
		t.Fatalf("tail must survive eviction, got %d", last.Time)
	}
}
