// Package series holds the canonical sorted, de-duplicated candle array for
// one (instrument, granularity) pair. Every mutation path in the engine
// funnels through this store so the ordering and uniqueness invariants live
// in exactly one place.
package series

import (
	"errors"
	"sort"
	"sync"
	"time"

	"ChartSync/internal/domain/models"
)

// ErrStaleTail is returned by UpdateTail when the given candle is older than
// the current tail. The series is left unchanged.
var ErrStaleTail = errors.New("series: stale tail update")

// ErrInvalidCandle is returned by UpdateTail for a malformed candle.
var ErrInvalidCandle = errors.New("series: invalid candle")

// TailResult says what UpdateTail did.
type TailResult int

const (
	TailUpdated  TailResult = iota // same period, candle overwritten
	TailAppended                   // new period appended
)

// Store owns the candle slice. Invariants after every mutation: strictly
// ascending by Time, no duplicate Time values, every candle valid, length
// within the retention cap.
type Store struct {
	mu           sync.RWMutex
	key          models.SeriesKey
	candles      []models.Candle
	retentionCap int
	lastMutation time.Time
}

// New creates an empty store for key. A non-positive cap disables eviction.
func New(key models.SeriesKey, retentionCap int) *Store {
	return &Store{key: key, retentionCap: retentionCap}
}

// Key returns the series key the store was created for.
func (s *Store) Key() models.SeriesKey {
	return s.key
}

// Replace sets the series wholesale. Input is filtered to valid candles,
// sorted, and de-duplicated last-write-wins per time. Returns the resident
// count afterwards.
func (s *Store) Replace(in []models.Candle) int {
	clean := sanitize(in)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = clean
	s.evictLocked()
	s.lastMutation = time.Now()
	return len(s.candles)
}

// Merge inserts candles order-independently: an existing time is replaced,
// a new time is inserted preserving sort order. Applying the same batch
// twice yields the same series as applying it once. Returns how many input
// candles were applied.
func (s *Store) Merge(in []models.Candle) int {
	clean := sanitize(in)
	if len(clean) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range clean {
		s.insertLocked(c)
	}
	s.evictLocked()
	s.lastMutation = time.Now()
	return len(clean)
}

// Prepend merges only candles strictly older than the current oldest
// resident candle; the rest of the batch is dropped. Eviction afterwards
// removes from the oldest end only, so the tail (the live candle) is never
// evicted. Returns how many candles were inserted.
func (s *Store) Prepend(in []models.Candle) int {
	clean := sanitize(in)
	if len(clean) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.candles) > 0 {
		oldest := s.candles[0].Time
		i := sort.Search(len(clean), func(i int) bool { return clean[i].Time >= oldest })
		clean = clean[:i]
	}
	if len(clean) == 0 {
		return 0
	}
	s.candles = append(clean, s.candles...)
	s.evictLocked()
	s.lastMutation = time.Now()
	return len(clean)
}

// UpdateTail replaces or appends only the last candle. Equal time overwrites
// the tail with exactly what was given, a greater time appends a new tail,
// a lesser time is rejected with ErrStaleTail and leaves the series
// unchanged. The candle is stored verbatim: whether a close outside the
// high/low envelope may widen it is the caller's decision, not this
// method's.
func (s *Store) UpdateTail(c models.Candle) (TailResult, error) {
	if !c.Valid() {
		return 0, ErrInvalidCandle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.candles)
	if n == 0 {
		s.candles = append(s.candles, c)
		s.lastMutation = time.Now()
		return TailAppended, nil
	}
	last := s.candles[n-1].Time
	switch {
	case c.Time == last:
		s.candles[n-1] = c
		s.lastMutation = time.Now()
		return TailUpdated, nil
	case c.Time > last:
		s.candles = append(s.candles, c)
		s.evictLocked()
		s.lastMutation = time.Now()
		return TailAppended, nil
	default:
		return 0, ErrStaleTail
	}
}

// Last returns the tail candle.
func (s *Store) Last() (models.Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.candles) == 0 {
		return models.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Oldest returns the first resident candle.
func (s *Store) Oldest() (models.Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.candles) == 0 {
		return models.Candle{}, false
	}
	return s.candles[0], true
}

// Len returns the resident candle count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candles)
}

// Contains reports whether a candle with the given time is resident.
func (s *Store) Contains(t int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.candles), func(i int) bool { return s.candles[i].Time >= t })
	return i < len(s.candles) && s.candles[i].Time == t
}

// Snapshot returns a sorted copy of the series.
func (s *Store) Snapshot() []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// LastMutation returns when the series last changed.
func (s *Store) LastMutation() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMutation
}

// insertLocked puts c at its sorted position, replacing an equal time.
func (s *Store) insertLocked(c models.Candle) {
	i := sort.Search(len(s.candles), func(i int) bool { return s.candles[i].Time >= c.Time })
	if i < len(s.candles) && s.candles[i].Time == c.Time {
		s.candles[i] = c
		return
	}
	s.candles = append(s.candles, models.Candle{})
	copy(s.candles[i+1:], s.candles[i:])
	s.candles[i] = c
}

// evictLocked trims excess candles from the oldest end. The tail is never
// touched.
func (s *Store) evictLocked() {
	if s.retentionCap <= 0 || len(s.candles) <= s.retentionCap {
		return
	}
	excess := len(s.candles) - s.retentionCap
	s.candles = append(s.candles[:0], s.candles[excess:]...)
}

// sanitize filters invalid candles, normalizes the H/L envelope, sorts, and
// de-duplicates last-write-wins per time. Malformed entries are dropped
// without aborting the batch.
func sanitize(in []models.Candle) []models.Candle {
	out := make([]models.Candle, 0, len(in))
	for _, c := range in {
		c = c.Normalize()
		if c.Valid() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	// last-write-wins: keep the final occurrence of each time
	dedup := out[:0]
	for i := 0; i < len(out); i++ {
		if i+1 < len(out) && out[i+1].Time == out[i].Time {
			continue
		}
		dedup = append(dedup, out[i])
	}
	return dedup
}
