package models

// SeriesKey identifies one cached candle series.
type SeriesKey struct {
	Instrument  string      `json:"instrument"`
	Granularity Granularity `json:"granularity"`
}

func (k SeriesKey) String() string {
	return k.Instrument + ":" + string(k.Granularity)
}

// UpdateStage tags an inbound live message with its candle lifecycle stage.
type UpdateStage int

const (
	// StageSync is an authoritative historical candle replayed from storage.
	StageSync UpdateStage = iota
	// StageComplete is a just-finalized candle for a period that has ended.
	StageComplete
	// StageIncomplete is the in-progress current-period candle with
	// feed-aggregated OHLC.
	StageIncomplete
	// StageTick is a bare price observation carrying only Price.
	StageTick
)

func (s UpdateStage) String() string {
	switch s {
	case StageSync:
		return "sync"
	case StageComplete:
		return "complete"
	case StageIncomplete:
		return "incomplete"
	case StageTick:
		return "tick"
	}
	return "unknown"
}

// LiveUpdate is one inbound message from the live feed. Tick updates carry
// only Price; the other stages carry a full candle.
type LiveUpdate struct {
	Key    SeriesKey
	Stage  UpdateStage
	Candle Candle  // sync/complete/incomplete
	Price  float64 // tick
}

// LoadReason says why a backfill range was requested.
type LoadReason string

const (
	LoadInitial  LoadReason = "initial"
	LoadBackfill LoadReason = "backfill"
	LoadGapFill  LoadReason = "gapfill"
)

// LoadRequest describes one backfill intent. At most one is active per
// series; a superseded request is dropped, never queued.
type LoadRequest struct {
	Key        SeriesKey
	RangeStart int64
	RangeEnd   int64
	Reason     LoadReason
}

// ViewportState is the read-only viewport input from the rendering layer:
// the visible logical index range and the visible candle count.
type ViewportState struct {
	From         float64
	To           float64
	VisibleCount int
}
