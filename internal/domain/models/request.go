package models

// SetKeyRequest switches the active series.
type SetKeyRequest struct {
	Instrument  string `json:"instrument" validate:"required"`
	Granularity string `json:"granularity" validate:"required,oneof=1m 5m 15m 1h 6h 1d"`
}

// ViewportRequest reports the visible range from the rendering layer.
type ViewportRequest struct {
	From         float64 `json:"from" validate:"gte=0"`
	To           float64 `json:"to" validate:"gtefield=From"`
	VisibleCount int     `json:"visible_count" validate:"gte=0"`
}
