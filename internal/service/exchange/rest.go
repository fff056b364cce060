package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ChartSync/internal/domain/models"
	drepo "ChartSync/internal/domain/repository"
	xhttp "ChartSync/pkg/http"
)

// RESTBackfiller fetches historical candles from the exchange REST API.
type RESTBackfiller struct {
	baseURL string
	client  *xhttp.Client
}

// NewRESTBackfiller creates a Backfiller over the exchange candles endpoint.
func NewRESTBackfiller(baseURL string, timeout time.Duration) drepo.Backfiller {
	return &RESTBackfiller{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type restCandle struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

// Fetch requests candles for [start, end]. The payload is untrusted; the
// store re-validates on merge.
func (b *RESTBackfiller) Fetch(ctx context.Context, instrument string, g models.Granularity, start, end int64, limit int) ([]models.Candle, error) {
	var rows []restCandle
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    b.baseURL + "/candles",
		QueryParams: map[string][]string{
			"instrument":  {instrument},
			"granularity": {string(g)},
			"start":       {strconv.FormatInt(start, 10)},
			"end":         {strconv.FormatInt(end, 10)},
			"limit":       {strconv.Itoa(limit)},
		},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s:%s: %w", instrument, g, err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, models.Candle{
			Time:   r.T,
			Open:   r.O,
			High:   r.H,
			Low:    r.L,
			Close:  r.C,
			Volume: r.V,
		})
	}
	return candles, nil
}
