package render

import "time"

// Ticker paces frame capture. It stands in for the display refresh callback
// of an interactive player.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory returns a ticker firing every interval.
type TickerFactory func(interval time.Duration) Ticker

// IntervalTicker is the production Ticker backed by time.Ticker.
type IntervalTicker struct {
	t *time.Ticker
}

// NewIntervalTicker satisfies TickerFactory.
func NewIntervalTicker(interval time.Duration) Ticker {
	return &IntervalTicker{t: time.NewTicker(interval)}
}

func (t *IntervalTicker) C() <-chan time.Time { return t.t.C }

func (t *IntervalTicker) Stop() { t.t.Stop() }

func frameInterval(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}
