package window

import (
	"fmt"
	"time"

	"MarketLens/internal/domain/models"
)

// Params configures the trailing windows. Short and Long drive the
// crossover averages; Volume drives the report volume baseline.
type Params struct {
	Short  int
	Long   int
	Volume int
}

// Validate enforces the window invariants. Violations are configuration
// errors and must surface before any computation begins.
func (p Params) Validate() error {
	if p.Short <= 0 || p.Long <= 0 {
		return fmt.Errorf("window sizes must be positive, got short=%d long=%d", p.Short, p.Long)
	}
	if p.Short >= p.Long {
		return fmt.Errorf("short window (%d) must be less than long window (%d)", p.Short, p.Long)
	}
	if p.Volume <= 0 {
		return fmt.Errorf("volume window must be positive, got %d", p.Volume)
	}
	return nil
}

// Lookback is the number of bars before a resumption point needed to
// seed the crossover averages correctly.
func (p Params) Lookback() int {
	if p.Long > p.Short {
		return p.Long - 1
	}
	return p.Short - 1
}

// Point is one windowed observation derived from a price bar. Averages
// carry an OK flag instead of a value until their window has filled.
type Point struct {
	TradeDate time.Time
	Close     float64
	Volume    int64

	ShortAvg float64
	ShortOK  bool
	LongAvg  float64
	LongOK   bool

	VolumeAvg float64
	VolumeOK  bool
}

// Engine computes trailing means in a single forward pass, O(1) per bar.
// It carries no per-symbol state beyond its ring buffers; feed one
// symbol's ordered series per engine.
type Engine struct {
	params  Params
	shorts  *ringSum
	longs   *ringSum
	volumes *ringSum
}

// New returns an engine for the given window parameters.
func New(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:  params,
		shorts:  newRingSum(params.Short),
		longs:   newRingSum(params.Long),
		volumes: newRingSum(params.Volume),
	}, nil
}

// Push consumes the next bar in series order and returns its point.
func (e *Engine) Push(bar models.PriceBar) Point {
	e.shorts.push(bar.Close)
	e.longs.push(bar.Close)
	e.volumes.push(float64(bar.Volume))

	p := Point{
		TradeDate: bar.TradeDate,
		Close:     bar.Close,
		Volume:    bar.Volume,
	}
	p.ShortAvg, p.ShortOK = e.shorts.mean()
	p.LongAvg, p.LongOK = e.longs.mean()
	p.VolumeAvg, p.VolumeOK = e.volumes.mean()
	return p
}

// Reset clears all windows so the engine can be reused for another series.
func (e *Engine) Reset() {
	e.shorts.reset()
	e.longs.reset()
	e.volumes.reset()
}

// Points computes the windowed sequence for an ordered series. When
// resuming from an in-series offset, bars must include a lookback buffer
// of at least Params.Lookback() earlier bars or the leading points will
// carry wrong or missing averages.
func Points(bars []models.PriceBar, params Params) ([]Point, error) {
	eng, err := New(params)
	if err != nil {
		return nil, err
	}
	points := make([]Point, 0, len(bars))
	for _, bar := range bars {
		points = append(points, eng.Push(bar))
	}
	return points, nil
}

// VolumeBaseline returns the trailing mean volume over the last size bars
// of the series. ok is false when the series holds fewer than size bars;
// a partial window is not a baseline.
func VolumeBaseline(bars []models.PriceBar, size int) (float64, bool) {
	if size <= 0 || len(bars) < size {
		return 0, false
	}
	ring := newRingSum(size)
	for _, bar := range bars[len(bars)-size:] {
		ring.push(float64(bar.Volume))
	}
	return ring.mean()
}

// ringSum is a fixed-capacity ring buffer with a running sum, giving
// constant-time trailing means.
type ringSum struct {
	buf  []float64
	size int
	head int
	sum  float64
}

func newRingSum(capacity int) *ringSum {
	return &ringSum{buf: make([]float64, capacity)}
}

func (r *ringSum) push(v float64) {
	if r.size == len(r.buf) {
		r.sum -= r.buf[r.head]
	} else {
		r.size++
	}
	r.buf[r.head] = v
	r.sum += v
	r.head = (r.head + 1) % len(r.buf)
}

// mean reports the trailing mean; ok is false until the window fills.
func (r *ringSum) mean() (float64, bool) {
	if r.size < len(r.buf) {
		return 0, false
	}
	return r.sum / float64(r.size), true
}

func (r *ringSum) reset() {
	r.size = 0
	r.head = 0
	r.sum = 0
	for i := range r.buf {
		r.buf[i] = 0
	}
}
