package window

import (
	"math"
	"testing"
	"time"

	"MarketLens/internal/domain/models"
)

func barSeries(closes []float64, volumes []int64) []models.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		var v int64 = 1000
		if volumes != nil {
			v = volumes[i]
		}
		bars[i] = models.PriceBar{
			Symbol:    "TEST",
			TradeDate: start.AddDate(0, 0, i),
			Close:     c,
			Volume:    v,
		}
	}
	return bars
}

func directMean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func TestParamsValidate(t *testing.T) {
	cases := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"valid", Params{Short: 50, Long: 200, Volume: 30}, false},
		{"short equals long", Params{Short: 50, Long: 50, Volume: 30}, true},
		{"short above long", Params{Short: 200, Long: 50, Volume: 30}, true},
		{"zero short", Params{Short: 0, Long: 200, Volume: 30}, true},
		{"negative long", Params{Short: 50, Long: -1, Volume: 30}, true},
		{"zero volume", Params{Short: 50, Long: 200, Volume: 0}, true},
	}
	for _, tc := range cases {
		err := tc.params.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestAveragesUndefinedUntilWindowFills(t *testing.T) {
	closes := make([]float64, 12)
	for i := range closes {
		closes[i] = float64(10 + i)
	}
	points, err := Points(barSeries(closes, nil), Params{Short: 3, Long: 8, Volume: 5})
	if err != nil {
		t.Fatalf("points: %v", err)
	}

	for i, p := range points {
		if got, want := p.ShortOK, i >= 2; got != want {
			t.Fatalf("point %d: ShortOK=%v, want %v", i, got, want)
		}
		if got, want := p.LongOK, i >= 7; got != want {
			t.Fatalf("point %d: LongOK=%v, want %v", i, got, want)
		}
		if got, want := p.VolumeOK, i >= 4; got != want {
			t.Fatalf("point %d: VolumeOK=%v, want %v", i, got, want)
		}
	}
}

func TestWindowCorrectnessAgainstDirectSummation(t *testing.T) {
	// deterministic pseudo-random walk
	closes := make([]float64, 250)
	volumes := make([]int64, 250)
	price := 100.0
	for i := range closes {
		price += math.Sin(float64(i)*0.7)*3 + 0.1
		closes[i] = price
		volumes[i] = int64(900_000 + 10_000*(i%17))
	}

	params := Params{Short: 50, Long: 200, Volume: 30}
	points, err := Points(barSeries(closes, volumes), params)
	if err != nil {
		t.Fatalf("points: %v", err)
	}

	last := points[len(points)-1]
	if !last.ShortOK || !last.LongOK || !last.VolumeOK {
		t.Fatalf("expected all windows defined at last point")
	}

	wantShort := directMean(closes[len(closes)-params.Short:])
	wantLong := directMean(closes[len(closes)-params.Long:])
	volTail := make([]float64, params.Volume)
	for i, v := range volumes[len(volumes)-params.Volume:] {
		volTail[i] = float64(v)
	}
	wantVol := directMean(volTail)

	if math.Abs(last.ShortAvg-wantShort) > 1e-9 {
		t.Fatalf("short avg %v, want %v", last.ShortAvg, wantShort)
	}
	if math.Abs(last.LongAvg-wantLong) > 1e-9 {
		t.Fatalf("long avg %v, want %v", last.LongAvg, wantLong)
	}
	if math.Abs(last.VolumeAvg-wantVol) > 1e-6 {
		t.Fatalf("volume avg %v, want %v", last.VolumeAvg, wantVol)
	}
}

func TestLookbackResumeMatchesFullPass(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 50 + 5*math.Sin(float64(i)*0.4)
	}
	bars := barSeries(closes, nil)
	params := Params{Short: 5, Long: 20, Volume: 10}

	full, err := Points(bars, params)
	if err != nil {
		t.Fatalf("full: %v", err)
	}

	// resume at bar 40 with the required lookback buffer
	resumeAt := 40
	offset := resumeAt - params.Lookback()
	resumed, err := Points(bars[offset:], params)
	if err != nil {
		t.Fatalf("resumed: %v", err)
	}

	for i := resumeAt; i < len(bars); i++ {
		got := resumed[i-offset]
		want := full[i]
		if got.ShortOK != want.ShortOK || got.LongOK != want.LongOK {
			t.Fatalf("bar %d: defined flags diverge", i)
		}
		if math.Abs(got.ShortAvg-want.ShortAvg) > 1e-9 {
			t.Fatalf("bar %d: short %v, want %v", i, got.ShortAvg, want.ShortAvg)
		}
		if math.Abs(got.LongAvg-want.LongAvg) > 1e-9 {
			t.Fatalf("bar %d: long %v, want %v", i, got.LongAvg, want.LongAvg)
		}
	}
}

func TestTruncatedSuffixDivergesWithoutLookback(t *testing.T) {
	closes := []float64{10, 20, 30, 40, 50, 60, 70, 80}
	bars := barSeries(closes, nil)
	params := Params{Short: 2, Long: 4, Volume: 3}

	full, _ := Points(bars, params)
	truncated, _ := Points(bars[5:], params)

	// the same bar computed without lookback must not report a defined long avg
	if full[6].LongOK && truncated[1].LongOK {
		t.Fatalf("truncated suffix should not have a defined long window yet")
	}
}

func TestEngineReset(t *testing.T) {
	params := Params{Short: 2, Long: 3, Volume: 2}
	eng, err := New(params)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	bars := barSeries([]float64{10, 20, 30}, nil)
	for _, b := range bars {
		eng.Push(b)
	}
	eng.Reset()

	p := eng.Push(bars[0])
	if p.ShortOK || p.LongOK || p.VolumeOK {
		t.Fatalf("averages should be undefined after reset")
	}
}

func TestVolumeBaseline(t *testing.T) {
	bars := barSeries(
		[]float64{1, 1, 1, 1, 1},
		[]int64{100, 200, 300, 400, 500},
	)

	baseline, ok := VolumeBaseline(bars, 3)
	if !ok {
		t.Fatalf("baseline should be defined with 5 bars and window 3")
	}
	if want := float64(300+400+500) / 3; baseline != want {
		t.Fatalf("baseline = %v, want %v", baseline, want)
	}

	if _, ok := VolumeBaseline(bars[:2], 3); ok {
		t.Fatalf("partial window must not produce a baseline")
	}
	if _, ok := VolumeBaseline(bars, 0); ok {
		t.Fatalf("non-positive window must not produce a baseline")
	}
}
