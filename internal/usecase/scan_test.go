package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"MarketLens/internal/domain/models"
	domrepo "MarketLens/internal/domain/repository"
	"MarketLens/internal/services/window"
	"MarketLens/pkg/cache"
)

func newScanForTest(t *testing.T, store *fakeStore, pub *fakePublisher, lock *fakeLocker, params window.Params) *ScanUseCase {
	t.Helper()
	var pubIface domrepo.EventPublisher
	if pub != nil {
		pubIface = pub
	}
	var lockIface cache.Service
	if lock != nil {
		lockIface = lock
	}
	uc, err := NewScanUseCase(store, pubIface, lockIface, nopMetrics{}, testLogger(), params, 4)
	if err != nil {
		t.Fatalf("NewScanUseCase: %v", err)
	}
	return uc
}

func TestScanFullPass(t *testing.T) {
	store := newFakeStore()
	store.addBars(barSeries("ACME", 10, 10, 10, 10, 10, 12, 14))
	uc := newScanForTest(t, store, nil, nil, window.Params{Short: 2, Long: 4, Volume: 2})

	res, err := uc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Symbols != 1 || res.Scanned != 1 || res.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", res)
	}
	if res.EventsWritten != 3 {
		t.Fatalf("events written = %d, want 3", res.EventsWritten)
	}
	if res.Errors != nil {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	events := store.eventList()
	if len(events) != 3 {
		t.Fatalf("stored events = %d, want 3", len(events))
	}
	wantTypes := []models.EventType{
		models.EventGoldenCross,
		models.EventPriceCrossShortUp,
		models.EventPriceCrossLongUp,
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Fatalf("event[%d].Type = %s, want %s", i, events[i].Type, want)
		}
		if !events[i].EventDate.Equal(day(5)) {
			t.Fatalf("event[%d].EventDate = %v, want %v", i, events[i].EventDate, day(5))
		}
	}
	golden := events[0]
	if golden.ClosePrice != 12 || math.Abs(golden.ShortSMA-11) > 1e-9 || math.Abs(golden.LongSMA-10.5) > 1e-9 {
		t.Fatalf("golden cross values: %+v", golden)
	}
	if golden.ShortWindow != 2 || golden.LongWindow != 4 {
		t.Fatalf("golden cross windows: %+v", golden)
	}
}

func TestScanRerunWithoutNewBars(t *testing.T) {
	store := newFakeStore()
	store.addBars(barSeries("ACME", 10, 10, 10, 10, 10, 12))
	uc := newScanForTest(t, store, nil, nil, window.Params{Short: 2, Long: 4, Volume: 2})

	first, err := uc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.EventsWritten != 3 {
		t.Fatalf("first run wrote %d events, want 3", first.EventsWritten)
	}

	second, err := uc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Skipped != 1 || second.Scanned != 0 || second.EventsWritten != 0 {
		t.Fatalf("second run should skip an up to date symbol: %+v", second)
	}
	if store.writeEventCalls != 1 {
		t.Fatalf("write calls = %d, want 1", store.writeEventCalls)
	}
}

func TestScanResumeMatchesOnePass(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 15*math.Sin(float64(i)/4) + float64(i%5)
	}
	params := window.Params{Short: 5, Long: 20, Volume: 5}

	onePass := newFakeStore()
	onePass.addBars(barSeries("ACME", closes...))
	if _, err := newScanForTest(t, onePass, nil, nil, params).Run(context.Background(), nil); err != nil {
		t.Fatalf("one-pass run: %v", err)
	}
	want := onePass.eventList()
	if len(want) < 4 {
		t.Fatalf("series should produce several events, got %d", len(want))
	}

	split := newFakeStore()
	split.addBars(barSeries("ACME", closes[:40]...))
	uc := newScanForTest(t, split, nil, nil, params)
	firstRes, err := uc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("split first run: %v", err)
	}
	if firstRes.EventsWritten == 0 {
		t.Fatalf("first half should already produce events")
	}

	tail := barSeries("ACME", closes...)[40:]
	split.addBars(tail)
	secondRes, err := uc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("split second run: %v", err)
	}

	got := split.eventList()
	if len(got) != len(want) {
		t.Fatalf("split produced %d events, one-pass produced %d", len(got), len(want))
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.Key() != g.Key() {
			t.Fatalf("event[%d] key = %s, want %s", i, g.Key(), w.Key())
		}
		if math.Abs(w.ShortSMA-g.ShortSMA) > 1e-9 || math.Abs(w.LongSMA-g.LongSMA) > 1e-9 {
			t.Fatalf("event[%d] averages diverge: got %+v want %+v", i, g, w)
		}
		if w.ClosePrice != g.ClosePrice {
			t.Fatalf("event[%d] close = %v, want %v", i, g.ClosePrice, w.ClosePrice)
		}
	}
	if firstRes.EventsWritten+secondRes.EventsWritten != len(want) {
		t.Fatalf("split runs wrote %d+%d events, want %d total",
			firstRes.EventsWritten, secondRes.EventsWritten, len(want))
	}
}

func TestScanSkipsThinSeries(t *testing.T) {
	store := newFakeStore()
	store.addBars(barSeries("NEWCO", 10, 11, 12))
	uc := newScanForTest(t, store, nil, nil, window.Params{Short: 5, Long: 10, Volume: 3})

	res, err := uc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 1 || res.Scanned != 0 || res.EventsWritten != 0 {
		t.Fatalf("thin series should be skipped: %+v", res)
	}
	if store.writeEventCalls != 0 {
		t.Fatalf("write calls = %d, want 0", store.writeEventCalls)
	}
}

func TestScanIsolatesSymbolFailures(t *testing.T) {
	store := newFakeStore()
	store.addBars(barSeries("GOOD", 10, 10, 10, 10, 10, 12, 14))
	store.addBars(barSeries("BAD", 10, 10, 10, 10, 10, 12, 14))
	store.failFor["BAD"] = errors.New("series unavailable")
	uc := newScanForTest(t, store, nil, nil, window.Params{Short: 2, Long: 4, Volume: 2})

	res, err := uc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scanned != 1 || res.EventsWritten != 3 {
		t.Fatalf("good symbol should still be scanned: %+v", res)
	}
	if msg, ok := res.Errors["BAD"]; !ok || msg == "" {
		t.Fatalf("expected error for BAD, got %v", res.Errors)
	}
	for _, e := range store.eventList() {
		if e.Symbol != "GOOD" {
			t.Fatalf("unexpected event for %s", e.Symbol)
		}
	}
}

func TestScanExplicitSymbols(t *testing.T) {
	store := newFakeStore()
	store.addBars(barSeries("A", 10, 10, 10, 10, 10, 12, 14))
	store.addBars(barSeries("B", 10, 10, 10, 10, 10, 12, 14))
	uc := newScanForTest(t, store, nil, nil, window.Params{Short: 2, Long: 4, Volume: 2})

	res, err := uc.Run(context.Background(), []string{"A"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Symbols != 1 || res.Scanned != 1 {
		t.Fatalf("unexpected summary: %+v", res)
	}
	for _, e := range store.eventList() {
		if e.Symbol != "A" {
			t.Fatalf("scan touched symbol %s", e.Symbol)
		}
	}
}

func TestScanPublishesNewEvents(t *testing.T) {
	store := newFakeStore()
	store.addBars(barSeries("ACME", 10, 10, 10, 10, 10, 12, 14))
	pub := &fakePublisher{}
	uc := newScanForTest(t, store, pub, nil, window.Params{Short: 2, Long: 4, Volume: 2})

	if _, err := uc.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pub.events) != 3 {
		t.Fatalf("published %d events, want 3", len(pub.events))
	}
}

func TestScanPublishErrorDoesNotFailRun(t *testing.T) {
	store := newFakeStore()
	store.addBars(barSeries("ACME", 10, 10, 10, 10, 10, 12, 14))
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	uc := newScanForTest(t, store, pub, nil, window.Params{Short: 2, Long: 4, Volume: 2})

	res, err := uc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.EventsWritten != 3 {
		t.Fatalf("events written = %d, want 3", res.EventsWritten)
	}
	if len(store.eventList()) != 3 {
		t.Fatalf("events must persist even when publishing fails")
	}
}

func TestScanLockPreventsOverlap(t *testing.T) {
	store := newFakeStore()
	store.addBars(barSeries("ACME", 10, 10, 10, 10, 10, 12, 14))
	lock := &fakeLocker{locked: true}
	uc := newScanForTest(t, store, nil, lock, window.Params{Short: 2, Long: 4, Volume: 2})

	if _, err := uc.Run(context.Background(), nil); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("err = %v, want ErrScanInProgress", err)
	}

	lock.locked = false
	if _, err := uc.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run with free lock: %v", err)
	}
	if lock.locked {
		t.Fatalf("lock should be released after the run")
	}
}
