package models

import (
	"fmt"
	"sort"
	"time"
)

// EventType identifies a crossover signal family and direction.
type EventType string

const (
	EventGoldenCross         EventType = "golden_cross"
	EventDeathCross          EventType = "death_cross"
	EventPriceCrossShortUp   EventType = "price_cross_short_up"
	EventPriceCrossShortDown EventType = "price_cross_short_down"
	EventPriceCrossLongUp    EventType = "price_cross_long_up"
	EventPriceCrossLongDown  EventType = "price_cross_long_down"
)

// canonicalRank fixes the same-day persist order: moving-average events
// before price events, up before down, short pair before long pair.
var canonicalRank = map[EventType]int{
	EventGoldenCross:         0,
	EventDeathCross:          1,
	EventPriceCrossShortUp:   2,
	EventPriceCrossShortDown: 3,
	EventPriceCrossLongUp:    4,
	EventPriceCrossLongDown:  5,
}

// Rank returns the canonical ordering rank; unknown types sort last.
func (t EventType) Rank() int {
	if r, ok := canonicalRank[t]; ok {
		return r
	}
	return len(canonicalRank)
}

// Valid reports whether t is one of the six known event types.
func (t EventType) Valid() bool {
	_, ok := canonicalRank[t]
	return ok
}

// EventTypes lists all known types in canonical order.
func EventTypes() []EventType {
	return []EventType{
		EventGoldenCross,
		EventDeathCross,
		EventPriceCrossShortUp,
		EventPriceCrossShortDown,
		EventPriceCrossLongUp,
		EventPriceCrossLongDown,
	}
}

// SignalEvent is one detected crossover. Uniqueness is on
// (Symbol, EventDate, Type): a symbol may emit several event types on
// the same date. Events are created only by the detector and never mutated.
// LongSMA is zero on early price_cross_short events where the long
// average is not yet defined.
type SignalEvent struct {
	Symbol      string    `json:"symbol"`
	EventDate   time.Time `json:"event_date"`
	Type        EventType `json:"event_type"`
	ClosePrice  float64   `json:"close_price"`
	ShortSMA    float64   `json:"short_sma"`
	LongSMA     float64   `json:"long_sma"`
	ShortWindow int       `json:"short_window"`
	LongWindow  int       `json:"long_window"`
}

// Key returns the natural uniqueness key for duplicate filtering.
func (e SignalEvent) Key() string {
	return fmt.Sprintf("%s|%s|%s", e.Symbol, e.EventDate.Format("2006-01-02"), e.Type)
}

// SortEvents orders events canonically: event date ascending, then type
// rank, then symbol for cross-symbol determinism.
func SortEvents(events []SignalEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].EventDate.Before(events[j].EventDate)
		}
		if events[i].Type.Rank() != events[j].Type.Rank() {
			return events[i].Type.Rank() < events[j].Type.Rank()
		}
		return events[i].Symbol < events[j].Symbol
	})
}
