package detect

import (
	"time"

	"MarketLens/internal/domain/models"
	"MarketLens/internal/services/window"
)

// Config carries the window sizes stamped onto emitted events.
type Config struct {
	Short int
	Long  int
}

// Detect scans adjacent point pairs and emits crossover events. Rules are
// evaluated independently per pair, so several event types may fire on
// one date. Equality at the boundary counts as "not yet crossed": a tie
// point never emits, only the next strict inequality does. A pair where
// either point lacks a required average emits nothing for that family.
//
// Only pairs whose current date is strictly after `after` emit; earlier
// pairs are still consumed for window continuity. Pass the zero time to
// emit from the series start. Output is ordered by event date ascending,
// then canonical type rank.
func Detect(symbol string, points []window.Point, cfg Config, after time.Time) []models.SignalEvent {
	var events []models.SignalEvent

	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		if !after.IsZero() && !curr.TradeDate.After(after) {
			continue
		}

		emit := func(t models.EventType) {
			events = append(events, newEvent(symbol, curr, cfg, t))
		}

		// moving-average pair
		if prev.ShortOK && prev.LongOK && curr.ShortOK && curr.LongOK {
			switch {
			case prev.ShortAvg <= prev.LongAvg && curr.ShortAvg > curr.LongAvg:
				emit(models.EventGoldenCross)
			case prev.ShortAvg >= prev.LongAvg && curr.ShortAvg < curr.LongAvg:
				emit(models.EventDeathCross)
			}
		}

		// price against the short average
		if prev.ShortOK && curr.ShortOK {
			switch {
			case prev.Close <= prev.ShortAvg && curr.Close > curr.ShortAvg:
				emit(models.EventPriceCrossShortUp)
			case prev.Close >= prev.ShortAvg && curr.Close < curr.ShortAvg:
				emit(models.EventPriceCrossShortDown)
			}
		}

		// price against the long average
		if prev.LongOK && curr.LongOK {
			switch {
			case prev.Close <= prev.LongAvg && curr.Close > curr.LongAvg:
				emit(models.EventPriceCrossLongUp)
			case prev.Close >= prev.LongAvg && curr.Close < curr.LongAvg:
				emit(models.EventPriceCrossLongDown)
			}
		}
	}

	return events
}

func newEvent(symbol string, p window.Point, cfg Config, t models.EventType) models.SignalEvent {
	e := models.SignalEvent{
		Symbol:      symbol,
		EventDate:   p.TradeDate,
		Type:        t,
		ClosePrice:  p.Close,
		ShortWindow: cfg.Short,
		LongWindow:  cfg.Long,
	}
	if p.ShortOK {
		e.ShortSMA = p.ShortAvg
	}
	if p.LongOK {
		e.LongSMA = p.LongAvg
	}
	return e
}
