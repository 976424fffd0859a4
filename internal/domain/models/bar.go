package models

import "time"

// PriceBar is one daily OHLCV observation for a security.
// Bars are immutable once stored; a series is the set of bars for one
// symbol ordered by TradeDate with no duplicate dates.
type PriceBar struct {
	Symbol       string    `json:"symbol"`
	TradeDate    time.Time `json:"trade_date"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       int64     `json:"volume"`
	VWAP         float64   `json:"vwap,omitempty"`
	Transactions int64     `json:"transactions,omitempty"`
}

// Company is reference data for a listed security, populated by an
// external loader and read by the sector/industry report passes.
type Company struct {
	Symbol                    string  `json:"symbol"`
	CompanyName               string  `json:"company_name"`
	Sector                    string  `json:"sector"`
	Industry                  string  `json:"industry"`
	MarketCap                 float64 `json:"market_cap"`
	WeightedSharesOutstanding float64 `json:"weighted_shares_outstanding"`
}
