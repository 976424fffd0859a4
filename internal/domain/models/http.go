package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type DailyReportRequest struct {
	Date    string `query:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Refresh bool   `query:"refresh" json:"refresh"`
}

type TrailingReportRequest struct {
	End  string `query:"end" json:"end" validate:"omitempty,datetime=2006-01-02"`
	Days int    `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}

type ListEventsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,max=32"`
	From   string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
	Type   string `query:"type" json:"type" validate:"omitempty,oneof=golden_cross death_cross price_cross_short_up price_cross_short_down price_cross_long_up price_cross_long_down"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type RunScanRequest struct {
	Symbols []string `json:"symbols" validate:"omitempty,dive,min=1,max=32"`
}

type BuildDailyReportRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	WriteFile bool   `json:"write_file"`
}

type BuildTrailingReportRequest struct {
	End       string `json:"end" validate:"omitempty,datetime=2006-01-02"`
	Days      int    `json:"days" default:"30" validate:"gte=1,lte=365"`
	WriteFile bool   `json:"write_file"`
}
