package models

// Request models for the scan API. Query/JSON binding plus default and validate tags.

type ScanRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required"`
	TF      string `query:"tf" json:"tf" default:"5m" validate:"timeframe"`
	Limit   int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
	From    string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To      string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Refresh bool   `query:"refresh" json:"refresh"`
}

type SignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To     string `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

type ScanJobRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=100,dive,required"`
	TF      string   `json:"tf" default:"5m" validate:"timeframe"`
	Limit   int      `json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

// ScanJobPayload is one queued scan.
type ScanJobPayload struct {
	Symbol string `json:"symbol"`
	TF     string `json:"tf"`
	Limit  int    `json:"limit"`
}

type JobRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}
