package models

// Requests for forecast HTTP endpoints. Timestamps are RFC3339 strings or
// unix seconds. Horizons are pointers so an explicit 0 reaches validation
// instead of being replaced by the default.

type SeriesPayload struct {
	Timestamps []string       `json:"timestamps" validate:"required,min=2,dive,required"`
	Values     []float64      `json:"values" validate:"required,min=2"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type TrainRequest struct {
	Key    string        `json:"key" default:"default" validate:"required,max=128"`
	Series SeriesPayload `json:"series" validate:"required"`
}

type PredictRequest struct {
	Key     string        `json:"key" default:"default" validate:"required,max=128"`
	Series  SeriesPayload `json:"series" validate:"required"`
	Horizon *int          `json:"horizon" default:"1" validate:"required,gte=1,lte=1000"`
}

type SymbolForecastRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required"`
	N       int    `query:"n" json:"n" default:"600" validate:"gte=2,lte=5000"`
	TF      string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
	Horizon *int   `query:"horizon" json:"horizon" default:"10" validate:"required,gte=1,lte=1000"`
	Retrain bool   `query:"retrain" json:"retrain"`
}

type TrainSymbolRequest struct {
	Symbol string `json:"symbol" validate:"required"`
	N      int    `json:"n" default:"600" validate:"gte=2,lte=5000"`
	TF     string `json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
}

type WeightsRequest struct {
	Key string `query:"key" json:"key" default:"default" validate:"required"`
}
