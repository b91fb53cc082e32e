package models

import "time"

// ForecastRequestMessage is consumed from the forecast request topic. A
// missing horizon means one step; an explicit 0 is rejected.
type ForecastRequestMessage struct {
	Key        string      `json:"key"`
	Timestamps []time.Time `json:"timestamps"`
	Values     []float64   `json:"values"`
	Horizon    *int        `json:"horizon,omitempty"`
	Retrain    bool        `json:"retrain"`
}

// TrainJobPayload is enqueued by the async training endpoint.
type TrainJobPayload struct {
	Key    string `json:"key"`
	Symbol string `json:"symbol"`
	N      int    `json:"n"`
	TF     string `json:"tf"`
}
