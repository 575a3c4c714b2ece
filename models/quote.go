package models

import (
	"encoding/json"
	"slices"
)

// Upstream quote keys as returned by the NEPSE quote API
const (
	FieldLTP           = "LTP"
	FieldHigh          = "High"
	FieldPreviousClose = "Previous Close"
	FieldVolume        = "Volume"
)

// FailedMessage is the only error text exposed to clients for a failed symbol
const FailedMessage = "Failed"

// Status is the qualitative label derived from a strength score
type Status string

const (
	StatusStrong   Status = "Strong"
	StatusModerate Status = "Moderate"
)

// RawQuote is one upstream quote after defensive numeric coercion
type RawQuote struct {
	LastTradedPrice float64
	DayHigh         float64
	PreviousClose   float64
	Volume          float64

	// Missing lists the upstream keys that were absent or non-numeric and
	// therefore defaulted to 0.
	Missing []string
}

// Degraded reports whether any field of the quote was defaulted
func (q RawQuote) Degraded() bool {
	return len(q.Missing) > 0
}

// ScoreResult is the per-symbol outcome of a fetch cycle. Exactly one of the
// two shapes is populated: the scored shape when Err is nil, the failed shape
// otherwise.
type ScoreResult struct {
	Symbol          string
	LastTradedPrice float64
	Volume          float64
	Score           int
	Status          Status
	Missing         []string

	// Err holds the cause of a failure. It is logged but never serialized.
	Err error
}

// NewFailedResult builds the failed shape for symbol
func NewFailedResult(symbol string, err error) ScoreResult {
	return ScoreResult{Symbol: symbol, Err: err}
}

// Failed reports whether the result is the failed shape
func (r ScoreResult) Failed() bool {
	return r.Err != nil
}

// Degraded reports whether a scored result was computed from defaulted fields
func (r ScoreResult) Degraded() bool {
	return !r.Failed() && len(r.Missing) > 0
}

func (r ScoreResult) clone() ScoreResult {
	r.Missing = slices.Clone(r.Missing)
	return r
}

type scoredJSON struct {
	Symbol  string   `json:"symbol"`
	LTP     float64  `json:"ltp"`
	Volume  float64  `json:"volume"`
	Score   int      `json:"score"`
	Status  Status   `json:"status"`
	Missing []string `json:"missing,omitempty"`
}

type failedJSON struct {
	Error string `json:"error"`
}

// MarshalJSON renders {symbol, ltp, volume, score, status} for scored results
// and {error: "Failed"} for failed ones.
func (r ScoreResult) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(failedJSON{Error: FailedMessage})
	}
	return json.Marshal(scoredJSON{
		Symbol:  r.Symbol,
		LTP:     r.LastTradedPrice,
		Volume:  r.Volume,
		Score:   r.Score,
		Status:  r.Status,
		Missing: r.Missing,
	})
}
