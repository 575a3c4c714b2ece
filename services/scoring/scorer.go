package scoring

import (
	"github.com/shopspring/decimal"

	"nepse_dashboard/models"
)

// Scoring rule weights and thresholds
const (
	AboveCloseWeight = 30
	NearHighWeight   = 30
	VolumeWeight     = 40

	MaxScore        = 100
	StrongThreshold = 70
)

var (
	nearHighRatio   = decimal.RequireFromString("0.98")
	volumeThreshold = decimal.NewFromInt(50000)
)

// Score computes the strength score of a quote and its status label.
//
// +30 when the last traded price is above the previous close, +30 when it is
// within 2% of a known day high, +40 when volume exceeds 50,000; capped at 100.
// A quote whose fields all defaulted to 0 scores 0 (Moderate); callers tell
// that apart from a genuine zero through RawQuote.Missing.
func Score(q models.RawQuote) (int, models.Status) {
	ltp := decimal.NewFromFloat(q.LastTradedPrice)
	high := decimal.NewFromFloat(q.DayHigh)
	prev := decimal.NewFromFloat(q.PreviousClose)
	volume := decimal.NewFromFloat(q.Volume)

	score := 0
	if ltp.GreaterThan(prev) {
		score += AboveCloseWeight
	}
	// Without a day high there is nothing to be near.
	if high.IsPositive() && ltp.GreaterThanOrEqual(high.Mul(nearHighRatio)) {
		score += NearHighWeight
	}
	if volume.GreaterThan(volumeThreshold) {
		score += VolumeWeight
	}
	score = min(score, MaxScore)

	return score, StatusFor(score)
}

// StatusFor maps a score to its label
func StatusFor(score int) models.Status {
	if score >= StrongThreshold {
		return models.StatusStrong
	}
	return models.StatusModerate
}

// Evaluate scores q and builds the scored result for symbol.
func Evaluate(symbol string, q models.RawQuote) models.ScoreResult {
	score, status := Score(q)
	return models.ScoreResult{
		Symbol:          symbol,
		LastTradedPrice: q.LastTradedPrice,
		Volume:          q.Volume,
		Score:           score,
		Status:          status,
		Missing:         q.Missing,
	}
}
