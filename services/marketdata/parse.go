package marketdata

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"nepse_dashboard/models"
)

// ParseQuote decodes an upstream quote body. The body must be a JSON object;
// each of the four quote fields that is absent, null, non-numeric, negative
// or non-finite is set to 0 and recorded in RawQuote.Missing.
func ParseQuote(body []byte) (models.RawQuote, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return models.RawQuote{}, errors.Wrap(err, "decode quote")
	}
	if payload == nil {
		return models.RawQuote{}, errors.New("decode quote: body is not a JSON object")
	}

	var q models.RawQuote
	q.LastTradedPrice = field(payload, models.FieldLTP, &q.Missing)
	q.DayHigh = field(payload, models.FieldHigh, &q.Missing)
	q.PreviousClose = field(payload, models.FieldPreviousClose, &q.Missing)
	q.Volume = field(payload, models.FieldVolume, &q.Missing)
	return q, nil
}

func field(payload map[string]any, key string, missing *[]string) float64 {
	if v, ok := coerce(payload[key]); ok {
		return v
	}
	*missing = append(*missing, key)
	return 0
}

// Decimal exponents outside this range are not float64 values worth scoring.
// Converting them would build a 10^|exp| big.Int.
const (
	maxExponent = 308
	minExponent = -400
)

// coerce turns a decoded JSON value into a non-negative finite float64.
func coerce(v any) (float64, bool) {
	var (
		d   decimal.Decimal
		err error
	)
	switch t := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(t.String())
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		d = decimal.NewFromFloat(t)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return 0, false
		}
		d, err = decimal.NewFromString(s)
	default:
		return 0, false
	}
	if err != nil || d.IsNegative() {
		return 0, false
	}
	if exp := d.Exponent(); exp > maxExponent || exp < minExponent {
		return 0, false
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
