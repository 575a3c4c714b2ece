package marketdata

import "fmt"

// Fetch stages reported in FetchError.Op
const (
	OpRequest = "request"
	OpRead    = "read"
	OpStatus  = "status"
	OpDecode  = "decode"
)

// FetchError is returned by Client.Fetch for any failure to obtain a usable
// quote for a symbol.
type FetchError struct {
	Symbol     string
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("marketdata: %s %s (status %d): %v", e.Op, e.Symbol, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("marketdata: %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
