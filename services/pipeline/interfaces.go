package pipeline

import (
	"context"

	"nepse_dashboard/models"
)

//go:generate mockgen -package=pipeline_test -destination=mock_interfaces_test.go -source=interfaces.go

// QuoteFetcher retrieves the quote for one symbol.
type QuoteFetcher interface {
	Fetch(ctx context.Context, symbol string) (models.RawQuote, error)
}

// Publisher takes ownership of a completed snapshot.
type Publisher interface {
	Publish(snap *models.Snapshot) (*models.Snapshot, error)
}
