// Package pipeline runs fetch cycles: one quote fetch and score per symbol,
// assembled into a single Snapshot and published once.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"nepse_dashboard/models"
	"nepse_dashboard/services/scoring"
)

// Config tunes a Cycle.
type Config struct {
	// Concurrency is the maximum number of in-flight fetches. 1 or less
	// fetches symbols one after another.
	Concurrency int
	// Timeout is the budget for a whole cycle. Symbols not fetched when it
	// runs out are marked failed. Zero means no budget.
	Timeout time.Duration
}

// Cycle is the fetch cycle orchestrator.
type Cycle struct {
	fetcher   QuoteFetcher
	publisher Publisher
	cfg       Config

	now   func() time.Time
	newID func() string
}

// NewCycle creates a Cycle that fetches with fetcher and hands each
// completed snapshot to publisher.
func NewCycle(fetcher QuoteFetcher, publisher Publisher, cfg Config) *Cycle {
	return &Cycle{
		fetcher:   fetcher,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run fetches and scores every symbol, then publishes exactly one snapshot
// covering each distinct input symbol. A failing symbol is recorded as failed
// and never affects the others. The returned error is only the publisher's.
func (c *Cycle) Run(ctx context.Context, symbols []string) (*models.Snapshot, error) {
	id := c.newID()
	started := c.now()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	symbols = Dedupe(symbols)
	results := make([]models.ScoreResult, len(symbols))

	// Plain Group: one symbol's failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(max(c.cfg.Concurrency, 1))
	for i, sym := range symbols {
		g.Go(func() error {
			results[i] = c.evaluate(ctx, id, sym)
			return nil
		})
	}
	_ = g.Wait()

	snap := models.NewSnapshot(id, started, c.now(), results)
	stored, err := c.publisher.Publish(snap)
	if err != nil {
		glog.Errorf("cycle %s: publish failed: %v", id, err)
		return nil, err
	}

	ok, failed, degraded := stored.Counts()
	glog.Infof("cycle %s: published version %d, %d ok, %d failed, %d degraded in %v",
		id, stored.Version, ok, failed, degraded, stored.CompletedAt.Sub(started).Round(time.Millisecond))
	return stored, nil
}

func (c *Cycle) evaluate(ctx context.Context, id, symbol string) (result models.ScoreResult) {
	defer func() {
		if rec := recover(); rec != nil {
			glog.Errorf("cycle %s: %s: panic while fetching: %v", id, symbol, rec)
			result = models.NewFailedResult(symbol, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := ctx.Err(); err != nil {
		glog.Warningf("cycle %s: %s skipped, cycle budget exhausted: %v", id, symbol, err)
		return models.NewFailedResult(symbol, err)
	}

	quote, err := c.fetcher.Fetch(ctx, symbol)
	if err != nil {
		glog.Warningf("cycle %s: %s failed: %v", id, symbol, err)
		return models.NewFailedResult(symbol, err)
	}
	if quote.Degraded() {
		glog.Warningf("cycle %s: %s defaulted %v to 0", id, symbol, quote.Missing)
	}

	result = scoring.Evaluate(symbol, quote)
	if glog.V(1) {
		glog.Infof("cycle %s: %s ltp=%v volume=%v score=%d status=%s",
			id, symbol, result.LastTradedPrice, result.Volume, result.Score, result.Status)
	}
	return result
}

// Dedupe drops repeated symbols, keeping first-seen order.
func Dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
