// Package publisher forwards published snapshots to Redis pub/sub so other
// processes can follow the dashboard without polling it.
package publisher

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"nepse_dashboard/models"
	"nepse_dashboard/services/snapshot"
)

const (
	DefaultChannel = "nepse:snapshots"
	publishTimeout = 5 * time.Second
)

// Client is the subset of *redis.Client the publisher uses.
type Client interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// Source provides published snapshots.
type Source interface {
	Subscribe() (<-chan *models.Snapshot, snapshot.CancelFunc)
}

// Envelope is the message published for each snapshot.
type Envelope struct {
	CycleID     string          `json:"cycle_id"`
	Version     uint64          `json:"version"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Data        json.RawMessage `json:"data"`
}

// Publisher sends every snapshot from a Source to a Redis channel.
type Publisher struct {
	client  Client
	channel string

	cancel snapshot.CancelFunc
	wg     sync.WaitGroup
}

// NewRedis creates a publisher connected to the Redis server at addr.
func NewRedis(addr, channel string) *Publisher {
	return New(redis.NewClient(&redis.Options{Addr: addr}), channel)
}

// New creates a publisher on client.
func New(client Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Start forwards snapshots from source until Stop.
func (p *Publisher) Start(source Source) {
	updates, cancel := source.Subscribe()
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for snap := range updates {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := p.Send(ctx, snap); err != nil {
				glog.Errorf("Redis publish of cycle %s failed: %v", snap.CycleID, err)
			}
			cancel()
		}
	}()
	glog.Infof("Publishing snapshots to Redis channel %q", p.channel)
}

// Send publishes one snapshot.
func (p *Publisher) Send(ctx context.Context, snap *models.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, string(data)).Err(); err != nil {
		return errors.Wrapf(err, "publish to %s", p.channel)
	}
	return nil
}

// Stop ends the subscription and closes the Redis client.
func (p *Publisher) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return p.client.Close()
}

// Encode builds the JSON envelope for snap.
func Encode(snap *models.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, snapshot.ErrNilSnapshot
	}
	data, err := snap.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, "marshal snapshot")
	}
	return json.Marshal(Envelope{
		CycleID:     snap.CycleID,
		Version:     snap.Version,
		StartedAt:   snap.StartedAt,
		CompletedAt: snap.CompletedAt,
		Data:        data,
	})
}
