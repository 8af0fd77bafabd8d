package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/transport"
)

const pollTimeout = time.Second

var _ transport.Session = (*Client)(nil)

// Client - inboxes are Redis lists, RPUSH on send and BLPOP on receive keep
// every inbox in order.
type Client struct {
	client *redis.Client
	party  entity.Party
}

func New(client *redis.Client, party entity.Party) *Client {
	return &Client{
		client: client,
		party:  party,
	}
}

func inboxKey(party entity.Party) string {
	return "inbox:" + party.String()
}

// Send - appends the envelope to the inbox of to.
func (that *Client) Send(ctx context.Context, to entity.Party, envelope transport.Envelope) error {
	envelope.From = that.party
	envelope.To = to

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err = that.client.RPush(ctx, inboxKey(to), payload).Err(); err != nil {
		return fmt.Errorf("failed to push envelope to %s: %w", to, err)
	}

	return nil
}

// Receive - blocks until the next envelope arrives or ctx is done.
func (that *Client) Receive(ctx context.Context) (transport.Envelope, error) {
	for {
		if err := ctx.Err(); err != nil {
			return transport.Envelope{}, fmt.Errorf("stopped waiting for messages: %w", err)
		}

		values, err := that.client.BLPop(ctx, pollTimeout, inboxKey(that.party)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return transport.Envelope{}, fmt.Errorf("stopped waiting for messages: %w", ctx.Err())
			}

			return transport.Envelope{}, fmt.Errorf("failed to pop envelope: %w", err)
		}

		// BLPOP answers with the key followed by the value
		var envelope transport.Envelope
		if err = json.Unmarshal([]byte(values[1]), &envelope); err != nil {
			return transport.Envelope{}, fmt.Errorf("%w: %w", transport.ErrMalformedEnvelope, err)
		}

		return envelope, nil
	}
}
