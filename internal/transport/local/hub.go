package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/transport"
)

const inboxSize = 64

// Hub - in-process inboxes, one buffered channel per party.
type Hub struct {
	mu      sync.Mutex
	inboxes map[entity.Party]chan transport.Envelope
}

func NewHub() *Hub {
	return &Hub{
		inboxes: make(map[entity.Party]chan transport.Envelope),
	}
}

func (that *Hub) inbox(party entity.Party) chan transport.Envelope {
	that.mu.Lock()
	defer that.mu.Unlock()

	inbox, ok := that.inboxes[party]
	if !ok {
		inbox = make(chan transport.Envelope, inboxSize)
		that.inboxes[party] = inbox
	}

	return inbox
}

// Endpoint - the session of party on this hub.
func (that *Hub) Endpoint(party entity.Party) transport.Session {
	return &endpoint{hub: that, party: party}
}

type endpoint struct {
	hub   *Hub
	party entity.Party
}

func (that *endpoint) Send(ctx context.Context, to entity.Party, envelope transport.Envelope) error {
	envelope.From = that.party
	envelope.To = to

	select {
	case that.hub.inbox(to) <- envelope:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to deliver to %s: %w", to, ctx.Err())
	}
}

func (that *endpoint) Receive(ctx context.Context) (transport.Envelope, error) {
	select {
	case envelope := <-that.hub.inbox(that.party):
		return envelope, nil
	case <-ctx.Done():
		return transport.Envelope{}, fmt.Errorf("stopped waiting for messages: %w", ctx.Err())
	}
}
