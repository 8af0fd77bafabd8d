package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

// ErrMalformedEnvelope - a message arrived but could not be read, the inbox itself is fine.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Session - reliable, ordered point-to-point messaging bound to one party's inbox.
type Session interface {
	Send(ctx context.Context, to entity.Party, envelope Envelope) error
	Receive(ctx context.Context) (Envelope, error)
}

// Envelope - one message between two parties. Replies carry the session id of
// the request they answer.
type Envelope struct {
	Action  string          `json:"action"`
	Session string          `json:"session"`
	From    entity.Party    `json:"from"`
	To      entity.Party    `json:"to"`
	Reply   bool            `json:"reply,omitempty"`
	Refusal string          `json:"refusal,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(action, session string, from, to entity.Party, payload any) (Envelope, error) {
	envelope := Envelope{
		Action:  action,
		Session: session,
		From:    from,
		To:      to,
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to marshal payload: %w", err)
		}

		envelope.Payload = raw
	}

	return envelope, nil
}

// Decode - unmarshals the payload into target.
func (that Envelope) Decode(target any) error {
	if err := json.Unmarshal(that.Payload, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", that.Action, err)
	}

	return nil
}
