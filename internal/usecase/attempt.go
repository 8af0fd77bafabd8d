package usecase

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

type AttemptState string

const (
	AttemptRequesting                AttemptState = "requesting"
	AttemptAwaitingPeerReveal        AttemptState = "awaiting_peer_reveal"
	AttemptAwaitingSubstrateDecision AttemptState = "awaiting_substrate_decision"
	AttemptAccepted                  AttemptState = "accepted"
	AttemptRejected                  AttemptState = "rejected"
	AttemptAbandoned                 AttemptState = "abandoned"
)

var ErrAttemptTransition = errors.New("invalid attempt transition")

func (that AttemptState) IsTerminal() bool {
	switch that {
	case AttemptAccepted, AttemptRejected, AttemptAbandoned:
		return true
	default:
		return false
	}
}

func isAllowedAttemptTransition(from, to AttemptState) bool {
	switch from {
	case AttemptRequesting:
		return to == AttemptAwaitingPeerReveal || to == AttemptRejected
	case AttemptAwaitingPeerReveal:
		return to == AttemptAwaitingSubstrateDecision || to == AttemptRejected
	case AttemptAwaitingSubstrateDecision:
		return to == AttemptAccepted || to == AttemptRejected
	default:
		return false
	}
}

// TurnAttempt - one try to reveal a coordinate. Nothing is recorded until the
// ledger accepts, so leaving the attempt in any state has no side effects.
type TurnAttempt struct {
	Game       string
	Coordinate entity.Coordinate
	State      AttemptState

	Pending *entity.SignedTransition
	Receipt *entity.Receipt
	Err     error
}

func NewTurnAttempt(game string, coord entity.Coordinate) *TurnAttempt {
	return &TurnAttempt{
		Game:       game,
		Coordinate: coord,
		State:      AttemptRequesting,
	}
}

// Advance - moves the attempt to the next state.
func (that *TurnAttempt) Advance(to AttemptState) error {
	if !isAllowedAttemptTransition(that.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrAttemptTransition, that.State, to)
	}

	that.State = to

	return nil
}

// Fail - ends a non-terminal attempt, as abandoned when the peer or the
// caller gave up and as rejected otherwise. It returns err for chaining.
func (that *TurnAttempt) Fail(err error, abandoned bool) error {
	if that.State.IsTerminal() {
		return err
	}

	that.State = AttemptRejected
	if abandoned {
		that.State = AttemptAbandoned
	}

	that.Pending = nil
	that.Err = err

	return err
}

func (that *TurnAttempt) Accept(receipt entity.Receipt) error {
	if err := that.Advance(AttemptAccepted); err != nil {
		return err
	}

	that.Receipt = &receipt

	return nil
}
