package peer

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
)

// Only these codes cross the wire for a refused request, never record contents.
const (
	RefusalAlreadyRevealed = "already_revealed"
	RefusalRejected        = "validation_rejected"
	RefusalGameNotFound    = "game_not_found"
	RefusalNotParticipant  = "not_participant"
	RefusalUnknownAction   = "unknown_action"
	RefusalOther           = "refused"
)

var refusals = []struct {
	code string
	err  error
}{
	{RefusalAlreadyRevealed, apperror.ErrAlreadyRevealed},
	{RefusalRejected, apperror.ErrValidationRejected},
	{RefusalGameNotFound, apperror.ErrGameNotFound},
	{RefusalNotParticipant, apperror.ErrNotParticipant},
	{RefusalUnknownAction, ErrUnknownAction},
}

func RefusalCode(err error) string {
	for _, refusal := range refusals {
		if errors.Is(err, refusal.err) {
			return refusal.code
		}
	}

	return RefusalOther
}

// RefusalError - the error a requester sees for a refusal code.
func RefusalError(code string) error {
	for _, refusal := range refusals {
		if refusal.code == code {
			return fmt.Errorf("%w: %w", apperror.ErrPeerRefused, refusal.err)
		}
	}

	return fmt.Errorf("%w: %s", apperror.ErrPeerRefused, code)
}
