package rules

import (
	"fmt"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

// Clause - a stable code naming the rule a transition broke.
type Clause string

const (
	ClauseUnknownKind Clause = "unknown_kind"
	ClauseShape       Clause = "shape"
	ClausePhase       Clause = "phase"

	ClauseIDEmpty     Clause = "id_empty"
	ClauseNameEmpty   Clause = "name_empty"
	ClauseSamePlayers Clause = "same_players"
	ClauseMaxScore    Clause = "max_score"
	ClauseReadyFlags  Clause = "ready_flags"
	ClauseFirstTurn   Clause = "first_turn"

	ClauseShipCount     Clause = "ship_count"
	ClauseCellOwner     Clause = "cell_owner"
	ClauseSessionChange Clause = "session_change"
	ClauseGridCoverage  Clause = "grid_coverage"

	ClauseTargetNotOpponent Clause = "target_not_opponent"
	ClauseAlreadyRevealed   Clause = "already_revealed"
	ClauseCellChange        Clause = "cell_change"
)

// Rejection - the first clause a transition failed.
type Rejection struct {
	Kind   entity.MoveKind
	Clause Clause
	Reason string
}

func reject(kind entity.MoveKind, clause Clause, format string, args ...any) *Rejection {
	return &Rejection{
		Kind:   kind,
		Clause: clause,
		Reason: fmt.Sprintf(format, args...),
	}
}

func (that *Rejection) Error() string {
	return fmt.Sprintf("%s: %s: %s", apperror.ErrValidationRejected, that.Kind, that.Reason)
}

func (that *Rejection) Unwrap() []error {
	if that.Clause == ClauseAlreadyRevealed {
		return []error{apperror.ErrValidationRejected, apperror.ErrAlreadyRevealed}
	}

	return []error{apperror.ErrValidationRejected}
}
