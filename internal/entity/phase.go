package entity

import (
	"errors"
	"fmt"
)

type Phase string

const (
	PhaseCreated       Phase = "created"
	PhaseAwaitingSetup Phase = "awaiting_setup"
	PhaseSettingUp     Phase = "setting_up"
	PhaseInProgress    Phase = "in_progress"
	PhaseFinished      Phase = "finished"
)

var ErrPhaseTransition = errors.New("move is not allowed in this phase")

// NextPhase - the session lifecycle. Setup from SettingUp ends the setup stage.
func NextPhase(from Phase, kind MoveKind) (Phase, error) {
	switch {
	case kind == MoveNewGame && from == PhaseCreated:
		return PhaseAwaitingSetup, nil
	case kind == MoveSetup && from == PhaseAwaitingSetup:
		return PhaseSettingUp, nil
	case kind == MoveSetup && from == PhaseSettingUp:
		return PhaseInProgress, nil
	case kind == MoveTurn && from == PhaseInProgress:
		return PhaseInProgress, nil
	default:
		return from, fmt.Errorf("%w: %s from %s", ErrPhaseTransition, kind, from)
	}
}
