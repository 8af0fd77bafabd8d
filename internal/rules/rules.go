package rules

import (
	"errors"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
)

// Validate - decides whether tx is a legal transition. It has no side effects,
// so both players and the ledger reach the same verdict. The first broken
// clause is reported.
func Validate(tx entity.Transition) error {
	var rejection *Rejection

	switch tx.Kind {
	case entity.MoveNewGame:
		rejection = validateNewGame(tx)
	case entity.MoveSetup:
		rejection = validateSetup(tx)
	case entity.MoveTurn:
		rejection = validateTurn(tx)
	default:
		rejection = reject(tx.Kind, ClauseUnknownKind, "unknown move kind %q", tx.Kind)
	}

	if rejection != nil {
		return rejection
	}

	return nil
}

// ClauseOf - the clause behind a rules error, empty for other errors.
func ClauseOf(err error) Clause {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection.Clause
	}

	return ""
}

// RequiredSigners - parties whose signatures the ledger demands for tx.
func RequiredSigners(tx entity.Transition) []entity.Party {
	switch tx.Kind {
	case entity.MoveNewGame:
		if len(tx.Produced.Sessions) == 1 {
			return tx.Produced.Sessions[0].Participants()
		}
	case entity.MoveSetup:
		if len(tx.Consumed.Sessions) == 1 {
			return []entity.Party{tx.Consumed.Sessions[0].Turn}
		}
	case entity.MoveTurn:
		if len(tx.Consumed.Sessions) == 1 {
			return tx.Consumed.Sessions[0].Participants()
		}
	}

	return nil
}

func shape(tx entity.Transition, sessionsIn, cellsIn, sessionsOut, cellsOut int) *Rejection {
	if len(tx.Consumed.Sessions) != sessionsIn || len(tx.Consumed.Cells) != cellsIn ||
		len(tx.Produced.Sessions) != sessionsOut || len(tx.Produced.Cells) != cellsOut {
		return reject(tx.Kind, ClauseShape,
			"want %d+%d consumed and %d+%d produced records, got %d+%d and %d+%d",
			sessionsIn, cellsIn, sessionsOut, cellsOut,
			len(tx.Consumed.Sessions), len(tx.Consumed.Cells),
			len(tx.Produced.Sessions), len(tx.Produced.Cells))
	}

	return nil
}

func validateNewGame(tx entity.Transition) *Rejection {
	if rejection := shape(tx, 0, 0, 1, 0); rejection != nil {
		return rejection
	}

	session := tx.Produced.Sessions[0]

	switch {
	case session.ID == "":
		return reject(tx.Kind, ClauseIDEmpty, "the game id must not be empty")
	case session.Name == "":
		return reject(tx.Kind, ClauseNameEmpty, "the name must not be empty")
	case session.PlayerA == "" || session.PlayerB == "" || session.PlayerA == session.PlayerB:
		return reject(tx.Kind, ClauseSamePlayers, "players must be two distinct parties")
	case session.MaxScore != entity.MaxScore:
		return reject(tx.Kind, ClauseMaxScore, "the max score must be %d, got %d", entity.MaxScore, session.MaxScore)
	case session.ReadyA || session.ReadyB:
		return reject(tx.Kind, ClauseReadyFlags, "no player can be ready in a new game")
	case session.Turn != session.PlayerA:
		return reject(tx.Kind, ClauseFirstTurn, "the first turn belongs to %s", session.PlayerA)
	}

	return nil
}

func validateSetup(tx entity.Transition) *Rejection {
	if rejection := shape(tx, 1, 0, 1, entity.CellCount); rejection != nil {
		return rejection
	}

	before := tx.Consumed.Sessions[0]
	after := tx.Produced.Sessions[0]
	submitter := before.Turn

	if _, err := entity.NextPhase(before.Phase(), tx.Kind); err != nil || before.IsReady(submitter) {
		return reject(tx.Kind, ClausePhase, "%s cannot place ships in phase %s", submitter, before.Phase())
	}

	ships := 0
	for _, cell := range tx.Produced.Cells {
		if cell.ContainsShip {
			ships++
		}
	}
	if ships != before.MaxScore {
		return reject(tx.Kind, ClauseShipCount, "the number of ship cells must be %d, got %d", before.MaxScore, ships)
	}

	for _, cell := range tx.Produced.Cells {
		if cell.Holder != submitter || cell.OriginalHolder != submitter || cell.GameID != before.ID {
			return reject(tx.Kind, ClauseCellOwner, "cell %s must belong to %s in game %s", cell.Coordinate, submitter, before.ID)
		}
	}

	if !after.SameState(before.AfterSetup(submitter)) {
		return reject(tx.Kind, ClauseSessionChange, "the session may only mark %s ready and pass the turn", submitter)
	}

	seen := make(map[entity.Coordinate]bool, entity.CellCount)
	for _, cell := range tx.Produced.Cells {
		if !cell.Coordinate.InGrid() || seen[cell.Coordinate] {
			return reject(tx.Kind, ClauseGridCoverage, "cell %s is outside the grid or repeated", cell.Coordinate)
		}

		seen[cell.Coordinate] = true
	}

	return nil
}

func validateTurn(tx entity.Transition) *Rejection {
	if rejection := shape(tx, 1, 1, 1, 1); rejection != nil {
		return rejection
	}

	before := tx.Consumed.Sessions[0]
	after := tx.Produced.Sessions[0]
	target := tx.Consumed.Cells[0]
	revealed := tx.Produced.Cells[0]
	mover := before.Turn

	if _, err := entity.NextPhase(before.Phase(), tx.Kind); err != nil {
		return reject(tx.Kind, ClausePhase, "turns are not allowed in phase %s", before.Phase())
	}

	opponent := before.Waiting()
	if opponent == "" || target.OriginalHolder != opponent || target.GameID != before.ID {
		return reject(tx.Kind, ClauseTargetNotOpponent, "cell %s must be on the board of %s", target.Coordinate, opponent)
	}

	if target.IsRevealed() {
		return reject(tx.Kind, ClauseAlreadyRevealed, "cell %s was already revealed", target.Coordinate)
	}

	if !revealed.SameState(target.RevealedTo(mover)) {
		return reject(tx.Kind, ClauseCellChange, "cell %s may only change its holder to %s", target.Coordinate, mover)
	}

	if !after.SameState(before.AfterTurn()) {
		return reject(tx.Kind, ClauseSessionChange, "the session may only pass the turn to %s", opponent)
	}

	return nil
}
