package usecase

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/board"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
	"github.com/rocketscienceinc/battleship-backend/internal/rules"
)

// ProposeSetup - builds the transition that places submitter's fleet: all 100
// cells of its board and the session with the turn passed on.
func ProposeSetup(session entity.GameSession, submitter entity.Party, placements []board.Placement) (entity.Transition, error) {
	if !session.IsPlayer(submitter) {
		return entity.Transition{}, fmt.Errorf("%w: %s in game %s", apperror.ErrNotParticipant, submitter, session.Name)
	}

	if session.Turn != submitter {
		return entity.Transition{}, apperror.ErrNotYourTurn
	}

	occupied, err := board.Layout(placements)
	if err != nil {
		return entity.Transition{}, fmt.Errorf("%w: %w", apperror.ErrValidationRejected, err)
	}

	cells := make([]entity.Cell, 0, entity.CellCount)
	for _, coord := range board.AllCoordinates() {
		cells = append(cells, entity.NewCell(session.ID, coord, submitter, occupied[coord]))
	}

	tx := entity.Transition{
		Kind:     entity.MoveSetup,
		Consumed: entity.Records{Sessions: []entity.GameSession{session}},
		Produced: entity.Records{
			Sessions: []entity.GameSession{session.AfterSetup(submitter)},
			Cells:    cells,
		},
	}

	if err = rules.Validate(tx); err != nil {
		return entity.Transition{}, fmt.Errorf("setup failed local validation: %w", err)
	}

	return tx, nil
}

// Setup - places the caller's fleet. The setup is signed by the caller alone,
// the opponent never sees the cells.
func (that *GameManager) Setup(ctx context.Context, gameName string, placements []board.Placement) (entity.Outcome, error) {
	log := that.logger.With("method", "Setup", "game", gameName)

	ctx, cancel := that.withTimeout(ctx)
	defer cancel()

	session, err := repository.GameByName(ctx, that.records, that.party(), gameName)
	if err != nil {
		return entity.Outcome{}, fmt.Errorf("failed to get game: %w", err)
	}

	tx, err := ProposeSetup(session, that.party(), placements)
	if err != nil {
		return entity.Outcome{}, err
	}

	receipt, err := that.submit(ctx, that.sign(tx))
	if err != nil {
		return entity.Outcome{}, err
	}

	log.Info("fleet placed", "ordered_id", receipt.OrderedID)

	return entity.Outcome{Receipt: receipt}, nil
}
