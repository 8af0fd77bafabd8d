package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
	"github.com/rocketscienceinc/battleship-backend/internal/rules"
	"github.com/rocketscienceinc/battleship-backend/internal/transport"
)

// RevealRequest - the only thing a mover tells the holder.
type RevealRequest struct {
	Game       string            `json:"game"`
	Coordinate entity.Coordinate `json:"coordinate"`
}

// PlayTurn - reveals coord on the opponent's board. The opponent builds and
// signs the one-cell transition, the caller checks it, countersigns and
// submits it.
func (that *GameManager) PlayTurn(ctx context.Context, gameName string, coord entity.Coordinate) (entity.Outcome, error) {
	attempt := NewTurnAttempt(gameName, coord)

	outcome, err := that.playTurn(ctx, attempt)
	if err != nil {
		abandoned := errors.Is(err, apperror.ErrPeerUnresponsive) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		return entity.Outcome{}, attempt.Fail(err, abandoned)
	}

	return outcome, nil
}

func (that *GameManager) playTurn(ctx context.Context, attempt *TurnAttempt) (entity.Outcome, error) {
	log := that.logger.With("method", "PlayTurn", "game", attempt.Game, "coordinate", attempt.Coordinate)

	ctx, cancel := that.withTimeout(ctx)
	defer cancel()

	if !attempt.Coordinate.InGrid() {
		return entity.Outcome{}, fmt.Errorf("%w: %s", apperror.ErrOutOfGrid, attempt.Coordinate)
	}

	session, opponent, err := that.prepareTurn(ctx, attempt)
	if err != nil {
		return entity.Outcome{}, err
	}

	if err = attempt.Advance(AttemptAwaitingPeerReveal); err != nil {
		return entity.Outcome{}, err
	}

	reply, err := that.peers.Request(ctx, opponent, ActionReveal, RevealRequest{Game: attempt.Game, Coordinate: attempt.Coordinate})
	if err != nil {
		return entity.Outcome{}, fmt.Errorf("failed to get cell %s from %s: %w", attempt.Coordinate, opponent, err)
	}

	var proposal entity.SignedTransition
	if err = reply.Decode(&proposal); err != nil {
		return entity.Outcome{}, err
	}

	if err = checkProposal(proposal.Transition, session, opponent, attempt.Coordinate); err != nil {
		return entity.Outcome{}, err
	}

	signed, err := countersigned(that.sign(proposal.Transition), reply, opponent)
	if err != nil {
		return entity.Outcome{}, err
	}

	attempt.Pending = &signed
	if err = attempt.Advance(AttemptAwaitingSubstrateDecision); err != nil {
		return entity.Outcome{}, err
	}

	receipt, err := that.submit(ctx, signed)
	if err != nil {
		return entity.Outcome{}, err
	}

	if err = attempt.Accept(receipt); err != nil {
		return entity.Outcome{}, err
	}

	that.announce(ctx, opponent, receipt)

	revealed := receipt.Produced.Cells[0]
	log.Info("turn accepted", "hit", revealed.ContainsShip, "ordered_id", receipt.OrderedID)

	return entity.Outcome{
		Receipt:    receipt,
		Coordinate: revealed.Coordinate,
		Hit:        revealed.ContainsShip,
	}, nil
}

// prepareTurn - local checks before anything is sent to the opponent.
func (that *GameManager) prepareTurn(ctx context.Context, attempt *TurnAttempt) (entity.GameSession, entity.Party, error) {
	status, err := that.Status(ctx, attempt.Game)
	if err != nil {
		return entity.GameSession{}, "", err
	}

	session := status.Session

	switch {
	case status.IsFinished():
		return entity.GameSession{}, "", fmt.Errorf("%w: %s won", apperror.ErrGameFinished, status.Winner)
	case session.Turn != that.party():
		return entity.GameSession{}, "", apperror.ErrNotYourTurn
	case session.Phase() != entity.PhaseInProgress:
		return entity.GameSession{}, "", fmt.Errorf("%w: game is %s", apperror.ErrValidationRejected, session.Phase())
	}

	opponent := session.Opponent(that.party())

	played, err := that.records.QueryCells(ctx, that.party(), session.ID, func(cell entity.Cell) bool {
		return cell.OriginalHolder == opponent && cell.Coordinate == attempt.Coordinate
	})
	if err != nil {
		return entity.GameSession{}, "", fmt.Errorf("failed to check played cells: %w", err)
	}

	if len(played) > 0 {
		return entity.GameSession{}, "", fmt.Errorf("%w: %s", apperror.ErrAlreadyRevealed, attempt.Coordinate)
	}

	return session, opponent, nil
}

// checkProposal - the mover re-runs the rules and checks that the holder
// answered with the requested cell of the current session.
func checkProposal(tx entity.Transition, session entity.GameSession, opponent entity.Party, coord entity.Coordinate) error {
	if err := rules.Validate(tx); err != nil {
		return fmt.Errorf("proposal of %s failed validation: %w", opponent, err)
	}

	if tx.Kind != entity.MoveTurn {
		return fmt.Errorf("%w: proposal is a %s", apperror.ErrValidationRejected, tx.Kind)
	}

	consumed := tx.Consumed.Sessions[0]
	if consumed.Ref != session.Ref || !consumed.SameState(session) {
		return fmt.Errorf("%w: proposal spends another session", apperror.ErrValidationRejected)
	}

	target := tx.Consumed.Cells[0]
	if target.Coordinate != coord || target.OriginalHolder != opponent {
		return fmt.Errorf("%w: returned cell %s is not the requested %s", apperror.ErrValidationRejected, target.Coordinate, coord)
	}

	return nil
}

// HandleReveal - the holder's side of a turn. Only the targeted cell leaves
// this party.
func (that *GameManager) HandleReveal(ctx context.Context, request transport.Envelope) (any, error) {
	var reveal RevealRequest
	if err := request.Decode(&reveal); err != nil {
		return nil, err
	}

	log := that.logger.With("method", "HandleReveal", "game", reveal.Game, "coordinate", reveal.Coordinate, "from", request.From)

	session, err := repository.GameByName(ctx, that.records, that.party(), reveal.Game)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	if session.Opponent(that.party()) != request.From {
		return nil, fmt.Errorf("%w: %s in game %s", apperror.ErrNotParticipant, request.From, session.Name)
	}

	if session.Turn != request.From {
		return nil, apperror.ErrNotYourTurn
	}

	cell, err := repository.CellAt(ctx, that.records, that.party(), session.ID, that.party(), reveal.Coordinate)
	if err != nil {
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}

	// checked again here, concurrent moves may race on the same cell
	if cell.IsRevealed() {
		return nil, fmt.Errorf("%w: %s", apperror.ErrAlreadyRevealed, reveal.Coordinate)
	}

	tx := entity.Transition{
		Kind: entity.MoveTurn,
		Consumed: entity.Records{
			Sessions: []entity.GameSession{session},
			Cells:    []entity.Cell{cell},
		},
		Produced: entity.Records{
			Sessions: []entity.GameSession{session.AfterTurn()},
			Cells:    []entity.Cell{cell.RevealedTo(request.From)},
		},
	}

	if err = rules.Validate(tx); err != nil {
		return nil, err
	}

	signed := that.sign(tx)
	that.remember(tx)

	log.Info("cell disclosed")

	return signed, nil
}
