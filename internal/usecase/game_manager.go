package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/identity"
	"github.com/rocketscienceinc/battleship-backend/internal/pkg"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
	"github.com/rocketscienceinc/battleship-backend/internal/rules"
	"github.com/rocketscienceinc/battleship-backend/internal/transport"
)

// Actions exchanged between the two players.
const (
	ActionCountersign = "game:countersign"
	ActionReveal      = "turn:reveal"
	ActionAccepted    = "ledger:accepted"
)

type substrate interface {
	Submit(ctx context.Context, signed entity.SignedTransition) (entity.Receipt, error)
}

type journal interface {
	Save(ctx context.Context, receipt entity.Receipt) error
	ListByGame(ctx context.Context, gameID string) ([]repository.JournalEntry, error)
}

type messenger interface {
	Request(ctx context.Context, to entity.Party, action string, payload any) (transport.Envelope, error)
	Notify(ctx context.Context, to entity.Party, action string, payload any) error
}

// GameManager - runs the game protocols on behalf of one party.
type GameManager struct {
	logger  *slog.Logger
	signer  *identity.Signer
	timeout time.Duration

	records repository.RecordStore
	ledger  substrate
	journal journal
	peers   messenger

	mu      sync.Mutex
	now     func() time.Time
	pending map[string]pendingTransition
}

// pendingTTL - how long a signed transition waits for its accepted notice.
const pendingTTL = 10 * time.Minute

// pendingTransition - a transition this party signed for someone else to submit.
type pendingTransition struct {
	tx       entity.Transition
	signedAt time.Time
}

func NewGameManager(
	logger *slog.Logger,
	signer *identity.Signer,
	timeout time.Duration,
	records repository.RecordStore,
	ledger substrate,
	journal journal,
	peers messenger,
) *GameManager {
	return &GameManager{
		logger:  logger.With("component", "game_manager", "party", signer.Party()),
		signer:  signer,
		timeout: timeout,

		records: records,
		ledger:  ledger,
		journal: journal,
		peers:   peers,

		now:     time.Now,
		pending: make(map[string]pendingTransition),
	}
}

func (that *GameManager) party() entity.Party {
	return that.signer.Party()
}

// withTimeout - applies the protocol timeout unless the caller set a deadline.
func (that *GameManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || that.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, that.timeout)
}

func (that *GameManager) sign(tx entity.Transition) entity.SignedTransition {
	signed := entity.NewSignedTransition(tx)
	that.signer.Sign(&signed)

	return signed
}

// submit - hands a fully signed transition to the ledger and journals the receipt.
func (that *GameManager) submit(ctx context.Context, signed entity.SignedTransition) (entity.Receipt, error) {
	log := that.logger.With("method", "submit", "kind", signed.Transition.Kind)

	receipt, err := that.ledger.Submit(ctx, signed)
	if err != nil {
		return entity.Receipt{}, fmt.Errorf("failed to submit %s: %w", signed.Transition.Kind, err)
	}

	if err = that.journal.Save(ctx, receipt); err != nil {
		log.Error("failed to journal receipt", "ordered_id", receipt.OrderedID, "error", err)
	}

	return receipt, nil
}

// countersigned - merges the counterparty's signature after checking it signed our transition.
func countersigned(signed entity.SignedTransition, reply transport.Envelope, counterparty entity.Party) (entity.SignedTransition, error) {
	var answer entity.SignedTransition
	if err := reply.Decode(&answer); err != nil {
		return entity.SignedTransition{}, err
	}

	if answer.Transition.ID() != signed.Transition.ID() {
		return entity.SignedTransition{}, fmt.Errorf("%w: %s answered with another transition", apperror.ErrBadSignature, counterparty)
	}

	signature, ok := answer.Signatures[counterparty]
	if !ok {
		return entity.SignedTransition{}, fmt.Errorf("%w: %s did not sign", apperror.ErrBadSignature, counterparty)
	}

	signed.Signatures[counterparty] = signature

	return signed, nil
}

// NewGame - creates a game against opponent once the opponent countersigned it.
func (that *GameManager) NewGame(ctx context.Context, name string, opponent entity.Party) (entity.Outcome, error) {
	log := that.logger.With("method", "NewGame", "game", name)

	ctx, cancel := that.withTimeout(ctx)
	defer cancel()

	existing, err := that.records.QuerySessions(ctx, that.party(), func(session entity.GameSession) bool {
		return session.Name == name
	})
	if err != nil {
		return entity.Outcome{}, fmt.Errorf("failed to check existing games: %w", err)
	}

	if len(existing) > 0 {
		return entity.Outcome{}, fmt.Errorf("%w: %q", apperror.ErrGameAlreadyExists, name)
	}

	gameID, err := pkg.GenerateGameID()
	if err != nil {
		return entity.Outcome{}, err
	}

	tx := entity.Transition{
		Kind: entity.MoveNewGame,
		Produced: entity.Records{
			Sessions: []entity.GameSession{entity.NewGameSession(gameID, name, that.party(), opponent)},
		},
	}

	if err = rules.Validate(tx); err != nil {
		return entity.Outcome{}, fmt.Errorf("new game failed local validation: %w", err)
	}

	signed := that.sign(tx)

	reply, err := that.peers.Request(ctx, opponent, ActionCountersign, signed)
	if err != nil {
		return entity.Outcome{}, fmt.Errorf("failed to collect signature of %s: %w", opponent, err)
	}

	if signed, err = countersigned(signed, reply, opponent); err != nil {
		return entity.Outcome{}, err
	}

	receipt, err := that.submit(ctx, signed)
	if err != nil {
		return entity.Outcome{}, err
	}

	that.announce(ctx, opponent, receipt)

	log.Info("game created", "opponent", opponent, "ordered_id", receipt.OrderedID)

	return entity.Outcome{Receipt: receipt}, nil
}

// HandleCountersign - the opponent's side of NewGame.
func (that *GameManager) HandleCountersign(ctx context.Context, request transport.Envelope) (any, error) {
	var signed entity.SignedTransition
	if err := request.Decode(&signed); err != nil {
		return nil, err
	}

	tx := signed.Transition
	if tx.Kind != entity.MoveNewGame {
		return nil, fmt.Errorf("%w: only new games are countersigned here", apperror.ErrValidationRejected)
	}

	if err := rules.Validate(tx); err != nil {
		return nil, err
	}

	session := tx.Produced.Sessions[0]
	if session.PlayerB != that.party() || session.PlayerA != request.From {
		return nil, fmt.Errorf("%w: %s invited %s", apperror.ErrNotParticipant, request.From, session.PlayerB)
	}

	existing, err := that.records.QuerySessions(ctx, that.party(), func(other entity.GameSession) bool {
		return other.Name == session.Name
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check existing games: %w", err)
	}

	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: %q", apperror.ErrGameAlreadyExists, session.Name)
	}

	that.signer.Sign(&signed)
	that.remember(tx)

	that.logger.Info("new game countersigned", "game", session.Name, "opponent", request.From)

	return signed, nil
}

// HandleAccepted - journals a transition this party signed once the other side reports it accepted.
func (that *GameManager) HandleAccepted(ctx context.Context, notice transport.Envelope) (any, error) {
	var receipt entity.Receipt
	if err := notice.Decode(&receipt); err != nil {
		return nil, err
	}

	if !that.forget(receipt.Transition) || receipt.TransitionID != receipt.Transition.ID() {
		return nil, fmt.Errorf("%w: receipt for a transition this party did not sign", apperror.ErrValidationRejected)
	}

	if err := that.journal.Save(ctx, receipt); err != nil {
		return nil, fmt.Errorf("failed to journal receipt: %w", err)
	}

	that.logger.Info("transition accepted", "kind", receipt.Kind, "ordered_id", receipt.OrderedID)

	return nil, nil
}

func (that *GameManager) announce(ctx context.Context, to entity.Party, receipt entity.Receipt) {
	if err := that.peers.Notify(ctx, to, ActionAccepted, receipt); err != nil {
		that.logger.Error("failed to announce accepted transition", "to", to, "error", err)
	}
}

// remember - keeps tx until its accepted notice arrives. Entries past pendingTTL
// go, and so do proposals for the same game built on an older session: once a
// newer session exists the older one is spent and can never be accepted.
func (that *GameManager) remember(tx entity.Transition) {
	that.mu.Lock()
	defer that.mu.Unlock()

	now := that.now()
	for id, entry := range that.pending {
		if now.Sub(entry.signedAt) > pendingTTL || supersedes(tx, entry.tx) {
			delete(that.pending, id)
		}
	}

	that.pending[tx.ID()] = pendingTransition{tx: tx, signedAt: now}
}

func supersedes(next, previous entity.Transition) bool {
	if next.GameID() != previous.GameID() {
		return false
	}

	if len(next.Consumed.Sessions) == 0 || len(previous.Consumed.Sessions) == 0 {
		return false
	}

	return next.Consumed.Sessions[0].Ref != previous.Consumed.Sessions[0].Ref
}

func (that *GameManager) forget(tx entity.Transition) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	id := tx.ID()
	_, ok := that.pending[id]
	delete(that.pending, id)

	return ok
}

// Status - the off-ledger view of a game: phase, hits and winner.
func (that *GameManager) Status(ctx context.Context, gameName string) (entity.Status, error) {
	session, err := repository.GameByName(ctx, that.records, that.party(), gameName)
	if err != nil {
		return entity.Status{}, fmt.Errorf("failed to get game: %w", err)
	}

	revealed, err := that.records.QueryCells(ctx, that.party(), session.ID, entity.Cell.IsRevealed)
	if err != nil {
		return entity.Status{}, fmt.Errorf("failed to get revealed cells: %w", err)
	}

	return entity.NewStatus(session, revealed), nil
}

// History - the accepted transitions of a game this party took part in.
func (that *GameManager) History(ctx context.Context, gameName string) ([]repository.JournalEntry, error) {
	session, err := repository.GameByName(ctx, that.records, that.party(), gameName)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	entries, err := that.journal.ListByGame(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	return entries, nil
}
