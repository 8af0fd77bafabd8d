package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
)

var (
	_ Substrate              = (*Memory)(nil)
	_ repository.RecordStore = (*Memory)(nil)
)

// Memory - an in-process ledger that doubles as the record store of every party.
type Memory struct {
	mu   sync.Mutex
	keys keyDirectory

	sessions map[string]entity.GameSession
	cells    map[string]entity.Cell
	accepted map[string]bool
	receipts []entity.Receipt
}

func NewMemory(keys keyDirectory) *Memory {
	return &Memory{
		keys:     keys,
		sessions: make(map[string]entity.GameSession),
		cells:    make(map[string]entity.Cell),
		accepted: make(map[string]bool),
	}
}

func (that *Memory) Submit(_ context.Context, signed entity.SignedTransition) (entity.Receipt, error) {
	if err := verify(that.keys, signed); err != nil {
		return entity.Receipt{}, err
	}

	tx := signed.Transition

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.accepted[tx.ID()] {
		return entity.Receipt{}, rejected(ErrDuplicateTransition)
	}

	for _, session := range tx.Consumed.Sessions {
		stored, ok := that.sessions[session.Ref]
		if !ok || !sameRecord(stored, session) {
			return entity.Receipt{}, rejected(fmt.Errorf("session %q is consumed or unknown", session.Ref))
		}
	}

	for _, cell := range tx.Consumed.Cells {
		stored, ok := that.cells[cell.Ref]
		if !ok || !sameRecord(stored, cell) {
			return entity.Receipt{}, rejected(fmt.Errorf("cell %q is consumed or unknown", cell.Ref))
		}
	}

	for _, session := range tx.Consumed.Sessions {
		delete(that.sessions, session.Ref)
	}
	for _, cell := range tx.Consumed.Cells {
		delete(that.cells, cell.Ref)
	}

	produced := tx.WithRefs()
	for _, session := range produced.Sessions {
		that.sessions[session.Ref] = session
	}
	for _, cell := range produced.Cells {
		that.cells[cell.Ref] = cell
	}

	that.accepted[tx.ID()] = true

	receipt := newReceipt(int64(len(that.receipts)+1), tx, produced)
	that.receipts = append(that.receipts, receipt)

	return receipt, nil
}

func (that *Memory) QuerySessions(_ context.Context, party entity.Party, match func(entity.GameSession) bool) ([]entity.GameSession, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	var sessions []entity.GameSession
	for _, session := range that.sessions {
		if slices.Contains(session.Participants(), party) && (match == nil || match(session)) {
			sessions = append(sessions, session)
		}
	}

	slices.SortFunc(sessions, func(a, b entity.GameSession) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})

	return sessions, nil
}

func (that *Memory) QueryCells(_ context.Context, party entity.Party, gameID string, match func(entity.Cell) bool) ([]entity.Cell, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	var cells []entity.Cell
	for _, cell := range that.cells {
		if cell.GameID != gameID || !slices.Contains(cell.Participants(), party) {
			continue
		}

		if match == nil || match(cell) {
			cells = append(cells, cell)
		}
	}

	repository.SortCells(cells)

	return cells, nil
}

// Receipts - every accepted transition in ledger order.
func (that *Memory) Receipts() []entity.Receipt {
	that.mu.Lock()
	defer that.mu.Unlock()

	return slices.Clone(that.receipts)
}
