package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/rules"
)

var ErrDuplicateTransition = errors.New("transition was already accepted")

// Substrate - orders transitions and lets every record be consumed at most once.
type Substrate interface {
	Submit(ctx context.Context, signed entity.SignedTransition) (entity.Receipt, error)
}

type keyDirectory interface {
	Verify(signed entity.SignedTransition, required []entity.Party) error
}

// verify - the checks that need no ledger state: rules and signatures.
func verify(keys keyDirectory, signed entity.SignedTransition) error {
	if err := rules.Validate(signed.Transition); err != nil {
		return rejected(err)
	}

	if err := keys.Verify(signed, rules.RequiredSigners(signed.Transition)); err != nil {
		return rejected(err)
	}

	return nil
}

func rejected(err error) error {
	return fmt.Errorf("%w: %w", apperror.ErrSubstrateRejected, err)
}

// sameRecord - a consumed record must match the ledger's copy field by field.
func sameRecord(stored, claimed any) bool {
	switch claimed := claimed.(type) {
	case entity.GameSession:
		session, ok := stored.(entity.GameSession)
		return ok && session.Ref == claimed.Ref && session.SameState(claimed)
	case entity.Cell:
		cell, ok := stored.(entity.Cell)
		return ok && cell.Ref == claimed.Ref && cell.SameState(claimed)
	default:
		return false
	}
}

func newReceipt(orderedID int64, tx entity.Transition, produced entity.Records) entity.Receipt {
	return entity.Receipt{
		OrderedID:    orderedID,
		TransitionID: tx.ID(),
		Kind:         tx.Kind,
		GameID:       tx.GameID(),
		Produced:     produced,
		Transition:   tx,
	}
}
