package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/board"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/identity"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
	"github.com/rocketscienceinc/battleship-backend/internal/usecase"
)

const (
	alice entity.Party = "Alice"
	bob   entity.Party = "Bob"
)

var (
	fleet    = []string{"A0S", "B0S", "C0S", "D0S", "E0S", "F0S", "G0S"}
	altFleet = []string{"J0S", "I0S", "H0S", "G0S", "F0S", "E0S", "D0S"}
)

type signFunc func(tx entity.Transition, parties ...entity.Party) entity.SignedTransition

func newSigners() (*identity.Directory, signFunc) {
	signers := map[entity.Party]*identity.Signer{
		alice: identity.NewSigner(alice, "alice-seed"),
		bob:   identity.NewSigner(bob, "bob-seed"),
	}

	directory := identity.NewDirectory()
	for party, signer := range signers {
		directory.Register(party, signer.PublicKey())
	}

	return directory, func(tx entity.Transition, parties ...entity.Party) entity.SignedTransition {
		signed := entity.NewSignedTransition(tx)
		for _, party := range parties {
			signers[party].Sign(&signed)
		}

		return signed
	}
}

func newGame() entity.Transition {
	return entity.Transition{
		Kind: entity.MoveNewGame,
		Produced: entity.Records{
			Sessions: []entity.GameSession{entity.NewGameSession("g-1", "G1", alice, bob)},
		},
	}
}

func setup(t *testing.T, session entity.GameSession, party entity.Party, ships []string) entity.Transition {
	t.Helper()

	placements, err := board.ParseFleet(ships)
	require.NoError(t, err)

	tx, err := usecase.ProposeSetup(session, party, placements)
	require.NoError(t, err)

	return tx
}

// exerciseSubstrate - the behaviour every ledger shares.
func exerciseSubstrate(ctx context.Context, t *testing.T, substrate Substrate, store repository.RecordStore, sign signFunc) {
	t.Helper()

	// Given: an accepted new game
	created, err := substrate.Submit(ctx, sign(newGame(), alice, bob))
	require.NoError(t, err)

	session := created.Produced.Sessions[0]
	assert.Equal(t, created.TransitionID+":0", session.Ref)

	for _, party := range []entity.Party{alice, bob} {
		sessions, err := store.QuerySessions(ctx, party, nil)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, session, sessions[0])
	}

	// replaying the same transition
	_, err = substrate.Submit(ctx, sign(newGame(), alice, bob))
	require.ErrorIs(t, err, apperror.ErrSubstrateRejected)

	// a new game signed by one player
	lonely := newGame()
	lonely.Produced.Sessions[0].ID = "g-2"
	_, err = substrate.Submit(ctx, sign(lonely, alice))
	require.ErrorIs(t, err, apperror.ErrSubstrateRejected)
	require.ErrorIs(t, err, apperror.ErrBadSignature)

	// a transition the rules reject
	broken := newGame()
	broken.Produced.Sessions[0].Name = ""
	_, err = substrate.Submit(ctx, sign(broken, alice, bob))
	require.ErrorIs(t, err, apperror.ErrSubstrateRejected)
	require.ErrorIs(t, err, apperror.ErrValidationRejected)

	// a consumed record that does not match the stored one
	tampered := session
	tampered.ReadyB = true
	_, err = substrate.Submit(ctx, sign(setup(t, tampered, alice, fleet), alice))
	require.ErrorIs(t, err, apperror.ErrSubstrateRejected)

	// When: Alice sets up, consuming the session
	placed, err := substrate.Submit(ctx, sign(setup(t, session, alice, fleet), alice))

	// Then: the session is replaced and only Alice sees her cells
	require.NoError(t, err)
	assert.Greater(t, placed.OrderedID, created.OrderedID)

	cells, err := store.QueryCells(ctx, alice, session.ID, nil)
	require.NoError(t, err)
	assert.Len(t, cells, entity.CellCount)

	cells, err = store.QueryCells(ctx, bob, session.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, cells)

	// When: spending the consumed session a second time with another fleet
	_, err = substrate.Submit(ctx, sign(setup(t, session, alice, altFleet), alice))

	// Then: the ledger refuses
	require.ErrorIs(t, err, apperror.ErrSubstrateRejected)
}
