package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/battleship-backend/internal/apperror"
	"github.com/rocketscienceinc/battleship-backend/internal/board"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/identity"
	"github.com/rocketscienceinc/battleship-backend/internal/ledger"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
	"github.com/rocketscienceinc/battleship-backend/internal/repository/storage/sqlite"
	"github.com/rocketscienceinc/battleship-backend/internal/server/peer"
	"github.com/rocketscienceinc/battleship-backend/internal/transport/local"
)

const (
	alice entity.Party = "Alice"
	bob   entity.Party = "Bob"

	testTimeout = 5 * time.Second
)

// fleet occupies A0-A4, B0-B3, C0-C2, D0-D1, E0-E1, F0 and G0.
var fleet = []string{"A0S", "B0S", "C0S", "D0S", "E0S", "F0S", "G0S"}

type player struct {
	party   entity.Party
	manager *GameManager
	journal repository.JournalRepository
	stop    context.CancelFunc
}

type table struct {
	ledger *ledger.Memory
	alice  *player
	bob    *player
}

// newTable - two players sharing an in-memory ledger and hub. wrap lets a
// test put something between a player and the ledger.
func newTable(t *testing.T, wrap func(entity.Party, substrate) substrate) *table {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	signers := map[entity.Party]*identity.Signer{
		alice: identity.NewSigner(alice, "alice-seed"),
		bob:   identity.NewSigner(bob, "bob-seed"),
	}

	directory := identity.NewDirectory()
	for party, signer := range signers {
		directory.Register(party, signer.PublicKey())
	}

	memory := ledger.NewMemory(directory)
	hub := local.NewHub()

	newPlayer := func(party entity.Party) *player {
		st, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = st.Close()
		})
		require.NoError(t, st.Init(context.Background()))

		journal := repository.NewJournalRepository(st.Connection)

		var ledgerOf substrate = memory
		if wrap != nil {
			ledgerOf = wrap(party, memory)
		}

		server := peer.New(logger, party, hub.Endpoint(party))
		manager := NewGameManager(logger, signers[party], testTimeout, memory, ledgerOf, journal, server)

		server.Handle(ActionCountersign, manager.HandleCountersign)
		server.Handle(ActionReveal, manager.HandleReveal)
		server.Handle(ActionAccepted, manager.HandleAccepted)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = server.Run(ctx)
		}()

		stop := func() {
			cancel()
			<-done
		}
		t.Cleanup(stop)

		return &player{party: party, manager: manager, journal: journal, stop: sync.OnceFunc(stop)}
	}

	return &table{
		ledger: memory,
		alice:  newPlayer(alice),
		bob:    newPlayer(bob),
	}
}

func mustFleet(t *testing.T, values []string) []board.Placement {
	t.Helper()

	placements, err := board.ParseFleet(values)
	require.NoError(t, err)

	return placements
}

func coord(t *testing.T, value string) entity.Coordinate {
	t.Helper()

	c, err := entity.ParseCoordinate(value)
	require.NoError(t, err)

	return c
}

// startGame - creates game G1 and places the same fleet for both players.
func (that *table) startGame(t *testing.T) {
	t.Helper()

	ctx := context.Background()

	_, err := that.alice.manager.NewGame(ctx, "G1", bob)
	require.NoError(t, err)

	_, err = that.alice.manager.Setup(ctx, "G1", mustFleet(t, fleet))
	require.NoError(t, err)

	_, err = that.bob.manager.Setup(ctx, "G1", mustFleet(t, fleet))
	require.NoError(t, err)
}

func TestGameManager_NewGame(t *testing.T) {
	t.Run("Both players see the countersigned game", func(t *testing.T) {
		ctx := context.Background()
		tbl := newTable(t, nil)

		// When: Alice creates a game against Bob
		outcome, err := tbl.alice.manager.NewGame(ctx, "G1", bob)

		// Then: the ledger accepts it and both players see the same session
		require.NoError(t, err)
		assert.Equal(t, int64(1), outcome.Receipt.OrderedID)

		status, err := tbl.bob.manager.Status(ctx, "G1")
		require.NoError(t, err)
		assert.Equal(t, alice, status.Session.PlayerA)
		assert.Equal(t, alice, status.Session.Turn)
		assert.Equal(t, entity.PhaseAwaitingSetup, status.Phase)
		assert.Equal(t, entity.MaxScore, status.Session.MaxScore)
	})

	t.Run("Game names are unique", func(t *testing.T) {
		ctx := context.Background()
		tbl := newTable(t, nil)

		// Given: a game called G1
		_, err := tbl.alice.manager.NewGame(ctx, "G1", bob)
		require.NoError(t, err)

		// When: creating another game with the same name
		_, err = tbl.alice.manager.NewGame(ctx, "G1", bob)

		// Then: it is refused before anything is sent
		require.ErrorIs(t, err, apperror.ErrGameAlreadyExists)
		assert.Len(t, tbl.ledger.Receipts(), 1)
	})

	t.Run("An empty name never leaves the player", func(t *testing.T) {
		tbl := newTable(t, nil)

		_, err := tbl.alice.manager.NewGame(context.Background(), "", bob)

		require.ErrorIs(t, err, apperror.ErrValidationRejected)
		assert.Empty(t, tbl.ledger.Receipts())
	})

	t.Run("The opponent journals the game once it is accepted", func(t *testing.T) {
		ctx := context.Background()
		tbl := newTable(t, nil)

		_, err := tbl.alice.manager.NewGame(ctx, "G1", bob)
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			entries, err := tbl.bob.manager.History(ctx, "G1")
			return err == nil && len(entries) == 1
		}, time.Second, 10*time.Millisecond)
	})
}

func TestGameManager_Setup(t *testing.T) {
	t.Run("Setup order is A then B and the game starts", func(t *testing.T) {
		ctx := context.Background()
		tbl := newTable(t, nil)

		_, err := tbl.alice.manager.NewGame(ctx, "G1", bob)
		require.NoError(t, err)

		// When: Bob tries to set up first
		_, err = tbl.bob.manager.Setup(ctx, "G1", mustFleet(t, fleet))

		// Then: it is not the turn of Bob
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)

		// When: Alice and then Bob set up
		_, err = tbl.alice.manager.Setup(ctx, "G1", mustFleet(t, fleet))
		require.NoError(t, err)

		status, err := tbl.bob.manager.Status(ctx, "G1")
		require.NoError(t, err)
		assert.Equal(t, entity.PhaseSettingUp, status.Phase)

		_, err = tbl.bob.manager.Setup(ctx, "G1", mustFleet(t, fleet))
		require.NoError(t, err)

		// Then: the game is in progress and Alice moves first
		status, err = tbl.alice.manager.Status(ctx, "G1")
		require.NoError(t, err)
		assert.Equal(t, entity.PhaseInProgress, status.Phase)
		assert.Equal(t, alice, status.Session.Turn)
	})

	t.Run("The opponent never sees the cells", func(t *testing.T) {
		ctx := context.Background()
		tbl := newTable(t, nil)
		tbl.startGame(t)

		status, err := tbl.alice.manager.Status(ctx, "G1")
		require.NoError(t, err)

		cells, err := tbl.ledger.QueryCells(ctx, alice, status.Session.ID, nil)
		require.NoError(t, err)
		require.Len(t, cells, entity.CellCount)

		for _, cell := range cells {
			assert.Equal(t, alice, cell.OriginalHolder)
		}
	})

	t.Run("A fleet with 17 ship cells never reaches the ledger", func(t *testing.T) {
		ctx := context.Background()

		failing := &mockSubstrate{}
		tbl := newTable(t, func(party entity.Party, memory substrate) substrate {
			if party == alice {
				return &passNewGame{substrate: memory, fallback: failing}
			}
			return memory
		})

		_, err := tbl.alice.manager.NewGame(ctx, "G1", bob)
		require.NoError(t, err)

		// Given: a fleet with the last single-cell ship missing
		placements := mustFleet(t, fleet)[:6]

		// When: setting it up
		_, err = tbl.alice.manager.Setup(ctx, "G1", placements)

		// Then: it fails locally
		require.ErrorIs(t, err, apperror.ErrValidationRejected)
		require.ErrorIs(t, err, apperror.ErrInvalidPlacement)
		failing.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("A ledger rejection is reported and nothing is journaled", func(t *testing.T) {
		ctx := context.Background()

		failing := &mockSubstrate{}
		failing.On("Submit", mock.Anything, mock.Anything).
			Return(entity.Receipt{}, apperror.ErrSubstrateRejected).Once()

		tbl := newTable(t, func(party entity.Party, memory substrate) substrate {
			if party == alice {
				return &passNewGame{substrate: memory, fallback: failing}
			}
			return memory
		})

		_, err := tbl.alice.manager.NewGame(ctx, "G1", bob)
		require.NoError(t, err)

		_, err = tbl.alice.manager.Setup(ctx, "G1", mustFleet(t, fleet))

		require.ErrorIs(t, err, apperror.ErrSubstrateRejected)
		failing.AssertExpectations(t)

		entries, err := tbl.alice.manager.History(ctx, "G1")
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestGameManager_PlayTurn(t *testing.T) {
	t.Run("A hit reveals the cell to the mover and passes the turn", func(t *testing.T) {
		ctx := context.Background()
		tbl := newTable(t, nil)
		tbl.startGame(t)

		// When: Alice fires at B0, the start of Bob's second ship
		outcome, err := tbl.alice.manager.PlayTurn(ctx, "G1", coord(t, "B0"))

		// Then: it is a hit, Alice holds the cell and Bob moves next
		require.NoError(t, err)
		assert.True(t, outcome.Hit)
		assert.Equal(t, coord(t, "B0"), outcome.Coordinate)

		revealed := outcome.Receipt.Produced.Cells[0]
		assert.Equal(t, alice, revealed.Holder)
		assert.Equal(t, bob, revealed.OriginalHolder)

		status, err := tbl.bob.manager.Status(ctx, "G1")
		require.NoError(t, err)
		assert.Equal(t, bob, status.Session.Turn)
		assert.Equal(t, 1, status.Hits[alice])
	})

	t.Run("A miss is reported as such", func(t *testing.T) {
		tbl := newTable(t, nil)
		tbl.startGame(t)

		outcome, err := tbl.alice.manager.PlayTurn(context.Background(), "G1", coord(t, "J9"))

		require.NoError(t, err)
		assert.False(t, outcome.Hit)
	})

	t.Run("Moving out of turn is refused locally", func(t *testing.T) {
		tbl := newTable(t, nil)
		tbl.startGame(t)

		_, err := tbl.bob.manager.PlayTurn(context.Background(), "G1", coord(t, "A0"))

		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("A revealed cell can not be targeted again", func(t *testing.T) {
		ctx := context.Background()
		tbl := newTable(t, nil)
		tbl.startGame(t)

		// Given: Alice revealed B0 and Bob answered with a move
		_, err := tbl.alice.manager.PlayTurn(ctx, "G1", coord(t, "B0"))
		require.NoError(t, err)
		_, err = tbl.bob.manager.PlayTurn(ctx, "G1", coord(t, "J0"))
		require.NoError(t, err)

		// When: Alice fires at B0 again
		_, err = tbl.alice.manager.PlayTurn(ctx, "G1", coord(t, "B0"))

		// Then: the move is rejected as already revealed
		require.ErrorIs(t, err, apperror.ErrAlreadyRevealed)
	})

	t.Run("Two concurrent moves on one cell, exactly one is accepted", func(t *testing.T) {
		ctx := context.Background()

		gate := newTurnGate(2)
		tbl := newTable(t, func(party entity.Party, memory substrate) substrate {
			if party == alice {
				return gate.wrap(memory)
			}
			return memory
		})
		tbl.startGame(t)

		// When: Alice fires twice at C1 at the same time
		target := coord(t, "C1")
		errs := make(chan error, 2)
		for range 2 {
			go func() {
				_, err := tbl.alice.manager.PlayTurn(ctx, "G1", target)
				errs <- err
			}()
		}

		// Then: one attempt is accepted and the other rejected by the ledger
		var accepted, rejected int
		for range 2 {
			err := <-errs
			switch {
			case err == nil:
				accepted++
			case assert.ErrorIs(t, err, apperror.ErrSubstrateRejected):
				rejected++
			}
		}

		assert.Equal(t, 1, accepted)
		assert.Equal(t, 1, rejected)
	})

	t.Run("A silent opponent abandons the attempt", func(t *testing.T) {
		tbl := newTable(t, nil)
		tbl.startGame(t)

		// Given: Bob stopped answering
		tbl.bob.stop()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		// When: Alice moves
		_, err := tbl.alice.manager.PlayTurn(ctx, "G1", coord(t, "A0"))

		// Then: the peer is reported unresponsive and nothing changed
		require.ErrorIs(t, err, apperror.ErrPeerUnresponsive)

		status, err := tbl.alice.manager.Status(context.Background(), "G1")
		require.NoError(t, err)
		assert.Equal(t, alice, status.Session.Turn)
	})

	t.Run("The game finishes when every ship cell is hit", func(t *testing.T) {
		ctx := context.Background()
		tbl := newTable(t, nil)
		tbl.startGame(t)

		ships := []string{
			"A0", "A1", "A2", "A3", "A4", "B0", "B1", "B2", "B3",
			"C0", "C1", "C2", "D0", "D1", "E0", "E1", "F0", "G0",
		}
		misses := []string{
			"J0", "J1", "J2", "J3", "J4", "J5", "J6", "J7", "J8", "J9",
			"I0", "I1", "I2", "I3", "I4", "I5", "I6",
		}

		for i, target := range ships {
			outcome, err := tbl.alice.manager.PlayTurn(ctx, "G1", coord(t, target))
			require.NoError(t, err)
			require.True(t, outcome.Hit)

			if i < len(misses) {
				_, err = tbl.bob.manager.PlayTurn(ctx, "G1", coord(t, misses[i]))
				require.NoError(t, err)
			}
		}

		status, err := tbl.bob.manager.Status(ctx, "G1")
		require.NoError(t, err)
		assert.Equal(t, entity.PhaseFinished, status.Phase)
		assert.Equal(t, alice, status.Winner)

		_, err = tbl.bob.manager.PlayTurn(ctx, "G1", coord(t, "H0"))
		require.ErrorIs(t, err, apperror.ErrGameFinished)
	})
}

type mockSubstrate struct {
	mock.Mock
}

func (that *mockSubstrate) Submit(ctx context.Context, signed entity.SignedTransition) (entity.Receipt, error) {
	args := that.Called(ctx, signed)
	return args.Get(0).(entity.Receipt), args.Error(1) //nolint: forcetypeassert // test mock
}

// passNewGame - lets new games through to the ledger and sends the rest to fallback.
type passNewGame struct {
	substrate
	fallback substrate
}

func (that *passNewGame) Submit(ctx context.Context, signed entity.SignedTransition) (entity.Receipt, error) {
	if signed.Transition.Kind == entity.MoveNewGame {
		return that.substrate.Submit(ctx, signed)
	}

	return that.fallback.Submit(ctx, signed)
}

// turnGate - holds turn submissions until n of them arrived.
type turnGate struct {
	arrived sync.WaitGroup
}

func newTurnGate(n int) *turnGate {
	gate := &turnGate{}
	gate.arrived.Add(n)

	return gate
}

func (that *turnGate) wrap(next substrate) substrate {
	return &gatedSubstrate{substrate: next, gate: that}
}

type gatedSubstrate struct {
	substrate
	gate *turnGate
}

func (that *gatedSubstrate) Submit(ctx context.Context, signed entity.SignedTransition) (entity.Receipt, error) {
	if signed.Transition.Kind == entity.MoveTurn {
		that.gate.arrived.Done()
		that.gate.arrived.Wait()
	}

	return that.substrate.Submit(ctx, signed)
}

func TestGameManager_Pending(t *testing.T) {
	turn := func(gameID, consumedRef string, target entity.Coordinate) entity.Transition {
		session := entity.NewGameSession(gameID, "G", alice, bob)
		session.Ref = consumedRef

		return entity.Transition{
			Kind:     entity.MoveTurn,
			Consumed: entity.Records{Sessions: []entity.GameSession{session}},
			Produced: entity.Records{
				Sessions: []entity.GameSession{session.AfterTurn()},
				Cells:    []entity.Cell{entity.NewCell(gameID, target, bob, false).RevealedTo(alice)},
			},
		}
	}

	newManager := func(clock *time.Time) *GameManager {
		return &GameManager{
			now:     func() time.Time { return *clock },
			pending: make(map[string]pendingTransition),
		}
	}

	a1 := entity.Coordinate{Column: 'A', Row: 1}
	b2 := entity.Coordinate{Column: 'B', Row: 2}

	t.Run("Forget reports only remembered transitions", func(t *testing.T) {
		clock := time.Unix(0, 0)
		manager := newManager(&clock)
		tx := turn("g-1", "s:0", a1)

		manager.remember(tx)

		assert.True(t, manager.forget(tx))
		assert.False(t, manager.forget(tx))
	})

	t.Run("Entries past their lifetime are dropped", func(t *testing.T) {
		// Given: a proposal signed long ago
		clock := time.Unix(0, 0)
		manager := newManager(&clock)
		stale := turn("g-1", "s:0", a1)
		manager.remember(stale)

		// When: another game signs something after the lifetime
		clock = clock.Add(pendingTTL + time.Second)
		fresh := turn("g-2", "t:0", a1)
		manager.remember(fresh)

		// Then: only the fresh one is kept
		assert.Len(t, manager.pending, 1)
		assert.False(t, manager.forget(stale))
		assert.True(t, manager.forget(fresh))
	})

	t.Run("A proposal on a newer session replaces older ones of the game", func(t *testing.T) {
		clock := time.Unix(0, 0)
		manager := newManager(&clock)

		older := turn("g-1", "s:0", a1)
		retry := turn("g-1", "s:0", b2)
		other := turn("g-2", "t:0", a1)
		manager.remember(older)
		manager.remember(retry)
		manager.remember(other)

		// When: the game moves to a newer session
		newer := turn("g-1", "u:0", a1)
		manager.remember(newer)

		// Then: both proposals on the spent session are gone, the other game is untouched
		assert.Len(t, manager.pending, 2)
		assert.False(t, manager.forget(older))
		assert.False(t, manager.forget(retry))
		assert.True(t, manager.forget(other))
		assert.True(t, manager.forget(newer))
	})
}
