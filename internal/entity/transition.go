package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// MoveKind - the closed set of transitions a game accepts.
type MoveKind string

const (
	MoveNewGame MoveKind = "new_game"
	MoveSetup   MoveKind = "setup"
	MoveTurn    MoveKind = "turn"
)

func (that MoveKind) Valid() bool {
	switch that {
	case MoveNewGame, MoveSetup, MoveTurn:
		return true
	default:
		return false
	}
}

func (that MoveKind) String() string {
	return string(that)
}

// Records - a bundle of sessions and cells, sessions come first in output order.
type Records struct {
	Sessions []GameSession `json:"sessions,omitempty"`
	Cells    []Cell        `json:"cells,omitempty"`
}

func (that Records) Len() int {
	return len(that.Sessions) + len(that.Cells)
}

// Refs - references of all records, in output order.
func (that Records) Refs() []string {
	refs := make([]string, 0, that.Len())
	for _, session := range that.Sessions {
		refs = append(refs, session.Ref)
	}
	for _, cell := range that.Cells {
		refs = append(refs, cell.Ref)
	}

	return refs
}

// Transition - an atomic replacement of consumed records by produced ones.
type Transition struct {
	Kind     MoveKind `json:"kind"`
	Consumed Records  `json:"consumed"`
	Produced Records  `json:"produced"`
}

// ID - hex sha256 of the canonical JSON encoding, the value every party signs.
func (that Transition) ID() string {
	payload, err := json.Marshal(that)
	if err != nil {
		// every field has a plain JSON encoding
		panic(fmt.Errorf("failed to marshal transition: %w", err))
	}

	sum := sha256.Sum256(payload)

	return hex.EncodeToString(sum[:])
}

// GameID - the game the transition belongs to.
func (that Transition) GameID() string {
	if len(that.Produced.Sessions) > 0 {
		return that.Produced.Sessions[0].ID
	}
	if len(that.Consumed.Sessions) > 0 {
		return that.Consumed.Sessions[0].ID
	}

	return ""
}

// WithRefs - the produced records stamped with their ledger references.
func (that Transition) WithRefs() Records {
	id := that.ID()
	index := 0

	produced := Records{
		Sessions: make([]GameSession, len(that.Produced.Sessions)),
		Cells:    make([]Cell, len(that.Produced.Cells)),
	}
	for i, session := range that.Produced.Sessions {
		session.Ref = fmt.Sprintf("%s:%d", id, index)
		produced.Sessions[i] = session
		index++
	}
	for i, cell := range that.Produced.Cells {
		cell.Ref = fmt.Sprintf("%s:%d", id, index)
		produced.Cells[i] = cell
		index++
	}

	return produced
}

type SignedTransition struct {
	Transition Transition       `json:"transition"`
	Signatures map[Party][]byte `json:"signatures"`
}

func NewSignedTransition(tx Transition) SignedTransition {
	return SignedTransition{
		Transition: tx,
		Signatures: make(map[Party][]byte),
	}
}

// Receipt - proof that the ledger accepted and ordered a transition.
type Receipt struct {
	OrderedID    int64      `json:"ordered_id"`
	TransitionID string     `json:"transition_id"`
	Kind         MoveKind   `json:"kind"`
	GameID       string     `json:"game_id"`
	Produced     Records    `json:"produced"`
	Transition   Transition `json:"transition"`
}

// Outcome - what a caller learns when a move finished.
type Outcome struct {
	Receipt    Receipt    `json:"receipt"`
	Coordinate Coordinate `json:"coordinate,omitempty"`
	Hit        bool       `json:"hit"`
}
