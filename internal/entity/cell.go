package entity

// Cell - one square of one player's board.
type Cell struct {
	Ref string `json:"ref,omitempty"`

	GameID         string     `json:"game_id"`
	Coordinate     Coordinate `json:"coordinate"`
	Holder         Party      `json:"holder"`
	OriginalHolder Party      `json:"original_holder"`
	ContainsShip   bool       `json:"contains_ship"`
}

func NewCell(gameID string, coord Coordinate, owner Party, containsShip bool) Cell {
	return Cell{
		GameID:         gameID,
		Coordinate:     coord,
		Holder:         owner,
		OriginalHolder: owner,
		ContainsShip:   containsShip,
	}
}

func (that Cell) IsRevealed() bool {
	return that.Holder != that.OriginalHolder
}

// RevealedTo - the cell after its holder changed to party.
func (that Cell) RevealedTo(party Party) Cell {
	next := that
	next.Ref = ""
	next.Holder = party

	return next
}

func (that Cell) SameState(other Cell) bool {
	that.Ref, other.Ref = "", ""

	return that == other
}

func (that Cell) Participants() []Party {
	if that.Holder == that.OriginalHolder {
		return []Party{that.Holder}
	}

	return []Party{that.Holder, that.OriginalHolder}
}
