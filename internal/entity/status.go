package entity

// Status - the off-ledger view of a game, derived from the session and the revealed cells.
type Status struct {
	Session GameSession   `json:"session"`
	Phase   Phase         `json:"phase"`
	Hits    map[Party]int `json:"hits"`
	Winner  Party         `json:"winner,omitempty"`
}

// NewStatus - counts, per player, the revealed opponent cells that carried a ship.
func NewStatus(session GameSession, revealed []Cell) Status {
	status := Status{
		Session: session,
		Phase:   session.Phase(),
		Hits: map[Party]int{
			session.PlayerA: 0,
			session.PlayerB: 0,
		},
	}

	for _, cell := range revealed {
		if cell.GameID != session.ID || !cell.IsRevealed() || !cell.ContainsShip {
			continue
		}
		if !session.IsPlayer(cell.Holder) {
			continue
		}

		status.Hits[cell.Holder]++
	}

	for _, party := range session.Participants() {
		if session.MaxScore > 0 && status.Hits[party] >= session.MaxScore {
			status.Winner = party
			status.Phase = PhaseFinished
		}
	}

	return status
}

func (that Status) IsFinished() bool {
	return that.Phase == PhaseFinished
}
