package entity

const MaxScore = 18

// GameSession - one match between two players.
type GameSession struct {
	Ref string `json:"ref,omitempty"`

	ID       string `json:"id"`
	Name     string `json:"name"`
	PlayerA  Party  `json:"player_a"`
	PlayerB  Party  `json:"player_b"`
	MaxScore int    `json:"max_score"`
	ReadyA   bool   `json:"ready_a"`
	ReadyB   bool   `json:"ready_b"`
	Turn     Party  `json:"turn"`
}

func NewGameSession(id, name string, playerA, playerB Party) GameSession {
	return GameSession{
		ID:       id,
		Name:     name,
		PlayerA:  playerA,
		PlayerB:  playerB,
		MaxScore: MaxScore,
		Turn:     playerA,
	}
}

func (that GameSession) IsPlayer(party Party) bool {
	return party == that.PlayerA || party == that.PlayerB
}

// Opponent - the other player, empty when party does not play in this game.
func (that GameSession) Opponent(party Party) Party {
	switch party {
	case that.PlayerA:
		return that.PlayerB
	case that.PlayerB:
		return that.PlayerA
	default:
		return ""
	}
}

// Waiting - the player whose turn it is not.
func (that GameSession) Waiting() Party {
	return that.Opponent(that.Turn)
}

func (that GameSession) IsReady(party Party) bool {
	switch party {
	case that.PlayerA:
		return that.ReadyA
	case that.PlayerB:
		return that.ReadyB
	default:
		return false
	}
}

func (that GameSession) Phase() Phase {
	switch {
	case that.ReadyA && that.ReadyB:
		return PhaseInProgress
	case that.ReadyA || that.ReadyB:
		return PhaseSettingUp
	default:
		return PhaseAwaitingSetup
	}
}

// AfterSetup - the session once party has placed its fleet.
func (that GameSession) AfterSetup(party Party) GameSession {
	next := that.AfterTurn()
	if party == that.PlayerA {
		next.ReadyA = true
	} else if party == that.PlayerB {
		next.ReadyB = true
	}

	return next
}

// AfterTurn - the session with the turn handed to the other player.
func (that GameSession) AfterTurn() GameSession {
	next := that
	next.Ref = ""
	next.Turn = that.Waiting()

	return next
}

// SameState compares every field except Ref.
func (that GameSession) SameState(other GameSession) bool {
	that.Ref, other.Ref = "", ""

	return that == other
}

func (that GameSession) Participants() []Party {
	return []Party{that.PlayerA, that.PlayerB}
}
