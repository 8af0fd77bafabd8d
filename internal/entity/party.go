package entity

// Party - the identity of a player node.
type Party string

func (that Party) String() string {
	return string(that)
}
