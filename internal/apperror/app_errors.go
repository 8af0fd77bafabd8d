package apperror

import "errors"

var (
	ErrValidationRejected = errors.New("transition rejected by rules")
	ErrAlreadyRevealed    = errors.New("cell is already revealed")
	ErrOutOfGrid          = errors.New("coordinate is outside the grid")
	ErrInvalidPlacement   = errors.New("invalid ship placement")
	ErrPeerUnresponsive   = errors.New("peer did not respond in time")
	ErrSubstrateRejected  = errors.New("transition rejected by ledger")

	ErrGameNotFound      = errors.New("game not found")
	ErrGameAlreadyExists = errors.New("game already exists")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrGameFinished      = errors.New("game is already finished")
	ErrNotParticipant    = errors.New("party is not a participant")
	ErrPeerRefused       = errors.New("peer refused the request")
	ErrBadSignature      = errors.New("signature is missing or invalid")
)
