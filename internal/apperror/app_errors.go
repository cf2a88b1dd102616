package apperror

import "errors"

var (
	ErrGameFinished   = errors.New("game is already finished")
	ErrNotYourTurn    = errors.New("it's not your turn")
	ErrNoActiveGame   = errors.New("no active game")
	ErrNotInGame      = errors.New("player is not a participant of the active game")
	ErrCellOccupied   = errors.New("cell is already occupied")
	ErrInvalidMark    = errors.New("invalid mark")
	ErrPlayerNotFound = errors.New("player not found")
	ErrAlreadyQueued  = errors.New("player is already queued or playing")

	// ErrProtocol marks input that terminates the connection.
	ErrProtocol = errors.New("protocol error")
	// ErrPersistence marks a failed registry write. It is never swallowed.
	ErrPersistence = errors.New("persistence error")
)
