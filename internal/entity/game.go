package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

type Status string

const (
	StatusOngoing Status = "ongoing"
	StatusWon     Status = "won"
	StatusTied    Status = "tied"
)

// Game is the state of one session: the board, strict turn alternation and the result.
type Game struct {
	board    *Board
	lastMove Mark
	status   Status
	winner   Mark
}

// NewGame returns a game where X moves first.
func NewGame() *Game {
	return &Game{
		board:    NewBoard(),
		lastMove: MarkO,
		status:   StatusOngoing,
	}
}

func (that *Game) MakeMove(mark Mark, x, y int) error {
	if !mark.Valid() {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidMark, mark)
	}

	if that.lastMove == mark {
		return apperror.ErrNotYourTurn
	}

	if that.IsFinished() {
		return apperror.ErrGameFinished
	}

	if err := that.board.Place(mark, x, y); err != nil {
		return fmt.Errorf("invalid move: %w", err)
	}

	switch {
	case that.board.CheckWin(x, y):
		that.status = StatusWon
		that.winner = mark
	case that.board.IsFull():
		that.status = StatusTied
	}

	that.lastMove = mark

	return nil
}

func (that *Game) Snapshot() Field {
	return that.board.Snapshot()
}

func (that *Game) FreeCells() [][2]int {
	return that.board.FreeCells()
}

func (that *Game) LastMove() Mark {
	return that.lastMove
}

// NextMove is the mark expected to move next.
func (that *Game) NextMove() Mark {
	return that.lastMove.Opponent()
}

func (that *Game) Status() Status {
	return that.status
}

// Winner is MarkNone while the game is ongoing or tied.
func (that *Game) Winner() Mark {
	return that.winner
}

func (that *Game) IsOngoing() bool {
	return that.status == StatusOngoing
}

func (that *Game) IsFinished() bool {
	return that.status != StatusOngoing
}
