package entity

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

// BoardSize is fixed, other sizes are not supported.
const BoardSize = 3

// Mark is a symbol placed on the board. The zero value is an empty cell.
type Mark string

const (
	MarkNone Mark = ""
	MarkX    Mark = "x"
	MarkO    Mark = "o"
)

var ErrInvalidCell = errors.New("invalid cell index")

// Opponent returns the other mark.
func (m Mark) Opponent() Mark {
	switch m {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return MarkNone
	}
}

func (m Mark) Valid() bool {
	return m == MarkX || m == MarkO
}

// MarshalJSON encodes an empty mark as null.
func (m Mark) MarshalJSON() ([]byte, error) {
	if m == MarkNone {
		return []byte("null"), nil
	}

	return json.Marshal(string(m))
}

func (m *Mark) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal mark: %w", err)
	}

	if raw == nil {
		*m = MarkNone
		return nil
	}

	*m = Mark(*raw)

	return nil
}

// Field is an immutable copy of the grid, indexed as field[y][x].
type Field [BoardSize][BoardSize]Mark

type Board struct {
	cells Field
	free  int
}

func NewBoard() *Board {
	return &Board{free: BoardSize * BoardSize}
}

// Place puts mark at (x, y). A failed placement leaves the board untouched.
func (that *Board) Place(mark Mark, x, y int) error {
	if !inRange(x) || !inRange(y) {
		return fmt.Errorf("%w: (%d, %d)", ErrInvalidCell, x, y)
	}

	if that.cells[y][x] != MarkNone {
		return apperror.ErrCellOccupied
	}

	that.cells[y][x] = mark
	that.free--

	return nil
}

// CheckWin reports whether the last placement at (x, y) completed a line.
// Only the lines running through that cell are inspected.
func (that *Board) CheckWin(x, y int) bool {
	if !inRange(x) || !inRange(y) {
		return false
	}

	mark := that.cells[y][x]
	if mark == MarkNone {
		return false
	}

	row, column := true, true
	for i := range BoardSize {
		row = row && that.cells[y][i] == mark
		column = column && that.cells[i][x] == mark
	}

	if row || column {
		return true
	}

	if x == y {
		diagonal := true
		for i := range BoardSize {
			diagonal = diagonal && that.cells[i][i] == mark
		}

		if diagonal {
			return true
		}
	}

	if x+y == BoardSize-1 {
		anti := true
		for i := range BoardSize {
			anti = anti && that.cells[i][BoardSize-1-i] == mark
		}

		if anti {
			return true
		}
	}

	return false
}

func (that *Board) IsFull() bool {
	return that.free == 0
}

func (that *Board) Snapshot() Field {
	return that.cells
}

// FreeCells lists empty cells as [x, y] pairs in row order.
func (that *Board) FreeCells() [][2]int {
	cells := make([][2]int, 0, that.free)
	for y := range BoardSize {
		for x := range BoardSize {
			if that.cells[y][x] == MarkNone {
				cells = append(cells, [2]int{x, y})
			}
		}
	}

	return cells
}

func inRange(index int) bool {
	return index >= 0 && index < BoardSize
}
