package service

import (
	"errors"
	"math/rand/v2"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

var ErrNoAvailableMoves = errors.New("no available moves")

type BotService interface {
	PickCell(game *entity.Game) (x, y int, err error)
}

type botService struct{}

func NewBotService() BotService {
	return &botService{}
}

// PickCell chooses any free cell.
func (that *botService) PickCell(game *entity.Game) (int, int, error) {
	availableCells := game.FreeCells()
	if len(availableCells) == 0 {
		return 0, 0, ErrNoAvailableMoves
	}

	chosenCell := availableCells[rand.IntN(len(availableCells))] //nolint: gosec // it's ok

	return chosenCell[0], chosenCell[1], nil
}
