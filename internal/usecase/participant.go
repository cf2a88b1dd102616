package usecase

import "github.com/rocketscienceinc/tictactoe-server/internal/entity"

const aiName = "Computer"

// Notifier is the connection of a human participant.
type Notifier interface {
	StartGame(state *entity.GameState)
	SendUpdate(state *entity.GameState)
	EndGame()
}

// participant is either *humanParticipant or *aiParticipant.
type participant interface {
	playerID() string
	info() entity.PlayerInfo
}

type humanParticipant struct {
	player   *entity.Player
	notifier Notifier
}

func (that *humanParticipant) playerID() string {
	return that.player.ID
}

func (that *humanParticipant) info() entity.PlayerInfo {
	return entity.PlayerInfo{
		Name:  that.player.Name,
		Stats: that.player.Stats(),
	}
}

// aiParticipant has no connection and no persisted results.
type aiParticipant struct{}

func (that *aiParticipant) playerID() string {
	return ""
}

func (that *aiParticipant) info() entity.PlayerInfo {
	return entity.PlayerInfo{Name: aiName}
}
