package entity

const CmdState = "state"

type PlayerInfo struct {
	Name  string `json:"name"`
	Stats Stats  `json:"stats"`
}

// GameState is the message pushed to every human participant after each change.
type GameState struct {
	Cmd      string     `json:"cmd"`
	Field    Field      `json:"field"`
	PlayerX  PlayerInfo `json:"player_x"`
	PlayerO  PlayerInfo `json:"player_o"`
	YourType Mark       `json:"your_type"`
	LastTurn Mark       `json:"last_turn"`
	Ended    bool       `json:"ended"`
	Winner   Mark       `json:"winner"`
}

// For returns a copy of the state as seen by the holder of mark.
func (that GameState) For(mark Mark) *GameState {
	that.YourType = mark
	return &that
}
