package entity

// Player is a registered user with cumulative results.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Wins  int    `json:"wins"`
	Loses int    `json:"loses"`
	Ties  int    `json:"ties"`
}

// Stats is [winRatio, loseRatio, tieRatio].
type Stats [3]float64

func (that *Player) Total() int {
	return that.Wins + that.Loses + that.Ties
}

// Stats returns the ratios of wins, loses and ties to the total games played.
func (that *Player) Stats() Stats {
	total := that.Total()
	if total == 0 {
		return Stats{}
	}

	return Stats{
		float64(that.Wins) / float64(total),
		float64(that.Loses) / float64(total),
		float64(that.Ties) / float64(total),
	}
}
