package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/usecase"
	"go.uber.org/zap"
)

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)
	StatusHandler(w http.ResponseWriter, _ *http.Request)
	PlayerHandler(w http.ResponseWriter, r *http.Request)
}

type playerLookup interface {
	Lookup(ctx context.Context, id string) (*entity.Player, error)
	Online(id string) bool
}

type statusProvider interface {
	Status() usecase.Status
}

type playerResponse struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Wins   int          `json:"wins"`
	Loses  int          `json:"loses"`
	Ties   int          `json:"ties"`
	Stats  entity.Stats `json:"stats"`
	Online bool         `json:"online"`
}

type handlers struct {
	logger   *zap.Logger
	players  playerLookup
	sessions statusProvider
}

func NewHandlers(logger *zap.Logger, players playerLookup, sessions statusProvider) Handlers {
	return &handlers{
		logger:   logger.With(zap.String("component", "rest")),
		players:  players,
		sessions: sessions,
	}
}

func (that *handlers) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// StatusHandler reports the queue length and whether a game is in progress.
func (that *handlers) StatusHandler(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusOK, that.sessions.Status())
}

// PlayerHandler returns the stored results of one player and whether they are connected.
func (that *handlers) PlayerHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With(zap.String("method", "PlayerHandler"))

	player, err := that.players.Lookup(r.Context(), r.PathValue("id"))
	if errors.Is(err, apperror.ErrPlayerNotFound) {
		http.Error(w, "Player not found", http.StatusNotFound)
		return
	}

	if err != nil {
		log.Error("failed to lookup player", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, http.StatusOK, playerResponse{
		ID:     player.ID,
		Name:   player.Name,
		Wins:   player.Wins,
		Loses:  player.Loses,
		Ties:   player.Ties,
		Stats:  player.Stats(),
		Online: that.players.Online(player.ID),
	})
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", zap.Error(err))
	}
}
