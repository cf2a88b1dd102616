package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"go.uber.org/zap"
)

const maxNameSuffix = 100000

// Kicker is an authenticated connection that can be forcibly closed.
type Kicker interface {
	Kick()
}

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	SaveMany(ctx context.Context, players ...*entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Registry owns player records and tracks which connection holds each online player.
type Registry struct {
	logger *zap.Logger
	repo   playerRepo

	mu     sync.Mutex
	online map[string]Kicker
}

func NewRegistry(logger *zap.Logger, repo playerRepo) *Registry {
	return &Registry{
		logger: logger.With(zap.String("component", "registry")),
		repo:   repo,
		online: make(map[string]Kicker),
	}
}

// Lookup returns apperror.ErrPlayerNotFound for unknown or empty identifiers.
func (that *Registry) Lookup(ctx context.Context, id string) (*entity.Player, error) {
	if id == "" {
		return nil, apperror.ErrPlayerNotFound
	}

	player, err := that.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup player: %w", err)
	}

	return player, nil
}

// Create mints a player with a fresh identifier and persists it before returning.
func (that *Registry) Create(ctx context.Context) (*entity.Player, error) {
	id := uuid.NewString()

	exists, err := that.repo.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrPersistence, err)
	}

	if exists {
		return nil, fmt.Errorf("%w: identifier %s already taken", apperror.ErrPersistence, id)
	}

	player := &entity.Player{
		ID:   id,
		Name: fmt.Sprintf("User-%d", rand.IntN(maxNameSuffix)+1), //nolint: gosec // display name only
	}

	if err = that.repo.CreateOrUpdate(ctx, player); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrPersistence, err)
	}

	that.logger.Info("player registered", zap.String("playerID", player.ID), zap.String("name", player.Name))

	return player, nil
}

// RecordWin adds a win and a loss. An empty identifier stands for the AI and is skipped.
func (that *Registry) RecordWin(ctx context.Context, winnerID, loserID string) error {
	var changed []*entity.Player

	if winnerID != "" {
		winner, err := that.load(ctx, winnerID)
		if err != nil {
			return err
		}

		winner.Wins++
		changed = append(changed, winner)
	}

	if loserID != "" {
		loser, err := that.load(ctx, loserID)
		if err != nil {
			return err
		}

		loser.Loses++
		changed = append(changed, loser)
	}

	return that.persist(ctx, changed...)
}

// RecordTie adds a tie to every non-empty identifier.
func (that *Registry) RecordTie(ctx context.Context, ids ...string) error {
	changed := make([]*entity.Player, 0, len(ids))

	for _, id := range ids {
		if id == "" {
			continue
		}

		player, err := that.load(ctx, id)
		if err != nil {
			return err
		}

		player.Ties++
		changed = append(changed, player)
	}

	return that.persist(ctx, changed...)
}

// Attach binds an authenticated connection to the player. A connection
// already holding the slot is kicked.
func (that *Registry) Attach(id string, conn Kicker) {
	that.mu.Lock()
	previous, ok := that.online[id]
	that.online[id] = conn
	that.mu.Unlock()

	if ok && previous != conn {
		that.logger.Info("player logged in twice, dropping older connection", zap.String("playerID", id))
		previous.Kick()
	}
}

// Release frees the slot only if conn still holds it.
func (that *Registry) Release(id string, conn Kicker) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if current, ok := that.online[id]; ok && current == conn {
		delete(that.online, id)
	}
}

func (that *Registry) Online(id string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.online[id]

	return ok
}

func (that *Registry) load(ctx context.Context, id string) (*entity.Player, error) {
	player, err := that.repo.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrPlayerNotFound) {
		return nil, fmt.Errorf("%w: player %s vanished: %w", apperror.ErrPersistence, id, err)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrPersistence, err)
	}

	return player, nil
}

func (that *Registry) persist(ctx context.Context, players ...*entity.Player) error {
	if err := that.repo.SaveMany(ctx, players...); err != nil {
		that.logger.Error("failed to persist results", zap.Error(err))
		return fmt.Errorf("%w: %w", apperror.ErrPersistence, err)
	}

	return nil
}
