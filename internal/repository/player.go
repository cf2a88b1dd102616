package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const playerKeyPrefix = "player:"

type PlayerRepository interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	SaveMany(ctx context.Context, players ...*entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type dbPlayer struct {
	client *redis.Client
}

func NewPlayerRepository(client *redis.Client) PlayerRepository {
	return &dbPlayer{
		client: client,
	}
}

func (that *dbPlayer) CreateOrUpdate(ctx context.Context, player *entity.Player) error {
	playerJSON, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}

	if err = that.client.Set(ctx, playerKeyPrefix+player.ID, playerJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set player: %w", err)
	}

	return nil
}

// SaveMany writes all players in a single MULTI/EXEC transaction.
func (that *dbPlayer) SaveMany(ctx context.Context, players ...*entity.Player) error {
	if len(players) == 0 {
		return nil
	}

	encoded := make(map[string][]byte, len(players))
	for _, player := range players {
		playerJSON, err := json.Marshal(player)
		if err != nil {
			return fmt.Errorf("failed to marshal player %s: %w", player.ID, err)
		}

		encoded[playerKeyPrefix+player.ID] = playerJSON
	}

	_, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range encoded {
			pipe.Set(ctx, key, value, 0)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save players: %w", err)
	}

	return nil
}

func (that *dbPlayer) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	response, err := that.client.Get(ctx, playerKeyPrefix+id).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrPlayerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player by ID: %w", err)
	}

	var existingPlayer entity.Player
	if err = json.Unmarshal([]byte(response), &existingPlayer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player: %w", err)
	}

	return &existingPlayer, nil
}

func (that *dbPlayer) Exists(ctx context.Context, id string) (bool, error) {
	count, err := that.client.Exists(ctx, playerKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check player: %w", err)
	}

	return count > 0, nil
}
