package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/config"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"go.uber.org/zap"
)

var marks = [...]entity.Mark{entity.MarkX, entity.MarkO}

type registry interface {
	Lookup(ctx context.Context, id string) (*entity.Player, error)
	RecordWin(ctx context.Context, winnerID, loserID string) error
	RecordTie(ctx context.Context, ids ...string) error
}

type botService interface {
	PickCell(game *entity.Game) (x, y int, err error)
}

// Status is a point-in-time view of the matchmaker.
type Status struct {
	Queued int  `json:"queued"`
	Active bool `json:"active"`
}

// Matchmaker owns the waiting queue and the single active game.
// Every operation and every timer callback runs under one mutex.
type Matchmaker struct {
	logger   *zap.Logger
	conf     config.Game
	registry registry
	bot      botService

	mu      sync.Mutex
	queue   deque.Deque[*humanParticipant]
	game    *entity.Game
	seats   map[entity.Mark]participant
	session uint64

	waitTimer *time.Timer
	waitGen   uint64
	moveTimer *time.Timer
}

func NewMatchmaker(logger *zap.Logger, conf config.Game, registry registry, bot botService) *Matchmaker {
	return &Matchmaker{
		logger:   logger.With(zap.String("component", "matchmaker")),
		conf:     conf,
		registry: registry,
		bot:      bot,
	}
}

// Enqueue appends the player to the queue tail and tries to start a game.
func (that *Matchmaker) Enqueue(ctx context.Context, playerID string, notifier Notifier) error {
	player, err := that.registry.Lookup(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to enqueue player: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.queuedIndex(playerID) >= 0 || that.markOf(playerID) != entity.MarkNone {
		return apperror.ErrAlreadyQueued
	}

	that.queue.PushBack(&humanParticipant{player: player, notifier: notifier})

	that.logger.Debug("player queued", zap.String("playerID", playerID), zap.Int("queued", that.queue.Len()))

	that.tryStartGame()

	return nil
}

// SubmitMove applies a move for the player and broadcasts the result.
// A rejected move returns the validation error and changes nothing.
func (that *Matchmaker) SubmitMove(ctx context.Context, playerID string, x, y int) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.game == nil {
		return apperror.ErrNoActiveGame
	}

	mark := that.markOf(playerID)
	if mark == entity.MarkNone {
		return apperror.ErrNotInGame
	}

	return that.applyMove(ctx, mark, x, y)
}

// DropPlayer removes a queued player, or forfeits the active game in favour of the opponent.
func (that *Matchmaker) DropPlayer(ctx context.Context, playerID string) error {
	log := that.logger.With(zap.String("method", "DropPlayer"), zap.String("playerID", playerID))

	that.mu.Lock()
	defer that.mu.Unlock()

	if index := that.queuedIndex(playerID); index >= 0 {
		that.queue.Remove(index)
		if that.queue.Len() == 0 {
			that.stopWaitTimer()
		}

		log.Debug("queued player left")

		return nil
	}

	mark := that.markOf(playerID)
	if that.game == nil || mark == entity.MarkNone {
		return nil
	}

	winner := mark.Opponent()
	log.Info("player left the game, opponent wins by forfeit", zap.String("winner", string(winner)))

	state := that.state()
	state.Ended = true
	state.Winner = winner

	if human, ok := that.seats[winner].(*humanParticipant); ok {
		human.notifier.SendUpdate(state.For(winner))
	}

	err := that.registry.RecordWin(ctx, that.seats[winner].playerID(), playerID)

	that.endSession()
	that.tryStartGame()

	if err != nil {
		return fmt.Errorf("failed to record forfeit: %w", err)
	}

	return nil
}

func (that *Matchmaker) Status() Status {
	that.mu.Lock()
	defer that.mu.Unlock()

	return Status{
		Queued: that.queue.Len(),
		Active: that.game != nil,
	}
}

// Stop cancels pending timers.
func (that *Matchmaker) Stop() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stopWaitTimer()
	that.stopMoveTimer()
	that.session++
}

func (that *Matchmaker) tryStartGame() {
	if that.game != nil || that.queue.Len() == 0 {
		return
	}

	if that.queue.Len() == 1 {
		that.armWaitTimer()
		return
	}

	that.stopWaitTimer()

	playerX := that.queue.PopFront()
	playerO := that.queue.PopFront()

	that.startGame(playerX, playerO)
}

func (that *Matchmaker) armWaitTimer() {
	that.stopWaitTimer()

	that.waitGen++
	generation := that.waitGen

	that.waitTimer = time.AfterFunc(that.conf.WaitTimeout, func() {
		that.onWaitTimeout(generation)
	})
}

func (that *Matchmaker) stopWaitTimer() {
	if that.waitTimer != nil {
		that.waitTimer.Stop()
		that.waitTimer = nil
	}

	that.waitGen++
}

func (that *Matchmaker) onWaitTimeout(generation uint64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if generation != that.waitGen || that.game != nil || that.queue.Len() != 1 {
		return
	}

	that.waitTimer = nil
	human := that.queue.PopFront()

	that.logger.Info("no opponent found, starting game against AI", zap.String("playerID", human.player.ID))

	that.startGame(human, &aiParticipant{})
}

func (that *Matchmaker) startGame(playerX, playerO participant) {
	that.session++
	that.game = entity.NewGame()
	that.seats = map[entity.Mark]participant{
		entity.MarkX: playerX,
		entity.MarkO: playerO,
	}

	that.logger.Info("game started",
		zap.String("playerX", playerX.info().Name),
		zap.String("playerO", playerO.info().Name),
	)

	state := that.state()

	for _, mark := range marks {
		switch seat := that.seats[mark].(type) {
		case *humanParticipant:
			seat.notifier.StartGame(state.For(mark))
		case *aiParticipant:
		}
	}

	that.scheduleAIMove()
}

func (that *Matchmaker) applyMove(ctx context.Context, mark entity.Mark, x, y int) error {
	if err := that.game.MakeMove(mark, x, y); err != nil {
		return fmt.Errorf("move rejected: %w", err)
	}

	return that.broadcastUpdate(ctx)
}

// broadcastUpdate pushes the state to the humans and concludes a finished game.
func (that *Matchmaker) broadcastUpdate(ctx context.Context) error {
	that.scheduleAIMove()

	state := that.state()

	for _, mark := range marks {
		switch seat := that.seats[mark].(type) {
		case *humanParticipant:
			seat.notifier.SendUpdate(state.For(mark))
		case *aiParticipant:
		}
	}

	if that.game.IsOngoing() {
		return nil
	}

	err := that.recordResult(ctx)

	that.endSession()
	that.tryStartGame()

	return err
}

func (that *Matchmaker) recordResult(ctx context.Context) error {
	idX, idO := that.seats[entity.MarkX].playerID(), that.seats[entity.MarkO].playerID()

	var err error

	switch that.game.Winner() {
	case entity.MarkX:
		err = that.registry.RecordWin(ctx, idX, idO)
	case entity.MarkO:
		err = that.registry.RecordWin(ctx, idO, idX)
	default:
		err = that.registry.RecordTie(ctx, idX, idO)
	}

	if err != nil {
		return fmt.Errorf("failed to record game result: %w", err)
	}

	return nil
}

func (that *Matchmaker) scheduleAIMove() {
	if !that.game.IsOngoing() {
		return
	}

	if _, ok := that.seats[that.game.NextMove()].(*aiParticipant); !ok {
		return
	}

	that.stopMoveTimer()

	session := that.session
	that.moveTimer = time.AfterFunc(that.conf.AIMoveDelay, func() {
		that.onAIMove(session)
	})
}

func (that *Matchmaker) stopMoveTimer() {
	if that.moveTimer != nil {
		that.moveTimer.Stop()
		that.moveTimer = nil
	}
}

func (that *Matchmaker) onAIMove(session uint64) {
	log := that.logger.With(zap.String("method", "onAIMove"))

	that.mu.Lock()
	defer that.mu.Unlock()

	if session != that.session || that.game == nil || !that.game.IsOngoing() {
		return
	}

	mark := that.game.NextMove()
	if _, ok := that.seats[mark].(*aiParticipant); !ok {
		return
	}

	that.moveTimer = nil

	x, y, err := that.bot.PickCell(that.game)
	if err != nil {
		log.Error("failed to pick a cell", zap.Error(err))
		return
	}

	if err = that.applyMove(context.Background(), mark, x, y); err != nil {
		log.Error("failed to apply AI move", zap.Error(err))
	}
}

func (that *Matchmaker) endSession() {
	for _, mark := range marks {
		if human, ok := that.seats[mark].(*humanParticipant); ok {
			human.notifier.EndGame()
		}
	}

	that.stopMoveTimer()
	that.session++
	that.game = nil
	that.seats = nil

	that.logger.Debug("game session ended")
}

func (that *Matchmaker) state() entity.GameState {
	return entity.GameState{
		Cmd:      entity.CmdState,
		Field:    that.game.Snapshot(),
		PlayerX:  that.seats[entity.MarkX].info(),
		PlayerO:  that.seats[entity.MarkO].info(),
		LastTurn: that.game.LastMove(),
		Ended:    that.game.IsFinished(),
		Winner:   that.game.Winner(),
	}
}

func (that *Matchmaker) markOf(playerID string) entity.Mark {
	if playerID == "" {
		return entity.MarkNone
	}

	for mark, seat := range that.seats {
		if seat.playerID() == playerID {
			return mark
		}
	}

	return entity.MarkNone
}

func (that *Matchmaker) queuedIndex(playerID string) int {
	return that.queue.Index(func(human *humanParticipant) bool {
		return human.player.ID == playerID
	})
}

// IsValidationError reports whether err rejects a move without ending anything.
func IsValidationError(err error) bool {
	return errors.Is(err, apperror.ErrNotYourTurn) ||
		errors.Is(err, apperror.ErrCellOccupied) ||
		errors.Is(err, entity.ErrInvalidCell) ||
		errors.Is(err, apperror.ErrGameFinished) ||
		errors.Is(err, apperror.ErrInvalidMark) ||
		errors.Is(err, apperror.ErrNotInGame) ||
		errors.Is(err, apperror.ErrNoActiveGame)
}
