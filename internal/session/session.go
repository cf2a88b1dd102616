package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
	"github.com/rocketscienceinc/tictactoe-server/internal/service"
	"github.com/rocketscienceinc/tictactoe-server/internal/usecase"
	"go.uber.org/zap"
)

const outboxSize = 64

// Conn is a line oriented client connection.
type Conn interface {
	ReadLine() ([]byte, error)
	WriteLine(line []byte) error
	Close() error
	RemoteAddr() string
}

type registry interface {
	Lookup(ctx context.Context, id string) (*entity.Player, error)
	Create(ctx context.Context) (*entity.Player, error)
	Attach(id string, conn service.Kicker)
	Release(id string, conn service.Kicker)
}

type matchmaker interface {
	Enqueue(ctx context.Context, playerID string, notifier usecase.Notifier) error
	SubmitMove(ctx context.Context, playerID string, x, y int) error
	DropPlayer(ctx context.Context, playerID string) error
}

type state int

const (
	stateUnauthenticated state = iota
	stateIdle
	stateQueued
	statePlaying
)

func (s state) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateIdle:
		return "idle"
	case stateQueued:
		return "queued"
	case statePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

type outbound struct {
	line []byte
	// kill closes the connection once the line is written.
	kill bool
}

// Session runs the protocol state machine of one client connection.
type Session struct {
	logger     *zap.Logger
	conn       Conn
	registry   registry
	matchmaker matchmaker
	watchdog   *watchdog

	outbox     chan outbound
	done       chan struct{}
	writerDone chan struct{}
	stopOnce   sync.Once

	mu        sync.Mutex
	state     state
	playerID  string
	lastState []byte
	// ackPending is set while Enqueue runs; the queue ack goes out before any game state.
	ackPending bool
}

func New(logger *zap.Logger, conn Conn, registry registry, matchmaker matchmaker, idleTimeout time.Duration) *Session {
	session := &Session{
		logger:     logger.With(zap.String("component", "session"), zap.String("remote", conn.RemoteAddr())),
		conn:       conn,
		registry:   registry,
		matchmaker: matchmaker,

		outbox:     make(chan outbound, outboxSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	session.watchdog = newWatchdog(idleTimeout, session.onIdle)

	return session
}

// Run serves the connection until it is closed by either side.
func (that *Session) Run(ctx context.Context) {
	log := that.logger.With(zap.String("method", "Run"))

	go that.writeLoop()

	defer func() {
		that.disconnect(context.WithoutCancel(ctx))
		that.stopOnce.Do(func() { close(that.done) })
		<-that.writerDone
	}()

	for {
		line, err := that.conn.ReadLine()
		if err == nil {
			err = that.handle(ctx, line)
		} else if !errors.Is(err, apperror.ErrProtocol) {
			log.Debug("connection closed", zap.Error(err))
			return
		}

		if errors.Is(err, apperror.ErrProtocol) {
			log.Warn("protocol error, closing connection", zap.Error(err))
			that.send(errorResponse{State: stateError}, true)
			<-that.writerDone

			return
		}

		if err != nil {
			log.Error("failed to handle command", zap.Error(err))
		}
	}
}

// Kick closes the connection from outside, for example on a second login.
func (that *Session) Kick() {
	that.logger.Info("connection kicked")
	_ = that.conn.Close()
}

func (that *Session) StartGame(gameState *entity.GameState) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.state = statePlaying
	that.flushQueueAck(true)
	that.pushState(gameState)
}

func (that *Session) SendUpdate(gameState *entity.GameState) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.state != statePlaying {
		return
	}

	that.pushState(gameState)
}

func (that *Session) EndGame() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.state == statePlaying {
		that.state = stateIdle
	}

	that.lastState = nil
	that.watchdog.Disarm()
}

// pushState caches and sends the state. Callers hold mu.
func (that *Session) pushState(gameState *entity.GameState) {
	line, err := json.Marshal(gameState)
	if err != nil {
		that.logger.Error("failed to marshal state", zap.Error(err))
		return
	}

	that.lastState = line
	that.watchdog.Arm()
	that.enqueue(outbound{line: line})
}

func (that *Session) handle(ctx context.Context, line []byte) error {
	req, err := decodeRequest(line)
	if err != nil {
		return err
	}

	that.mu.Lock()
	current, playerID := that.state, that.playerID
	that.mu.Unlock()

	switch current {
	case stateUnauthenticated:
		return that.handleUnauthenticated(ctx, req)
	case stateIdle:
		if req.Cmd == cmdQueue {
			return that.handleQueue(ctx, playerID)
		}
	case stateQueued:
	case statePlaying:
		if req.Cmd == cmdMove {
			return that.handleMove(ctx, playerID, req.Pos)
		}

		that.send(errorResponse{State: stateError}, false)
	}

	return nil
}

func (that *Session) handleUnauthenticated(ctx context.Context, req *request) error {
	switch req.Cmd {
	case cmdAuth:
		return that.handleAuth(ctx, req.UserID)
	case cmdReg:
		return that.handleReg(ctx)
	default:
		return fmt.Errorf("%w: unexpected command %q", apperror.ErrProtocol, req.Cmd)
	}
}

func (that *Session) handleAuth(ctx context.Context, userID string) error {
	player, err := that.registry.Lookup(ctx, userID)
	if err != nil {
		that.send(authResponse{Cmd: cmdAuth, Success: false}, false)

		if errors.Is(err, apperror.ErrPlayerNotFound) {
			return nil
		}

		return fmt.Errorf("failed to authenticate: %w", err)
	}

	that.login(player.ID)

	stats := player.Stats()
	that.send(authResponse{Cmd: cmdAuth, Success: true, Stats: &stats}, false)

	return nil
}

func (that *Session) handleReg(ctx context.Context) error {
	player, err := that.registry.Create(ctx)
	if err != nil {
		that.send(regResponse{Cmd: cmdReg, Success: false}, false)
		return fmt.Errorf("failed to register: %w", err)
	}

	that.login(player.ID)
	that.send(regResponse{Cmd: cmdReg, Success: true, UserID: player.ID}, false)

	return nil
}

func (that *Session) login(playerID string) {
	that.mu.Lock()
	that.state = stateIdle
	that.playerID = playerID
	that.mu.Unlock()

	that.registry.Attach(playerID, that)
	that.logger.Info("player authenticated", zap.String("playerID", playerID))
}

func (that *Session) handleQueue(ctx context.Context, playerID string) error {
	that.mu.Lock()
	that.state = stateQueued
	that.ackPending = true
	that.mu.Unlock()

	err := that.matchmaker.Enqueue(ctx, playerID, that)

	that.mu.Lock()
	defer that.mu.Unlock()

	that.flushQueueAck(err == nil)

	if err != nil {
		if that.state == stateQueued {
			that.state = stateIdle
		}

		return fmt.Errorf("failed to enqueue: %w", err)
	}

	return nil
}

// flushQueueAck sends the pending queue ack, if any. Callers hold mu.
func (that *Session) flushQueueAck(success bool) {
	if !that.ackPending {
		return
	}

	that.ackPending = false
	that.send(queueResponse{Cmd: cmdQueue, Success: success}, false)
}

func (that *Session) handleMove(ctx context.Context, playerID string, pos json.RawMessage) error {
	that.watchdog.Arm()

	x, y, err := decodeMove(pos)
	if err != nil {
		that.logger.Debug("malformed move", zap.Error(err))
		that.resendState()

		return nil
	}

	err = that.matchmaker.SubmitMove(ctx, playerID, x, y)
	if usecase.IsValidationError(err) {
		that.logger.Debug("move rejected", zap.Error(err))
		that.resendState()

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to submit move: %w", err)
	}

	return nil
}

func (that *Session) resendState() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.lastState != nil {
		that.enqueue(outbound{line: that.lastState})
	}
}

func (that *Session) onIdle() {
	that.logger.Info("idle timeout, closing connection")
	_ = that.conn.Close()
}

func (that *Session) disconnect(ctx context.Context) {
	log := that.logger.With(zap.String("method", "disconnect"))

	that.watchdog.Disarm()

	that.mu.Lock()
	current, playerID := that.state, that.playerID
	that.state = stateUnauthenticated
	that.lastState = nil
	that.mu.Unlock()

	if current == stateQueued || current == statePlaying {
		if err := that.matchmaker.DropPlayer(ctx, playerID); err != nil {
			log.Error("failed to drop player", zap.String("playerID", playerID), zap.Error(err))
		}
	}

	if playerID != "" {
		that.registry.Release(playerID, that)
	}

	log.Debug("session closed", zap.String("state", current.String()))
}

func (that *Session) send(message any, kill bool) {
	line, err := json.Marshal(message)
	if err != nil {
		that.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	that.enqueue(outbound{line: line, kill: kill})
}

// enqueue never blocks. A client that cannot keep up is disconnected.
func (that *Session) enqueue(message outbound) {
	select {
	case <-that.writerDone:
		return
	default:
	}

	select {
	case that.outbox <- message:
	default:
		that.logger.Warn("outbox is full, closing connection")
		_ = that.conn.Close()
	}
}

func (that *Session) writeLoop() {
	defer close(that.writerDone)
	defer that.conn.Close()

	for {
		select {
		case message := <-that.outbox:
			if err := that.conn.WriteLine(message.line); err != nil {
				that.logger.Debug("failed to write line", zap.Error(err))
				return
			}

			if message.kill {
				return
			}
		case <-that.done:
			that.flush()
			return
		}
	}
}

// flush writes whatever is still queued when the session stops.
func (that *Session) flush() {
	for {
		select {
		case message := <-that.outbox:
			if err := that.conn.WriteLine(message.line); err != nil {
				return
			}
		default:
			return
		}
	}
}
