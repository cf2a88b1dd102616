package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Manager serves connections from any transport with the shared services.
type Manager struct {
	logger      *zap.Logger
	registry    registry
	matchmaker  matchmaker
	idleTimeout time.Duration
}

func NewManager(logger *zap.Logger, registry registry, matchmaker matchmaker, idleTimeout time.Duration) *Manager {
	return &Manager{
		logger:      logger,
		registry:    registry,
		matchmaker:  matchmaker,
		idleTimeout: idleTimeout,
	}
}

// Serve blocks until the connection is closed.
func (that *Manager) Serve(ctx context.Context, conn Conn) {
	New(that.logger, conn, that.registry, that.matchmaker, that.idleTimeout).Run(ctx)
}
