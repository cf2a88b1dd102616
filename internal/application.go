package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-server/internal/config"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-server/internal/service"
	"github.com/rocketscienceinc/tictactoe-server/internal/session"
	"github.com/rocketscienceinc/tictactoe-server/internal/transport/tcp"
	"github.com/rocketscienceinc/tictactoe-server/internal/transport/websocket"
	"github.com/rocketscienceinc/tictactoe-server/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-server/transport/rest"
	"go.uber.org/zap"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *zap.Logger, conf *config.Config) error {
	log := logger.With(zap.String("component", "app"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", zap.Error(err))
		}
	}()

	playerRepo := repository.NewPlayerRepository(redisStorage)
	registry := service.NewRegistry(logger, playerRepo)
	matchmaker := usecase.NewMatchmaker(logger, conf.Game, registry, service.NewBotService())
	defer matchmaker.Stop()

	sessions := session.NewManager(logger, registry, matchmaker, conf.Game.IdleTimeout)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("port", conf.HTTPPort))
		httpErrCh <- rest.Start(ctx, conf.HTTPPort, rest.NewHandlers(logger, registry, matchmaker))
	}()

	// run TCP server
	tcpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting TCP server", zap.String("port", conf.TCPPort))
		tcpErrCh <- tcp.New(logger, sessions).Start(ctx, conf.TCPPort)
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", zap.String("port", conf.WSPort))
		wsErrCh <- websocket.New(logger, sessions).Start(ctx, conf.WSPort)
	}()

	var runErr error

	select {
	case err = <-httpErrCh:
		runErr = wrapServerError("HTTP", err)
	case err = <-tcpErrCh:
		// the TCP server closes its sessions before returning
		return wrapServerError("TCP", err)
	case err = <-wsErrCh:
		runErr = wrapServerError("WebSocket", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
	}

	stop()

	if err = <-tcpErrCh; err != nil {
		log.Error("TCP server stopped with error", zap.Error(err))
	}

	return runErr
}

func wrapServerError(name string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s server error: %w", name, err)
}
