package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rocketscienceinc/tictactoe-server/internal/session"
	"go.uber.org/zap"
)

type sessionServer interface {
	Serve(ctx context.Context, conn session.Conn)
}

// Server accepts line protocol clients over TCP.
type Server struct {
	logger   *zap.Logger
	sessions sessionServer

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func New(logger *zap.Logger, sessions sessionServer) *Server {
	return &Server{
		logger:   logger.With(zap.String("component", "tcp")),
		sessions: sessions,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start - listens on port until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return that.Serve(ctx, listener)
}

// Serve accepts connections on listener. Open connections are closed on return.
func (that *Server) Serve(ctx context.Context, listener net.Listener) error {
	log := that.logger.With(zap.String("method", "Serve"))

	stop := context.AfterFunc(ctx, func() {
		_ = listener.Close()
	})
	defer stop()

	defer that.closeAll()

	log.Info("listening", zap.String("addr", listener.Addr().String()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("failed to accept connection: %w", err)
		}

		that.track(conn)

		that.wg.Add(1)
		go func() {
			defer that.wg.Done()
			defer that.untrack(conn)

			log.Debug("client connected", zap.String("remote", conn.RemoteAddr().String()))
			that.sessions.Serve(ctx, newLineConn(conn))
		}()
	}
}

func (that *Server) track(conn net.Conn) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.conns[conn] = struct{}{}
}

func (that *Server) untrack(conn net.Conn) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.conns, conn)
}

func (that *Server) closeAll() {
	that.mu.Lock()
	for conn := range that.conns {
		_ = conn.Close()
	}
	that.mu.Unlock()

	that.wg.Wait()
}
