package tcp

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-server/internal/config"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository"
	"github.com/rocketscienceinc/tictactoe-server/internal/service"
	"github.com/rocketscienceinc/tictactoe-server/internal/session"
	"github.com/rocketscienceinc/tictactoe-server/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-server/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readTimeout = 2 * time.Second

type client struct {
	t       *testing.T
	conn    net.Conn
	scanner *bufio.Scanner
}

func dial(t *testing.T, addr string) *client {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return &client{t: t, conn: conn, scanner: bufio.NewScanner(conn)}
}

func (that *client) send(line string) {
	that.t.Helper()

	_, err := that.conn.Write([]byte(line + "\n"))
	require.NoError(that.t, err)
}

func (that *client) receive() map[string]any {
	that.t.Helper()

	require.NoError(that.t, that.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	require.True(that.t, that.scanner.Scan(), "no line received: %v", that.scanner.Err())

	var message map[string]any
	require.NoError(that.t, json.Unmarshal(that.scanner.Bytes(), &message))

	return message
}

func (that *client) expectClosed() {
	that.t.Helper()

	require.NoError(that.t, that.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	assert.False(that.t, that.scanner.Scan())
}

func startServer(t *testing.T) string {
	t.Helper()

	ctx, st := suite.NewInMemory(t)
	ctx, cancel := context.WithCancel(ctx)

	registry := service.NewRegistry(st.Logger, repository.NewPlayerRepository(st.Storage))
	matchmaker := usecase.NewMatchmaker(st.Logger, config.Game{
		WaitTimeout: time.Hour,
		AIMoveDelay: time.Second,
		IdleTimeout: time.Minute,
	}, registry, service.NewBotService())
	sessions := session.NewManager(st.Logger, registry, matchmaker, time.Minute)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := New(st.Logger, sessions)
	done := make(chan error, 1)

	go func() {
		done <- server.Serve(ctx, listener)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		matchmaker.Stop()
	})

	return listener.Addr().String()
}

func TestServer_Scenario(t *testing.T) {
	addr := startServer(t)

	// Given: a registered player who reconnects
	first := dial(t, addr)
	first.send(`{"cmd":"reg"}`)
	reg := first.receive()
	require.Equal(t, "reg", reg["cmd"])
	require.Equal(t, true, reg["success"])
	userID, ok := reg["user_id"].(string)
	require.True(t, ok)
	require.NoError(t, first.conn.Close())

	alice := dial(t, addr)
	alice.send(`{"cmd":"auth","user_id":"` + userID + `"}`)
	auth := alice.receive()
	assert.Equal(t, "auth", auth["cmd"])
	assert.Equal(t, true, auth["success"])
	assert.Equal(t, []any{0.0, 0.0, 0.0}, auth["stats"])

	// And: a second player
	bob := dial(t, addr)
	bob.send(`{"cmd":"reg"}`)
	require.Equal(t, true, bob.receive()["success"])

	// When: both players queue
	alice.send(`{"cmd":"queue"}`)
	assert.Equal(t, map[string]any{"cmd": "queue", "success": true}, alice.receive())
	bob.send(`{"cmd":"queue"}`)
	assert.Equal(t, map[string]any{"cmd": "queue", "success": true}, bob.receive())

	// Then: both receive an empty board
	emptyRow := []any{nil, nil, nil}
	emptyField := []any{emptyRow, emptyRow, emptyRow}

	aliceStart, bobStart := alice.receive(), bob.receive()
	for _, state := range []map[string]any{aliceStart, bobStart} {
		assert.Equal(t, "state", state["cmd"])
		assert.Equal(t, emptyField, state["field"])
		assert.Equal(t, false, state["ended"])
	}

	assert.Equal(t, "x", aliceStart["your_type"])
	assert.Equal(t, "o", bobStart["your_type"])

	// When: the first mover plays the corner
	alice.send(`{"cmd":"move","pos":[0,0]}`)

	// Then: both see the mark and the game goes on
	for _, state := range []map[string]any{alice.receive(), bob.receive()} {
		field := state["field"].([]any)
		assert.Equal(t, "x", field[0].([]any)[0])
		assert.Equal(t, false, state["ended"])
		assert.Equal(t, "x", state["last_turn"])
	}
}

func TestServer_Forfeit(t *testing.T) {
	addr := startServer(t)

	alice, bob := dial(t, addr), dial(t, addr)
	for _, c := range []*client{alice, bob} {
		c.send(`{"cmd":"reg"}`)
		require.Equal(t, true, c.receive()["success"])
		c.send(`{"cmd":"queue"}`)
		require.Equal(t, "queue", c.receive()["cmd"])
	}

	require.Equal(t, "state", alice.receive()["cmd"])
	require.Equal(t, "state", bob.receive()["cmd"])

	// When: the first player disconnects mid game
	require.NoError(t, alice.conn.Close())

	// Then: the other player wins by forfeit
	forfeit := bob.receive()
	assert.Equal(t, true, forfeit["ended"])
	assert.Equal(t, "o", forfeit["winner"])
	assert.Equal(t, "o", forfeit["your_type"])
}

func TestServer_ProtocolError(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)

	// When: a line that is not JSON arrives
	c.send(`hello`)

	// Then: an error is returned and the connection closed
	assert.Equal(t, map[string]any{"state": "error"}, c.receive())
	c.expectClosed()
}

func TestServer_LineTooLong(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)

	// When: a line longer than the frame limit arrives
	c.send(`{"cmd":"reg","pad":"` + strings.Repeat("a", maxLineSize) + `"}`)

	// Then: an error is returned before the connection is closed
	assert.Equal(t, map[string]any{"state": "error"}, c.receive())
	c.expectClosed()
}

func TestServer_WrongFieldTypeDuringGame(t *testing.T) {
	addr := startServer(t)

	alice, bob := dial(t, addr), dial(t, addr)
	for _, c := range []*client{alice, bob} {
		c.send(`{"cmd":"reg"}`)
		require.Equal(t, true, c.receive()["success"])
		c.send(`{"cmd":"queue"}`)
		require.Equal(t, "queue", c.receive()["cmd"])
	}

	require.Equal(t, "state", alice.receive()["cmd"])
	require.Equal(t, "state", bob.receive()["cmd"])

	// When: the first mover sends a move carrying an unrelated numeric field
	alice.send(`{"cmd":"move","pos":[0,0],"user_id":1}`)

	// Then: the move is applied for both players and nobody forfeits
	for _, state := range []map[string]any{alice.receive(), bob.receive()} {
		field := state["field"].([]any)
		assert.Equal(t, "x", field[0].([]any)[0])
		assert.Equal(t, false, state["ended"])
	}
}
