package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-server/internal/config"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository"
	"github.com/rocketscienceinc/tictactoe-server/internal/service"
	"github.com/rocketscienceinc/tictactoe-server/internal/session"
	"github.com/rocketscienceinc/tictactoe-server/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-server/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Session(t *testing.T) {
	ctx, st := suite.NewInMemory(t)
	ctx, cancel := context.WithCancel(ctx)

	registry := service.NewRegistry(st.Logger, repository.NewPlayerRepository(st.Storage))
	matchmaker := usecase.NewMatchmaker(st.Logger, config.Game{
		WaitTimeout: 20 * time.Millisecond,
		AIMoveDelay: 10 * time.Millisecond,
	}, registry, service.NewBotService())
	sessions := session.NewManager(st.Logger, registry, matchmaker, time.Minute)

	server := httptest.NewServer(New(st.Logger, sessions).Handler(ctx))
	t.Cleanup(func() {
		cancel()
		server.Close()
		matchmaker.Stop()
	})

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	socket, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = socket.Close() })

	receive := func() map[string]any {
		t.Helper()

		require.NoError(t, socket.SetReadDeadline(time.Now().Add(2*time.Second)))

		var message map[string]any
		require.NoError(t, socket.ReadJSON(&message))

		return message
	}

	// Given: a registered player
	require.NoError(t, socket.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"reg"}`)))
	assert.Equal(t, true, receive()["success"])

	// When: the player queues alone
	require.NoError(t, socket.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"queue"}`)))
	assert.Equal(t, "queue", receive()["cmd"])

	// Then: a game against the AI starts after the wait window
	start := receive()
	assert.Equal(t, "state", start["cmd"])
	assert.Equal(t, "x", start["your_type"])
	assert.Equal(t, "Computer", start["player_o"].(map[string]any)["name"])

	// When: the player moves
	require.NoError(t, socket.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"move","pos":[1,1]}`)))

	// Then: the move is echoed and the AI answers
	assert.Equal(t, "x", receive()["last_turn"])
	assert.Equal(t, "o", receive()["last_turn"])
}
