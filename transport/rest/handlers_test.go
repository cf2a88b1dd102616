package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rocketscienceinc/tictactoe-server/internal/config"
	"github.com/rocketscienceinc/tictactoe-server/internal/repository"
	"github.com/rocketscienceinc/tictactoe-server/internal/service"
	"github.com/rocketscienceinc/tictactoe-server/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-server/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct{}

func (that *stubConn) Kick() {}

func TestHandlers(t *testing.T) {
	ctx, st := suite.NewInMemory(t)

	registry := service.NewRegistry(st.Logger, repository.NewPlayerRepository(st.Storage))
	matchmaker := usecase.NewMatchmaker(st.Logger, config.Game{}, registry, service.NewBotService())
	router := NewRouter(NewHandlers(st.Logger, registry, matchmaker))

	get := func(path string) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))

		return recorder
	}

	t.Run("Ping", func(t *testing.T) {
		resp := get("/ping")

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "pong", resp.Body.String())
	})

	t.Run("Status", func(t *testing.T) {
		resp := get("/status")

		require.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"queued":0,"active":false}`, resp.Body.String())
	})

	t.Run("Existing player", func(t *testing.T) {
		// Given: a player with one loss
		player, err := registry.Create(ctx)
		require.NoError(t, err)
		require.NoError(t, registry.RecordWin(ctx, "", player.ID))

		// When: the player is requested
		resp := get("/players/" + player.ID)

		// Then: the stored results are returned
		require.Equal(t, http.StatusOK, resp.Code)

		var body playerResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, player.ID, body.ID)
		assert.Equal(t, player.Name, body.Name)
		assert.Equal(t, 1, body.Loses)
		assert.Equal(t, [3]float64{0, 1, 0}, [3]float64(body.Stats))
		assert.False(t, body.Online)
	})

	t.Run("Connected player is reported online", func(t *testing.T) {
		// Given: a player holding a connection
		player, err := registry.Create(ctx)
		require.NoError(t, err)

		conn := &stubConn{}
		registry.Attach(player.ID, conn)
		t.Cleanup(func() { registry.Release(player.ID, conn) })

		// When: the player is requested
		resp := get("/players/" + player.ID)

		// Then: the response marks the player online
		require.Equal(t, http.StatusOK, resp.Code)

		var body playerResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.True(t, body.Online)
	})

	t.Run("Unknown player", func(t *testing.T) {
		resp := get("/players/missing")

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}
