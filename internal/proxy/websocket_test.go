package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/checkin-runner/pkg/models"
)

type runTable map[string]*models.Run

func (t runTable) Get(id string) (*models.Run, error) {
	r, ok := t[id]
	if !ok {
		return nil, assert.AnError
	}
	return r, nil
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func proxyServer(t *testing.T, runs runTable) *httptest.Server {
	t.Helper()
	s := NewServer(runs, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.HandleDebugConnection(w, r, strings.TrimPrefix(r.URL.Path, "/"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleDebugConnection_Relays(t *testing.T) {
	chrome := echoServer(t)
	srv := proxyServer(t, runTable{
		"live": {ID: "live", Status: models.StatusRunning, ConnectURL: wsURL(chrome.URL)},
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL)+"/live", nil)
	require.NoError(t, err)
	defer conn.Close()

	cmd := `{"id":1,"method":"Browser.getVersion"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(cmd)))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, cmd, string(msg))
}

func TestHandleDebugConnection_Rejects(t *testing.T) {
	srv := proxyServer(t, runTable{
		"done": {ID: "done", Status: models.StatusSucceeded, ConnectURL: "ws://127.0.0.1:1"},
	})

	resp, err := http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/done")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
