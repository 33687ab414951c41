package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/checkin-runner/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RunLookup finds a run by ID
type RunLookup interface {
	Get(id string) (*models.Run, error)
}

// Server relays a DevTools client to the browser of a live run
type Server struct {
	runs   RunLookup
	logger *zap.Logger
}

func NewServer(runs RunLookup, logger *zap.Logger) *Server {
	return &Server{
		runs:   runs,
		logger: logger,
	}
}

func (s *Server) HandleDebugConnection(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.runs.Get(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	if run.Done() || run.ConnectURL == "" {
		http.Error(w, "Run has no live browser", http.StatusBadRequest)
		return
	}

	log := s.logger.With(zap.String("run", runID))

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	defer clientConn.Close()

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	chromeConn, _, err := websocket.DefaultDialer.DialContext(ctx, run.ConnectURL, nil)
	if err != nil {
		log.Warn("failed to connect to chrome", zap.String("connect_url", run.ConnectURL), zap.Error(err))
		clientConn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("Error connecting: %v", err)))
		return
	}
	defer chromeConn.Close()

	log.Debug("debug client attached")

	// Bidirectional proxy
	errChan := make(chan error, 2)

	go func() {
		errChan <- s.proxyMessages(clientConn, chromeConn, "client→chrome")
	}()

	go func() {
		errChan <- s.proxyMessages(chromeConn, clientConn, "chrome→client")
	}()

	// Wait for either direction to close
	err = <-errChan
	var closeErr *websocket.CloseError
	if err != nil && !errors.As(err, &closeErr) {
		log.Debug("proxy stopped", zap.Error(err))
	}

	log.Debug("debug client detached")
}

func (s *Server) proxyMessages(src, dst *websocket.Conn, direction string) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket error", zap.String("direction", direction), zap.Error(err))
			}
			return err
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			return fmt.Errorf("write %s: %w", direction, err)
		}
	}
}
