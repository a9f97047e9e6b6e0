package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/driver"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/types"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StateSource is the part of the consumer the stream reads.
type StateSource interface {
	Snapshot() (driver.DriverState, error)
}

// Handler manages WebSocket connections.
type Handler struct {
	source   StateSource
	prefix   string
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	interval time.Duration
}

// NewHandler creates a stream handler pushing every interval.
func NewHandler(source StateSource, prefix string, logger *logging.Logger, metrics *monitoring.Metrics, interval time.Duration) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Handler{
		source:   source,
		prefix:   prefix,
		logger:   logger.Named("ws"),
		metrics:  metrics,
		interval: interval,
	}
}

// HandleConnection upgrades the request and streams until the client leaves.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	logger := h.logger.With(zap.String("client_id", clientID))
	logger.Info("Stream client connected", zap.String("remote", c.ClientIP()))

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	s := &session{conn: conn, clientID: clientID}
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readLoop(s, logger)
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	wasReady := true
	for {
		if err := h.push(s, &wasReady); err != nil {
			logger.Debug("Stream write failed", zap.Error(err))
			break
		}
		select {
		case <-done:
			logger.Info("Stream client disconnected")
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
	conn.Close()
	<-done
}

// push sends the current state, or a not_ready notice on the transition out
// of readiness.
func (h *Handler) push(s *session, wasReady *bool) error {
	state, err := h.source.Snapshot()
	if err != nil {
		if !*wasReady {
			return nil
		}
		*wasReady = false

		msg := types.StreamMessage{Type: types.StreamNotReady, ClientID: s.clientID, Message: err.Error()}
		var nr *driver.NotReadyError
		if errors.As(err, &nr) {
			msg.Missing = nr.Missing
		}
		return s.send(msg)
	}

	*wasReady = true
	resp := types.NewStateResponse(h.prefix, state, time.Now())
	return s.send(types.StreamMessage{Type: types.StreamState, ClientID: s.clientID, State: &resp})
}

func (h *Handler) readLoop(s *session, logger *logging.Logger) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Stream read failed", zap.Error(err))
			}
			return
		}

		var msg types.StreamMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			_ = s.send(types.StreamMessage{Type: types.StreamError, Message: "invalid message"})
			continue
		}
		switch msg.Type {
		case "ping":
			_ = s.send(types.StreamMessage{Type: types.StreamPong})
		default:
			_ = s.send(types.StreamMessage{Type: types.StreamError, Message: "unknown message type"})
		}
	}
}

// session serializes writes; gorilla connections allow one concurrent writer.
type session struct {
	conn     *websocket.Conn
	clientID string
	mu       sync.Mutex
}

func (s *session) send(msg types.StreamMessage) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
