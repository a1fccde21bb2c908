package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/huangang/taskboard/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sseHeartbeat   = 30 * time.Second
)

// Client to server socket messages.
const (
	msgJoinProject  = "join-project"
	msgLeaveProject = "leave-project"
)

type socketMessage struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId"`
}

// socketReply acknowledges a join or reports why it failed. It shares the
// event/projectId shape of broadcast messages.
type socketReply struct {
	Event     string      `json:"event"`
	ProjectID string      `json:"projectId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// EventsHandler streams project events over SSE and WebSocket.
type EventsHandler struct {
	hub      *services.EventHub
	access   *services.AccessService
	upgrader websocket.Upgrader
}

// NewEventsHandler creates the handler. Socket upgrades are accepted from
// the given origins; an empty list or "*" accepts any origin.
func NewEventsHandler(hub *services.EventHub, access *services.AccessService, origins []string) *EventsHandler {
	return &EventsHandler{
		hub:    hub,
		access: access,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// StreamProject is a server-sent event stream joined to one project for
// its whole lifetime.
// GET /api/events/projects/:projectId
func (h *EventsHandler) StreamProject(c *gin.Context) {
	projectID := c.Param("projectId")
	if _, err := h.access.RequireAccess(c.Request.Context(), middleware.CurrentUser(c), projectID); err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID)
	defer h.hub.Unsubscribe(clientID)
	h.hub.Join(clientID, projectID)

	// send headers now so clients see the stream open before the first event
	c.Status(http.StatusOK)
	c.Writer.Flush()

	logger.Info().Str("client_id", clientID).Str("project_id", projectID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			c.Writer.Flush()
			return true
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}

// ServeWS upgrades to a WebSocket. The client joins and leaves project
// channels with join-project / leave-project messages.
// GET /api/ws
func (h *EventsHandler) ServeWS(c *gin.Context) {
	user := middleware.CurrentUser(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID)
	replies := make(chan socketReply, 8)
	done := make(chan struct{})

	logger.Info().Str("client_id", clientID).Str("user_id", user.ID).Int("total", h.hub.ClientCount()).Msg("websocket client connected")

	go h.writePump(conn, events, replies, done)
	h.readPump(c.Request.Context(), conn, user, clientID, replies)

	// closing the subscription ends the write pump
	h.hub.Unsubscribe(clientID)
	<-done
	logger.Info().Str("client_id", clientID).Msg("websocket client disconnected")
}

func (h *EventsHandler) readPump(ctx context.Context, conn *websocket.Conn, user *models.User, clientID string, replies chan<- socketReply) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg socketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Str("client_id", clientID).Msg("websocket read error")
			}
			return
		}

		var reply socketReply
		switch msg.Type {
		case msgJoinProject:
			if _, err := h.access.RequireAccess(ctx, user, msg.ProjectID); err != nil {
				reply = socketReply{Event: "error", ProjectID: msg.ProjectID, Data: gin.H{"error": errorText(err)}}
				break
			}
			h.hub.Join(clientID, msg.ProjectID)
			reply = socketReply{Event: "joined-project", ProjectID: msg.ProjectID}
		case msgLeaveProject:
			h.hub.Leave(clientID, msg.ProjectID)
			reply = socketReply{Event: "left-project", ProjectID: msg.ProjectID}
		default:
			reply = socketReply{Event: "error", Data: gin.H{"error": "Unknown message type"}}
		}

		select {
		case replies <- reply:
		default:
		}
	}
}

func (h *EventsHandler) writePump(conn *websocket.Conn, events <-chan services.ProjectEvent, replies <-chan socketReply, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		drain(events)
		close(done)
	}()

	for {
		var payload interface{}
		select {
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			payload = event
		case reply := <-replies:
			payload = reply
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(payload); err != nil {
			return
		}
	}
}

// drain consumes events until the subscription is closed.
func drain(events <-chan services.ProjectEvent) {
	for range events {
	}
}

func errorText(err error) string {
	var appErr *response.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		return appErr.Message
	}
	return "Internal server error"
}
