package services

import (
	"encoding/json"
	"sync"

	"github.com/huangang/taskboard/pkg/logger"
)

// Event names published after successful mutations.
const (
	EventProjectCreated = "project-created"
	EventProjectUpdated = "project-updated"
	EventProjectDeleted = "project-deleted"
	EventMemberAdded    = "member-added"
	EventMemberUpdated  = "member-updated"
	EventMemberRemoved  = "member-removed"
	EventTaskCreated    = "task-created"
	EventTaskUpdated    = "task-updated"
	EventTaskDeleted    = "task-deleted"
	EventTasksReordered = "tasks-reordered"
	EventCommentAdded   = "comment-added"
	EventFileUploaded   = "file-uploaded"
	EventFileDeleted    = "file-deleted"
)

// clientBufferSize bounds how many undelivered events a slow client may hold
// before further events to it are dropped.
const clientBufferSize = 100

// ProjectEvent is a notification scoped to one project channel.
type ProjectEvent struct {
	Event     string          `json:"event"`
	ProjectID string          `json:"projectId"`
	Data      json.RawMessage `json:"data"`
}

// Broadcaster publishes project events. Delivery is best-effort and never
// blocks the caller.
type Broadcaster interface {
	Publish(projectID, event string, data interface{})
}

func newProjectEvent(projectID, event string, data interface{}) (ProjectEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return ProjectEvent{}, err
	}
	return ProjectEvent{Event: event, ProjectID: projectID, Data: raw}, nil
}

type subscriber struct {
	ch       chan ProjectEvent
	projects map[string]struct{}
}

// EventHub is the in-process registry of connected clients and the project
// channels each one joined.
type EventHub struct {
	clients map[string]*subscriber
	rooms   map[string]map[string]struct{}
	mu      sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[string]*subscriber),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Subscribe registers a client and returns its event stream. The client
// receives nothing until it joins a project.
func (h *EventHub) Subscribe(clientID string) <-chan ProjectEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[clientID]; ok {
		return existing.ch
	}
	sub := &subscriber{
		ch:       make(chan ProjectEvent, clientBufferSize),
		projects: make(map[string]struct{}),
	}
	h.clients[clientID] = sub
	return sub.ch
}

// Unsubscribe removes the client from every room and closes its stream.
func (h *EventHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.clients[clientID]
	if !ok {
		return
	}
	for projectID := range sub.projects {
		h.removeFromRoom(projectID, clientID)
	}
	close(sub.ch)
	delete(h.clients, clientID)
}

// CloseAll disconnects every client. Open streams see their channel closed
// and return.
func (h *EventHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for clientID, sub := range h.clients {
		close(sub.ch)
		delete(h.clients, clientID)
	}
	h.rooms = make(map[string]map[string]struct{})
}

// Join adds the client to a project channel. It reports false for unknown
// clients.
func (h *EventHub) Join(clientID, projectID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.clients[clientID]
	if !ok {
		return false
	}
	sub.projects[projectID] = struct{}{}
	room, ok := h.rooms[projectID]
	if !ok {
		room = make(map[string]struct{})
		h.rooms[projectID] = room
	}
	room[clientID] = struct{}{}
	return true
}

// Leave removes the client from a project channel.
func (h *EventHub) Leave(clientID, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.clients[clientID]; ok {
		delete(sub.projects, projectID)
	}
	h.removeFromRoom(projectID, clientID)
}

func (h *EventHub) removeFromRoom(projectID, clientID string) {
	room, ok := h.rooms[projectID]
	if !ok {
		return
	}
	delete(room, clientID)
	if len(room) == 0 {
		delete(h.rooms, projectID)
	}
}

// Publish implements Broadcaster for a single process.
func (h *EventHub) Publish(projectID, event string, data interface{}) {
	evt, err := newProjectEvent(projectID, event, data)
	if err != nil {
		logger.Error().Err(err).Str("event", event).Msg("failed to encode project event")
		return
	}
	h.Dispatch(evt)
}

// Dispatch delivers an already-encoded event to the project's room.
func (h *EventHub) Dispatch(evt ProjectEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for clientID := range h.rooms[evt.ProjectID] {
		sub := h.clients[clientID]
		select {
		case sub.ch <- evt:
		default:
			logger.Debug().Str("client_id", clientID).Str("event", evt.Event).Msg("client buffer full, event dropped")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns how many clients joined the project channel.
func (h *EventHub) RoomSize(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}
