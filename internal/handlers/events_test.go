package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/internal/testutil"
	"github.com/huangang/taskboard/internal/utils"
)

type streamEnv struct {
	server  *httptest.Server
	hub     *services.EventHub
	tokens  *utils.TokenManager
	owner   *models.User
	outside *models.User
	project *models.Project
}

func newStreamEnv(t *testing.T) *streamEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	hub := services.NewEventHub()
	tokens := utils.NewTokenManager("stream-test-secret", 1)
	access := services.NewAccessService(db)
	auth := services.NewAuthService(db, tokens)

	owner := testutil.CreateUser(t, db, "Owner", "owner@example.com", models.RoleMember)
	outside := testutil.CreateUser(t, db, "Outside", "outside@example.com", models.RoleMember)
	project := testutil.CreateProject(t, db, owner, "Alpha")

	h := NewEventsHandler(hub, access, nil)
	r := gin.New()
	streamAuth := middleware.StreamAuth(tokens, auth)
	r.GET("/api/ws", streamAuth, h.ServeWS)
	r.GET("/api/events/projects/:projectId", streamAuth, h.StreamProject)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &streamEnv{server: server, hub: hub, tokens: tokens, owner: owner, outside: outside, project: project}
}

func (e *streamEnv) token(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := e.tokens.Generate(user.ID, user.Email)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func dial(t *testing.T, e *streamEnv, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) socketReply {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply socketReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	return reply
}

func TestWebSocket_JoinAndReceive(t *testing.T) {
	e := newStreamEnv(t)
	conn := dial(t, e, e.token(t, e.owner))

	if err := conn.WriteJSON(socketMessage{Type: msgJoinProject, ProjectID: e.project.ID}); err != nil {
		t.Fatal(err)
	}
	if reply := readReply(t, conn); reply.Event != "joined-project" || reply.ProjectID != e.project.ID {
		t.Fatalf("unexpected reply %+v", reply)
	}

	e.hub.Publish(e.project.ID, services.EventTaskCreated, map[string]string{"id": "t1"})
	reply := readReply(t, conn)
	if reply.Event != services.EventTaskCreated || reply.ProjectID != e.project.ID {
		t.Errorf("unexpected event %+v", reply)
	}

	if err := conn.WriteJSON(socketMessage{Type: msgLeaveProject, ProjectID: e.project.ID}); err != nil {
		t.Fatal(err)
	}
	if reply := readReply(t, conn); reply.Event != "left-project" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if size := e.hub.RoomSize(e.project.ID); size != 0 {
		t.Errorf("room size after leave = %d", size)
	}
}

func TestWebSocket_JoinRequiresAccess(t *testing.T) {
	e := newStreamEnv(t)
	conn := dial(t, e, e.token(t, e.outside))

	if err := conn.WriteJSON(socketMessage{Type: msgJoinProject, ProjectID: e.project.ID}); err != nil {
		t.Fatal(err)
	}
	reply := readReply(t, conn)
	if reply.Event != "error" {
		t.Fatalf("expected an error reply, got %+v", reply)
	}
	if size := e.hub.RoomSize(e.project.ID); size != 0 {
		t.Errorf("outsider joined the room")
	}
}

func TestWebSocket_RejectsMissingToken(t *testing.T) {
	e := newStreamEnv(t)
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", resp)
	}
}

func TestWebSocket_DisconnectUnsubscribes(t *testing.T) {
	e := newStreamEnv(t)
	conn := dial(t, e, e.token(t, e.owner))
	waitFor(t, func() bool { return e.hub.ClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return e.hub.ClientCount() == 0 })
}

func TestStreamProject(t *testing.T) {
	e := newStreamEnv(t)

	resp, err := http.Get(e.server.URL + "/api/events/projects/" + e.project.ID + "?token=" + e.token(t, e.outside))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider: expected 403, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", e.server.URL+"/api/events/projects/"+e.project.ID+"?token="+e.token(t, e.owner), nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	waitFor(t, func() bool { return e.hub.RoomSize(e.project.ID) == 1 })
	e.hub.Publish(e.project.ID, services.EventCommentAdded, map[string]string{"content": "hi"})

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimPrefix(line, "data: ")
				return
			}
		}
	}()

	select {
	case line := <-lines:
		var evt services.ProjectEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			t.Fatal(err)
		}
		if evt.Event != services.EventCommentAdded || evt.ProjectID != e.project.ID {
			t.Errorf("unexpected event %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	waitFor(t, func() bool { return e.hub.ClientCount() == 0 })
}

func TestStreamProject_EndsWhenHubCloses(t *testing.T) {
	e := newStreamEnv(t)

	resp, err := http.Get(e.server.URL + "/api/events/projects/" + e.project.ID + "?token=" + e.token(t, e.owner))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	waitFor(t, func() bool { return e.hub.RoomSize(e.project.ID) == 1 })

	e.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		io.Copy(io.Discard, resp.Body)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after the hub closed")
	}
}
