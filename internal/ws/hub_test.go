package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/hydrosim/internal/event"
	"github.com/HerbHall/hydrosim/internal/insight"
	"github.com/HerbHall/hydrosim/pkg/plugin"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

func newTestClient(sessionID string, buffer int) *Client {
	return &Client{
		sessionID: sessionID,
		send:      make(chan Message, buffer),
		logger:    zap.NewNop(),
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	a := newTestClient("s1", 1)
	b := newTestClient("s1", 1)
	c := newTestClient("s2", 1)
	hub.Register(a)
	hub.Register(b)
	hub.Register(c)

	if n := hub.ClientCount("s1"); n != 2 {
		t.Errorf("ClientCount(s1) = %d, want 2", n)
	}
	hub.Unregister(a)
	hub.Unregister(a) // second call is a no-op
	if n := hub.ClientCount("s1"); n != 1 {
		t.Errorf("ClientCount(s1) = %d, want 1", n)
	}
	if _, ok := <-a.send; ok {
		t.Error("send channel should be closed after unregister")
	}
	hub.Unregister(b)
	hub.mu.RLock()
	_, exists := hub.sessions["s1"]
	hub.mu.RUnlock()
	if exists {
		t.Error("empty session set should be removed")
	}
}

func TestHub_SendIsScopedToSession(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	mine := newTestClient("s1", 4)
	other := newTestClient("s2", 4)
	hub.Register(mine)
	hub.Register(other)

	hub.Send(Message{Type: MessageStage, SessionID: "s1"})

	if len(mine.send) != 1 {
		t.Errorf("s1 client got %d messages, want 1", len(mine.send))
	}
	if len(other.send) != 0 {
		t.Errorf("s2 client got %d messages, want 0", len(other.send))
	}
}

func TestHub_FullBufferDrops(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	c := newTestClient("s1", 1)
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		hub.Send(Message{SessionID: "s1"})
		hub.Send(Message{SessionID: "s1"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on a full client buffer")
	}
	if len(c.send) != 1 {
		t.Errorf("buffered = %d, want 1", len(c.send))
	}
}

type knownSessions map[string]bool

func (k knownSessions) HasSession(id string) bool { return k[id] }

func TestHandler_StreamsProgress(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(zap.NewNop())
	h := NewHandler(knownSessions{"abc": true}, bus, nil, zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/insight/sessions/abc/progress"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for h.hub.ClientCount("abc") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	events := []*insight.ProgressEvent{
		{SessionID: "abc", Stage: insight.StageFit, Status: insight.StatusStarted, Step: 2, Total: 6},
		{SessionID: "zzz", Stage: insight.StageFit, Status: insight.StatusStarted},
		{SessionID: "abc", Stage: insight.StagePredict, Status: insight.StatusFailed, Error: "boom"},
		{SessionID: "abc", Stage: insight.StageDone, Status: insight.StatusCompleted, Step: 6, Total: 6},
	}
	for _, e := range events {
		_ = bus.Publish(ctx, plugin.Event{Topic: insight.TopicPipelineProgress, Payload: e})
	}

	want := []MessageType{MessageStage, MessageFailed, MessageCompleted}
	for i, w := range want {
		var msg map[string]any
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if msg["type"] != string(w) {
			t.Errorf("message %d type = %v, want %s", i, msg["type"], w)
		}
		if msg["session_id"] != "abc" {
			t.Errorf("message %d session = %v", i, msg["session_id"])
		}
	}
}

func TestHandler_UnknownSession(t *testing.T) {
	t.Parallel()

	h := NewHandler(knownSessions{}, nil, nil, zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/insight/sessions/nope/progress", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
