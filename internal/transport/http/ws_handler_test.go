package http

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

func TestWebSocketSessionFlow(t *testing.T) {
	service, store := newTestService()
	server := httptest.NewServer(NewRouter(service, RouterOptions{Logger: quietLogger()}))
	defer server.Close()

	conn := dial(t, server, "/ws?catalogId=arith-1&userId=u1")
	defer conn.Close()

	snap := readSnapshot(t, conn)
	if snap.SessionID == "" || snap.Cursor != 0 || snap.CurrentQuestion == nil {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}

	send(t, conn, map[string]any{"type": "submitAnswer", "payload": map[string]any{"questionId": "1", "value": "5"}})
	if snap = readSnapshot(t, conn); snap.Score != 1 {
		t.Fatalf("expected score 1, got %d", snap.Score)
	}

	send(t, conn, map[string]any{"type": "next"})
	if snap = readSnapshot(t, conn); snap.Cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", snap.Cursor)
	}

	send(t, conn, map[string]any{"type": "goTo", "payload": map[string]any{}})
	if msg := readMessage(t, conn); msg.Type != "error" || !strings.Contains(string(msg.Payload), "invalid") {
		t.Fatalf("expected invalid error for goTo without index, got %s %s", msg.Type, msg.Payload)
	}

	send(t, conn, map[string]any{"type": "submitAnswer", "payload": map[string]any{"questionId": "2", "value": "2"}})
	readSnapshot(t, conn)
	send(t, conn, map[string]any{"type": "next"})
	snap = readSnapshot(t, conn)
	if !snap.IsComplete || snap.Score != 1 || snap.Total != 2 {
		t.Fatalf("expected complete 1/2, got %+v", snap)
	}

	send(t, conn, map[string]any{"type": "submitAnswer", "payload": map[string]any{"questionId": "1", "value": "4"}})
	if msg := readMessage(t, conn); msg.Type != "error" || !strings.Contains(string(msg.Payload), "session_complete") {
		t.Fatalf("expected session_complete error, got %s %s", msg.Type, msg.Payload)
	}

	send(t, conn, map[string]any{"type": "dance"})
	if msg := readMessage(t, conn); msg.Type != "error" {
		t.Fatalf("expected error for unknown type, got %s", msg.Type)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for len(store.List()) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("owned session was not discarded on close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketAttachToExistingSession(t *testing.T) {
	service, _ := newTestService()
	server := httptest.NewServer(NewRouter(service, RouterOptions{Logger: quietLogger()}))
	defer server.Close()

	owner := dial(t, server, "/ws?catalogId=arith-1")
	defer owner.Close()
	snap := readSnapshot(t, owner)

	viewer := dial(t, server, "/ws?sessionId="+snap.SessionID)
	defer viewer.Close()
	readSnapshot(t, viewer)

	send(t, owner, map[string]any{"type": "toggleReview", "payload": map[string]any{"questionId": "2"}})
	update := readSnapshot(t, viewer)
	if len(update.ReviewFlags) != 1 || update.ReviewFlags[0] != "2" {
		t.Fatalf("viewer should see the flag, got %+v", update.ReviewFlags)
	}
}

func TestWebSocketRejectsUnknownCatalog(t *testing.T) {
	service, _ := newTestService()
	server := httptest.NewServer(NewRouter(service, RouterOptions{Logger: quietLogger()}))
	defer server.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "/ws?catalogId=missing"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %+v", resp)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "not_found") {
		t.Fatalf("expected not_found body, got %s", body)
	}
}

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + server.URL[len("http"):] + path
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, path), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func readSnapshot(t *testing.T, conn *websocket.Conn) domain.Snapshot {
	t.Helper()
	msg := readMessage(t, conn)
	if msg.Type != "snapshot" {
		t.Fatalf("expected snapshot, got %s %s", msg.Type, msg.Payload)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService() (*app.SessionService, *memory.SessionStore) {
	store := memory.NewSessionStore()
	catalogs := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(map[string]domain.Catalog{
		"arith-1": {
			ID:      "arith-1",
			Title:   "Arithmetic",
			SkillID: "addition",
			Questions: []domain.Question{
				{ID: "1", Kind: domain.KindSingleChoice, Prompt: "2 + 3 = ?", Options: []string{"4", "5", "6", "7"}, CorrectAnswer: "5"},
				{ID: "2", Kind: domain.KindSingleChoice, Prompt: "1 + 2 = ?", Options: []string{"2", "3", "4", "5"}, CorrectAnswer: "3"},
			},
		},
	}), time.Minute)
	service := app.NewSessionService(store, catalogs, memory.NewResultRecorder(), app.WithTickInterval(0))
	return service, store
}
