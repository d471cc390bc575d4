package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/broadcast"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/registry"
	"github.com/cwrk-planet/chat-service/internal/service"

	"github.com/gorilla/websocket"
)

type wsEnv struct {
	srv        *httptest.Server
	hub        *broadcast.Hub
	sessionSvc *service.SessionService
	memberSvc  *service.MemberService
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()

	store := registry.NewMemoryStore(0)
	hub := broadcast.NewHub()
	sessionSvc := service.NewSessionService(store, time.Hour)
	memberSvc := service.NewMemberService(store, hub)

	server := NewServer(hub, sessionSvc, memberSvc)
	server.SetPingInterval(100 * time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &wsEnv{srv: srv, hub: hub, sessionSvc: sessionSvc, memberSvc: memberSvc}
}

func (e *wsEnv) newSession(t *testing.T, user domain.UserID, name string) *domain.Session {
	t.Helper()
	sess, err := e.sessionSvc.Create(context.Background(), user, name, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func (e *wsEnv) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// rawMessage нужен, чтобы разобрать payload после определения типа.
type rawMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readMessage(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg rawMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func TestHandleWS_Hello(t *testing.T) {
	env := newWSEnv(t)
	sess := env.newSession(t, 1, "Ann")

	conn := env.dial(t, sess.ID)

	msg := readMessage(t, conn)
	if msg.Type != TypeHello {
		t.Fatalf("expected %q first, got %q", TypeHello, msg.Type)
	}
	var hello HelloPayload
	if err := json.Unmarshal(msg.Payload, &hello); err != nil {
		t.Fatalf("unmarshal hello: %v", err)
	}
	if hello.SessionID != sess.ID {
		t.Errorf("hello must echo the session id")
	}
	if hello.Room != domain.DefaultRoom {
		t.Errorf("expected room %q, got %q", domain.DefaultRoom, hello.Room)
	}
	if len(hello.Members) != 1 || hello.Members[0].DisplayName != "Ann" {
		t.Errorf("hello must carry the room snapshot, got %+v", hello.Members)
	}
}

func TestHandleWS_RejectsBadSession(t *testing.T) {
	env := newWSEnv(t)

	cases := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"short", "abc"},
		{"unknown", strings.Repeat("x", domain.SessionIDLen)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws?session_id=" + tc.id
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)
			if err == nil {
				t.Fatal("expected handshake failure")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401 handshake response, got %+v", resp)
			}
		})
	}
}

func TestHandleWS_PresenceDelivery(t *testing.T) {
	env := newWSEnv(t)
	watcher := env.newSession(t, 1, "Ann")
	mover := env.newSession(t, 2, "Bob")

	conn := env.dial(t, watcher.ID)
	readMessage(t, conn) // hello

	// Bob уходит из Lobby; Ann, подписанная на Lobby, видит left
	if _, _, err := env.memberSvc.SwitchRoom(context.Background(), mover.ID, "Tech"); err != nil {
		t.Fatalf("switch room: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != TypePresence {
		t.Fatalf("expected %q, got %q", TypePresence, msg.Type)
	}
	var evt PresencePayload
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		t.Fatalf("unmarshal presence: %v", err)
	}
	if evt.Action != domain.ActionLeft {
		t.Errorf("expected action %q, got %q", domain.ActionLeft, evt.Action)
	}
	if evt.Room != domain.DefaultRoom {
		t.Errorf("expected room %q, got %q", domain.DefaultRoom, evt.Room)
	}
	if evt.User.ID != 2 || evt.User.DisplayName != "Bob" {
		t.Errorf("event must carry the moving user, got %+v", evt.User)
	}
}

func TestHandleWS_NoCrossRoomLeak(t *testing.T) {
	env := newWSEnv(t)
	watcher := env.newSession(t, 1, "Ann")
	mover := env.newSession(t, 2, "Bob")

	// Ann слушает Tech, Bob двигается между другими комнатами
	if _, _, err := env.memberSvc.SwitchRoom(context.Background(), watcher.ID, "Tech"); err != nil {
		t.Fatalf("switch room: %v", err)
	}
	conn := env.dial(t, watcher.ID)
	readMessage(t, conn) // hello

	if _, _, err := env.memberSvc.SwitchRoom(context.Background(), mover.ID, "Random"); err != nil {
		t.Fatalf("switch room: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var msg rawMessage
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("expected no events for other rooms, got %+v", msg)
	}
}

func TestWsConn_CloseTwice(t *testing.T) {
	env := newWSEnv(t)
	sess := env.newSession(t, 1, "Ann")

	conn := env.dial(t, sess.ID)
	readMessage(t, conn) // hello

	// клиент рвёт соединение; сервер отписывает и закрывает без паник
	conn.Close()

	// повторная публикация в комнату после разрыва не должна падать
	time.Sleep(100 * time.Millisecond)
	env.hub.Publish(domain.DefaultRoom, domain.PresenceEvent{
		Action: domain.ActionJoined,
		Room:   domain.DefaultRoom,
		User:   domain.UserSummary{ID: 9, DisplayName: "Ghost"},
	})
}
