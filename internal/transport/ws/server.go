package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/broadcast"
	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/gorilla/websocket"
)

type SessionSvc interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
}

type MemberSvc interface {
	ListMembers(ctx context.Context, room string) ([]domain.UserSummary, error)
}

// Server — тонкий gateway: handshake, подписка на комнату сессии при
// подключении, отписка при разрыве. Бизнес-логики здесь нет; после смены
// комнаты клиент просто переоткрывает сокет.
type Server struct {
	upgrader   websocket.Upgrader
	hub        *broadcast.Hub
	sessionSvc SessionSvc
	memberSvc  MemberSvc

	pingEvery  time.Duration
	sendBuffer int
}

func NewServer(hub *broadcast.Hub, session SessionSvc, member MemberSvc) *Server {
	return &Server{
		hub:        hub,
		sessionSvc: session,
		memberSvc:  member,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery:  15 * time.Second,
		sendBuffer: 32,
	}
}

func (s *Server) SetPingInterval(d time.Duration) {
	if d > 0 {
		s.pingEvery = d
	}
}

func (s *Server) SetSendBuffer(n int) {
	if n > 0 {
		s.sendBuffer = n
	}
}

// WS endpoint: GET /ws?session_id=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if len(sessionID) != domain.SessionIDLen {
		http.Error(w, "invalid session_id", http.StatusUnauthorized)
		return
	}

	sess, err := s.sessionSvc.Get(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "invalid session_id", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, *sess, s.sendBuffer)
	room := sess.Room
	s.hub.Subscribe(room, c)

	if err := s.sendHello(r.Context(), c); err != nil {
		slog.Warn("ws hello failed", "room", room, "session", sess.ID, "err", err)
	}

	go s.writeLoop(c)
	s.readLoop(c)

	// разрыв: отписка и закрытие идемпотентны, повторный disconnect безопасен
	s.hub.Unsubscribe(room, c)
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "room", room, "session", sess.ID, "err", err)
	}
}

func (s *Server) sendHello(ctx context.Context, c *wsConn) error {
	members, err := s.memberSvc.ListMembers(ctx, c.session.Room)
	if err != nil {
		return err
	}
	items := make([]UserInfo, 0, len(members))
	for _, m := range members {
		items = append(items, toUserInfo(m))
	}

	return c.enqueue(Message{
		Type: TypeHello,
		Payload: HelloPayload{
			SessionID: c.session.ID,
			Room:      c.session.Room,
			Members:   items,
		},
	})
}

func (s *Server) readLoop(c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	// Входящих команд у gateway нет; читаем ради pong и сигнала разрыва.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-c.closed:
			return
		}
	}
}

// --- conn ---

// wsConn реализует broadcast.Subscriber. Send кладёт событие в ограниченный
// буфер и никогда не блокируется: медленный клиент теряет события, а не
// стопорит рассылку по комнате.
type wsConn struct {
	conn    *websocket.Conn
	session domain.Session

	out       chan Message
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, sess domain.Session, buffer int) *wsConn {
	return &wsConn{
		conn:    c,
		session: sess,
		out:     make(chan Message, buffer),
		closed:  make(chan struct{}),
	}
}

func (c *wsConn) Send(evt domain.PresenceEvent) error {
	return c.enqueue(Message{
		Type: TypePresence,
		Payload: PresencePayload{
			Action: evt.Action,
			Room:   evt.Room,
			User:   toUserInfo(evt.User),
		},
	})
}

func (c *wsConn) enqueue(msg Message) error {
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	case c.out <- msg:
		return nil
	default:
		slog.Debug("ws send buffer full, dropping event",
			"session", c.session.ID, "type", msg.Type)
		return nil
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
