package ws

import "github.com/cwrk-planet/chat-service/internal/domain"

// Типы событий, уходящих в WS
const (
	TypeHello    = "hello"    // первичный handshake после подключения
	TypePresence = "presence" // joined/left в комнате подписки
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type UserInfo struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Thumbnail   string `json:"thumbnail"`
}

func toUserInfo(u domain.UserSummary) UserInfo {
	return UserInfo{
		ID:          int64(u.ID),
		DisplayName: u.DisplayName,
		Thumbnail:   u.Thumbnail,
	}
}

// HelloPayload — снапшот для только что подключившегося клиента;
// история событий не переигрывается.
type HelloPayload struct {
	SessionID string     `json:"session_id"`
	Room      string     `json:"room"`
	Members   []UserInfo `json:"members"`
}

type PresencePayload struct {
	Action string   `json:"action"` // joined | left
	Room   string   `json:"room"`
	User   UserInfo `json:"user"`
}
