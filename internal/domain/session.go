package domain

import "time"

type UserID int64

const (
	// Длина токена сессии фиксирована: 24 случайных байта в base64url.
	SessionIDLen = 32

	// Комната по умолчанию для новых сессий.
	DefaultRoom = "Lobby"
)

// Сессия одного подключённого устройства. Пользователь может держать
// несколько сессий одновременно (multi-device).
type Session struct {
	ID          string
	UserID      UserID
	DisplayName string
	Thumbnail   string
	Room        string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

func (s *Session) Summary() UserSummary {
	return UserSummary{
		ID:          s.UserID,
		DisplayName: s.DisplayName,
		Thumbnail:   s.Thumbnail,
	}
}
