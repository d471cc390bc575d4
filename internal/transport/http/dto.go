package http

import (
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateSessionRequest struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Thumbnail   string `json:"thumbnail"`
}

type SessionItem struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Thumbnail   string    `json:"thumbnail"`
	Room        string    `json:"room"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toSessionItem(s *domain.Session) SessionItem {
	return SessionItem{
		ID:          s.ID,
		UserID:      int64(s.UserID),
		DisplayName: s.DisplayName,
		Thumbnail:   s.Thumbnail,
		Room:        s.Room,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
	}
}

type MemberItem struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Thumbnail   string `json:"thumbnail"`
}

func toMemberItems(members []domain.UserSummary) []MemberItem {
	out := make([]MemberItem, 0, len(members))
	for _, m := range members {
		out = append(out, MemberItem{
			UserID:      int64(m.ID),
			DisplayName: m.DisplayName,
			Thumbnail:   m.Thumbnail,
		})
	}
	return out
}

type SwitchRoomRequest struct {
	Room string `json:"room"`
}

type SwitchRoomResponse struct {
	Session SessionItem  `json:"session"`
	Members []MemberItem `json:"members"`
}

type MembersResponse struct {
	Items []MemberItem `json:"items"`
}

type TransactionRequest struct {
	OfflineID string `json:"offline_id"`
	Room      string `json:"room"`
	Payload   string `json:"payload"`
	CreatedAt int64  `json:"created_at_unix,omitempty"`
}

type TransactionItem struct {
	ID        string    `json:"id"`
	OfflineID string    `json:"offline_id"`
	AuthorID  int64     `json:"author_id"`
	Room      string    `json:"room"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

func toTransactionItem(t *domain.Transaction) TransactionItem {
	return TransactionItem{
		ID:        t.ID,
		OfflineID: t.OfflineID,
		AuthorID:  int64(t.AuthorID),
		Room:      t.Room,
		Payload:   t.Payload,
		CreatedAt: t.CreatedAt.Truncate(time.Millisecond),
	}
}

type BulkSubmitRequest struct {
	Items []TransactionRequest `json:"items"`
}

type BulkSubmitResponse struct {
	OfflineIDs []string `json:"offline_ids"`
}

type TransactionsListResponse struct {
	Items      []TransactionItem `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}
