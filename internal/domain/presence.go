package domain

const (
	ActionJoined = "joined"
	ActionLeft   = "left"
)

// UserSummary — публичная часть сессии, видимая другим участникам комнаты.
type UserSummary struct {
	ID          UserID
	DisplayName string
	Thumbnail   string
}

// PresenceEvent не персистится; доставляется best-effort только тем,
// кто подключён в момент публикации.
type PresenceEvent struct {
	Action string
	Room   string
	User   UserSummary
}
