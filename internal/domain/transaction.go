package domain

import "time"

// Transaction — сообщение чата, созданное клиентом (возможно offline).
// ID назначает сервер при записи; OfflineID — локальный id клиентской
// очереди, уникальный только в паре с AuthorID.
type Transaction struct {
	ID        string    `db:"id"`
	OfflineID string    `db:"offline_id"`
	AuthorID  UserID    `db:"author_id"`
	Room      string    `db:"room"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}
