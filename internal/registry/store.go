package registry

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Store — реестр живых сессий. Реализации обязаны делать SetRoom атомарным
// относительно ListByRoom: снапшот никогда не видит сессию в двух комнатах
// или ни в одной.
type Store interface {
	// Сохраняет новую сессию; domain.ErrCapacity при исчерпании лимита.
	Create(ctx context.Context, s *domain.Session) error
	// domain.ErrSessionNotFound если токен неизвестен или сессия истекла.
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Атомарно переводит сессию в другую комнату, возвращает обновлённую запись.
	SetRoom(ctx context.Context, id, room string) (*domain.Session, error)
	// Идемпотентно: удаление несуществующей сессии не ошибка.
	Delete(ctx context.Context, id string) error
	// Снапшот сессий с текущей комнатой room.
	ListByRoom(ctx context.Context, room string) ([]domain.Session, error)
}
