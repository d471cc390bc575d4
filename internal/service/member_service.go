package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

const maxRoomNameLen = 128

type SessionStore interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	SetRoom(ctx context.Context, id, room string) (*domain.Session, error)
	ListByRoom(ctx context.Context, room string) ([]domain.Session, error)
}

type Broadcaster interface {
	Publish(topic string, evt domain.PresenceEvent)
}

// MemberService ведёт членство в комнатах и рассылает presence-события.
type MemberService struct {
	store SessionStore
	hub   Broadcaster
}

func NewMemberService(store SessionStore, hub Broadcaster) *MemberService {
	return &MemberService{store: store, hub: hub}
}

// SwitchRoom переводит сессию в другую комнату и возвращает снапшот
// участников целевой комнаты. События left/joined публикуются только после
// того, как смена комнаты зафиксирована в реестре: состояние членства и
// рассылка не должны разъезжаться. Старая комната всегда берётся из записи
// реестра, не из параметров запроса.
func (s *MemberService) SwitchRoom(ctx context.Context, sessionID, room string) (*domain.Session, []domain.UserSummary, error) {
	// формат проверяем до любого lookup
	if len(sessionID) != domain.SessionIDLen {
		return nil, nil, domain.ErrInvalidSession
	}
	room = strings.TrimSpace(room)
	if room == "" {
		return nil, nil, domain.ErrEmptyRoom
	}
	if len(room) > maxRoomNameLen {
		return nil, nil, domain.ErrRoomTooLong
	}

	prev, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil, domain.ErrInvalidSession
		}
		return nil, nil, fmt.Errorf("registry.Get: %w", err)
	}
	previousRoom := prev.Room

	sess, err := s.store.SetRoom(ctx, sessionID, room)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil, domain.ErrInvalidSession
		}
		return nil, nil, fmt.Errorf("registry.SetRoom: %w", err)
	}

	members, err := s.ListMembers(ctx, room)
	if err != nil {
		return nil, nil, err
	}

	// Переход в ту же комнату — успех без событий, чтобы не шуметь
	// дублями joined/left.
	if previousRoom != room {
		s.hub.Publish(previousRoom, domain.PresenceEvent{
			Action: domain.ActionLeft,
			Room:   previousRoom,
			User:   sess.Summary(),
		})
		s.hub.Publish(room, domain.PresenceEvent{
			Action: domain.ActionJoined,
			Room:   room,
			User:   sess.Summary(),
		})
	}

	return sess, members, nil
}

// ListMembers — «кто сейчас в комнате»: сессии с Room == room.
func (s *MemberService) ListMembers(ctx context.Context, room string) ([]domain.UserSummary, error) {
	sessions, err := s.store.ListByRoom(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("registry.ListByRoom: %w", err)
	}
	out := make([]domain.UserSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Summary())
	}
	return out, nil
}
