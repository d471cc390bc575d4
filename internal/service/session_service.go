package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/registry"
	"github.com/cwrk-planet/chat-service/internal/security"
)

// sessionTokenBytes — 24 байта -> 32 символа base64url (domain.SessionIDLen).
const sessionTokenBytes = 24

type SessionService struct {
	store registry.Store
	ttl   time.Duration
}

func NewSessionService(store registry.Store, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{store: store, ttl: ttl}
}

// Create заводит сессию для уже аутентифицированного пользователя.
// Профильные поля приходят от identity-сервиса, мы их только храним.
func (s *SessionService) Create(ctx context.Context, userID domain.UserID, displayName, thumbnail string) (*domain.Session, error) {
	token, err := security.RandomStringURLSafe(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := time.Now()
	sess := &domain.Session{
		ID:          token,
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		Thumbnail:   strings.TrimSpace(thumbnail),
		Room:        domain.DefaultRoom,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get валидирует формат токена до похода в хранилище.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	if len(id) != domain.SessionIDLen {
		return nil, domain.ErrInvalidSession
	}
	return s.store.Get(ctx, id)
}

// Destroy идемпотентен: повторный logout не ошибка.
func (s *SessionService) Destroy(ctx context.Context, id string) error {
	if len(id) != domain.SessionIDLen {
		return nil
	}
	return s.store.Delete(ctx, id)
}
