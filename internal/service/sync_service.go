package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// todo: вынести в конфиг
const maxPayloadLen = 4000

type TransactionRepo interface {
	Save(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)
	// Возвращает множество offline_id, надёжно сохранённых после вызова
	// (включая дубликаты прошлых отправок того же автора).
	SaveBatch(ctx context.Context, txs []domain.Transaction) (map[string]struct{}, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.Transaction, string, error)
}

// SyncService принимает транзакции (сообщения), созданные клиентом offline,
// и отдаёт клиенту подтверждённые offline_id для сверки локальной очереди.
type SyncService struct {
	repo TransactionRepo
}

func NewSyncService(repo TransactionRepo) *SyncService {
	return &SyncService{repo: repo}
}

// Submit персистит одну транзакцию и возвращает запись с назначенным id.
// Повтор с тем же (author, offline_id) не создаёт дубликата.
func (s *SyncService) Submit(ctx context.Context, t domain.Transaction) (*domain.Transaction, error) {
	if err := normalize(&t); err != nil {
		return nil, err
	}
	out, err := s.repo.Save(ctx, &t)
	if err != nil {
		return nil, fmt.Errorf("transactionRepo.Save: %w", err)
	}
	return out, nil
}

// SubmitBatch персистит пачку одного автора и возвращает подтверждённые
// offline_id в порядке исходной пачки. Невалидные элементы и повторы
// offline_id внутри пачки молча пропускаются — клиент увидит их отсутствие
// в ack-списке и разберётся при следующей попытке. Ошибка хранилища валит
// всю пачку без ack'ов, чтобы клиент переотправил целиком: молча терять
// записи нельзя.
func (s *SyncService) SubmitBatch(ctx context.Context, authorID domain.UserID, items []domain.Transaction) ([]string, error) {
	valid := make([]domain.Transaction, 0, len(items))
	order := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, t := range items {
		t.AuthorID = authorID
		if err := normalize(&t); err != nil {
			continue
		}
		if _, dup := seen[t.OfflineID]; dup {
			continue
		}
		seen[t.OfflineID] = struct{}{}
		valid = append(valid, t)
		order = append(order, t.OfflineID)
	}
	if len(valid) == 0 {
		return []string{}, nil
	}

	acked, err := s.repo.SaveBatch(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("transactionRepo.SaveBatch: %w", err)
	}

	out := make([]string, 0, len(order))
	for _, id := range order {
		if _, ok := acked[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// List возвращает транзакции, новые первыми.
func (s *SyncService) List(ctx context.Context, limit int, cursor string) ([]domain.Transaction, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, limit, cursor)
}

func normalize(t *domain.Transaction) error {
	t.OfflineID = strings.TrimSpace(t.OfflineID)
	if t.OfflineID == "" {
		return domain.ErrEmptyOfflineID
	}
	t.Payload = strings.TrimSpace(t.Payload)
	if t.Payload == "" {
		return domain.ErrEmptyPayload
	}
	if len(t.Payload) > maxPayloadLen {
		return domain.ErrPayloadTooLong
	}
	t.Room = strings.TrimSpace(t.Room)
	if t.Room == "" {
		return domain.ErrEmptyRoom
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return nil
}
