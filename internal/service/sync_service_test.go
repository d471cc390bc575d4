package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// fakeTxRepo повторяет контракт TransactionRepository: уникальность по
// (author_id, offline_id), ack — всё, что есть в хранилище после вызова.
type fakeTxRepo struct {
	mu   sync.Mutex
	byID map[string]domain.Transaction // "author/offline" -> record
	seq  int
	fail bool
}

func newFakeTxRepo() *fakeTxRepo {
	return &fakeTxRepo{byID: make(map[string]domain.Transaction)}
}

func key(author domain.UserID, offlineID string) string {
	return fmt.Sprintf("%d/%s", author, offlineID)
}

func (f *fakeTxRepo) Save(_ context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store down")
	}

	k := key(t.AuthorID, t.OfflineID)
	if existing, ok := f.byID[k]; ok {
		return &existing, nil
	}
	f.seq++
	stored := *t
	stored.ID = fmt.Sprintf("tx-%04d", f.seq)
	f.byID[k] = stored
	return &stored, nil
}

func (f *fakeTxRepo) SaveBatch(_ context.Context, txs []domain.Transaction) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store down")
	}

	acked := make(map[string]struct{}, len(txs))
	for _, t := range txs {
		k := key(t.AuthorID, t.OfflineID)
		if _, ok := f.byID[k]; !ok {
			f.seq++
			stored := t
			stored.ID = fmt.Sprintf("tx-%04d", f.seq)
			f.byID[k] = stored
		}
		acked[t.OfflineID] = struct{}{}
	}
	return acked, nil
}

func (f *fakeTxRepo) List(_ context.Context, limit int, _ string) ([]domain.Transaction, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.Transaction, 0, len(f.byID))
	for _, t := range f.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, "", nil
}

func (f *fakeTxRepo) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func tx(offlineID, payload string) domain.Transaction {
	return domain.Transaction{OfflineID: offlineID, Room: "Lobby", Payload: payload}
}

func TestSubmit_AssignsDurableID(t *testing.T) {
	repo := newFakeTxRepo()
	svc := NewSyncService(repo)

	in := tx("a", "hello")
	in.AuthorID = 1
	stored, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if stored.ID == "" {
		t.Error("stored transaction must have a durable id")
	}
	if stored.OfflineID != "a" {
		t.Errorf("offline id must be preserved, got %q", stored.OfflineID)
	}
	if stored.CreatedAt.IsZero() {
		t.Error("created_at must be set")
	}
}

func TestSubmit_RetryReturnsSameRecord(t *testing.T) {
	repo := newFakeTxRepo()
	svc := NewSyncService(repo)
	ctx := context.Background()

	in := tx("a", "hello")
	in.AuthorID = 1
	first, err := svc.Submit(ctx, in)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	second, err := svc.Submit(ctx, in)
	if err != nil {
		t.Fatalf("retried Submit failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("retry must not create a duplicate: %q vs %q", first.ID, second.ID)
	}
	if repo.size() != 1 {
		t.Errorf("expected 1 stored record, got %d", repo.size())
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc := NewSyncService(newFakeTxRepo())
	ctx := context.Background()

	cases := []struct {
		name string
		in   domain.Transaction
		want error
	}{
		{"empty offline id", tx("", "hi"), domain.ErrEmptyOfflineID},
		{"empty payload", tx("a", "  "), domain.ErrEmptyPayload},
		{"oversized payload", tx("a", strings.Repeat("x", 4001)), domain.ErrPayloadTooLong},
		{"empty room", domain.Transaction{OfflineID: "a", Payload: "hi"}, domain.ErrEmptyRoom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.AuthorID = 1
			if _, err := svc.Submit(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSubmitBatch_AcksInInputOrder(t *testing.T) {
	repo := newFakeTxRepo()
	svc := NewSyncService(repo)

	acked, err := svc.SubmitBatch(context.Background(), 1,
		[]domain.Transaction{tx("a", "one"), tx("b", "two")})
	if err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}
	if len(acked) != 2 || acked[0] != "a" || acked[1] != "b" {
		t.Fatalf("expected [a b], got %v", acked)
	}

	items, _, err := svc.List(context.Background(), 50, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 stored transactions, got %d", len(items))
	}
	// новые первыми
	for i := 0; i < len(items)-1; i++ {
		if items[i].CreatedAt.Before(items[i+1].CreatedAt) {
			t.Errorf("list must be ordered created_at descending")
		}
	}
}

func TestSubmitBatch_IdempotentResubmit(t *testing.T) {
	repo := newFakeTxRepo()
	svc := NewSyncService(repo)
	ctx := context.Background()

	batch := []domain.Transaction{tx("a", "one"), tx("b", "two")}
	first, err := svc.SubmitBatch(ctx, 1, batch)
	if err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}
	second, err := svc.SubmitBatch(ctx, 1, batch)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("retry must return the same ack set: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("retry must return the same ack set: %v vs %v", first, second)
		}
	}
	if repo.size() != 2 {
		t.Errorf("resubmit must not create duplicates, got %d records", repo.size())
	}
}

func TestSubmitBatch_SameOfflineIDDifferentAuthors(t *testing.T) {
	repo := newFakeTxRepo()
	svc := NewSyncService(repo)
	ctx := context.Background()

	if _, err := svc.SubmitBatch(ctx, 1, []domain.Transaction{tx("a", "from 1")}); err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}
	if _, err := svc.SubmitBatch(ctx, 2, []domain.Transaction{tx("a", "from 2")}); err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}

	// offline_id уникален только в паре с автором
	if repo.size() != 2 {
		t.Errorf("same offline id from different authors must both persist, got %d", repo.size())
	}
}

func TestSubmitBatch_SkipsInvalidItems(t *testing.T) {
	repo := newFakeTxRepo()
	svc := NewSyncService(repo)

	acked, err := svc.SubmitBatch(context.Background(), 1, []domain.Transaction{
		tx("a", "ok"),
		tx("", "no offline id"),
		tx("b", ""),
		tx("c", "ok too"),
	})
	if err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}
	if len(acked) != 2 || acked[0] != "a" || acked[1] != "c" {
		t.Fatalf("expected [a c], got %v", acked)
	}
}

func TestSubmitBatch_DedupesWithinBatch(t *testing.T) {
	repo := newFakeTxRepo()
	svc := NewSyncService(repo)

	acked, err := svc.SubmitBatch(context.Background(), 1, []domain.Transaction{
		tx("a", "first"),
		tx("a", "second copy"),
		tx("b", "other"),
	})
	if err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}
	if len(acked) != 2 || acked[0] != "a" || acked[1] != "b" {
		t.Fatalf("expected [a b], got %v", acked)
	}
	if repo.size() != 2 {
		t.Errorf("expected 2 records, got %d", repo.size())
	}
}

func TestSubmitBatch_StoreFailureAcksNothing(t *testing.T) {
	repo := newFakeTxRepo()
	repo.fail = true
	svc := NewSyncService(repo)

	acked, err := svc.SubmitBatch(context.Background(), 1,
		[]domain.Transaction{tx("a", "one")})
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if len(acked) != 0 {
		t.Errorf("no acks on failure, got %v", acked)
	}
}

func TestSubmitBatch_EmptyAfterValidation(t *testing.T) {
	svc := NewSyncService(newFakeTxRepo())

	acked, err := svc.SubmitBatch(context.Background(), 1,
		[]domain.Transaction{tx("", "")})
	if err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}
	if len(acked) != 0 {
		t.Errorf("expected no acks, got %v", acked)
	}
}
