package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Save персистит одну транзакцию. Повторная отправка того же
// (author_id, offline_id) возвращает уже сохранённую запись — DO UPDATE
// ничего не меняет, но даёт RETURNING по существующей строке.
func (r *TransactionRepository) Save(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO chat_transactions (offline_id, author_id, room, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (author_id, offline_id)
		DO UPDATE SET offline_id = EXCLUDED.offline_id
		RETURNING id, offline_id, author_id, room, payload, created_at
	`, t.OfflineID, t.AuthorID, t.Room, t.Payload, t.CreatedAt)

	var out domain.Transaction
	if err := row.Scan(&out.ID, &out.OfflineID, &out.AuthorID, &out.Room, &out.Payload, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveBatch вставляет пачку одного автора в одной транзакции и возвращает
// множество offline_id, которые после коммита точно есть в хранилище
// (вставленные сейчас плюс дубликаты прошлых отправок).
func (r *TransactionRepository) SaveBatch(ctx context.Context, txs []domain.Transaction) (map[string]struct{}, error) {
	if len(txs) == 0 {
		return map[string]struct{}{}, nil
	}
	authorID := txs[0].AuthorID

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	offlineIDs := make([]string, 0, len(txs))
	for _, t := range txs {
		if t.AuthorID != authorID {
			return nil, fmt.Errorf("batch spans multiple authors: %d and %d", authorID, t.AuthorID)
		}
		offlineIDs = append(offlineIDs, t.OfflineID)
		b.Queue(`
			INSERT INTO chat_transactions (offline_id, author_id, room, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (author_id, offline_id) DO NOTHING
		`, t.OfflineID, t.AuthorID, t.Room, t.Payload, t.CreatedAt)
	}

	br := tx.SendBatch(ctx, b)
	for range txs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return nil, err
		}
	}
	if err := br.Close(); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT offline_id FROM chat_transactions
		WHERE author_id = $1 AND offline_id = ANY($2)
	`, authorID, offlineIDs)
	if err != nil {
		return nil, err
	}

	acked := make(map[string]struct{}, len(txs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		acked[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return acked, nil
}

// List возвращает транзакции, новые первыми, с курсорной пагинацией
// (created_at,id DESC).
func (r *TransactionRepository) List(ctx context.Context, limit int, cursorStr string) ([]domain.Transaction, string, error) {
	cur, err := DecodeTxCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}

	const q = `
		SELECT id, offline_id, author_id, room, payload, created_at
		FROM chat_transactions
		WHERE ($1::timestamptz IS NULL OR created_at < $1
		       OR (created_at = $1 AND id < $2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.LastID
	}

	rows, err := r.db.Query(ctx, q, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.OfflineID, &t.AuthorID, &t.Room, &t.Payload, &t.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeTxCursor(TxCursor{CreatedAt: last.CreatedAt, LastID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}
