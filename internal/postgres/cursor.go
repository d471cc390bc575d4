package postgres

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// TxCursor фиксирует позицию в ленте транзакций: created_at и id последней
// отданной записи, сортировка (created_at, id) DESC. Клиенту уходит как
// непрозрачная base64url-строка.
type TxCursor struct {
	CreatedAt time.Time `json:"created_at"`
	LastID    string    `json:"last_id"`
}

func EncodeTxCursor(c TxCursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeTxCursor возвращает (nil, nil) для пустой строки — первая страница.
func DecodeTxCursor(s string) (*TxCursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidCursor, err)
	}
	var c TxCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidCursor, err)
	}
	return &c, nil
}
