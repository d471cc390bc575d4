package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "chat:session:"
	roomKeyPrefix    = "chat:room:"
)

// RedisStore — вариант реестра для нескольких инстансов сервиса.
// Запись сессии — JSON под TTL, плюс SET-индекс участников по комнате.
// Перенос между комнатами атомарен за счёт Lua.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type redisSession struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Thumbnail   string    `json:"thumbnail"`
	Room        string    `json:"room"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toRedis(s *domain.Session) redisSession {
	return redisSession{
		ID:          s.ID,
		UserID:      int64(s.UserID),
		DisplayName: s.DisplayName,
		Thumbnail:   s.Thumbnail,
		Room:        s.Room,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
	}
}

func (r redisSession) toDomain() domain.Session {
	return domain.Session{
		ID:          r.ID,
		UserID:      domain.UserID(r.UserID),
		DisplayName: r.DisplayName,
		Thumbnail:   r.Thumbnail,
		Room:        r.Room,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }
func roomKey(room string) string  { return roomKeyPrefix + room }

func (r *RedisStore) Create(ctx context.Context, s *domain.Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("registry: expires_at must be in the future")
	}

	data, err := json.Marshal(toRedis(s))
	if err != nil {
		return fmt.Errorf("registry: marshal session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(s.ID), data, ttl)
		p.SAdd(ctx, roomKey(s.Room), s.ID)
		return nil
	})
	return err
}

func (r *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var rs redisSession
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, fmt.Errorf("registry: unmarshal session: %w", err)
	}
	s := rs.toDomain()
	return &s, nil
}

// Скрипт меняет комнату в JSON-записи и переносит id между SET-индексами
// одним атомарным шагом, сохраняя остаток TTL.
var setRoomScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return false end
local s = cjson.decode(raw)
local old = s['room']
if old ~= ARGV[1] then
  s['room'] = ARGV[1]
  local ttl = redis.call('PTTL', KEYS[1])
  if ttl > 0 then
    redis.call('SET', KEYS[1], cjson.encode(s), 'PX', ttl)
  else
    redis.call('SET', KEYS[1], cjson.encode(s))
  end
  redis.call('SREM', ARGV[3] .. old, ARGV[2])
  redis.call('SADD', ARGV[3] .. ARGV[1], ARGV[2])
end
return redis.call('GET', KEYS[1])
`)

func (r *RedisStore) SetRoom(ctx context.Context, id, room string) (*domain.Session, error) {
	res, err := setRoomScript.Run(ctx, r.client,
		[]string{sessionKey(id)}, room, id, roomKeyPrefix).Result()
	if errors.Is(err, redis.Nil) || res == nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	raw, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("registry: unexpected script reply %T", res)
	}
	var rs redisSession
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, fmt.Errorf("registry: unmarshal session: %w", err)
	}
	s := rs.toDomain()
	return &s, nil
}

var deleteScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if raw then
  local s = cjson.decode(raw)
  redis.call('SREM', ARGV[2] .. s['room'], ARGV[1])
  redis.call('DEL', KEYS[1])
end
return 1
`)

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return deleteScript.Run(ctx, r.client,
		[]string{sessionKey(id)}, id, roomKeyPrefix).Err()
}

func (r *RedisStore) ListByRoom(ctx context.Context, room string) ([]domain.Session, error) {
	ids, err := r.client.SMembers(ctx, roomKey(room)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Session, 0, len(vals))
	var stale []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// запись истекла по TTL; индекс чистим best-effort
			stale = append(stale, ids[i])
			continue
		}
		var rs redisSession
		if err := json.Unmarshal([]byte(raw), &rs); err != nil {
			continue
		}
		out = append(out, rs.toDomain())
	}
	if len(stale) > 0 {
		_ = r.client.SRem(ctx, roomKey(room), stale...).Err()
	}
	return out, nil
}
