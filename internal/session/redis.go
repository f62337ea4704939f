package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/apperr"
)

// RedisStore persists sessions as JSON values in Redis. Keys follow the
// shared "prefix:session:scope::dialog" convention so multiple deployments
// can share one Redis without colliding.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a session store on top of an existing Redis client.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "bitrixbot"
	}
	return &RedisStore{client: client, prefix: keyPrefix}
}

func (r *RedisStore) key(scopeID, dialogID string) string {
	return fmt.Sprintf("%s:session:%s::%s", r.prefix, scopeID, dialogID)
}

// Get loads a session, or nil when the dialog has no session yet.
func (r *RedisStore) Get(ctx context.Context, scopeID, dialogID string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.key(scopeID, dialogID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "session load failed", err)
	}

	s := &Session{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "session decode failed", err)
	}
	return s, nil
}

// Put persists a session. Sessions are kept without expiry; cleanup of dead
// dialogs is an operational concern, not a correctness one.
func (r *RedisStore) Put(ctx context.Context, scopeID, dialogID string, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "session encode failed", err)
	}
	if err := r.client.Set(ctx, r.key(scopeID, dialogID), raw, 0).Err(); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "session save failed", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
