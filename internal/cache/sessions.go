package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"scratch2x/internal/game"
)

const sessionKeyPrefix = "scratch:session:"

// SessionStore keeps player sessions in Redis with a sliding TTL.
// It satisfies game.SessionStore.
type SessionStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewSessionStore(client redis.Cmdable, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = game.DEFAULT_SESSION_TTL
	}
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(playerID string) string {
	return sessionKeyPrefix + playerID
}

func (s *SessionStore) LoadSession(ctx context.Context, playerID string) (*game.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess game.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", playerID, err)
	}
	if sess.Ledger == nil {
		sess.Ledger = game.NewLedger(decimal.Zero)
	}
	return &sess, nil
}

func (s *SessionStore) SaveSession(ctx context.Context, sess *game.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.PlayerID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, playerID string) error {
	return s.client.Del(ctx, sessionKey(playerID)).Err()
}
