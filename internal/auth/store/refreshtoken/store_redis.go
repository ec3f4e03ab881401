package refreshtoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"citizenportal/internal/auth/models"
	id "citizenportal/pkg/domain"
	"citizenportal/pkg/platform/sentinel"
)

const (
	tokenKeyPrefix   = "rt:token:"
	sessionKeyPrefix = "rt:session:"

	// maxWatchRetries bounds optimistic retries when a concurrent writer
	// touches a watched key.
	maxWatchRetries = 3
)

// RedisRefreshTokenStore keeps each record as JSON under its hash with a TTL
// matching the token expiry. A set per session indexes the rotation chain.
type RedisRefreshTokenStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed refresh token store.
func NewRedis(client *redis.Client) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{client: client}
}

type redisRecord struct {
	TokenHash string     `json:"token_hash"`
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	UserAgent string     `json:"user_agent"`
	IP        string     `json:"ip"`
	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func encodeRecord(r *models.RefreshTokenRecord) ([]byte, error) {
	return json.Marshal(redisRecord{
		TokenHash: r.TokenHash,
		SessionID: r.SessionID.String(),
		UserID:    r.UserID.String(),
		UserAgent: r.UserAgent,
		IP:        r.IP,
		ExpiresAt: r.ExpiresAt,
		Used:      r.Used,
		UsedAt:    r.UsedAt,
		RevokedAt: r.RevokedAt,
		CreatedAt: r.CreatedAt,
	})
}

func decodeRecord(data []byte) (*models.RefreshTokenRecord, error) {
	var rr redisRecord
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	sessionID, err := id.ParseSessionID(rr.SessionID)
	if err != nil {
		return nil, fmt.Errorf("decode refresh token session: %w", err)
	}
	userID, err := id.ParseUserID(rr.UserID)
	if err != nil {
		return nil, fmt.Errorf("decode refresh token user: %w", err)
	}
	return &models.RefreshTokenRecord{
		TokenHash: rr.TokenHash,
		SessionID: sessionID,
		UserID:    userID,
		UserAgent: rr.UserAgent,
		IP:        rr.IP,
		ExpiresAt: rr.ExpiresAt,
		Used:      rr.Used,
		UsedAt:    rr.UsedAt,
		RevokedAt: rr.RevokedAt,
		CreatedAt: rr.CreatedAt,
	}, nil
}

func (s *RedisRefreshTokenStore) Create(ctx context.Context, record *models.RefreshTokenRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired: %w", sentinel.ErrExpired)
	}

	key := tokenKeyPrefix + record.TokenHash
	sessionKey := sessionKeyPrefix + record.SessionID.String()
	created, err := s.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	if !created {
		return fmt.Errorf("refresh token already exists: %w", sentinel.ErrConflict)
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, sessionKey, record.TokenHash)
	pipe.ExpireGT(ctx, sessionKey, ttl)
	pipe.ExpireNX(ctx, sessionKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index refresh token: %w", err)
	}
	return nil
}

func (s *RedisRefreshTokenStore) Find(ctx context.Context, tokenHash string) (*models.RefreshTokenRecord, error) {
	data, err := s.client.Get(ctx, tokenKeyPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return decodeRecord(data)
}

// Consume uses WATCH so two concurrent rotations of the same token cannot
// both succeed.
func (s *RedisRefreshTokenStore) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	key := tokenKeyPrefix + tokenHash
	var (
		record     *models.RefreshTokenRecord
		consumeErr error
	)
	txf := func(tx *redis.Tx) error {
		record, consumeErr = nil, nil
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			consumeErr = errNotFound()
			return nil
		}
		if err != nil {
			return fmt.Errorf("load refresh token: %w", err)
		}
		record, err = decodeRecord(data)
		if err != nil {
			return err
		}
		if err := consumeError(record, now); err != nil {
			consumeErr = err
			return nil
		}
		record.MarkUsed(now)
		updated, err := encodeRecord(record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return record, consumeErr
	}
	return nil, fmt.Errorf("consume refresh token: too much contention: %w", sentinel.ErrConflict)
}

func (s *RedisRefreshTokenStore) RevokeSession(ctx context.Context, sessionID id.SessionID, now time.Time) (int, error) {
	hashes, err := s.client.SMembers(ctx, sessionKeyPrefix+sessionID.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("list refresh session: %w", err)
	}
	revoked := 0
	for _, hash := range hashes {
		key := tokenKeyPrefix + hash
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			record, err := decodeRecord(data)
			if err != nil {
				return err
			}
			if record.RevokedAt != nil {
				return nil
			}
			record.Revoke(now)
			updated, err := encodeRecord(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true})
				return nil
			})
			if err == nil {
				revoked++
			}
			return err
		}, key)
		if err != nil {
			return revoked, fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	return revoked, nil
}

// DeleteExpired is a no-op: Redis expires keys on its own.
func (s *RedisRefreshTokenStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
