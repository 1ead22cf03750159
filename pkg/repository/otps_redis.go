package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/blog-auth/pkg/domain"
)

// incrementOTPScript never recreates a hash that has already expired.
var incrementOTPScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// consumeOTPScript deletes the hash only while it holds the expected code
// and has not expired.
var consumeOTPScript = redis.NewScript(`
local fields = redis.call('HMGET', KEYS[1], 'code_hash', 'expires_at')
if fields[1] ~= ARGV[1] or tonumber(fields[2] or '0') <= tonumber(ARGV[2]) then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisOTPStore keeps password-change OTPs in Redis hashes that expire on
// their own when the OTP does.
type RedisOTPStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisOTPStore creates a Redis-backed OTP store.
func NewRedisOTPStore(client redis.UniversalClient) *RedisOTPStore {
	return &RedisOTPStore{client: client, prefix: "otp:password:"}
}

// Replace stores otp, overwriting any earlier OTP of the same user.
func (s *RedisOTPStore) Replace(ctx context.Context, otp *domain.PasswordOTP) error {
	ttl := time.Until(otp.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("otp already expired")
	}
	key := s.key(otp.UserID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code_hash", otp.CodeHash,
			"attempts", 0,
			"expires_at", otp.ExpiresAt.UnixMilli(),
			"created_at", otp.CreatedAt.UnixMilli(),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}

// Get returns the user's OTP if it has not expired at now.
func (s *RedisOTPStore) Get(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.PasswordOTP, error) {
	values, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, domain.ErrOTPNotFound
	}

	otp := &domain.PasswordOTP{UserID: userID, CodeHash: values["code_hash"]}
	if otp.Attempts, err = strconv.Atoi(values["attempts"]); err != nil {
		return nil, fmt.Errorf("decode otp attempts: %w", err)
	}
	expiresMs, err := strconv.ParseInt(values["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode otp expiry: %w", err)
	}
	createdMs, _ := strconv.ParseInt(values["created_at"], 10, 64)
	otp.ExpiresAt = time.UnixMilli(expiresMs)
	otp.CreatedAt = time.UnixMilli(createdMs)

	if !otp.IsValid(now) {
		return nil, domain.ErrOTPNotFound
	}
	return otp, nil
}

// IncrementAttempts counts a wrong submission and returns the new total.
func (s *RedisOTPStore) IncrementAttempts(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := incrementOTPScript.Run(ctx, s.client, []string{s.key(userID)}).Int64()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, domain.ErrOTPNotFound
	}
	return int(n), nil
}

// Consume deletes the user's OTP if it still carries codeHash and has not
// expired at now.
func (s *RedisOTPStore) Consume(ctx context.Context, userID uuid.UUID, codeHash string, now time.Time) error {
	n, err := consumeOTPScript.Run(ctx, s.client, []string{s.key(userID)}, codeHash, now.UnixMilli()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrOTPNotFound
	}
	return nil
}

// Delete removes the user's OTP.
func (s *RedisOTPStore) Delete(ctx context.Context, userID uuid.UUID) error {
	err := s.client.Del(ctx, s.key(userID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (s *RedisOTPStore) key(userID uuid.UUID) string {
	return s.prefix + userID.String()
}
