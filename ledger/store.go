package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a token has no live ledger entry, whether it
// was revoked, expired out of Redis, or never issued.
var ErrNotFound = errors.New("ledger entry not found")

// ErrUnavailable is returned when Redis cannot be reached.
var ErrUnavailable = errors.New("ledger unavailable")

const revokeScript = `
local existed = redis.call("EXISTS", KEYS[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var revokeLua = redis.NewScript(revokeScript)

// Store is the Redis-backed refresh token ledger. Entries live under the
// SHA-256 of the token with a TTL matching the token's signed lifetime, and
// each account carries an index set of its live entries so that a password
// reset can revoke every session at once.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a ledger [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "rtl"
	}
	return &Store{redis: redis, prefix: prefix}
}

func (s *Store) entryKey(tokenHash string) string {
	return s.prefix + ":t:" + tokenHash
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + ":a:" + accountID
}

// TokenHash returns the hex SHA-256 of a refresh token's wire form. Only
// this digest ever reaches Redis; a dump of the ledger yields no usable
// tokens.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Issue records a freshly minted refresh token for accountID. The entry
// expires from Redis when the token's signed lifetime ends, so the ledger
// never outgrows the set of tokens that could still verify.
func (s *Store) Issue(ctx context.Context, token, accountID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("refresh token already expired")
	}

	data, err := encodeRecord(Record{AccountID: accountID, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}

	hash := TokenHash(token)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(hash), data, ttl)
		pipe.SAdd(ctx, s.accountKey(accountID), hash)
		pipe.ExpireGT(ctx, s.accountKey(accountID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Lookup returns the ledger entry for a token, or [ErrNotFound] when the
// token has been revoked or was never issued.
func (s *Store) Lookup(ctx context.Context, token string) (Record, error) {
	data, err := s.redis.Get(ctx, s.entryKey(TokenHash(token))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Revoke removes a token's ledger entry. Revoking an absent token is not an
// error; the end state is identical.
func (s *Store) Revoke(ctx context.Context, token, accountID string) error {
	hash := TokenHash(token)
	keys := []string{s.entryKey(hash), s.accountKey(accountID)}

	if err := revokeLua.Run(ctx, s.redis, keys, hash).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForAccount removes every live entry for accountID and returns
// how many were revoked.
func (s *Store) RevokeAllForAccount(ctx context.Context, accountID string) (int, error) {
	accountKey := s.accountKey(accountID)

	hashes, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(hashes) == 0 {
		return 0, nil
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, h := range hashes {
			pipe.Del(ctx, s.entryKey(h))
		}
		pipe.Del(ctx, accountKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return len(hashes), nil
}

// LiveCount reports how many entries are currently live for accountID.
// Entries whose Redis TTL lapsed are excluded even if the index set still
// references them.
func (s *Store) LiveCount(ctx context.Context, accountID string) (int, error) {
	hashes, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	live := 0
	for _, h := range hashes {
		n, err := s.redis.Exists(ctx, s.entryKey(h)).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if n == 1 {
			live++
		}
	}
	return live, nil
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
