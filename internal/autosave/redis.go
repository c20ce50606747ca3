package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces autosave entries in a shared Redis.
const KeyPrefix = "trailhead:autosave:"

// ErrRemoteRedis is returned by DialRedis for a non-loopback address.
// Snapshots are local state and never leave the machine.
var ErrRemoteRedis = errors.New("autosave: redis must listen on loopback")

// redisKV is the subset of *redis.Client the slot needs.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisSlot stores snapshots as JSON strings with an expiry.
type RedisSlot struct {
	client redisKV
	ttl    time.Duration
}

// NewRedisSlot wraps client. A ttl of zero keeps snapshots until discarded.
func NewRedisSlot(client *redis.Client, ttl time.Duration) *RedisSlot {
	return &RedisSlot{client: client, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection. addr must be a
// loopback host or a unix socket path.
func DialRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisSlot, func() error, error) {
	if err := requireLocal(addr); err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("autosave: ping redis %s: %w", addr, err)
	}
	return NewRedisSlot(client, ttl), client.Close, nil
}

func requireLocal(addr string) error {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "/") {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("autosave: redis addr %q: %w", addr, err)
	}
	if strings.EqualFold(host, "localhost") {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRemoteRedis, addr)
}

func redisKey(key string) (string, error) {
	normalized, err := Key(key)
	if err != nil {
		return "", err
	}
	return KeyPrefix + normalized, nil
}

// Load reads the snapshot stored for key.
func (s *RedisSlot) Load(ctx context.Context, key string) (Snapshot, error) {
	rk, err := redisKey(key)
	if err != nil {
		return Snapshot{}, err
	}
	raw, err := s.client.Get(ctx, rk).Result()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("autosave: redis get %s: %w", rk, err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("autosave: decode %s: %w", rk, err)
	}
	return snap, nil
}

// Save stores the snapshot, refreshing its expiry.
func (s *RedisSlot) Save(ctx context.Context, snap Snapshot) error {
	rk, err := redisKey(snap.Key)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, rk, encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("autosave: redis set %s: %w", rk, err)
	}
	return nil
}

// Discard deletes the snapshot.
func (s *RedisSlot) Discard(ctx context.Context, key string) error {
	rk, err := redisKey(key)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, rk).Err(); err != nil {
		return fmt.Errorf("autosave: redis del %s: %w", rk, err)
	}
	return nil
}
