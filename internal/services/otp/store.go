package otp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps records in process. It suits a single instance only.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rec      Record
	deadline time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: map[string]memoryEntry{}, now: now}
}

func (m *MemoryStore) Save(ctx context.Context, key string, rec *Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{rec: *rec, deadline: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(e.deadline) {
		delete(m.entries, key)
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Take(ctx context.Context, key, code string) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.deadline) {
		delete(m.entries, key)
		return nil, false, nil
	}
	rec := e.rec
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return &rec, false, nil
	}
	delete(m.entries, key)
	return &rec, true, nil
}

func (m *MemoryStore) Restore(ctx context.Context, key string, rec *Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && m.now().Before(e.deadline) {
		return nil
	}
	m.entries[key] = memoryEntry{rec: *rec, deadline: m.now().Add(ttl)}
	return nil
}

// RedisStore shares OTP state between instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Save(ctx context.Context, key string, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal otp record: %w", err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *RedisStore) Load(ctx context.Context, key string) (*Record, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read otp record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode otp record: %w", err)
	}
	return &rec, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// takeScript deletes KEYS[1] only when its code equals ARGV[1]. It replies
// nil for a missing key, otherwise {taken, record}.
const takeScript = `
	local v = redis.call("get", KEYS[1])
	if not v then
		return false
	end
	if cjson.decode(v).code ~= ARGV[1] then
		return {0, v}
	end
	redis.call("del", KEYS[1])
	return {1, v}
`

func (r *RedisStore) Take(ctx context.Context, key, code string) (*Record, bool, error) {
	reply, err := r.client.Eval(ctx, takeScript, []string{key}, code).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to take otp record: %w", err)
	}
	if len(reply) != 2 {
		return nil, false, fmt.Errorf("unexpected take reply of %d elements", len(reply))
	}
	taken, _ := reply[0].(int64)
	data, _ := reply[1].(string)

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, false, fmt.Errorf("failed to decode otp record: %w", err)
	}
	return &rec, taken == 1, nil
}

func (r *RedisStore) Restore(ctx context.Context, key string, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal otp record: %w", err)
	}
	return r.client.SetNX(ctx, key, data, ttl).Err()
}
