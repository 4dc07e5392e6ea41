package atomlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	redis "github.com/redis/go-redis/v9"
)

// RedisLedger is a Ledger backed by a redis server. The conditional insert is
// a SETNX wrapped in a Lua script so the entry write and the per-log version
// index stay atomic; redis runs scripts serially, which provides the
// linearizable claim the protocol requires from its arbiter.
type RedisLedger struct {
	client *redis.Client
}

// RedisLedgerOptions hold all requirements to build a redis ledger
type RedisLedgerOptions struct {
	// Addr is the redis server address, like 127.0.0.1:6379. It's required
	Addr string

	// Options allows advanced client tuning. When provided, Addr is copied
	// into it
	Options *redis.Options
}

// redisPutIfAbsentScript inserts the entry and indexes its version only when
// the key is still absent. It returns 1 when the claim was won, 0 otherwise
const redisPutIfAbsentScript = `
local set = redis.call('SETNX', KEYS[1], ARGV[1])
if set == 1 then
  redis.call('ZADD', KEYS[2], tonumber(ARGV[2]), ARGV[2])
  return 1
end
return 0
`

// NewRedisLedger instantiate a redis ledger
func NewRedisLedger(options RedisLedgerOptions) (*RedisLedger, error) {
	if options.Addr == "" && options.Options == nil {
		return nil, errors.New("redis addr is required")
	}
	clientOptions := options.Options
	if clientOptions == nil {
		clientOptions = &redis.Options{}
	}
	if options.Addr != "" {
		clientOptions.Addr = options.Addr
	}
	return &RedisLedger{client: redis.NewClient(clientOptions)}, nil
}

// Close will close the redis client
func (r *RedisLedger) Close() error {
	return r.client.Close()
}

// redisEntryKey builds the redis key holding the entry of (logID, version)
func redisEntryKey(logID string, version uint64) string {
	return fmt.Sprintf("atomlog:entry:%s:%020d", logID, version)
}

// redisIndexKey builds the redis key of the per-log version index
func redisIndexKey(logID string) string {
	return fmt.Sprintf("atomlog:index:%s", logID)
}

// PutIfAbsent atomically inserts entry keyed by (LogID, Version)
func (r *RedisLedger) PutIfAbsent(ctx context.Context, entry LedgerEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	keys := []string{redisEntryKey(entry.LogID, entry.Version), redisIndexKey(entry.LogID)}
	args := []interface{}{string(value), strconv.FormatUint(entry.Version, 10)}
	applied, err := r.client.Eval(ctx, redisPutIfAbsentScript, keys, args...).Result()
	if err != nil {
		// the script may have run before the connection broke
		return &UnavailableError{Op: "putIfAbsent", Ambiguous: true, Err: err}
	}
	if applied == int64(0) {
		return fmt.Errorf("log %s version %d: %w", entry.LogID, entry.Version, ErrEntryAlreadyExists)
	}
	return nil
}

// Update overwrites the entry keyed by (LogID, Version)
func (r *RedisLedger) Update(ctx context.Context, entry LedgerEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisEntryKey(entry.LogID, entry.Version), value, 0).Err(); err != nil {
		return &UnavailableError{Op: "update", Err: err}
	}
	return nil
}

// Get returns the entry keyed by (logID, version)
func (r *RedisLedger) Get(ctx context.Context, logID string, version uint64) (LedgerEntry, error) {
	value, err := r.client.Get(ctx, redisEntryKey(logID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return LedgerEntry{}, fmt.Errorf("log %s version %d: %w", logID, version, ErrEntryNotFound)
	}
	if err != nil {
		return LedgerEntry{}, &UnavailableError{Op: "get", Err: err}
	}
	var entry LedgerEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}

// Latest returns the entry with the highest claimed version for logID
func (r *RedisLedger) Latest(ctx context.Context, logID string) (LedgerEntry, error) {
	members, err := r.client.ZRevRange(ctx, redisIndexKey(logID), 0, 0).Result()
	if err != nil {
		return LedgerEntry{}, &UnavailableError{Op: "latest", Err: err}
	}
	if len(members) == 0 {
		return LedgerEntry{}, fmt.Errorf("log %s: %w", logID, ErrEntryNotFound)
	}
	version, err := strconv.ParseUint(members[0], 10, 64)
	if err != nil {
		return LedgerEntry{}, fmt.Errorf("corrupt version index for log %s: %w", logID, err)
	}
	return r.Get(ctx, logID, version)
}
