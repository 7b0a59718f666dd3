package concurrency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSlot means the link is already carrying max_concurrency live calls.
var ErrNoSlot = errors.New("concurrency: no free slot")

// Broker tracks live calls per routing link in Redis so several telephony
// nodes can share one max_concurrency budget.
//
// Each link is a sorted set of call ids scored by lease expiry. Expired leases
// are pruned on every acquire, so a node that crashes mid-call frees its slot
// after the TTL. Acquire and release are idempotent per call id.
//
// The broker is advisory for the telephony engine. It never feeds routing
// decisions or the volume counter.
type Broker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewBroker(rdb *redis.Client, ttl time.Duration) *Broker {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Broker{rdb: rdb, ttl: ttl, prefix: "callplane:slots:", clock: time.Now}
}

// Lease describes a held slot.
type Lease struct {
	LinkID    int64     `json:"link_id"`
	CallID    string    `json:"call_id"`
	InUse     int       `json:"in_use"`
	Limit     int       `json:"limit"`
	ExpiresAt time.Time `json:"expires_at"`
}

var acquireScript = redis.NewScript(`
-- KEYS[1] = link slot set
-- ARGV[1] = limit, ARGV[2] = now (ms), ARGV[3] = ttl (ms), ARGV[4] = call id
local now = tonumber(ARGV[2])
local expires = now + tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now)

if redis.call('ZSCORE', KEYS[1], ARGV[4]) then
  redis.call('ZADD', KEYS[1], expires, ARGV[4])
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  return {1, redis.call('ZCARD', KEYS[1])}
end

local current = redis.call('ZCARD', KEYS[1])
if current >= tonumber(ARGV[1]) then
  return {0, current}
end

redis.call('ZADD', KEYS[1], expires, ARGV[4])
-- Key outlives its newest lease only.
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {1, current + 1}
`)

var releaseScript = redis.NewScript(`
-- KEYS[1] = link slot set, ARGV[1] = call id
local removed = redis.call('ZREM', KEYS[1], ARGV[1])
if redis.call('ZCARD', KEYS[1]) == 0 then
  redis.call('DEL', KEYS[1])
end
return removed
`)

// Acquire takes a slot on linkID for callID. Re-acquiring a held slot renews
// its lease. It returns ErrNoSlot when limit live calls are already held.
func (b *Broker) Acquire(ctx context.Context, linkID int64, callID string, limit int) (Lease, error) {
	if b.rdb == nil {
		return Lease{}, errors.New("redis client is nil")
	}
	if linkID <= 0 || callID == "" {
		return Lease{}, errors.New("link id and call id are required")
	}
	if limit <= 0 {
		return Lease{}, errors.New("limit must be > 0")
	}

	now := b.clock()
	res, err := acquireScript.Run(ctx, b.rdb, []string{b.key(linkID)}, limit, now.UnixMilli(), b.ttl.Milliseconds(), callID).Int64Slice()
	if err != nil {
		return Lease{}, fmt.Errorf("acquire slot: %w", err)
	}
	if len(res) != 2 {
		return Lease{}, fmt.Errorf("acquire slot: unexpected reply %v", res)
	}
	lease := Lease{LinkID: linkID, CallID: callID, InUse: int(res[1]), Limit: limit}
	if res[0] != 1 {
		return lease, ErrNoSlot
	}
	lease.ExpiresAt = now.Add(b.ttl)
	return lease, nil
}

// Release frees callID's slot. It reports whether a slot was held.
func (b *Broker) Release(ctx context.Context, linkID int64, callID string) (bool, error) {
	if b.rdb == nil {
		return false, errors.New("redis client is nil")
	}
	if linkID <= 0 || callID == "" {
		return false, errors.New("link id and call id are required")
	}
	n, err := releaseScript.Run(ctx, b.rdb, []string{b.key(linkID)}, callID).Int()
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	return n == 1, nil
}

// InUse counts unexpired leases on linkID.
func (b *Broker) InUse(ctx context.Context, linkID int64) (int, error) {
	if b.rdb == nil {
		return 0, errors.New("redis client is nil")
	}
	now := strconv.FormatInt(b.clock().UnixMilli(), 10)
	n, err := b.rdb.ZCount(ctx, b.key(linkID), "("+now, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return int(n), nil
}

func (b *Broker) key(linkID int64) string {
	return b.prefix + strconv.FormatInt(linkID, 10)
}
