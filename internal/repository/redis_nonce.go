package repository

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const nonceKeyTTL = 24 * time.Hour

// reserveNonce stores max(candidate, current+1) and returns it.
var reserveNonce = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local n = tonumber(ARGV[1])
if n <= cur then n = cur + 1 end
redis.call('SET', KEYS[1], string.format('%d', n), 'PX', ARGV[2])
return n
`)

// RedisNonceFloor lets the server and the bot sign for one wallet without
// issuing the same nonce.
type RedisNonceFloor struct {
	client redis.Scripter
	key    string
}

func NewRedisNonceFloor(client redis.Scripter, wallet string) *RedisNonceFloor {
	return &RedisNonceFloor{client: client, key: nonceKey(wallet)}
}

func (f *RedisNonceFloor) Reserve(ctx context.Context, candidate uint64) (uint64, error) {
	return reserveNonce.Run(ctx, f.client, []string{f.key}, candidate, nonceKeyTTL.Milliseconds()).Uint64()
}

func nonceKey(wallet string) string {
	return "nonce:" + strings.ToLower(wallet)
}
