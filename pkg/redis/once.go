package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaMarkOnce 通过 SETNX 保证同一个 key 只会被标记一次，值为持有者 token。
const luaMarkOnce = `
local key = KEYS[1]
local token = ARGV[1]
local ttlSec = tonumber(ARGV[2])

if redis.call('SETNX', key, token) == 1 then
  redis.call('EXPIRE', key, ttlSec)
  return 1
end
return 0
`

// luaReleaseIfMatch 仅当值仍是自己的 token 时才删除，避免误删别人的标记。
const luaReleaseIfMatch = `
local key = KEYS[1]
local token = ARGV[1]
if redis.call('GET', key) == token then
  return redis.call('DEL', key)
end
return 0
`

// MarkOnce 幂等标记：
// - 首次标记返回 true
// - 已被标记过返回 false
func MarkOnce(ctx context.Context, rdb *rd.Client, key, token string, ttl time.Duration) (bool, error) {
	ttlSec := int64(ttl / time.Second)
	if ttlSec <= 0 {
		ttlSec = 1
	}
	n, err := rdb.Eval(ctx, luaMarkOnce, []string{key}, token, ttlSec).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseIfMatch 撤销 MarkOnce 的标记（例如发送失败需要允许重试）。
func ReleaseIfMatch(ctx context.Context, rdb *rd.Client, key, token string) error {
	_, err := rdb.Eval(ctx, luaReleaseIfMatch, []string{key}, token).Int()
	return err
}
