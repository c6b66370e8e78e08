package sessionstore

import (
	"context"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"
)

// sessionCommands is the set of Valkey round trips ValkeyStore is built on.
type sessionCommands interface {
	// createSession stores email under sessionKey only when the key is absent
	// and adds token to the set at userKey. Both writes happen together.
	createSession(ctx context.Context, sessionKey, userKey, token, email string, ttl time.Duration) (bool, error)
	// discardSession undoes a createSession whose outcome is unknown. The
	// session key is removed only while it still maps to email.
	discardSession(ctx context.Context, sessionKey, userKey, token, email string) error
	get(ctx context.Context, key string) (string, bool, error)
	getDel(ctx context.Context, key string) (string, bool, error)
	sRem(ctx context.Context, key, member string) error
	sMembers(ctx context.Context, key string) ([]string, error)
	del(ctx context.Context, keys ...string) (int64, error)
	scan(ctx context.Context, cursor uint64, match string, count int64) (uint64, []string, error)
}

var createSessionScript = valkey.NewLuaScript(`
if not redis.call('SET', KEYS[1], ARGV[1], 'NX') then
  return 0
end
redis.call('SADD', KEYS[2], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
  redis.call('EXPIRE', KEYS[2], ttl)
end
return 1
`)

var discardSessionScript = valkey.NewLuaScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  redis.call('DEL', KEYS[1])
end
redis.call('SREM', KEYS[2], ARGV[2])
return 1
`)

type valkeyCommands struct {
	client valkey.Client
}

func (c valkeyCommands) createSession(ctx context.Context, sessionKey, userKey, token, email string, ttl time.Duration) (bool, error) {
	created, err := createSessionScript.Exec(ctx, c.client,
		[]string{sessionKey, userKey},
		[]string{email, token, strconv.FormatInt(ttlSeconds(ttl), 10)},
	).AsInt64()
	if err != nil {
		return false, err
	}
	return created == 1, nil
}

func (c valkeyCommands) discardSession(ctx context.Context, sessionKey, userKey, token, email string) error {
	return discardSessionScript.Exec(ctx, c.client,
		[]string{sessionKey, userKey},
		[]string{email, token},
	).Error()
}

func (c valkeyCommands) get(ctx context.Context, key string) (string, bool, error) {
	return stringOrNil(c.client.Do(ctx, c.client.B().Get().Key(key).Build()).ToString())
}

func (c valkeyCommands) getDel(ctx context.Context, key string) (string, bool, error) {
	return stringOrNil(c.client.Do(ctx, c.client.B().Getdel().Key(key).Build()).ToString())
}

func (c valkeyCommands) sRem(ctx context.Context, key, member string) error {
	return c.client.Do(ctx, c.client.B().Srem().Key(key).Member(member).Build()).Error()
}

func (c valkeyCommands) sMembers(ctx context.Context, key string) ([]string, error) {
	members, err := c.client.Do(ctx, c.client.B().Smembers().Key(key).Build()).AsStrSlice()
	if valkey.IsValkeyNil(err) {
		return nil, nil
	}
	return members, err
}

func (c valkeyCommands) del(ctx context.Context, keys ...string) (int64, error) {
	return c.client.Do(ctx, c.client.B().Del().Key(keys...).Build()).AsInt64()
}

func (c valkeyCommands) scan(ctx context.Context, cursor uint64, match string, count int64) (uint64, []string, error) {
	entry, err := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).Match(match).Count(count).Build()).AsScanEntry()
	if err != nil {
		return 0, nil, err
	}
	return entry.Cursor, entry.Elements, nil
}

func stringOrNil(v string, err error) (string, bool, error) {
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// ttlSeconds rounds a positive ttl up to whole seconds; zero means no expiry.
func ttlSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	seconds := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		seconds++
	}
	return seconds
}
