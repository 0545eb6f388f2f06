package redis

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NilError is the miss sentinel returned by Get on absent keys.
var NilError = goredis.Nil

type Options = goredis.UniversalOptions

// StreamMessage is one entry read off a redis stream.
type StreamMessage struct {
	ID     string
	Values map[string]interface{}
}

// RedisAdapter narrows the go-redis client to the operations the service
// uses: plain keys for locks and markers, streams for the dispatch queue.
// Every key passed in is stored under the adapter's configured prefix.
type RedisAdapter interface {
	Set(key string, value []byte, ttl time.Duration) error
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Get(key string) ([]byte, error)
	Del(key string) error
	Exist(key string) (int64, error)
	TxPipelined(fn func(goredis.Pipeliner) error) ([]goredis.Cmder, error)
	Client() goredis.UniversalClient

	XAdd(key string, values map[string]interface{}) (string, error)
	XAddWithID(key string, id string, values map[string]interface{}) (string, error)
	XReadGroup(group, consumer, key, id string, count int64) ([]StreamMessage, error)
	XAck(key, group string, ids ...string) error
	XGroupCreateMkStream(key, group, start string) error
	XLen(key string) (int64, error)
	XDel(key string, ids ...string) error
	XTrimApprox(key string, maxLen int64) error
	XPending(key, group string) (*goredis.XPending, error)
	XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error)
	XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error)
}

type adapter struct {
	conn   goredis.UniversalClient
	prefix string
	name   string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]RedisAdapter{}
)

// NewRedisAdapter returns the adapter registered under connName, dialing and
// caching one on first use. The connection is pinged before registration so
// a bad address fails at startup, not on first command.
func NewRedisAdapter(connName string, keysPrefix string, opts *goredis.UniversalOptions) (RedisAdapter, error) {
	registryMu.RLock()
	cached, ok := registry[connName]
	registryMu.RUnlock()
	if ok {
		return cached, nil
	}

	conn := goredis.NewUniversalClient(opts)
	if err := conn.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	a := &adapter{conn: conn, prefix: keysPrefix, name: connName}

	registryMu.Lock()
	registry[connName] = a
	registryMu.Unlock()
	return a, nil
}

// GetRedis looks up a registered adapter by name, falling back to "default".
func GetRedis(connName ...string) RedisAdapter {
	name := "default"
	if len(connName) > 0 && connName[0] != "" {
		name = connName[0]
	}

	registryMu.RLock()
	defer registryMu.RUnlock()
	if a, ok := registry[name]; ok {
		return a
	}
	return registry["default"]
}

func (a *adapter) key(k string) string { return a.prefix + k }

func (a *adapter) Set(key string, value []byte, ttl time.Duration) error {
	return a.conn.Set(context.Background(), a.key(key), value, ttl).Err()
}

func (a *adapter) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	return a.conn.SetNX(context.Background(), a.key(key), value, ttl).Result()
}

func (a *adapter) Get(key string) ([]byte, error) {
	return a.conn.Get(context.Background(), a.key(key)).Bytes()
}

func (a *adapter) Del(key string) error {
	return a.conn.Del(context.Background(), a.key(key)).Err()
}

func (a *adapter) Exist(key string) (int64, error) {
	return a.conn.Exists(context.Background(), a.key(key)).Result()
}

func (a *adapter) Client() goredis.UniversalClient {
	return a.conn
}

func (a *adapter) TxPipelined(fn func(goredis.Pipeliner) error) ([]goredis.Cmder, error) {
	return a.conn.TxPipelined(context.Background(), fn)
}

func (a *adapter) XAdd(key string, values map[string]interface{}) (string, error) {
	return a.XAddWithID(key, "*", values)
}

func (a *adapter) XAddWithID(key string, id string, values map[string]interface{}) (string, error) {
	return a.conn.XAdd(context.Background(), &goredis.XAddArgs{
		Stream: a.key(key),
		ID:     id,
		Values: values,
	}).Result()
}

func (a *adapter) XReadGroup(group, consumer, key, id string, count int64) ([]StreamMessage, error) {
	streams, err := a.conn.XReadGroup(context.Background(), &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{a.key(key), id},
		Count:    count,
		Block:    0,
	}).Result()
	if err != nil {
		return nil, err
	}

	var out []StreamMessage
	for _, stream := range streams {
		for _, m := range stream.Messages {
			out = append(out, StreamMessage{ID: m.ID, Values: m.Values})
		}
	}
	return out, nil
}

func (a *adapter) XAck(key, group string, ids ...string) error {
	return a.conn.XAck(context.Background(), a.key(key), group, ids...).Err()
}

func (a *adapter) XGroupCreateMkStream(key, group, start string) error {
	return a.conn.XGroupCreateMkStream(context.Background(), a.key(key), group, start).Err()
}

func (a *adapter) XLen(key string) (int64, error) {
	return a.conn.XLen(context.Background(), a.key(key)).Result()
}

func (a *adapter) XDel(key string, ids ...string) error {
	return a.conn.XDel(context.Background(), a.key(key), ids...).Err()
}

func (a *adapter) XTrimApprox(key string, maxLen int64) error {
	return a.conn.XTrimMaxLenApprox(context.Background(), a.key(key), maxLen, 0).Err()
}

func (a *adapter) XPending(key, group string) (*goredis.XPending, error) {
	return a.conn.XPending(context.Background(), a.key(key), group).Result()
}

func (a *adapter) XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error) {
	return a.conn.XPendingExt(context.Background(), &goredis.XPendingExtArgs{
		Stream: a.key(key),
		Group:  group,
		Start:  start,
		End:    end,
		Count:  count,
	}).Result()
}

func (a *adapter) XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error) {
	claimed, err := a.conn.XClaim(context.Background(), &goredis.XClaimArgs{
		Stream:   a.key(key),
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]StreamMessage, 0, len(claimed))
	for _, m := range claimed {
		out = append(out, StreamMessage{ID: m.ID, Values: m.Values})
	}
	return out, nil
}
