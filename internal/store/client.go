// Package store wraps the shared atomic store (Redis) used by the admission,
// inventory and risk layers. It owns the connection pool and the key
// namespace; every scripted operation in those packages goes through
// Client.Eval so the atomicity boundary stays in one place.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	myLogger "github.com/pcristin/flashsale/internal/logger"
)

// Client is a wrapper around the shared atomic store connection pool.
type Client struct {
	pool *redis.Pool
}

// Config controls pool sizing and dial behavior.
type Config struct {
	Address         string
	MaxIdle         int
	MaxActive       int
	IdleTimeout     time.Duration
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// DefaultConfig mirrors the pool sizing the teacher service used in
// production load tests.
func DefaultConfig(address string) Config {
	return Config{
		Address:         address,
		MaxIdle:         1000,
		MaxActive:       2000,
		IdleTimeout:     240 * time.Second,
		MaxConnLifetime: 10 * time.Minute,
		ConnectTimeout:  5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
	}
}

// New creates a new Client against the given config.
func New(ctx context.Context, cfg Config) *Client {
	logger := myLogger.FromContext(ctx, "store")

	pool := &redis.Pool{
		MaxIdle:         cfg.MaxIdle,
		MaxActive:       cfg.MaxActive,
		IdleTimeout:     cfg.IdleTimeout,
		Wait:            true,
		MaxConnLifetime: cfg.MaxConnLifetime,

		Dial: func() (redis.Conn, error) {
			logger.Info("store | dialing", "address", cfg.Address)
			return redis.Dial("tcp", cfg.Address,
				redis.DialConnectTimeout(cfg.ConnectTimeout),
				redis.DialReadTimeout(cfg.ReadTimeout),
				redis.DialWriteTimeout(cfg.WriteTimeout),
			)
		},

		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	return &Client{pool: pool}
}

// Close closes the underlying pool.
func (c *Client) Close() error {
	return c.pool.Close()
}

// HealthCheck pings the store.
func (c *Client) HealthCheck(ctx context.Context) error {
	logger := myLogger.FromContext(ctx, "store")

	conn := c.pool.Get()
	defer conn.Close()

	_, err := conn.Do("PING")
	if err != nil {
		logger.Error("store | health check failed", "error", err)
	}
	return err
}

// Eval runs a Lua script against the store with the given keys and
// arguments, returning the raw reply.
func (c *Client) Eval(ctx context.Context, script string, keys []interface{}, args ...interface{}) (interface{}, error) {
	conn := c.pool.Get()
	defer conn.Close()

	call := make([]interface{}, 0, 2+len(keys)+len(args))
	call = append(call, script, len(keys))
	call = append(call, keys...)
	call = append(call, args...)

	return conn.Do("EVAL", call...)
}

// Get returns a string value for key, or ("", redis.ErrNil) if absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	conn := c.pool.Get()
	defer conn.Close()
	return redis.String(conn.Do("GET", key))
}

// SetEx sets key to value with a TTL in seconds.
func (c *Client) SetEx(ctx context.Context, key string, seconds int, value interface{}) error {
	conn := c.pool.Get()
	defer conn.Close()
	_, err := conn.Do("SETEX", key, seconds, value)
	return err
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	conn := c.pool.Get()
	defer conn.Close()

	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	_, err := conn.Do("DEL", args...)
	return err
}

// Pool exposes the underlying pool for callers (e.g. risk frequency
// counters) that need direct command access beyond Eval/Get/SetEx/Del.
func (c *Client) Pool() *redis.Pool {
	return c.pool
}

// Key builders. Centralizing these avoids the teacher's inline
// fmt.Sprintf("sale:%d:stock", ...) scattered through redis.go, and moves
// the schema from "one global active sale" to "one cell per sku" per the
// data model in SPEC_FULL.md §3.

func StockKey(sku string) string                { return fmt.Sprintf("stock:sku_%s", sku) }
func SoldKey(sku string) string                 { return fmt.Sprintf("sold:sku_%s", sku) }
func TokenBucketKey(sku string) string           { return fmt.Sprintf("tb:%s", sku) }
func TokenBucketTSKey(sku string) string         { return fmt.Sprintf("tb_ts:%s", sku) }
func RiskKey(device string) string              { return fmt.Sprintf("risk:%s", device) }
func CaptchaKey(user string) string             { return fmt.Sprintf("captcha:%s", user) }
func FrequencyKey(device string) string         { return fmt.Sprintf("freq:%s", device) }
func UserPurchaseCountKey(sku, user string) string {
	return fmt.Sprintf("sale:%s:user:%s:count", sku, user)
}
