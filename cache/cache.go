// Package cache 提供报价缓存抽象与基于 allegro/bigcache 的本地实现。
package cache

import (
	"context"
	"time"
)

// Cache 缓存接口。未命中时 Get 返回 xerrors.ErrCacheMiss。
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}
