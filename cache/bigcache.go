package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3" // 导入高性能本地缓存库
	"github.com/wyfcoding/optionpricing/xerrors"
)

// BigCache 实现了 `Cache` 接口，使用 `allegro/bigcache` 作为底层存储。
// 值以 JSON 形式保存，所有条目共享同一个 TTL。
type BigCache struct {
	cache *bigcache.BigCache // 底层的BigCache实例
}

// NewBigCache 创建并返回一个新的 BigCache 实例。
// ttl: 缓存项的全局过期时间（Time To Live）。
// maxMB: 缓存的最大容量（单位MB），0 表示不限制。
func NewBigCache(ttl time.Duration, maxMB int) (*BigCache, error) {
	if ttl <= 0 {
		return nil, xerrors.ErrInvalidConfig.WithDetail("cache ttl must be positive, got %s", ttl)
	}
	config := bigcache.DefaultConfig(ttl)
	config.Shards = 64
	config.MaxEntriesInWindow = 10 * 64
	config.HardMaxCacheSize = maxMB // 设置硬性最大缓存大小（MB）
	config.CleanWindow = ttl        // 过期项按 TTL 周期清理

	cache, err := bigcache.New(context.Background(), config) // 初始化BigCache
	if err != nil {
		return nil, fmt.Errorf("初始化 bigcache 失败: %w", err)
	}

	return &BigCache{cache: cache}, nil
}

// Get 从BigCache中获取指定键的值。
// value 参数必须是一个指针，缓存的数据会反序列化到其中。
func (c *BigCache) Get(ctx context.Context, key string, value any) error {
	data, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return xerrors.ErrCacheMiss.WithContext("key", key)
		}
		return err
	}
	return json.Unmarshal(data, value)
}

// Set 将一个键值对设置到BigCache中。
// BigCache不支持为每个单独的键设置过期时间，expiration 参数被忽略。
func (c *BigCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.cache.Set(key, data)
}

// Delete 从BigCache中删除一个或多个键。键不存在时不返回错误。
func (c *BigCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Exists 检查BigCache中是否存在指定的键。
func (c *BigCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.cache.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, nil
	}
	return false, err
}

// Len 返回当前条目数。
func (c *BigCache) Len() int {
	return c.cache.Len()
}

// Reset 清空所有条目，配置热更新改变定价模式时使用。
func (c *BigCache) Reset() error {
	return c.cache.Reset()
}

// Close 关闭BigCache实例，释放其占用的资源。
func (c *BigCache) Close() error {
	return c.cache.Close()
}
