package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/eload/internal/sampler"
)

const (
	snapshotKey = "eload:snapshot:%s" // 最新快照（String，JSON，带 TTL）
	historyKey  = "eload:history:%s"  // 最近 N 条（List，新的在头部）
)

// ErrNoSnapshot 缓存中没有快照（未采样或已过期）
var ErrNoSnapshot = errors.New("no cached snapshot")

// SnapshotCache 最新采样缓存，实现 sampler.Sink
type SnapshotCache struct {
	client     *Client
	ttl        time.Duration
	historyLen int64
}

// NewSnapshotCache 创建缓存；ttl<=0 时默认 30s
func NewSnapshotCache(client *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SnapshotCache{client: client, ttl: ttl, historyLen: 600}
}

// StoreReading 写入最新快照并追加到历史
func (c *SnapshotCache) StoreReading(ctx context.Context, r sampler.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	hk := fmt.Sprintf(historyKey, r.Device)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(snapshotKey, r.Device), data, c.ttl)
	pipe.LPush(ctx, hk, data)
	pipe.LTrim(ctx, hk, 0, c.historyLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Latest 读取最新快照
func (c *SnapshotCache) Latest(ctx context.Context, deviceID string) (sampler.Reading, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf(snapshotKey, deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sampler.Reading{}, ErrNoSnapshot
	}
	if err != nil {
		return sampler.Reading{}, err
	}
	var r sampler.Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return sampler.Reading{}, fmt.Errorf("unmarshal reading: %w", err)
	}
	return r, nil
}

// History 最近 n 条快照，新的在前
func (c *SnapshotCache) History(ctx context.Context, deviceID string, n int64) ([]sampler.Reading, error) {
	if n <= 0 {
		return nil, nil
	}
	items, err := c.client.LRange(ctx, fmt.Sprintf(historyKey, deviceID), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]sampler.Reading, 0, len(items))
	for _, it := range items {
		var r sampler.Reading
		if err := json.Unmarshal([]byte(it), &r); err != nil {
			return nil, fmt.Errorf("unmarshal reading: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
