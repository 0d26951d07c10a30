package cache

import (
	"context"
	"time"
)

// BytesCache — кэш "как есть" поверх байтов. Best-effort: вызывающие обязаны
// переживать и промахи, и ошибки кэша.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
