// Package redis provides a Locker backed by Redis so that several verity
// processes can share one database without processing the same document
// twice.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
)

var _ driven.Locker = (*Locker)(nil)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements driven.Locker with SET NX PX and a compare-and-delete
// release.
type Locker struct {
	client *goredis.Client
	prefix string
}

// NewLocker wraps an existing client. Keys are namespaced with prefix.
func NewLocker(client *goredis.Client, prefix string) *Locker {
	if prefix == "" {
		prefix = "verity:lock:"
	}
	return &Locker{client: client, prefix: prefix}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*Locker, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewLocker(client, ""), nil
}

// Acquire takes the lease for key or returns domain.ErrLockHeld.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	full := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must outlive a cancelled caller context.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.client, []string{full}, token).Err()
		})
	}, nil
}

// Close closes the underlying client.
func (l *Locker) Close() error {
	return l.client.Close()
}
