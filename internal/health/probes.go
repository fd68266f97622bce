package health

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// DatabasePinger is the single liveness primitive exposed by the storage
// connection manager.
type DatabasePinger interface {
	IsHealthy(ctx context.Context) bool
}

// NewDatabaseProbe delegates to the store's round-trip check. Latency reported
// for this probe is the round-trip time of that call.
func NewDatabaseProbe(store DatabasePinger) Probe {
	return NewProbeFunc("database", func(ctx context.Context) error {
		if store == nil {
			return errors.New("store not configured")
		}
		if !store.IsHealthy(ctx) {
			return errors.New("database ping failed")
		}
		return nil
	})
}

// NewCacheProbe pings Redis. A nil client still yields a deterministic result
// so the aggregate views never drop the cache key callers depend on.
func NewCacheProbe(client *redis.Client) Probe {
	return NewProbeFunc("cache", func(ctx context.Context) error {
		if client == nil {
			return errors.New("cache client not configured")
		}
		return client.Ping(ctx).Err()
	})
}

// NewBrokerProbe dials the first reachable Kafka broker. Registered only when
// brokers are configured; the ingest pipeline that will consume them is not
// built yet.
func NewBrokerProbe(brokers []string) Probe {
	return NewProbeFunc("broker", func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("no brokers configured")
		}
		var lastErr error
		for _, addr := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", addr)
			if err != nil {
				lastErr = err
				continue
			}
			_ = conn.Close()
			return nil
		}
		return lastErr
	})
}
