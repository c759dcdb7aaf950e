package rendezvous

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisPollInterval = 100 * time.Millisecond

// Redis backs the rendezvous map with a redis server, for groups spread
// across hosts without a shared filesystem. Keys are namespaced by prefix
// so several groups can share one server.
type Redis struct {
	client      *redis.Client
	prefix      string
	waitTimeout time.Duration
}

func NewRedisStore(addr, prefix string, waitTimeout time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "Unable to connect to redis at %v", addr)
	}

	return &Redis{
		client:      client,
		prefix:      prefix,
		waitTimeout: waitTimeout,
	}, nil
}

func (r *Redis) Set(key string, value []byte) error {
	err := r.client.Set(context.Background(), r.prefix+key, value, 0).Err()
	return errors.WithStack(err)
}

func (r *Redis) Get(key string) ([]byte, error) {
	deadline := time.Now().Add(r.waitTimeout)
	for {
		value, err := r.client.Get(context.Background(), r.prefix+key).Bytes()
		if err == nil {
			return value, nil
		}
		if err != redis.Nil {
			return nil, errors.WithStack(err)
		}
		if !time.Now().Before(deadline) {
			return nil, errors.Errorf(
				"Timeout waiting for rendezvous key: %v.", key)
		}
		time.Sleep(redisPollInterval)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
