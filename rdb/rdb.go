package rdb

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/soyart/explorer-web/prefs"
)

// RedisWrapper stores preferences as plain redis strings, so the same values
// can be shared by every host pointed at one redis.
type RedisWrapper interface {
	prefs.Storage

	Ping(context.Context) error
	Close() error
}

type redisWrapper struct {
	db     *redis.Client
	label  string
	logger *zap.Logger
}

func New(redisUrl string, label string, logger *zap.Logger) (RedisWrapper, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisUrl,
	})

	if rdb == nil {
		return nil, errors.New("got nil redis client")
	}

	return &redisWrapper{
		db:     rdb,
		label:  label,
		logger: logger,
	}, nil
}

func prefKey(label, key string) string {
	return label + ":prefs:" + key
}

func (rdw *redisWrapper) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := rdw.db.Get(ctx, prefKey(rdw.label, key)).Result()
	if err != nil {
		// Never set
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "failed to get %s", key)
	}

	return value, true, nil
}

func (rdw *redisWrapper) Set(ctx context.Context, key, value string) error {
	if err := rdw.db.Set(ctx, prefKey(rdw.label, key), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "failed to set %s", key)
	}

	rdw.logger.Debug("saved preference", zap.String("key", key))
	return nil
}

func (rdw *redisWrapper) Ping(ctx context.Context) error {
	if err := rdw.db.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis ping failed")
	}

	return nil
}

func (rdw *redisWrapper) Close() error {
	return rdw.db.Close()
}
