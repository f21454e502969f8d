package cursor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/invest_ledger/utils"
	"github.com/redis/go-redis/v9"
)

const cursorKeyPrefix = "cursor:"

// RedisCursorStore keeps, per symbol, the listing page token where the symbol was last seen.
type RedisCursorStore struct {
	redis *redis.Client
}

func NewRedisCursorStore(redisClient *redis.Client) *RedisCursorStore {
	return &RedisCursorStore{redis: redisClient}
}

// GetCursor returns false when no cursor is stored or redis is unavailable.
func (r *RedisCursorStore) GetCursor(ctx context.Context, symbol string) (string, bool) {
	token, err := r.redis.Get(ctx, cursorKeyPrefix+symbol).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn(
				"can't get pagination cursor",
				slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
				slog.String("symbol", symbol),
				slog.String("err", err.Error()),
			)
		}
		return "", false
	}
	return token, true
}

func (r *RedisCursorStore) UpdateCursor(ctx context.Context, symbol, token string) error {
	return r.redis.Set(ctx, cursorKeyPrefix+symbol, token, 0).Err()
}
