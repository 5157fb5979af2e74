package alert

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"pricetracker/internal/model"
)

const defaultRedisMaxLen = 1000

// RedisNotifier keeps the latest alerts in a capped list under Key and
// publishes each one on the channel of the same name.
type RedisNotifier struct {
	Client *redis.Client
	Key    string
	MaxLen int64
}

type redisAlert struct {
	URL       string    `json:"url"`
	Direction string    `json:"direction"`
	OldPrice  string    `json:"old_price"`
	NewPrice  string    `json:"new_price"`
	ChangePct string    `json:"change_pct"`
	At        time.Time `json:"at"`
}

func (n *RedisNotifier) Notify(ctx context.Context, ev model.AlertEvent) error {
	b, err := json.Marshal(redisAlert{
		URL:       ev.URL,
		Direction: ev.Direction(),
		OldPrice:  ev.OldPrice,
		NewPrice:  ev.NewPrice,
		ChangePct: ev.Percent,
		At:        ev.At,
	})
	if err != nil {
		return err
	}

	maxLen := n.MaxLen
	if maxLen <= 0 {
		maxLen = defaultRedisMaxLen
	}
	pipe := n.Client.TxPipeline()
	pipe.LPush(ctx, n.Key, b)
	pipe.LTrim(ctx, n.Key, 0, maxLen-1)
	pipe.Publish(ctx, n.Key, b)
	_, err = pipe.Exec(ctx)
	return err
}
