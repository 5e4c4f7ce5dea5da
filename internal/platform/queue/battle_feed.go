package queue

import (
	"context"
	"encoding/json"
	"log"

	"code_clash/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// BattleFeed publishes battle snapshots over Redis pub/sub after every
// successful lifecycle transition, so arena sessions learn about a join or
// an end without waiting for their next poll. Polling remains the fallback;
// the feed is a latency optimization, not a correctness boundary.
type BattleFeed struct {
	rdb    *redis.Client
	prefix string
}

func NewBattleFeed(rdb *redis.Client, prefix string) *BattleFeed {
	return &BattleFeed{rdb: rdb, prefix: prefix}
}

func (f *BattleFeed) channel(battleID string) string {
	return f.prefix + ":" + battleID
}

// Publish broadcasts a battle snapshot. Failures are logged and swallowed:
// the authoritative state is already committed in Postgres and subscribers
// will pick it up on their next refresh.
func (f *BattleFeed) Publish(ctx context.Context, battle *model.Battle) {
	payload, err := json.Marshal(battle)
	if err != nil {
		log.Printf("WARN: failed to marshal battle %s snapshot: %v", battle.ID, err)
		return
	}
	if err := f.rdb.Publish(ctx, f.channel(battle.ID), payload).Err(); err != nil {
		log.Printf("WARN: failed to publish battle %s snapshot: %v", battle.ID, err)
	}
}

// Subscribe returns a channel of battle snapshots for one battle. The
// channel closes when ctx is cancelled. Malformed messages are dropped.
func (f *BattleFeed) Subscribe(ctx context.Context, battleID string) <-chan model.Battle {
	sub := f.rdb.Subscribe(ctx, f.channel(battleID))
	out := make(chan model.Battle, 8)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var battle model.Battle
				if err := json.Unmarshal([]byte(msg.Payload), &battle); err != nil {
					log.Printf("WARN: dropping malformed battle snapshot on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- battle:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
