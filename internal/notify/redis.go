package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/table-ordering/internal/logger"
)

const StaffCallChannel = "staff-call"

// RedisCalls carries staff calls over Redis Pub/Sub so every instance's
// dashboards hear them.  Calls are ephemeral: nothing is stored and a failed
// publish is not retried.  With a nil client calls go to the local hub only.
type RedisCalls struct {
	hub     *Hub
	rdb     *redis.Client
	channel string
	log     *logger.Logger
}

func NewRedisCalls(hub *Hub, rdb *redis.Client, log *logger.Logger) *RedisCalls {
	if hub == nil {
		panic("notify: NewRedisCalls requires a hub")
	}
	return &RedisCalls{hub: hub, rdb: rdb, channel: StaffCallChannel, log: log}
}

// Call announces that a customer at tableID asked for staff.
func (r *RedisCalls) Call(ctx context.Context, tableID uint64, call StaffCall) error {
	ev := r.hub.Stamp(ctx, Event{Kind: KindStaffCall, TableID: tableID, Call: &call})
	if r.rdb == nil {
		r.hub.Deliver(ev)
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal staff call: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, body).Err(); err != nil {
		r.log.Error("staff_call.publish", "redis publish failed, delivering locally", err, "table_id", tableID)
		r.hub.Deliver(ev)
		return fmt.Errorf("publish staff call: %w", err)
	}
	return nil
}

// Run relays staff calls from Redis into the local hub until ctx is done.
// Our own calls come back through the channel too, which is how the local
// dashboards receive them.
func (r *RedisCalls) Run(ctx context.Context) error {
	if r.rdb == nil {
		<-ctx.Done()
		return nil
	}
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("staff_call.subscribe", "listening for staff calls", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.log.Warn("staff_call.decode", "dropping malformed staff call", "err", err.Error())
				continue
			}
			if ev.Kind != KindStaffCall {
				continue
			}
			r.hub.Deliver(ev)
		}
	}
}
