package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const remindersKey = "reminders:due"

// ReminderQueue keeps pending reminders in a sorted set scored by the unix
// time they fall due.
type ReminderQueue struct {
	client *redis.Client
	key    string
}

func NewReminderQueue(client *redis.Client) *ReminderQueue {
	return &ReminderQueue{client: client, key: remindersKey}
}

// ScheduleReminder adds or moves the reminder for an appointment.
func (q *ReminderQueue) ScheduleReminder(ctx context.Context, appointmentID uuid.UUID, remindAt time.Time) error {
	err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(remindAt.Unix()),
		Member: appointmentID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	return nil
}

// popDueScript removes and returns up to ARGV[2] members scored at or below
// ARGV[1], so two workers never receive the same reminder.
var popDueScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
if #ids > 0 then
  redis.call("ZREM", KEYS[1], unpack(ids))
end
return ids
`)

// PopDue claims the reminders due at or before now.
func (q *ReminderQueue) PopDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	res, err := popDueScript.Run(ctx, q.client, []string{q.key},
		strconv.FormatInt(now.Unix(), 10), limit).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("pop due reminders: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(res))
	for _, raw := range res {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Pending returns how many reminders are queued.
func (q *ReminderQueue) Pending(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}
