package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benmeehan/attendance-agent/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps attendance history as a Redis list of JSON records.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to redis with short timeouts.
func NewRedisStore(addr, key string) *RedisStore {
	if key == "" {
		key = "attendance:records"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisStore{client: client, key: key}
}

// Ping verifies redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// RecordAttendance appends the record to the list.
func (r *RedisStore) RecordAttendance(ctx context.Context, record models.AttendanceRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize attendance record: %w", err)
	}
	return r.client.RPush(ctx, r.key, payload).Err()
}

// ListAttendance reads the whole list and filters it client-side.
func (r *RedisStore) ListAttendance(ctx context.Context, filter Filter) ([]models.AttendanceRecord, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.AttendanceRecord, 0, len(raw))
	for _, item := range raw {
		var rec models.AttendanceRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode attendance record: %w", err)
		}
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Close closes the redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
