package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisSink stores each user's notification feed as a JSON list under a
// per-user key and publishes every new notification on a per-user channel
// for live consumers.
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink connects to Redis using the provided URL and verifies the
// connection before returning.
func NewRedisSink(ctx context.Context, redisURL string) (*RedisSink, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("notify: invalid redis url: %w", err)
	}
	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("notify: redis connection failed: %w", err)
	}

	return &RedisSink{client: client}, nil
}

func feedKey(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

func channelKey(userID string) string {
	return fmt.Sprintf("user:%s:notifications", userID)
}

// Send implements Sink.
func (s *RedisSink) Send(ctx context.Context, userID string, notification Notification) error {
	if userID == "" {
		return nil
	}
	feed, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	feed = append(feed, notification)
	if err := s.store(ctx, userID, feed); err != nil {
		return err
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channelKey(userID), payload).Err()
}

// List implements Sink.
func (s *RedisSink) List(ctx context.Context, userID string) ([]Notification, error) {
	return s.load(ctx, userID)
}

// MarkRead implements Sink.
func (s *RedisSink) MarkRead(ctx context.Context, userID, notificationID string) error {
	feed, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if len(feed) == 0 {
		return nil
	}
	for i := range feed {
		if notificationID == "" || feed[i].ID == notificationID {
			feed[i].Read = true
			if notificationID != "" {
				break
			}
		}
	}
	return s.store(ctx, userID, feed)
}

// Close releases the Redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

func (s *RedisSink) load(ctx context.Context, userID string) ([]Notification, error) {
	raw, err := s.client.Get(ctx, feedKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var feed []Notification
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, err
	}
	return feed, nil
}

func (s *RedisSink) store(ctx context.Context, userID string, feed []Notification) error {
	raw, err := json.Marshal(feed)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, feedKey(userID), raw, 0).Err()
}
