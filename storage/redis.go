package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civicline/civicline-relay/config"
	"github.com/civicline/civicline-relay/contexthelper"
	"github.com/civicline/civicline-relay/model"
)

// RedisRecorder mirrors session transcripts into redis so they outlive the
// process. The in-memory registry stays authoritative; the relay never reads
// back from here.
type RedisRecorder struct {
	cfg               config.RedisServer
	client            *redis.Client
	defaultExpiration time.Duration
}

// NewRedisRecorder returns a recorder that uses redis.
func NewRedisRecorder(cfg config.RedisServer) (*RedisRecorder, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	status := client.Ping(context.Background())
	if status.Err() != nil {
		return nil, status.Err()
	}
	return &RedisRecorder{
		cfg:               cfg,
		client:            client,
		defaultExpiration: time.Hour * 24,
	}, nil
}

func transcriptKey(sessionID string) string {
	return fmt.Sprintf("chat-%s", sessionID)
}

// RecordMessage appends one message to the session's transcript list and
// refreshes its expiration.
func (r *RedisRecorder) RecordMessage(ctx context.Context, sessionID string, msg model.ChatMessage) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	buf, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("fail to marshal message, err: %w", err)
	}
	key := transcriptKey(sessionID)
	if status := r.client.RPush(ctx, key, string(buf)); status.Err() != nil {
		return fmt.Errorf("fail to record message %s, err: %w", key, status.Err())
	}
	if result := r.client.Expire(ctx, key, r.defaultExpiration); result.Err() != nil {
		return fmt.Errorf("fail to set expiration, err: %w", result.Err())
	}
	return nil
}

// RecordTermination drops the transcript of a terminated session.
func (r *RedisRecorder) RecordTermination(ctx context.Context, sessionID string) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	key := transcriptKey(sessionID)
	if status := r.client.Del(ctx, key); status.Err() != nil {
		return fmt.Errorf("fail to delete transcript %s, err: %w", key, status.Err())
	}
	return nil
}

// Close closes the connection to redis.
func (r *RedisRecorder) Close() error {
	return r.client.Close()
}
