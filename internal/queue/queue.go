// Package queue фоновые задачи уведомлений поверх списков Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/logger"
)

// Ключи списков с задачами.
const (
	EmailQueue = "queue:email"
	PushQueue  = "queue:push_notification"
)

// EmailJob письмо для отправки.
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

// PushJob уведомление пользователю.
type PushJob struct {
	UserID uuid.UUID      `json:"user_id"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data,omitempty"`
}

// RedisQueue ставит задачи в списки Redis (LPUSH), Worker забирает их BRPOP.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue создаёт очередь поверх клиента Redis.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// EnqueueEmail ставит письмо в очередь.
func (q *RedisQueue) EnqueueEmail(ctx context.Context, job EmailJob) error {
	return q.push(ctx, EmailQueue, job)
}

// EnqueuePush ставит push-уведомление в очередь.
func (q *RedisQueue) EnqueuePush(ctx context.Context, job PushJob) error {
	return q.push(ctx, PushQueue, job)
}

func (q *RedisQueue) push(ctx context.Context, key string, job any) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal %s: %w", key, err)
	}
	if err := q.client.LPush(ctx, key, string(raw)).Err(); err != nil {
		return fmt.Errorf("queue: lpush %s: %w", key, err)
	}
	return nil
}

// Disabled используется без REDIS_URL: задачи только пишутся в лог.
type Disabled struct{}

func (Disabled) EnqueueEmail(_ context.Context, job EmailJob) error {
	logger.Log.WithField("to", job.To).Debug("queue: redis не настроен, письмо пропущено")
	return nil
}

func (Disabled) EnqueuePush(_ context.Context, job PushJob) error {
	logger.Log.WithField("user_id", job.UserID).Debug("queue: redis не настроен, уведомление пропущено")
	return nil
}
