package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/logger"
)

// PushDeliverer доставляет уведомление подключённому пользователю.
type PushDeliverer interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// EventNotification имя события для push-уведомлений в WebSocket.
const EventNotification = "notification"

// Worker обрабатывает задачи из очередей.
type Worker struct {
	client      *redis.Client
	push        PushDeliverer
	pollTimeout time.Duration
}

// NewWorker создаёт обработчик очередей.
func NewWorker(client *redis.Client, push PushDeliverer) *Worker {
	return &Worker{client: client, push: push, pollTimeout: 5 * time.Second}
}

// Run обрабатывает задачи до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	logger.Log.Info("queue: worker запущен")
	for {
		if ctx.Err() != nil {
			logger.Log.Info("queue: worker остановлен")
			return
		}
		if err := w.ProcessOne(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("queue: ошибка обработки задачи")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOne ждёт одну задачу не дольше pollTimeout и обрабатывает её.
// Отсутствие задач не считается ошибкой.
func (w *Worker) ProcessOne(ctx context.Context) error {
	res, err := w.client.BRPop(ctx, w.pollTimeout, EmailQueue, PushQueue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("queue: brpop: %w", err)
	}
	if len(res) != 2 {
		return fmt.Errorf("queue: unexpected brpop reply %v", res)
	}

	key, payload := res[0], res[1]
	switch key {
	case EmailQueue:
		var job EmailJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return fmt.Errorf("queue: decode email job: %w", err)
		}
		return w.sendEmail(job)
	case PushQueue:
		var job PushJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return fmt.Errorf("queue: decode push job: %w", err)
		}
		return w.sendPush(job)
	default:
		return fmt.Errorf("queue: unknown queue %q", key)
	}
}

// sendEmail пишет письмо в лог: почтовый провайдер подключается отдельно.
func (w *Worker) sendEmail(job EmailJob) error {
	logger.Log.WithFields(logrus.Fields{
		"to":      job.To,
		"subject": job.Subject,
	}).Info("queue: отправка письма")
	return nil
}

func (w *Worker) sendPush(job PushJob) error {
	logger.Log.WithFields(logrus.Fields{
		"user_id": job.UserID,
		"title":   job.Title,
	}).Info("queue: отправка уведомления")

	if w.push == nil {
		return nil
	}
	return w.push.BroadcastToUser(job.UserID, EventNotification, job)
}
