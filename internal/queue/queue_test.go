package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePush struct {
	userID uuid.UUID
	event  string
	data   any
	calls  int
}

func (f *fakePush) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	f.userID, f.event, f.data = userID, event, data
	f.calls++
	return nil
}

func TestRedisQueue_EnqueueEmail(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewRedisQueue(db)

	job := EmailJob{To: "admin@example.com", Subject: "New dispute created", Text: "Dispute d1"}
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	mock.ExpectLPush(EmailQueue, string(raw)).SetVal(1)

	assert.NoError(t, q.EnqueueEmail(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_EnqueuePush_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewRedisQueue(db)

	job := PushJob{UserID: uuid.New(), Title: "New dispute", Body: "b"}
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	mock.ExpectLPush(PushQueue, string(raw)).SetErr(errors.New("connection refused"))

	err = q.EnqueuePush(context.Background(), job)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWorker_ProcessOne_Push(t *testing.T) {
	db, mock := redismock.NewClientMock()
	push := &fakePush{}
	w := NewWorker(db, push)
	w.pollTimeout = time.Second

	job := PushJob{UserID: uuid.New(), Title: "Deal funded", Body: "escrowed"}
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	mock.ExpectBRPop(time.Second, EmailQueue, PushQueue).SetVal([]string{PushQueue, string(raw)})

	require.NoError(t, w.ProcessOne(context.Background()))
	assert.Equal(t, 1, push.calls)
	assert.Equal(t, job.UserID, push.userID)
	assert.Equal(t, EventNotification, push.event)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorker_ProcessOne_Email(t *testing.T) {
	db, mock := redismock.NewClientMock()
	push := &fakePush{}
	w := NewWorker(db, push)
	w.pollTimeout = time.Second

	raw, err := json.Marshal(EmailJob{To: "admin@example.com", Subject: "s"})
	require.NoError(t, err)

	mock.ExpectBRPop(time.Second, EmailQueue, PushQueue).SetVal([]string{EmailQueue, string(raw)})

	require.NoError(t, w.ProcessOne(context.Background()))
	assert.Zero(t, push.calls)
}

func TestWorker_ProcessOne_Empty(t *testing.T) {
	db, mock := redismock.NewClientMock()
	w := NewWorker(db, nil)
	w.pollTimeout = time.Second

	mock.ExpectBRPop(time.Second, EmailQueue, PushQueue).SetErr(redis.Nil)

	assert.NoError(t, w.ProcessOne(context.Background()))
}

func TestWorker_ProcessOne_BadPayload(t *testing.T) {
	db, mock := redismock.NewClientMock()
	w := NewWorker(db, nil)
	w.pollTimeout = time.Second

	mock.ExpectBRPop(time.Second, EmailQueue, PushQueue).SetVal([]string{PushQueue, "{not json"})

	assert.Error(t, w.ProcessOne(context.Background()))
}

func TestDisabled_NoError(t *testing.T) {
	var q Disabled
	assert.NoError(t, q.EnqueueEmail(context.Background(), EmailJob{To: "x"}))
	assert.NoError(t, q.EnqueuePush(context.Background(), PushJob{UserID: uuid.New()}))
}
