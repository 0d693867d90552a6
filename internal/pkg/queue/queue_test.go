package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestNewQueue(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue")

	assert.NotNil(t, q)
	assert.Equal(t, "test_queue", q.queueName)
	assert.Equal(t, client, q.client)
}

func TestQueue_Push(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue")
	ctx := context.Background()

	msg := &SectionMessage{
		SectionID: 1,
		CodexID:   10,
		RunID:     100,
		UserID:    5,
	}

	err := q.Push(ctx, msg)
	require.NoError(t, err)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestQueue_PushBatch(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_batch_queue")
	ctx := context.Background()

	t.Run("push multiple messages", func(t *testing.T) {
		msgs := []*SectionMessage{
			{SectionID: 1, CodexID: 1, RunID: 1, UserID: 1},
			{SectionID: 2, CodexID: 1, RunID: 1, UserID: 1},
			{SectionID: 3, CodexID: 1, RunID: 1, UserID: 1},
		}

		err := q.PushBatch(ctx, msgs)
		require.NoError(t, err)

		length, err := q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), length)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		q2 := NewQueue(client, "test_empty_batch")

		err := q2.PushBatch(ctx, nil)
		require.NoError(t, err)

		length, err := q2.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), length)
	})
}

func TestQueue_Pop(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("pop from queue with messages", func(t *testing.T) {
		q := NewQueue(client, "test_pop_queue")

		msg := &SectionMessage{
			SectionID: 42,
			CodexID:   200,
			RunID:     300,
			UserID:    20,
		}

		err := q.Push(ctx, msg)
		require.NoError(t, err)

		result, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, int64(42), result.SectionID)
		assert.Equal(t, int64(200), result.CodexID)
		assert.Equal(t, int64(300), result.RunID)
		assert.Equal(t, int64(20), result.UserID)
	})

	t.Run("pop FIFO order", func(t *testing.T) {
		q := NewQueue(client, "test_fifo_queue")

		for i := 1; i <= 3; i++ {
			msg := &SectionMessage{SectionID: int64(i)}
			err := q.Push(ctx, msg)
			require.NoError(t, err)
		}

		for i := 1; i <= 3; i++ {
			result, err := q.Pop(ctx, time.Second)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, int64(i), result.SectionID)
		}
	})

	t.Run("pop from empty queue times out", func(t *testing.T) {
		q := NewQueue(client, "test_empty_queue")

		result, err := q.Pop(ctx, 10*time.Millisecond)

		// miniredis doesn't support BRPop timeout properly, so check for nil or error
		if err == nil {
			assert.Nil(t, result)
		}
	})
}

func TestQueue_Length(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	q := NewQueue(client, "test_length_ops")

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)

	for i := 0; i < 3; i++ {
		err := q.Push(ctx, &SectionMessage{SectionID: int64(i)})
		require.NoError(t, err)
	}

	length, err = q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)

	_, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)

	length, err = q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)
}
