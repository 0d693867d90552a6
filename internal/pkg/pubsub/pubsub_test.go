package pubsub

import (
	"context"
	"encoding/json"
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

func TestProgressMessage_JSON(t *testing.T) {
	msg := &ProgressMessage{
		Type:      "generation_progress",
		Scope:     ScopeSection,
		UserID:    1,
		RunID:     2,
		CodexID:   3,
		SectionID: 4,
		Status:    "generating",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	// Verify snake_case keys
	var raw map[string]interface{}
	err = json.Unmarshal(data, &raw)
	require.NoError(t, err)

	assert.Contains(t, raw, "user_id")
	assert.Contains(t, raw, "run_id")
	assert.Contains(t, raw, "codex_id")
	assert.Contains(t, raw, "section_id")

	var decoded ProgressMessage
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, msg.UserID, decoded.UserID)
	assert.Equal(t, msg.RunID, decoded.RunID)
	assert.Equal(t, msg.SectionID, decoded.SectionID)
}

func TestProgressMessage_OmitEmpty(t *testing.T) {
	msg := &ProgressMessage{
		Scope:  ScopeRun,
		UserID: 1,
		RunID:  2,
		Status: "completed",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	err = json.Unmarshal(data, &raw)
	require.NoError(t, err)

	_, hasCodex := raw["codex_id"]
	_, hasSection := raw["section_id"]
	_, hasError := raw["error"]
	assert.False(t, hasCodex, "zero codex_id should be omitted")
	assert.False(t, hasSection, "zero section_id should be omitted")
	assert.False(t, hasError, "empty error should be omitted")
}

func TestPublisherSubscriber_RoundTrip(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	publisher := NewPublisher(client)
	subscriber := NewSubscriber(client)

	testCtx, testCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer testCancel()

	received := make(chan *ProgressMessage, 1)

	go func() {
		subscriber.Subscribe(testCtx, func(msg *ProgressMessage) {
			received <- msg
		})
	}()

	// Give subscriber time to connect
	time.Sleep(100 * time.Millisecond)

	msg := &ProgressMessage{
		Scope:     ScopeSection,
		UserID:    123,
		RunID:     456,
		CodexID:   789,
		SectionID: 1011,
		Status:    "completed",
	}

	err := publisher.PublishProgress(testCtx, msg)
	require.NoError(t, err)

	select {
	case receivedMsg := <-received:
		assert.Equal(t, "generation_progress", receivedMsg.Type)
		assert.Equal(t, ScopeSection, receivedMsg.Scope)
		assert.Equal(t, msg.UserID, receivedMsg.UserID)
		assert.Equal(t, msg.RunID, receivedMsg.RunID)
		assert.Equal(t, msg.SectionID, receivedMsg.SectionID)
		assert.Equal(t, "completed", receivedMsg.Status)
	case <-testCtx.Done():
		t.Fatal("Timeout waiting for message")
	}
}

func TestSubscribe_ContextCancel(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	subscriber := NewSubscriber(client)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- subscriber.Subscribe(ctx, func(*ProgressMessage) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not stop after context cancel")
	}
}
