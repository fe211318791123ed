package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediascope/researcher/internal/domain"
)

func TestLocalQueueDeliversMessages(t *testing.T) {
	queue := NewLocalQueue(8, 3, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan domain.SubmissionMessage, 1)
	go func() {
		_ = queue.Consume(ctx, func(_ context.Context, message domain.SubmissionMessage) error {
			received <- message
			return nil
		})
	}()

	message := domain.SubmissionMessage{
		TaskID:      "res_1",
		Query:       "solar power",
		Filters:     domain.SearchFilters{Region: "jp"},
		RequestedAt: time.Now().UTC(),
	}
	require.NoError(t, queue.Enqueue(ctx, message))

	select {
	case got := <-received:
		assert.Equal(t, "res_1", got.TaskID)
		assert.Equal(t, "solar power", got.Query)
		assert.Equal(t, "jp", got.Filters.Region)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not consumed")
	}
}

func TestLocalQueueMovesExhaustedMessagesToDLQ(t *testing.T) {
	queue := NewLocalQueue(8, 2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := make(chan int, 8)
	go func() {
		_ = queue.Consume(ctx, func(_ context.Context, message domain.SubmissionMessage) error {
			attempts <- message.Attempt
			return errors.New("handler rejected")
		})
	}()

	require.NoError(t, queue.Enqueue(ctx, domain.SubmissionMessage{TaskID: "res_1", RequestedAt: time.Now().UTC()}))

	// First attempt fails, one retry fails, then the message lands in the DLQ.
	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-time.After(3 * time.Second):
			t.Fatalf("attempt %d never ran", i+1)
		}
	}

	assert.Eventually(t, func() bool {
		return queue.DLQSize() == 1
	}, 3*time.Second, 20*time.Millisecond)
}
