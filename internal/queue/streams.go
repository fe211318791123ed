package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediascope/researcher/internal/domain"
)

type StreamsConfig struct {
	Addr        string
	Password    string
	DB          int
	Stream      string
	DLQStream   string
	Group       string
	Consumer    string
	MaxAttempts int
}

// StreamsQueue implements Producer+Consumer backed by Redis Streams.
type StreamsQueue struct {
	client      *redis.Client
	stream      string
	dlqStream   string
	group       string
	consumer    string
	maxAttempts int
}

func NewStreamsQueue(ctx context.Context, cfg StreamsConfig) (*StreamsQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "research_tasks"
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = "research_tasks_dlq"
	}
	if cfg.Group == "" {
		cfg.Group = "research_workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "api-1"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue := &StreamsQueue{
		client:      client,
		stream:      cfg.Stream,
		dlqStream:   cfg.DLQStream,
		group:       cfg.Group,
		consumer:    cfg.Consumer,
		maxAttempts: cfg.MaxAttempts,
	}
	if err := queue.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return queue, nil
}

func (q *StreamsQueue) Close() error {
	return q.client.Close()
}

func (q *StreamsQueue) Enqueue(ctx context.Context, message domain.SubmissionMessage) error {
	values, err := submissionValues(message)
	if err != nil {
		return err
	}
	_, err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue to stream: %w", err)
	}
	return nil
}

func (q *StreamsQueue) Consume(ctx context.Context, handler func(context.Context, domain.SubmissionMessage) error) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, item := range stream.Messages {
				message, parseErr := parseStreamMessage(item)
				if parseErr != nil {
					_ = q.sendToDLQ(ctx, domain.SubmissionMessage{}, item, parseErr.Error())
					_ = q.ackAndDelete(ctx, item.ID)
					continue
				}

				handleErr := handler(ctx, message)
				if handleErr == nil {
					_ = q.ackAndDelete(ctx, item.ID)
					continue
				}

				message.Attempt++
				if message.Attempt >= q.maxAttempts {
					_ = q.sendToDLQ(ctx, message, item, handleErr.Error())
					_ = q.ackAndDelete(ctx, item.ID)
					continue
				}

				if requeueErr := q.Enqueue(ctx, message); requeueErr != nil {
					_ = q.sendToDLQ(ctx, message, item, fmt.Sprintf("requeue failed: %v", requeueErr))
				}
				_ = q.ackAndDelete(ctx, item.ID)
			}
		}
	}
}

func (q *StreamsQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}

func (q *StreamsQueue) ackAndDelete(ctx context.Context, streamID string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, streamID).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	if err := q.client.XDel(ctx, q.stream, streamID).Err(); err != nil {
		return fmt.Errorf("xdel: %w", err)
	}
	return nil
}

func (q *StreamsQueue) sendToDLQ(
	ctx context.Context,
	message domain.SubmissionMessage,
	item redis.XMessage,
	errorMessage string,
) error {
	values, err := submissionValues(message)
	if err != nil {
		values = map[string]any{"task_id": message.TaskID}
	}
	values["stream_id"] = item.ID
	values["error"] = errorMessage
	values["moved_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.dlqStream, Values: values}).Result(); err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}
	return nil
}

func submissionValues(message domain.SubmissionMessage) (map[string]any, error) {
	filters, err := json.Marshal(message.Filters)
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}
	return map[string]any{
		"task_id":      message.TaskID,
		"query":        message.Query,
		"filters":      string(filters),
		"attempt":      message.Attempt,
		"requested_at": message.RequestedAt.Format(time.RFC3339Nano),
		"metadata":     string(message.Metadata),
	}, nil
}

func parseStreamMessage(item redis.XMessage) (domain.SubmissionMessage, error) {
	getString := func(key string) (string, error) {
		value, ok := item.Values[key]
		if !ok {
			return "", fmt.Errorf("missing field %s", key)
		}
		switch casted := value.(type) {
		case string:
			return casted, nil
		case []byte:
			return string(casted), nil
		default:
			return fmt.Sprintf("%v", casted), nil
		}
	}

	taskID, err := getString("task_id")
	if err != nil {
		return domain.SubmissionMessage{}, err
	}
	query, err := getString("query")
	if err != nil {
		return domain.SubmissionMessage{}, err
	}

	filtersString, err := getString("filters")
	if err != nil {
		return domain.SubmissionMessage{}, err
	}
	var filters domain.SearchFilters
	if filtersString != "" {
		if err := json.Unmarshal([]byte(filtersString), &filters); err != nil {
			return domain.SubmissionMessage{}, fmt.Errorf("invalid filters: %w", err)
		}
	}

	attemptString, err := getString("attempt")
	if err != nil {
		return domain.SubmissionMessage{}, err
	}
	attempt, err := strconv.Atoi(attemptString)
	if err != nil {
		return domain.SubmissionMessage{}, fmt.Errorf("invalid attempt: %w", err)
	}

	requestedAtString, err := getString("requested_at")
	if err != nil {
		return domain.SubmissionMessage{}, err
	}
	requestedAt, err := time.Parse(time.RFC3339Nano, requestedAtString)
	if err != nil {
		return domain.SubmissionMessage{}, fmt.Errorf("invalid requested_at: %w", err)
	}

	message := domain.SubmissionMessage{
		TaskID:      taskID,
		Query:       query,
		Filters:     filters,
		Attempt:     attempt,
		RequestedAt: requestedAt,
	}
	if metadata, err := getString("metadata"); err == nil && metadata != "" {
		message.Metadata = json.RawMessage(metadata)
	}
	return message, nil
}
