// Package queue provides a Redis-backed source of run requests. External
// systems push JSON run requests onto a list; the source pops them and hands
// them to a callback.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultQueue is the list new run requests are popped from.
const DefaultQueue = "agentgraph:run-requests"

// RunRequest is the payload external systems push onto the queue.
type RunRequest struct {
	WorkflowID string         `json:"workflowId"`
	Input      map[string]any `json:"input,omitempty"`
}

// Callback receives each popped run request.
type Callback func(ctx context.Context, request RunRequest) error

// Source consumes run requests from a Redis list.
type Source struct {
	queue    string
	client   redis.UniversalClient
	callback Callback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup

	addr     string
	password string
	db       int
}

// NewSource creates a queue source from configuration. Recognized keys:
// "queue", and a "connection" map with "addr", "password" and "db".
func NewSource(config map[string]any, logger *slog.Logger) (*Source, error) {
	queue, _ := config["queue"].(string)
	if queue == "" {
		queue = DefaultQueue
	}

	source := &Source{
		queue:  queue,
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "queue_source",
			"queue", queue,
		),
	}

	connectionConfig, _ := config["connection"].(map[string]any)

	source.addr, _ = connectionConfig["addr"].(string)
	if source.addr == "" {
		source.addr = "localhost:6379"
	}

	source.password, _ = connectionConfig["password"].(string)

	if dbStr, _ := connectionConfig["db"].(string); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid db value: %w", err)
		}

		source.db = db
	}

	return source, nil
}

// Start connects to Redis and begins consuming run requests.
func (s *Source) Start(ctx context.Context, callback Callback) error {
	s.logger.InfoContext(ctx, "Starting queue source")
	s.callback = callback

	s.client = redis.NewClient(&redis.Options{
		Addr:     s.addr,
		Password: s.password,
		DB:       s.db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "Connected to Redis", "addr", s.addr, "db", s.db)

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	s.logger.InfoContext(ctx, "Starting queue consumer")

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := s.processMessage(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, 1*time.Second, s.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var request RunRequest
	if err := json.Unmarshal([]byte(result[1]), &request); err != nil {
		return fmt.Errorf("invalid run request payload: %w", err)
	}

	if request.WorkflowID == "" {
		return errors.New("run request is missing workflowId")
	}

	s.logger.InfoContext(ctx, "Received run request", "workflow_id", request.WorkflowID)

	go func() {
		err := s.callback(ctx, request)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error handling run request", "error", err)
		}
	}()

	return nil
}

// Stop halts consumption and closes the client.
func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping queue source")

	close(s.stopCh)
	s.wg.Wait()

	if s.client != nil {
		err := s.client.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
