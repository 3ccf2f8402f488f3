package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alexchuang650730/aicore0624-sub006/internal/config"
	"github.com/alexchuang650730/aicore0624-sub006/internal/pipeline"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Processor answers one request.
type Processor interface {
	Process(ctx context.Context, text string) (*pipeline.FinalAnswer, error)
}

// StreamClient is the subset of the Redis client the worker uses.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Worker consumes expert requests from a Redis stream
type Worker struct {
	id            string
	config        *config.Config
	redisClient   StreamClient
	processor     Processor
	logger        *zap.Logger
	done          sync.WaitGroup
	streamKey     string
	consumerGroup string
	resultStream  string

	// ctx stops the read loop; procCtx bounds request processing, publishing
	// and acks, and is only canceled once the shutdown deadline passes.
	ctx        context.Context
	cancel     context.CancelFunc
	procCtx    context.Context
	procCancel context.CancelFunc
}

// NewWorker creates a new worker
func NewWorker(
	cfg *config.Config,
	redisClient StreamClient,
	processor Processor,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	procCtx, procCancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		config:        cfg,
		redisClient:   redisClient,
		processor:     processor,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		procCtx:       procCtx,
		procCancel:    procCancel,
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting expert worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
	)

	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	w.done.Add(1)
	go func() {
		defer w.done.Done()
		w.claimStale()
		w.processWork()
	}()

	w.logger.Info("expert worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops reading new requests and lets the in-flight request finish.
// If ctx ends first, the in-flight request is canceled, its message stays
// pending for the next Start, and Stop returns an error.
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("stopping expert worker", zap.String("worker_id", w.id))

	w.cancel()
	defer w.procCancel()

	stopped := make(chan struct{})
	go func() {
		w.done.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		w.logger.Info("expert worker stopped", zap.String("worker_id", w.id))
		return nil
	case <-ctx.Done():
		w.procCancel()
		<-stopped
		return fmt.Errorf("worker did not stop in time: %w", ctx.Err())
	}
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		// BUSYGROUP error means the group already exists, which is fine
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// claimStale moves entries idle longer than CLAIM_MIN_IDLE, typically left by
// a crashed consumer, into this consumer's pending list.
func (w *Worker) claimStale() {
	if w.config.ClaimMinIdle <= 0 {
		return
	}

	start := "0-0"
	claimed := 0
	for w.ctx.Err() == nil {
		messages, next, err := w.redisClient.XAutoClaim(w.ctx, &redis.XAutoClaimArgs{
			Stream:   w.streamKey,
			Group:    w.consumerGroup,
			Consumer: w.id,
			MinIdle:  w.config.ClaimMinIdle,
			Start:    start,
			Count:    50,
		}).Result()
		if err != nil {
			w.logger.Warn("failed to claim stale messages", zap.Error(err))
			return
		}
		claimed += len(messages)
		if next == "" || next == "0-0" {
			break
		}
		start = next
	}

	if claimed > 0 {
		w.logger.Info("claimed stale messages", zap.Int("count", claimed))
	}
}

// processWork processes work from the Redis stream. It first replays this
// consumer's pending entries, then reads new ones.
func (w *Worker) processWork() {
	w.logger.Info("starting work processing loop")

	// cursor walks the pending list; ">" means new messages only.
	cursor := "0"

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("work processing loop stopped")
			return
		default:
		}

		block := w.config.BlockTime
		if cursor != ">" {
			block = -1
		}

		streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
			Group:    w.consumerGroup,
			Consumer: w.id,
			Streams:  []string{w.streamKey, cursor},
			Count:    1,
			Block:    block,
		}).Result()

		if err != nil {
			if w.ctx.Err() != nil {
				continue
			}
			if errors.Is(err, redis.Nil) {
				cursor = ">"
				continue
			}
			w.logger.Error("failed to read from stream",
				zap.Error(err),
			)
			select {
			case <-w.ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		handled := 0
		for _, stream := range streams {
			for _, message := range stream.Messages {
				w.handleMessage(message)
				handled++
				if cursor != ">" {
					cursor = message.ID
				}
			}
		}

		if cursor != ">" && handled == 0 {
			w.logger.Debug("pending messages drained")
			cursor = ">"
		}
	}
}

// handleMessage handles a single expert request message
func (w *Worker) handleMessage(message redis.XMessage) {
	messageID := message.ID
	w.logger.Info("processing expert request",
		zap.String("message_id", messageID),
	)

	request, err := parseWorkRequest(message.Values)
	if err != nil {
		w.logger.Error("failed to parse work request",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.acknowledgeMessage(messageID)
		return
	}
	if request.RequestID == "" {
		request.RequestID = messageID
	}

	answer, err := w.processor.Process(w.procCtx, request.Text)
	switch {
	case err == nil || (errors.Is(err, pipeline.ErrAllExpertsFailed) && answer != nil):
		if pubErr := w.publish(w.resultStream, newResultEvent(request, answer)); pubErr != nil {
			w.logger.Error("failed to publish answer",
				zap.String("request_id", request.RequestID),
				zap.Error(pubErr),
			)
		}
	case w.procCtx.Err() != nil:
		// Left pending; the next Start replays it.
		w.logger.Warn("request interrupted by shutdown",
			zap.String("request_id", request.RequestID),
		)
		return
	default:
		w.logger.Error("failed to process expert request",
			zap.String("message_id", messageID),
			zap.String("request_id", request.RequestID),
			zap.Error(err),
		)
		w.publishError(request, err)
	}

	w.acknowledgeMessage(messageID)
}

// WorkRequest represents an expert work request
type WorkRequest struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

// parseWorkRequest parses a work request from Redis message
func parseWorkRequest(values map[string]interface{}) (*WorkRequest, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var request WorkRequest
	if err := json.Unmarshal([]byte(dataStr), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work request: %w", err)
	}

	return &request, nil
}

// ResultEvent is published for every answered request.
type ResultEvent struct {
	RequestID      string    `json:"request_id"`
	Result         string    `json:"result"`
	ExpertsUsed    []string  `json:"experts_used"`
	ExpertCount    int       `json:"expert_count"`
	FailedExperts  []string  `json:"failed_experts,omitempty"`
	PathTaken      string    `json:"path_taken"`
	ProcessingTime float64   `json:"processing_time"`
	Timestamp      time.Time `json:"timestamp"`
}

func newResultEvent(request *WorkRequest, answer *pipeline.FinalAnswer) ResultEvent {
	return ResultEvent{
		RequestID:      request.RequestID,
		Result:         answer.Text,
		ExpertsUsed:    answer.ExpertIDs,
		ExpertCount:    len(answer.ExpertIDs),
		FailedExperts:  answer.Failed,
		PathTaken:      answer.PathTaken,
		ProcessingTime: answer.Duration.Seconds(),
		Timestamp:      time.Now().UTC(),
	}
}

// ErrorEvent is published when a request could not be answered.
type ErrorEvent struct {
	RequestID string    `json:"request_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// publish writes v as JSON into the data field of a stream entry
func (w *Worker) publish(stream string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = w.redisClient.XAdd(w.procCtx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	return nil
}

// publishError publishes an error event
func (w *Worker) publishError(request *WorkRequest, err error) {
	event := ErrorEvent{
		RequestID: request.RequestID,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}

	// Publish error to a separate stream
	if publishErr := w.publish(w.resultStream+".errors", event); publishErr != nil {
		w.logger.Error("failed to publish error event", zap.Error(publishErr))
	}
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(messageID string) {
	err := w.redisClient.XAck(w.procCtx, w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
