package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexchuang650730/aicore0624-sub006/internal/config"
	"github.com/alexchuang650730/aicore0624-sub006/internal/pipeline"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type streamEntry struct {
	stream string
	data   string
}

// fakeStream serves pending entries for history reads and fresh entries for
// ">" reads, blocking until canceled once fresh entries run out.
type fakeStream struct {
	mu      sync.Mutex
	pending []redis.XMessage
	fresh   []redis.XMessage
	reads   []string
	added   []streamEntry
	acked   []string
	claims  int
}

func (f *fakeStream) XGroupCreateMkStream(context.Context, string, string, string) *redis.StatusCmd {
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStream) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	stream, id := a.Streams[0], a.Streams[1]

	f.mu.Lock()
	f.reads = append(f.reads, id)
	var msgs []redis.XMessage
	if id == ">" {
		if len(f.fresh) > 0 {
			msgs, f.fresh = f.fresh[:1], f.fresh[1:]
		}
	} else {
		for _, m := range f.pending {
			if m.ID > id {
				msgs = []redis.XMessage{m}
				break
			}
		}
	}
	f.mu.Unlock()

	if id == ">" && len(msgs) == 0 {
		<-ctx.Done()
		return redis.NewXStreamSliceCmdResult(nil, ctx.Err())
	}
	return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: stream, Messages: msgs}}, nil)
}

func (f *fakeStream) XAutoClaim(ctx context.Context, _ *redis.XAutoClaimArgs) *redis.XAutoClaimCmd {
	f.mu.Lock()
	f.claims++
	f.mu.Unlock()

	cmd := redis.NewXAutoClaimCmd(ctx)
	cmd.SetVal(nil, "0-0")
	return cmd
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	values := a.Values.(map[string]interface{})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, streamEntry{stream: a.Stream, data: values["data"].(string)})
	return redis.NewStringResult("100-0", nil)
}

func (f *fakeStream) XAck(_ context.Context, _, _ string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStream) snapshot() (added []streamEntry, acked []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]streamEntry(nil), f.added...), append([]string(nil), f.acked...)
}

func requestMessage(id, requestID, text string) redis.XMessage {
	data, _ := json.Marshal(WorkRequest{RequestID: requestID, Text: text})
	return redis.XMessage{ID: id, Values: map[string]interface{}{"data": string(data)}}
}

func testWorkerConfig() *config.Config {
	return &config.Config{
		WorkerID:      "worker-1",
		StreamKey:     "experts.requests",
		ConsumerGroup: "expert-workers",
		ResultStream:  "experts.answered",
		BlockTime:     time.Second,
		ClaimMinIdle:  time.Minute,
	}
}

func newTestWorker(fs *fakeStream, p Processor) *Worker {
	return NewWorker(testWorkerConfig(), fs, p, zap.NewNop())
}

func echoProcessor() Processor {
	return processorFunc(func(_ context.Context, text string) (*pipeline.FinalAnswer, error) {
		return answerFor(text), nil
	})
}

func TestHandleMessagePublishesAnswer(t *testing.T) {
	fs := &fakeStream{}
	w := newTestWorker(fs, echoProcessor())

	w.handleMessage(requestMessage("1-0", "r-1", "OCR accuracy?"))

	added, acked := fs.snapshot()
	require.Len(t, added, 1)
	assert.Equal(t, "experts.answered", added[0].stream)

	var event ResultEvent
	require.NoError(t, json.Unmarshal([]byte(added[0].data), &event))
	assert.Equal(t, "r-1", event.RequestID)
	assert.Equal(t, []string{"tech"}, event.ExpertsUsed)
	assert.Equal(t, []string{"1-0"}, acked)
}

func TestHandleMessageUsesEntryIDWithoutRequestID(t *testing.T) {
	fs := &fakeStream{}
	w := newTestWorker(fs, echoProcessor())

	w.handleMessage(requestMessage("7-0", "", "hello"))

	added, _ := fs.snapshot()
	require.Len(t, added, 1)
	var event ResultEvent
	require.NoError(t, json.Unmarshal([]byte(added[0].data), &event))
	assert.Equal(t, "7-0", event.RequestID)
}

func TestHandleMessageAcceptsEmptyText(t *testing.T) {
	var got *string
	fs := &fakeStream{}
	w := newTestWorker(fs, processorFunc(func(_ context.Context, text string) (*pipeline.FinalAnswer, error) {
		got = &text
		return answerFor(text), nil
	}))

	w.handleMessage(requestMessage("1-0", "r-1", ""))

	require.NotNil(t, got)
	assert.Empty(t, *got)
	added, acked := fs.snapshot()
	assert.Len(t, added, 1)
	assert.Equal(t, []string{"1-0"}, acked)
}

func TestHandleMessagePublishesError(t *testing.T) {
	fs := &fakeStream{}
	w := newTestWorker(fs, processorFunc(func(context.Context, string) (*pipeline.FinalAnswer, error) {
		return nil, errors.New("render failed")
	}))

	w.handleMessage(requestMessage("2-0", "r-2", "hi"))

	added, acked := fs.snapshot()
	require.Len(t, added, 1)
	assert.Equal(t, "experts.answered.errors", added[0].stream)

	var event ErrorEvent
	require.NoError(t, json.Unmarshal([]byte(added[0].data), &event))
	assert.Equal(t, "r-2", event.RequestID)
	assert.Equal(t, "render failed", event.Error)
	assert.Equal(t, []string{"2-0"}, acked)
}

func TestHandleMessageAllFailedIsAnAnswer(t *testing.T) {
	fs := &fakeStream{}
	w := newTestWorker(fs, processorFunc(func(_ context.Context, text string) (*pipeline.FinalAnswer, error) {
		answer := answerFor(text)
		answer.Failed = answer.ExpertIDs
		return answer, pipeline.ErrAllExpertsFailed
	}))

	w.handleMessage(requestMessage("3-0", "r-3", "hi"))

	added, acked := fs.snapshot()
	require.Len(t, added, 1)
	assert.Equal(t, "experts.answered", added[0].stream)
	assert.Equal(t, []string{"3-0"}, acked)
}

func TestHandleMessageAcksMalformedEntry(t *testing.T) {
	fs := &fakeStream{}
	w := newTestWorker(fs, processorFunc(func(context.Context, string) (*pipeline.FinalAnswer, error) {
		t.Fatal("processor must not be called")
		return nil, nil
	}))

	w.handleMessage(redis.XMessage{ID: "4-0", Values: map[string]interface{}{"data": "{"}})

	added, acked := fs.snapshot()
	assert.Empty(t, added)
	assert.Equal(t, []string{"4-0"}, acked)
}

func TestHandleMessageLeavesInterruptedPending(t *testing.T) {
	fs := &fakeStream{}
	var w *Worker
	w = newTestWorker(fs, processorFunc(func(ctx context.Context, _ string) (*pipeline.FinalAnswer, error) {
		w.procCancel()
		return nil, ctx.Err()
	}))

	w.handleMessage(requestMessage("5-0", "r-5", "hi"))

	added, acked := fs.snapshot()
	assert.Empty(t, added)
	assert.Empty(t, acked)
}

func TestWorkerReplaysPendingBeforeNewMessages(t *testing.T) {
	fs := &fakeStream{
		pending: []redis.XMessage{requestMessage("1-0", "old", "pending request")},
		fresh:   []redis.XMessage{requestMessage("2-0", "new", "fresh request")},
	}
	w := newTestWorker(fs, echoProcessor())
	require.NoError(t, w.Start())

	require.Eventually(t, func() bool {
		_, acked := fs.snapshot()
		return len(acked) == 2
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	_, acked := fs.snapshot()
	assert.Equal(t, []string{"1-0", "2-0"}, acked)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, 1, fs.claims)
	require.GreaterOrEqual(t, len(fs.reads), 3)
	assert.Equal(t, []string{"0", "1-0", ">"}, fs.reads[:3])
}

func TestWorkerStopWaitsForInFlightRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var procErr error

	fs := &fakeStream{fresh: []redis.XMessage{requestMessage("1-0", "r-1", "slow request")}}
	w := newTestWorker(fs, processorFunc(func(ctx context.Context, text string) (*pipeline.FinalAnswer, error) {
		close(started)
		<-release
		procErr = ctx.Err()
		return answerFor(text), nil
	}))
	require.NoError(t, w.Start())
	<-started

	stopErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stopErr <- w.Stop(ctx)
	}()

	select {
	case err := <-stopErr:
		t.Fatalf("Stop returned before the request finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopErr)
	assert.NoError(t, procErr)

	added, acked := fs.snapshot()
	assert.Len(t, added, 1)
	assert.Equal(t, []string{"1-0"}, acked)
}

func TestWorkerStopDeadlineCancelsInFlightRequest(t *testing.T) {
	started := make(chan struct{})

	fs := &fakeStream{fresh: []redis.XMessage{requestMessage("1-0", "r-1", "stuck request")}}
	w := newTestWorker(fs, processorFunc(func(ctx context.Context, _ string) (*pipeline.FinalAnswer, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	require.NoError(t, w.Start())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := w.Stop(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	added, acked := fs.snapshot()
	assert.Empty(t, added)
	assert.Empty(t, acked, "interrupted message stays pending")
}
