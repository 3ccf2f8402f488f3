package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexchuang650730/aicore0624-sub006/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type processorFunc func(ctx context.Context, text string) (*pipeline.FinalAnswer, error)

func (f processorFunc) Process(ctx context.Context, text string) (*pipeline.FinalAnswer, error) {
	return f(ctx, text)
}

func answerFor(text string) *pipeline.FinalAnswer {
	return &pipeline.FinalAnswer{
		Text:      "【Technology Expert】\n" + text,
		ExpertIDs: []string{"tech"},
		PathTaken: "fast",
		Duration:  1500 * time.Millisecond,
	}
}

func TestParseWorkRequest(t *testing.T) {
	req, err := parseWorkRequest(map[string]interface{}{
		"data": `{"request_id": "r-1", "text": "OCR accuracy?"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "r-1", req.RequestID)
	assert.Equal(t, "OCR accuracy?", req.Text)

	_, err = parseWorkRequest(map[string]interface{}{})
	assert.Error(t, err)

	_, err = parseWorkRequest(map[string]interface{}{"data": "{not json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestNewResultEvent(t *testing.T) {
	answer := answerFor("hello")
	answer.Failed = []string{"data"}

	event := newResultEvent(&WorkRequest{RequestID: "r-2", Text: "hello"}, answer)
	assert.Equal(t, "r-2", event.RequestID)
	assert.Equal(t, answer.Text, event.Result)
	assert.Equal(t, 1, event.ExpertCount)
	assert.Equal(t, []string{"data"}, event.FailedExperts)
	assert.InDelta(t, 1.5, event.ProcessingTime, 0.0001)
	assert.False(t, event.Timestamp.IsZero())
}

func newTestServer(p Processor) *HTTPServer {
	return NewHTTPServer(0, nil, p, nil, zap.NewNop())
}

func postProcess(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleProcess(t *testing.T) {
	var got string
	srv := newTestServer(processorFunc(func(_ context.Context, text string) (*pipeline.FinalAnswer, error) {
		got = text
		return answerFor(text), nil
	}))

	rec := postProcess(t, srv.Handler(), `{"request": "How do we automate OCR?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "How do we automate OCR?", got)

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"tech"}, resp.ExpertsUsed)
	assert.Equal(t, 1, resp.ExpertCount)
	assert.Contains(t, resp.Result, "【Technology Expert】")
}

func TestHandleProcessRejects(t *testing.T) {
	srv := newTestServer(processorFunc(func(context.Context, string) (*pipeline.FinalAnswer, error) {
		t.Fatal("processor must not be called")
		return nil, nil
	}))
	h := srv.Handler()

	assert.Equal(t, http.StatusBadRequest, postProcess(t, h, `{`).Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleProcessAcceptsEmptyRequest(t *testing.T) {
	called := false
	srv := newTestServer(processorFunc(func(_ context.Context, text string) (*pipeline.FinalAnswer, error) {
		called = true
		assert.Empty(t, text)
		return answerFor(text), nil
	}))

	for _, body := range []string{`{"request": ""}`, `{}`} {
		called = false
		rec := postProcess(t, srv.Handler(), body)
		assert.Equal(t, http.StatusOK, rec.Code, body)
		assert.True(t, called, body)
	}
}

func TestHandleProcessErrors(t *testing.T) {
	tests := []struct {
		name   string
		answer *pipeline.FinalAnswer
		err    error
		want   int
	}{
		{name: "all experts failed", answer: answerFor("x"), err: pipeline.ErrAllExpertsFailed, want: http.StatusBadGateway},
		{name: "timeout", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "internal", err: errors.New("render failed"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(processorFunc(func(context.Context, string) (*pipeline.FinalAnswer, error) {
				return tt.answer, tt.err
			}))
			rec := postProcess(t, srv.Handler(), `{"request": "hi"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHealthWithoutRedis(t *testing.T) {
	h := newTestServer(nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "disabled", resp.Checks["redis"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "expert_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	h := NewHTTPServer(0, nil, nil, reg, zap.NewNop()).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "expert_test_total 1")
}
