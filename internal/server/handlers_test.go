package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/semgraph/internal/config"
	"yashubustudio/semgraph/semgraph"
)

type stubAnalyzer struct {
	result semgraph.Result
	err    error
}

func (s stubAnalyzer) Analyze(context.Context, string) (semgraph.Result, error) {
	return s.result, s.err
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestServer(t *testing.T, analyzer Analyzer) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewRouter(config.Default().Server, analyzer, testLogger()))
	t.Cleanup(ts.Close)
	return ts
}

func newPipeline(t *testing.T) Analyzer {
	t.Helper()
	svc, err := semgraph.NewService(semgraph.NewHashEmbedder(128), semgraph.DefaultConfig(), testLogger())
	require.NoError(t, err)
	return svc
}

func postAnalyze(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	res, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&decoded))
	return res, decoded
}

func requestBody(t *testing.T, text string) string {
	t.Helper()
	data, err := json.Marshal(map[string]string{"text": text})
	require.NoError(t, err)
	return string(data)
}

func TestAnalyzeGraph(t *testing.T) {
	ts := newTestServer(t, newPipeline(t))
	text := strings.Join([]string{
		"The museum reopened after a long renovation.",
		"Heavy rain is expected across the coast tonight.",
		"Our team shipped the new billing service today.",
		"She planted tomatoes and basil in the garden.",
		"The orchestra rehearsed the symphony twice.",
	}, "\n")

	res, body := postAnalyze(t, ts, requestBody(t, text))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Len(t, body["nodes"], 5)
	assert.Len(t, body["links"], 4)
}

func TestAnalyzeTooShort(t *testing.T) {
	ts := newTestServer(t, newPipeline(t))

	res, body := postAnalyze(t, ts, requestBody(t, "only one line of text here"))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{"error": "Text too short. Please provide at least 5 lines."}, body)
}

func TestAnalyzeEmptyText(t *testing.T) {
	ts := newTestServer(t, newPipeline(t))

	res, body := postAnalyze(t, ts, `{"text": ""}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, map[string]any{"detail": "Text is empty"}, body)
}

func TestAnalyzeMalformedBody(t *testing.T) {
	ts := newTestServer(t, stubAnalyzer{})

	res, body := postAnalyze(t, ts, `{"text": `)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(t, body, "detail")
}

func TestAnalyzeBodyTooLarge(t *testing.T) {
	cfg := config.Default().Server
	cfg.MaxBodyBytes = 16
	ts := httptest.NewServer(NewRouter(cfg, stubAnalyzer{}, testLogger()))
	defer ts.Close()

	res, _ := postAnalyze(t, ts, requestBody(t, strings.Repeat("x", 64)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
}

func TestAnalyzeInternalError(t *testing.T) {
	ts := newTestServer(t, stubAnalyzer{err: errors.New("model exploded")})

	res, body := postAnalyze(t, ts, requestBody(t, "anything"))
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, map[string]any{"detail": "analysis failed"}, body)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, stubAnalyzer{})

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, stubAnalyzer{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/analyze", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestCreate(t *testing.T) {
	cfg := config.Default().Server
	srv := Create(cfg, stubAnalyzer{}, testLogger())
	assert.Equal(t, "0.0.0.0:8000", srv.Addr)
	assert.NotNil(t, srv.Handler)
}

type blockingAnalyzer struct {
	started chan struct{}
	release chan struct{}
}

func (b blockingAnalyzer) Analyze(ctx context.Context, _ string) (semgraph.Result, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return semgraph.InsufficientInput{Message: "released"}, nil
}

func TestAnalyzeThrottled(t *testing.T) {
	cfg := config.Default().Server
	cfg.MaxConcurrentAnalyses = 1
	cfg.Backlog = 0
	cfg.BacklogTimeout = time.Second
	analyzer := blockingAnalyzer{started: make(chan struct{}, 1), release: make(chan struct{})}
	ts := httptest.NewServer(NewRouter(cfg, analyzer, testLogger()))
	defer ts.Close()

	done := make(chan int, 1)
	go func() {
		res, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader(`{"text":"first"}`))
		if err != nil {
			done <- 0
			return
		}
		res.Body.Close()
		done <- res.StatusCode
	}()
	<-analyzer.started

	res, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader(`{"text":"second"}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)

	close(analyzer.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestAnalyzeTooManyLines(t *testing.T) {
	analysis := semgraph.DefaultConfig()
	analysis.MaxChunks = 5
	svc, err := semgraph.NewService(semgraph.NewHashEmbedder(64), analysis, testLogger())
	require.NoError(t, err)
	ts := newTestServer(t, svc)

	text := strings.Repeat("a line that is long enough\n", 6)
	res, body := postAnalyze(t, ts, requestBody(t, text))
	assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
	assert.Contains(t, body["detail"], "the limit is 5")
}
