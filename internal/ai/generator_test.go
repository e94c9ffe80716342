package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"script_ai_server/internal/types"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validAnswer = "<think>easy</think>\n```json\n{\"files\": [{\"name\": \"hello.py\", \"content\": \"print('hello')\"}]}\n```"

// MockChatClient is a mock implementation of the chat-completion client
type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

type waitRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delays = append(w.delays, d)
	if w.err != nil {
		return w.err
	}
	return ctx.Err()
}

func (w *waitRecorder) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.delays)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Model = "test-model"
	return cfg
}

func newMockedGenerator(t *testing.T, cfg Config, client *MockChatClient, waits *waitRecorder) *Generator {
	t.Helper()
	g, err := NewGenerator(cfg, zerolog.Nop(), WithClient(client), WithWaitFunc(waits.wait))
	require.NoError(t, err)
	return g
}

var testRequest = types.GenerationRequest{Description: "print hello", Stack: "python"}

func TestGenerate_SucceedsOnFirstAttempt(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion(validAnswer), nil).Once()
	waits := &waitRecorder{}

	res := newMockedGenerator(t, testConfig(), client, waits).Generate(context.Background(), testRequest)

	require.True(t, res.OK())
	assert.Empty(t, res.Error)
	assert.Equal(t, []types.GeneratedFile{{Name: "hello.py", Content: "print('hello')"}}, res.Files)
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
	assert.Zero(t, waits.count())
}

func TestGenerate_SucceedsOnThirdAttempt(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion("Sure! Here is your script: print('hello')"), nil).Twice()
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion(validAnswer), nil).Once()
	waits := &waitRecorder{}

	res := newMockedGenerator(t, testConfig(), client, waits).Generate(context.Background(), testRequest)

	require.True(t, res.OK())
	assert.Len(t, res.Files, 1)
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, waits.delays)
}

func TestGenerate_AlwaysMalformed(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion("<html>no json here</html>"), nil)
	waits := &waitRecorder{}

	res := newMockedGenerator(t, testConfig(), client, waits).Generate(context.Background(), testRequest)

	assert.False(t, res.OK())
	assert.Equal(t, FailureMessage, res.Error)
	assert.NotNil(t, res.Files)
	assert.Empty(t, res.Files)
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 3)
	assert.Equal(t, 2, waits.count())
}

func TestGenerate_TransportErrorEveryCall(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("dial tcp 127.0.0.1:1234: connect: connection refused"))
	waits := &waitRecorder{}

	res := newMockedGenerator(t, testConfig(), client, waits).Generate(context.Background(), testRequest)

	assert.False(t, res.OK())
	assert.Equal(t, FailureMessage, res.Error)
	assert.Empty(t, res.Files)
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 3)
}

func TestGenerate_ShapeViolationIsRetried(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion(`{"result": "print('hello')"}`), nil).Once()
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion(`{"files": "hello.py"}`), nil).Once()
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion(validAnswer), nil).Once()
	waits := &waitRecorder{}

	res := newMockedGenerator(t, testConfig(), client, waits).Generate(context.Background(), testRequest)

	require.True(t, res.OK())
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 3)
}

func TestGenerate_EmptyChoicesIsRetried(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, nil).Once()
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion(validAnswer), nil).Once()
	waits := &waitRecorder{}

	res := newMockedGenerator(t, testConfig(), client, waits).Generate(context.Background(), testRequest)

	require.True(t, res.OK())
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 2)
	assert.Equal(t, 1, waits.count())
}

func TestGenerate_SingleAttemptNeverWaits(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 1
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion("nope"), nil)
	waits := &waitRecorder{}

	res := newMockedGenerator(t, cfg, client, waits).Generate(context.Background(), testRequest)

	assert.False(t, res.OK())
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
	assert.Zero(t, waits.count())
}

func TestGenerate_RequestParameters(t *testing.T) {
	client := new(MockChatClient)
	var captured openai.ChatCompletionRequest
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(openai.ChatCompletionRequest) }).
		Return(completion(validAnswer), nil).Once()

	cfg := testConfig()
	cfg.MaxTokens = 321
	res := newMockedGenerator(t, cfg, client, &waitRecorder{}).Generate(context.Background(),
		types.GenerationRequest{Description: "list files", Stack: "bash"})
	require.True(t, res.OK())

	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, 321, captured.MaxTokens)
	assert.Greater(t, captured.Temperature, float32(0))
	assert.Less(t, captured.Temperature, float32(1e-30))
	assert.Equal(t, captured.Temperature, captured.TopP)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "RETURN ONLY JSON")
	assert.Equal(t, openai.ChatMessageRoleUser, captured.Messages[1].Role)
	assert.Contains(t, captured.Messages[1].Content, "minimal bash script for 'list files'")
	assert.Contains(t, captured.Messages[1].Content, "STRICTLY NO HTML")
}

func TestGenerate_CanceledContextStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, context.Canceled)
	waits := &waitRecorder{}

	res := newMockedGenerator(t, testConfig(), client, waits).Generate(ctx, testRequest)

	assert.False(t, res.OK())
	assert.Equal(t, FailureMessage, res.Error)
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
	assert.Zero(t, waits.count())
}

func TestGenerate_CanceledDuringWait(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion("not json"), nil)
	waits := &waitRecorder{err: context.Canceled}

	res := newMockedGenerator(t, testConfig(), client, waits).Generate(context.Background(), testRequest)

	assert.False(t, res.OK())
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
	assert.Equal(t, 1, waits.count())
}

func TestGenerate_ConcurrentCallers(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion(validAnswer), nil)
	g := newMockedGenerator(t, testConfig(), client, &waitRecorder{})

	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Generate(context.Background(), testRequest).OK() {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(16), ok.Load())
	client.AssertNumberOfCalls(t, "CreateChatCompletion", 16)
}

func TestGenerate_CustomBackoff(t *testing.T) {
	client := new(MockChatClient)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(completion("bad"), nil)
	waits := &waitRecorder{}

	cfg := testConfig()
	cfg.MaxAttempts = 4
	g, err := NewGenerator(cfg, zerolog.Nop(),
		WithClient(client),
		WithWaitFunc(waits.wait),
		WithBackoff(linearBackoff{step: time.Second}),
	)
	require.NoError(t, err)

	g.Generate(context.Background(), testRequest)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, waits.delays)
}

type linearBackoff struct{ step time.Duration }

func (b linearBackoff) Next(attempt int) time.Duration { return time.Duration(attempt) * b.step }

func TestNewGenerator_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.BaseURL = "" }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"negative delay", func(c *Config) { c.RetryDelay = -time.Second }},
		{"zero tokens", func(c *Config) { c.MaxTokens = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewGenerator(cfg, zerolog.Nop())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

// fakeOpenAIServer speaks enough of the chat-completions wire format for go-openai.
func fakeOpenAIServer(t *testing.T, handle func(call int, body map[string]any) (int, string)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		status, content := handle(int(calls.Add(1)), body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "model crashed", "type": "server_error"}}`))
			return
		}
		resp := completion(content)
		resp.ID = "chatcmpl-test"
		resp.Object = "chat.completion"
		resp.Model = "test-model"
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGenerate_OverHTTP(t *testing.T) {
	srv, calls := fakeOpenAIServer(t, func(call int, body map[string]any) (int, string) {
		assert.Equal(t, "test-model", body["model"])
		assert.EqualValues(t, 500, body["max_tokens"])
		assert.Contains(t, body, "temperature")
		assert.Contains(t, body, "top_p")
		if call == 1 {
			return http.StatusInternalServerError, ""
		}
		return http.StatusOK, validAnswer
	})

	cfg := testConfig()
	cfg.BaseURL = srv.URL + "/v1"
	cfg.APIKey = "test-key"
	cfg.RequestTimeout = 5 * time.Second
	waits := &waitRecorder{}
	g, err := NewGenerator(cfg, zerolog.Nop(), WithWaitFunc(waits.wait))
	require.NoError(t, err)

	res := g.Generate(context.Background(), testRequest)

	require.True(t, res.OK())
	assert.Equal(t, "hello.py", res.Files[0].Name)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, waits.count())
}

func TestGenerate_OverHTTPServerAlwaysFails(t *testing.T) {
	srv, calls := fakeOpenAIServer(t, func(int, map[string]any) (int, string) {
		return http.StatusServiceUnavailable, ""
	})

	cfg := testConfig()
	cfg.BaseURL = srv.URL + "/v1"
	cfg.APIKey = "test-key"
	g, err := NewGenerator(cfg, zerolog.Nop(), WithWaitFunc((&waitRecorder{}).wait))
	require.NoError(t, err)

	res := g.Generate(context.Background(), testRequest)

	assert.False(t, res.OK())
	assert.Equal(t, FailureMessage, res.Error)
	assert.Equal(t, int32(3), calls.Load())
}
