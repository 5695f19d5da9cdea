package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

type fakeCompleter struct {
	resp  openai.ChatCompletionResponse
	err   error
	delay time.Duration
	last  openai.ChatCompletionRequest
	calls int
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.last = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		}
	}
	return f.resp, f.err
}

func answer(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}}},
	}
}

func TestRespond_NoKeyIsDeterministic(t *testing.T) {
	r := NewResponder(Config{}, zerolog.Nop())
	if r.Delegating() {
		t.Fatal("expected no delegation without api key")
	}

	first := r.Respond(context.Background(), "Hello", nil)
	second := r.Respond(context.Background(), "Hello", nil)
	if first != second {
		t.Errorf("expected identical replies, got %+v and %+v", first, second)
	}
	if !strings.Contains(first.Reply, "Hello") {
		t.Errorf("expected reply to contain the message, got %q", first.Reply)
	}
	if first.Reply != "[Demo Gemini] You said: Hello" {
		t.Errorf("unexpected reply %q", first.Reply)
	}
	if first.Model != DefaultModel {
		t.Errorf("expected default model, got %q", first.Model)
	}
}

func TestRespond_ConfiguredModel(t *testing.T) {
	r := NewResponder(Config{Model: "gemini-2.0-pro"}, zerolog.Nop())
	if got := r.Respond(context.Background(), "hi", nil).Model; got != "gemini-2.0-pro" {
		t.Errorf("expected configured model, got %q", got)
	}
}

func TestRespond_BlankMessage(t *testing.T) {
	fake := &fakeCompleter{resp: answer("should not be used")}
	r := NewResponder(Config{}, zerolog.Nop())
	r.client = fake

	got := r.Respond(context.Background(), "   ", nil)
	if got.Reply != "Please provide a message so I can help." {
		t.Errorf("unexpected reply %q", got.Reply)
	}
	if fake.calls != 0 {
		t.Errorf("expected no delegation for blank message, got %d calls", fake.calls)
	}
}

func TestRespond_Delegates(t *testing.T) {
	fake := &fakeCompleter{resp: answer("  Drink water.  ")}
	r := NewResponder(Config{Model: "gemini-1.5-flash"}, zerolog.Nop())
	r.client = fake

	got := r.Respond(context.Background(), "I feel thirsty", map[string]interface{}{"patient_id": "p-1"})
	if got.Reply != "Drink water." {
		t.Errorf("expected delegated reply, got %q", got.Reply)
	}
	if fake.calls != 1 {
		t.Errorf("expected one call, got %d", fake.calls)
	}
	if fake.last.Model != "gemini-1.5-flash" {
		t.Errorf("expected model in request, got %q", fake.last.Model)
	}
	msgs := fake.last.Messages
	if len(msgs) != 3 {
		t.Fatalf("expected system, context and user messages, got %d", len(msgs))
	}
	if !strings.Contains(msgs[1].Content, `"patient_id":"p-1"`) {
		t.Errorf("expected context in system message, got %q", msgs[1].Content)
	}
	if msgs[2].Role != openai.ChatMessageRoleUser || msgs[2].Content != "I feel thirsty" {
		t.Errorf("unexpected user message: %+v", msgs[2])
	}
}

func TestRespond_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeCompleter
	}{
		{"error", &fakeCompleter{err: errors.New("503 from upstream")}},
		{"no choices", &fakeCompleter{resp: openai.ChatCompletionResponse{}}},
		{"empty content", &fakeCompleter{resp: answer("   ")}},
		{"timeout", &fakeCompleter{resp: answer("late"), delay: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResponder(Config{Timeout: 20 * time.Millisecond}, zerolog.Nop())
			r.client = tt.fake

			got := r.Respond(context.Background(), "Hello", nil)
			if got.Reply != FallbackReply("Hello") {
				t.Errorf("expected fallback reply, got %q", got.Reply)
			}
			if got.Model != DefaultModel {
				t.Errorf("expected default model, got %q", got.Model)
			}
			if tt.fake.calls != 1 {
				t.Errorf("expected a single attempt, got %d", tt.fake.calls)
			}
		})
	}
}

func TestRespond_OpenAICompatibleServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(answer("echo: " + req.Messages[len(req.Messages)-1].Content))
	}))
	defer srv.Close()

	r := NewResponder(Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: 2 * time.Second}, zerolog.Nop())
	got := r.Respond(context.Background(), "ping", nil)
	if got.Reply != "echo: ping" {
		t.Errorf("expected server reply, got %q", got.Reply)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 request, got %d", hits.Load())
	}
}

func TestRespond_ServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	r := NewResponder(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 2 * time.Second}, zerolog.Nop())
	if got := r.Respond(context.Background(), "Hello", nil); got.Reply != "[Demo Gemini] You said: Hello" {
		t.Errorf("expected fallback reply, got %q", got.Reply)
	}
}
