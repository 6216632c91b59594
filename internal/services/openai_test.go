package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/songsort/internal/shared"
	openai "github.com/sashabaranov/go-openai"
)

func TestOpenAIService(t *testing.T) {
	t.Run("Complete", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/chat/completions" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer sk-test" {
				t.Errorf("missing api key header")
			}

			var req openai.ChatCompletionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if req.Model != "gpt-test" || req.Temperature != float32(0.3) {
				t.Errorf("unexpected request %+v", req)
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "classify" {
				t.Errorf("unexpected messages %+v", req.Messages)
			}

			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"songs\":[]}"}}]}`))
		}))
		defer server.Close()

		srv := NewOpenAIService(server.URL+"/v1/", "sk-test")
		got, err := srv.Complete(context.Background(), CompletionRequest{
			Model:       "gpt-test",
			System:      "expert",
			Prompt:      "classify",
			Temperature: 0.3,
		})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if got != `{"songs":[]}` {
			t.Errorf("Complete() = %q", got)
		}
	})

	t.Run("Zero Temperature Is Sent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			temperature, ok := body["temperature"].(float64)
			if !ok || temperature > 1e-6 {
				t.Errorf("expected a near-zero temperature in the body, got %v", body["temperature"])
			}
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
		}))
		defer server.Close()

		if _, err := NewOpenAIService(server.URL, "sk").Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "p"}); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
	})

	t.Run("Rate Limited With Retry-After", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "12")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`))
		}))
		defer server.Close()

		_, err := NewOpenAIService(server.URL, "sk").Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "p"})
		var rle *shared.RateLimitError
		if !errors.As(err, &rle) || rle.RetryAfter != 12*time.Second {
			t.Errorf("expected RateLimitError with 12s retry-after, got %v", err)
		}
	})

	t.Run("Unreachable Server", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		_, err := NewOpenAIService(addr, "sk").Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "p"})
		if !errors.Is(err, shared.ErrNetwork) || !shared.IsRetryable(err) {
			t.Errorf("expected retryable ErrNetwork, got %v", err)
		}
	})

	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "Unknown Model",
			status: http.StatusNotFound,
			body:   `{"error":{"message":"The model does not exist","code":"model_not_found"}}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, shared.ErrInvalidModel) || shared.IsRetryable(err) {
					t.Errorf("expected non-retryable ErrInvalidModel, got %v", err)
				}
			},
		},
		{
			name:   "Bad Key",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Incorrect API key"}}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, shared.ErrAuthFailed) {
					t.Errorf("expected ErrAuthFailed, got %v", err)
				}
			},
		},
		{
			name:   "Rate Limited",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`,
			check: func(t *testing.T, err error) {
				var rle *shared.RateLimitError
				if !errors.As(err, &rle) || rle.Service != "openai" {
					t.Errorf("expected openai RateLimitError, got %v", err)
				}
			},
		},
		{
			name:   "Quota Exhausted",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"quota","code":"insufficient_quota"}}`,
			check: func(t *testing.T, err error) {
				if shared.IsRetryable(err) {
					t.Errorf("quota exhaustion should not be retried: %v", err)
				}
			},
		},
		{
			name:   "Server Error",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, shared.ErrServiceUnavailable) || !shared.IsRetryable(err) {
					t.Errorf("expected retryable ErrServiceUnavailable, got %v", err)
				}
			},
		},
		{
			name:   "No Choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, shared.ErrAPIRequest) {
					t.Errorf("expected ErrAPIRequest, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewOpenAIService(server.URL, "sk").Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "p"})
			tt.check(t, err)
		})
	}
}
