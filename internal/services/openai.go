package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/songsort/internal/shared"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIService implements [Completer] against any OpenAI-compatible chat completions API.
type OpenAIService struct {
	config openai.ClientConfig
	client *http.Client
}

// NewOpenAIService creates a completer for baseURL, defaulting to the public OpenAI API.
func NewOpenAIService(baseURL, apiKey string) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIService{
		config: config,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (s *OpenAIService) Name() string {
	return "OpenAI"
}

// retryAfterRecorder keeps the Retry-After header of the last response,
// which the client's error types do not carry.
type retryAfterRecorder struct {
	client *http.Client
	header string
}

func (r *retryAfterRecorder) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.client.Do(req)
	if resp != nil {
		r.header = resp.Header.Get("Retry-After")
	}
	return resp, err
}

// Complete sends a system and user message and returns the first choice's content.
func (s *OpenAIService) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	recorder := &retryAfterRecorder{client: s.client}
	config := s.config
	config.HTTPClient = recorder
	client := openai.NewClientWithConfig(config)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if in.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: in.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: in.Prompt})

	// a zero temperature is dropped from the request body by omitempty
	temperature := float32(in.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       in.Model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", completionError(ctx, in.Model, recorder.header, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", shared.ErrAPIRequest)
	}

	return resp.Choices[0].Message.Content, nil
}

// completionError maps a go-openai error to the shared error taxonomy.
func completionError(ctx context.Context, model, retryAfter string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var (
		status int
		code   string
		msg    string
		apiErr *openai.APIError
		reqErr *openai.RequestError
		urlErr *url.Error
	)
	switch {
	case errors.As(err, &apiErr):
		status, msg = apiErr.HTTPStatusCode, apiErr.Message
		code, _ = apiErr.Code.(string)
	case errors.As(err, &reqErr):
		status, msg = reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body))
	case errors.As(err, &urlErr):
		return fmt.Errorf("%w: openai request failed: %v", shared.ErrNetwork, err)
	default:
		return fmt.Errorf("%w: openai: %v", shared.ErrAPIRequest, err)
	}

	if len(msg) > 200 {
		msg = msg[:200]
	}

	switch {
	case code == "model_not_found" || status == http.StatusNotFound:
		return fmt.Errorf("%w: %q: %s", shared.ErrInvalidModel, model, msg)
	case code == "insufficient_quota":
		return fmt.Errorf("%w: openai quota exhausted: %s", shared.ErrAPIRequest, msg)
	case code == "invalid_api_key" || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: openai rejected the api key: %s", shared.ErrAuthFailed, msg)
	case status == http.StatusTooManyRequests:
		return &shared.RateLimitError{Service: "openai", RetryAfter: parseRetryAfter(retryAfter, time.Now())}
	case status >= 500:
		return fmt.Errorf("%w: openai returned %d: %s", shared.ErrServiceUnavailable, status, msg)
	default:
		return fmt.Errorf("%w: openai returned %d: %s", shared.ErrAPIRequest, status, msg)
	}
}
