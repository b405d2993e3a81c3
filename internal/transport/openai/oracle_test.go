package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/itemmatch/internal/domain"
	"github.com/kailas-cloud/itemmatch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterOracleMetrics()
	os.Exit(m.Run())
}

// chatResponse mirrors the OpenAI-compatible chat completion response.
type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func writeChat(w http.ResponseWriter, content string, prompt, total int) {
	resp := chatResponse{ID: "chatcmpl-1", Object: "chat.completion", Model: "test-model"}
	resp.Choices = make([]struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	}, 1)
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = content
	resp.Choices[0].FinishReason = "stop"
	resp.Usage.PromptTokens = prompt
	resp.Usage.CompletionTokens = total - prompt
	resp.Usage.TotalTokens = total

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestOracle(url string, jsonMode bool) *Oracle {
	return NewOracle(&Config{
		APIKey:   "test-key",
		BaseURL:  url,
		Model:    "test-model",
		Provider: "test",
		JSONMode: jsonMode,
		Logger:   zap.NewNop(),
	})
}

func TestOracle_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "test-model" {
			t.Errorf("model = %q", body.Model)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" || body.Messages[0].Content != "compare these" {
			t.Errorf("unexpected messages: %+v", body.Messages)
		}
		if body.ResponseFormat != nil {
			t.Errorf("response_format sent without JSON mode: %+v", body.ResponseFormat)
		}

		writeChat(w, `{"matches":[]}`, 30, 42)
	}))
	defer server.Close()

	got, err := newTestOracle(server.URL, false).Complete(context.Background(), "compare these")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Text != `{"matches":[]}` {
		t.Errorf("Text = %q", got.Text)
	}
	if got.PromptTokens != 30 || got.TotalTokens != 42 {
		t.Errorf("usage = %d/%d, want 30/42", got.PromptTokens, got.TotalTokens)
	}
}

func TestOracle_JSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.ResponseFormat == nil || body.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %+v", body.ResponseFormat)
		}
		writeChat(w, `{"matches":[]}`, 1, 2)
	}))
	defer server.Close()

	if _, err := newTestOracle(server.URL, true).Complete(context.Background(), "x"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}

func TestOracle_RecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeChat(w, "{}", 10, 15)
	}))
	defer server.Close()

	o := NewOracle(&Config{APIKey: "k", BaseURL: server.URL, Model: "metric-model", Provider: "metric", Logger: zap.NewNop()})
	if _, err := o.Complete(context.Background(), "x"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if v := testutil.ToFloat64(metrics.OracleRequestsTotal.WithLabelValues("metric", "metric-model", "success")); v != 1 {
		t.Errorf("requests{success} = %v, want 1", v)
	}
	if v := testutil.ToFloat64(metrics.OracleTokensTotal.WithLabelValues("metric", "metric-model", "total")); v != 15 {
		t.Errorf("tokens{total} = %v, want 15", v)
	}
}

func TestOracle_EmptyChoicesIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestOracle(server.URL, false).Complete(context.Background(), "x")
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestOracle_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "rate limit exceeded",
				"type":    "rate_limit_error",
			},
		})
	}))
	defer server.Close()

	_, err := newTestOracle(server.URL, false).Complete(context.Background(), "x")
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("expected provider message in error, got %v", err)
	}
}

func TestOracle_DetailBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"upstream model offline"}`))
	}))
	defer server.Close()

	_, err := newTestOracle(server.URL, false).Complete(context.Background(), "x")
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestOracle_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestOracle(url, false).Complete(context.Background(), "x")
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestOracle_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestOracle(server.URL, false).Complete(ctx, "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error, got %v", err)
	}
	if errors.Is(err, domain.ErrOracleUnavailable) {
		t.Error("context expiry must not be reported as unavailable")
	}
}

func TestOracle_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"test-model","object":"model"}]}`))
	}))
	defer server.Close()

	if err := newTestOracle(server.URL, false).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}
