package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestDetectProvider(t *testing.T) {
	cases := map[string]string{
		"https://api.openai.com/v1":                            "openai",
		"https://api.groq.com/openai/v1":                       "groq",
		"http://localhost:11434/v1":                            "ollama",
		"https://generativelanguage.googleapis.com/v1beta":     "google",
		"https://my-proxy.example.com/v1":                      "openai",
	}
	for baseURL, want := range cases {
		if got := detectProvider(baseURL); got != want {
			t.Errorf("detectProvider(%q) = %q, want %q", baseURL, got, want)
		}
	}
}

func TestInvokeChatCompletions(t *testing.T) {
	t.Run("returns trimmed reply text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var req chatRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
				t.Errorf("expected system+user messages, got %+v", req.Messages)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]string{"content": "  hello there \n"}},
				},
			})
		}))
		defer srv.Close()

		c := New(Options{BaseURL: srv.URL, Model: "test-model"}, testLogger())
		got, err := c.Invoke(context.Background(), "system", "user")
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		if got != "hello there" {
			t.Errorf("expected trimmed reply, got %q", got)
		}
	})

	t.Run("non-200 status is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := New(Options{BaseURL: srv.URL}, testLogger())
		_, err := c.Invoke(context.Background(), "s", "u")
		if !errors.Is(err, ErrTransport) {
			t.Errorf("expected ErrTransport, got %v", err)
		}
	})

	t.Run("slow provider hits the deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		c := New(Options{BaseURL: srv.URL, Timeout: 30 * time.Millisecond}, testLogger())
		_, err := c.Invoke(context.Background(), "s", "u")
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("empty choices is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}))
		defer srv.Close()

		c := New(Options{BaseURL: srv.URL}, testLogger())
		_, err := c.Invoke(context.Background(), "s", "u")
		if !errors.Is(err, ErrTransport) {
			t.Errorf("expected ErrTransport, got %v", err)
		}
	})
}

func TestInvokeGemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			t.Error("expected api key in query")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "gemini says hi"}}}},
			},
		})
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "secret", Model: "gemini-2.0-flash-lite"}, testLogger())
	// Force the Gemini path; httptest URLs do not look like Google's.
	c.provider = "google"

	got, err := c.Invoke(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if got != "gemini says hi" {
		t.Errorf("unexpected reply %q", got)
	}
}
