package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tbourn/go-vote-backend/internal/config"
)

func fakeCompletions(t *testing.T, status int, content string, gotModel *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if gotModel != nil {
			*gotModel = req.Model
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Generate(t *testing.T) {
	var model string
	srv := fakeCompletions(t, http.StatusOK, "  TITLE: Hi\n\nbody  ", &model)
	g := NewOpenAI(config.AIConfig{BaseURL: srv.URL + "/", APIKey: "k", Model: "m1"})

	out, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "TITLE: Hi\n\nbody" || model != "m1" {
		t.Fatalf("unexpected out=%q model=%q", out, model)
	}
}

func TestOpenAI_EmptyAndErrors(t *testing.T) {
	srv := fakeCompletions(t, http.StatusOK, "   ", nil)
	g := NewOpenAI(config.AIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if _, err := g.Generate(context.Background(), "p"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("want ErrEmptyResponse, got %v", err)
	}

	bad := fakeCompletions(t, http.StatusInternalServerError, "", nil)
	g = NewOpenAI(config.AIConfig{BaseURL: bad.URL, APIKey: "k", Model: "m"})
	if _, err := g.Generate(context.Background(), "p"); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestOpenAI_HonorsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	g := NewOpenAI(config.AIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := g.Generate(ctx, "p"); err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("deadline not honored")
	}
}

func TestNew_PicksImplementation(t *testing.T) {
	if _, ok := New(config.AIConfig{}).(Disabled); !ok {
		t.Fatalf("no api key should yield Disabled")
	}
	if _, ok := New(config.AIConfig{APIKey: "k"}).(*OpenAI); !ok {
		t.Fatalf("api key should yield *OpenAI")
	}
	if _, err := (Disabled{}).Generate(context.Background(), "p"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Disabled should return ErrUnavailable, got %v", err)
	}
}
