package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harishm17/study-buddy-sub001/internal/config"
	"github.com/harishm17/study-buddy-sub001/internal/llm"
)

func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&Config{
		APIKey:         "test",
		Model:          "big",
		MiniModel:      "small",
		EmbeddingModel: "emb",
		Dimensions:     3,
		BaseURL:        server.URL + "/v1",
	})
}

func TestGenerate(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "small" {
			t.Errorf("expected mini model, got %v", body["model"])
		}
		if rf, ok := body["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
			t.Errorf("expected json response format, got %v", body["response_format"])
		}
		msgs := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("expected system and user messages, got %d", len(msgs))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": `{"ok":true}`}}},
		})
	})

	resp, err := client.Generate(context.Background(), llm.Request{System: "sys", Prompt: "p", UseMini: true, JSON: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != `{"ok":true}` || resp.Model != "small" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGenerateErrors(t *testing.T) {
	cases := map[int]string{
		http.StatusUnauthorized:        llm.ErrCodeAPIKey,
		http.StatusTooManyRequests:     llm.ErrCodeRateLimit,
		http.StatusInternalServerError: llm.ErrCodeServiceDown,
	}
	for status, code := range cases {
		status := status
		client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "nope", "type": "x"}})
		})
		_, err := client.Generate(context.Background(), llm.Request{Prompt: "p"})
		if llm.ErrorCode(err) != code {
			t.Fatalf("status %d: expected %s, got %v", status, code, err)
		}
	}
}

func TestEmbedOrdersByIndex(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1, 0}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0, 0}},
			},
		})
	})

	out, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(out) != 2 || out[0][0] != 1 || out[1][1] != 1 {
		t.Fatalf("unexpected embeddings %v", out)
	}
}

func TestNewConfigDefaults(t *testing.T) {
	c, err := NewConfig(&config.Config{OpenAI: config.OpenAIConfig{APIKey: "k"}})
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if c.Model == "" || c.MiniModel == "" || c.EmbeddingModel != "text-embedding-3-small" {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if _, err := NewConfig(&config.Config{}); err == nil {
		t.Fatal("expected missing key error")
	}
}
