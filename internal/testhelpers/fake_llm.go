package testhelpers

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
)

// FakeLLM is a scripted llm.Provider. Respond picks the reply for a request; without it
// every Generate call fails.
type FakeLLM struct {
	Respond func(req llm.Request) (string, error)
	// Dims is the size of vectors returned by Embed, 8 by default.
	Dims     int
	EmbedErr error

	mu       sync.Mutex
	requests []llm.Request
}

func (f *FakeLLM) Name() string { return "fake" }

func (f *FakeLLM) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Respond == nil {
		return nil, errors.New("fake llm: no response scripted")
	}
	text, err := f.Respond(req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Text: text, Model: "fake-model", Provider: "fake"}, nil
}

// Embed hashes each word into a bucket, so texts sharing words point the same way.
func (f *FakeLLM) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.EmbedErr != nil {
		return nil, f.EmbedErr
	}
	dims := f.Dims
	if dims == 0 {
		dims = 8
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dims)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%uint32(dims)]++
		}
		out[i] = vec
	}
	return out, nil
}

// Requests returns a copy of every Generate request seen so far.
func (f *FakeLLM) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

// ReplyWith answers every request with text.
func ReplyWith(text string) func(llm.Request) (string, error) {
	return func(llm.Request) (string, error) { return text, nil }
}
