// Package testutil provides test doubles shared across packages: a
// deterministic genkit model and a quiet logger.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockModelName is the registry name tests pass as a model override.
const MockModelName = "mock/test-model"

// MockModel provides deterministic generation responses for tests.
// It matches the user message text against registered patterns and returns
// the paired response, recording every call so tests can assert on the
// payload the model actually received.
//
// Thread-safe for concurrent use.
type MockModel struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	calls    []ModelCall
}

type mockRule struct {
	pattern  string // case-insensitive substring of the user text
	response string
}

// ModelCall records one request seen by the mock.
type ModelCall struct {
	UserText   string   // concatenated text parts of the last user message
	System     string   // system prompt, when one was set
	MediaTypes []string // content types of the user message's media parts, in order
	Messages   int      // total messages in the request, history included
	Response   string
}

// NewMockModel creates a mock with the given fallback response. The
// fallback is returned when no pattern matches; an empty fallback makes
// the mock reply with empty text, which exercises empty-response handling.
func NewMockModel(fallback string) *MockModel {
	return &MockModel{fallback: fallback}
}

// AddResponse registers a pattern-response pair. When the user text
// contains the pattern (case-insensitive), the response is returned.
// Patterns are checked in registration order; first match wins.
func (m *MockModel) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// Calls returns a copy of all recorded calls.
func (m *MockModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]ModelCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears recorded calls, keeping the registered responses.
func (m *MockModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// RegisterModel registers the mock under MockModelName and returns the
// model reference. Media support is on: note generation sends images, PDFs
// and audio alongside text.
func (m *MockModel) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Mock Notes Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			SystemRole: true,
			Media:      true,
		},
	}, m.generate)
}

// generate is the genkit model function.
func (m *MockModel) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var (
		userText   string
		system     string
		mediaTypes []string
	)
	for _, msg := range req.Messages {
		if msg.Role == ai.RoleSystem {
			system = msg.Text()
		}
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != ai.RoleUser {
			continue
		}
		var sb strings.Builder
		for _, p := range req.Messages[i].Content {
			switch p.Kind {
			case ai.PartText:
				sb.WriteString(p.Text)
			case ai.PartMedia:
				mediaTypes = append(mediaTypes, p.ContentType)
			}
		}
		userText = sb.String()
		break
	}

	m.mu.Lock()
	responseText := m.fallback
	lower := strings.ToLower(userText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].pattern) {
			responseText = m.rules[i].response
			break
		}
	}
	m.calls = append(m.calls, ModelCall{
		UserText:   userText,
		System:     system,
		MediaTypes: mediaTypes,
		Messages:   len(req.Messages),
		Response:   responseText,
	})
	m.mu.Unlock()

	if cb != nil {
		_ = cb(ctx, &ai.ModelResponseChunk{
			Content: []*ai.Part{ai.NewTextPart(responseText)},
		})
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(responseText)},
		},
	}, nil
}
