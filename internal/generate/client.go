package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/jotdown/jotdown/internal/log"
	"github.com/jotdown/jotdown/internal/note"
)

// ErrNoAPIKey means generation is not configured. It is checked on every
// call before any network traffic, so the failure is immediate, names the
// fix, and lands on the requesting session instead of blocking startup.
var ErrNoAPIKey = errors.New("GEMINI_API_KEY is not set")

// Citation is one source link the model attributed its answer to.
type Citation struct {
	URI   string
	Title string
}

// Request is one generation call.
type Request struct {
	// Parts form the current user message: text runs and inline media in
	// document order.
	Parts []*ai.Part

	// History carries prior conversation turns, oldest first. Only the
	// conversation mode sets it.
	History []note.Turn

	// Mode selects the system prompt, model and temperature.
	Mode note.Mode
}

// Result is the model's reply.
type Result struct {
	Text      string
	Citations []Citation
}

// Client produces text from a multimodal payload. The orchestrator depends
// on this interface; tests inject scripted implementations.
type Client interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ClientConfig contains all required parameters for the Gemini client.
type ClientConfig struct {
	Genkit *genkit.Genkit

	// APIKey gates Generate. An empty key is a valid configuration: the
	// rest of the application works and only generation calls fail, with
	// ErrNoAPIKey instead of an opaque transport error.
	APIKey string

	// ModelOverrides remaps a mode's default model name.
	ModelOverrides map[note.Mode]string

	// Temperature replaces every mode's default sampling temperature
	// when positive.
	Temperature float32

	// RateLimiter throttles outbound calls; nil installs the default.
	RateLimiter *rate.Limiter

	Logger log.Logger
}

// GeminiClient calls the generative language API through genkit.
type GeminiClient struct {
	g           *genkit.Genkit
	apiKey      string
	models      map[note.Mode]string
	temperature float32
	limiter     *rate.Limiter
	logger      log.Logger
}

// NewGeminiClient validates configuration and builds the client.
func NewGeminiClient(cfg ClientConfig) (*GeminiClient, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}

	rl := cfg.RateLimiter
	if rl == nil {
		// 1 request/sec sustained with a small burst. Interactive note
		// generation never needs more and the default quota tier does
		// not grant much more.
		rl = rate.NewLimiter(1, 3)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GeminiClient{
		g:           cfg.Genkit,
		apiKey:      cfg.APIKey,
		models:      cfg.ModelOverrides,
		temperature: cfg.Temperature,
		limiter:     rl,
		logger:      logger,
	}, nil
}

// Generate sends one request and returns the reply with any source
// attributions. An empty model reply is an error: callers always need text.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Result, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	spec := specFor(req.Mode)
	model := spec.model
	if override := c.models[req.Mode]; override != "" {
		model = override
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	messages := historyMessages(req.History)
	messages = append(messages, ai.NewUserMessage(req.Parts...))

	temperature := spec.temperature
	if c.temperature > 0 {
		temperature = c.temperature
	}
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(model),
		ai.WithSystem(spec.system),
		ai.WithMessages(messages...),
		ai.WithConfig(&genai.GenerateContentConfig{Temperature: &temperature}),
	)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("model returned an empty response")
	}

	c.logger.Debug("generation complete",
		"mode", req.Mode,
		"model", model,
		"response_chars", len(text),
	)
	return &Result{Text: text, Citations: extractCitations(resp)}, nil
}

// historyMessages converts stored turns to model messages. Turns that
// recorded a failure carry no model-visible content and are skipped.
func historyMessages(turns []note.Turn) []*ai.Message {
	if len(turns) == 0 {
		return nil
	}
	msgs := make([]*ai.Message, 0, len(turns))
	for _, turn := range turns {
		if turn.IsError {
			continue
		}
		if turn.Speaker == note.SpeakerAssistant {
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(turn.Text)))
			continue
		}
		msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(turn.Text)))
	}
	return msgs
}

// extractCitations pulls grounding attributions from the raw provider
// response. Best effort: most replies carry none, and a provider response
// of an unexpected shape simply yields no citations.
func extractCitations(resp *ai.ModelResponse) []Citation {
	raw, ok := resp.Custom.(*genai.GenerateContentResponse)
	if !ok || raw == nil {
		return nil
	}

	var citations []Citation
	seen := make(map[string]bool)
	for _, cand := range raw.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			uri := chunk.Web.URI
			if uri == "" || seen[uri] {
				continue
			}
			seen[uri] = true
			citations = append(citations, Citation{URI: uri, Title: chunk.Web.Title})
		}
	}
	return citations
}
