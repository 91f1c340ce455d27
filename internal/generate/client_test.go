package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/jotdown/jotdown/internal/log"
	"github.com/jotdown/jotdown/internal/note"
	"github.com/jotdown/jotdown/internal/testutil"
)

func newMockClient(t *testing.T, mock *testutil.MockModel) *GeminiClient {
	t.Helper()
	g := genkit.Init(context.Background())
	mock.RegisterModel(g)

	overrides := make(map[note.Mode]string, len(modeSpecs))
	for mode := range modeSpecs {
		overrides[mode] = testutil.MockModelName
	}
	client, err := NewGeminiClient(ClientConfig{
		Genkit:         g,
		APIKey:         "test-key",
		ModelOverrides: overrides,
		Logger:         log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewGeminiClient() error = %v", err)
	}
	return client
}

func TestNewGeminiClient_Validation(t *testing.T) {
	t.Run("missing genkit", func(t *testing.T) {
		_, err := NewGeminiClient(ClientConfig{APIKey: "key"})
		if err == nil {
			t.Error("NewGeminiClient() succeeded without a genkit instance")
		}
	})

	t.Run("missing api key fails on call, not construction", func(t *testing.T) {
		g := genkit.Init(context.Background())
		client, err := NewGeminiClient(ClientConfig{Genkit: g, Logger: log.NewNop()})
		if err != nil {
			t.Fatalf("NewGeminiClient() error = %v, want keyless construction to succeed", err)
		}

		_, err = client.Generate(context.Background(), Request{
			Parts: []*ai.Part{ai.NewTextPart("anything")},
			Mode:  note.ModeStructured,
		})
		if !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("Generate() error = %v, want ErrNoAPIKey", err)
		}
	})
}

func TestGeminiClient_Generate(t *testing.T) {
	mock := testutil.NewMockModel("fallback")
	mock.AddResponse("quarterly numbers", "## Q3\n\nrevenue up")
	client := newMockClient(t, mock)

	res, err := client.Generate(context.Background(), Request{
		Parts: []*ai.Part{ai.NewTextPart("organize the quarterly numbers")},
		Mode:  note.ModeStructured,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Text != "## Q3\n\nrevenue up" {
		t.Errorf("Text = %q, want the scripted reply", res.Text)
	}
	if len(res.Citations) != 0 {
		t.Errorf("Citations = %v, want none from the mock", res.Citations)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("mock saw %d calls, want 1", len(calls))
	}
	if !strings.Contains(calls[0].System, "structured notes") {
		t.Errorf("System = %q, want the structured-mode prompt", calls[0].System)
	}
}

func TestGeminiClient_MediaPartsReachModel(t *testing.T) {
	mock := testutil.NewMockModel("transcribed")
	client := newMockClient(t, mock)

	_, err := client.Generate(context.Background(), Request{
		Parts: []*ai.Part{
			ai.NewTextPart("meeting recording"),
			ai.NewMediaPart("audio/mpeg", "data:audio/mpeg;base64,AQID"),
		},
		Mode: note.ModeTranscribe,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("mock saw %d calls, want 1", len(calls))
	}
	if len(calls[0].MediaTypes) != 1 || calls[0].MediaTypes[0] != "audio/mpeg" {
		t.Errorf("MediaTypes = %v, want the audio part", calls[0].MediaTypes)
	}
}

func TestGeminiClient_EmptyReplyIsError(t *testing.T) {
	mock := testutil.NewMockModel("")
	client := newMockClient(t, mock)

	_, err := client.Generate(context.Background(), Request{
		Parts: []*ai.Part{ai.NewTextPart("anything")},
		Mode:  note.ModeStructured,
	})
	if err == nil || !strings.Contains(err.Error(), "empty response") {
		t.Errorf("Generate() error = %v, want empty-response failure", err)
	}
}

func TestGeminiClient_HistoryBecomesMultiturn(t *testing.T) {
	mock := testutil.NewMockModel("answered")
	client := newMockClient(t, mock)

	_, err := client.Generate(context.Background(), Request{
		Parts: []*ai.Part{ai.NewTextPart("follow-up question")},
		History: []note.Turn{
			{Speaker: note.SpeakerUser, Text: "first question"},
			{Speaker: note.SpeakerAssistant, Text: "first answer"},
			{Speaker: note.SpeakerAssistant, Text: "model offline", IsError: true},
		},
		Mode: modeConversation,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("mock saw %d calls, want 1", len(calls))
	}
	// Two history turns survive (the flagged one is dropped), plus the
	// current user message and the system message.
	if calls[0].Messages != 4 {
		t.Errorf("Messages = %d, want 4", calls[0].Messages)
	}
	if calls[0].UserText != "follow-up question" {
		t.Errorf("UserText = %q, want the current question", calls[0].UserText)
	}
}

func TestHistoryMessages(t *testing.T) {
	turns := []note.Turn{
		{Speaker: note.SpeakerUser, Text: "q1"},
		{Speaker: note.SpeakerAssistant, Text: "a1"},
		{Speaker: note.SpeakerAssistant, Text: "boom", IsError: true},
		{Speaker: note.SpeakerUser, Text: "q2"},
	}

	msgs := historyMessages(turns)
	if len(msgs) != 3 {
		t.Fatalf("historyMessages() returned %d messages, want 3", len(msgs))
	}
	wantRoles := []ai.Role{ai.RoleUser, ai.RoleModel, ai.RoleUser}
	wantTexts := []string{"q1", "a1", "q2"}
	for i, msg := range msgs {
		if msg.Role != wantRoles[i] {
			t.Errorf("message %d role = %q, want %q", i, msg.Role, wantRoles[i])
		}
		if msg.Text() != wantTexts[i] {
			t.Errorf("message %d text = %q, want %q", i, msg.Text(), wantTexts[i])
		}
	}

	if got := historyMessages(nil); got != nil {
		t.Errorf("historyMessages(nil) = %v, want nil", got)
	}
}

func TestExtractCitations(t *testing.T) {
	t.Run("grounded response", func(t *testing.T) {
		resp := &ai.ModelResponse{
			Custom: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					GroundingMetadata: &genai.GroundingMetadata{
						GroundingChunks: []*genai.GroundingChunk{
							{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "A"}},
							{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "dup"}},
							{Web: &genai.GroundingChunkWeb{URI: "https://b.example"}},
							{},
						},
					},
				}},
			},
		}
		got := extractCitations(resp)
		if len(got) != 2 {
			t.Fatalf("extractCitations() returned %d citations, want 2", len(got))
		}
		if got[0].URI != "https://a.example" || got[0].Title != "A" {
			t.Errorf("citation 0 = %+v", got[0])
		}
		if got[1].URI != "https://b.example" {
			t.Errorf("citation 1 = %+v", got[1])
		}
	})

	t.Run("no custom payload", func(t *testing.T) {
		if got := extractCitations(&ai.ModelResponse{}); got != nil {
			t.Errorf("extractCitations() = %v, want nil", got)
		}
	})

	t.Run("foreign custom payload", func(t *testing.T) {
		if got := extractCitations(&ai.ModelResponse{Custom: "something else"}); got != nil {
			t.Errorf("extractCitations() = %v, want nil", got)
		}
	})
}

func TestSpecFor_UnknownModeFallsBack(t *testing.T) {
	got := specFor(note.Mode("from-the-future"))
	want := modeSpecs[note.ModeStructured]
	if got.system != want.system || got.model != want.model {
		t.Errorf("specFor(unknown) = %+v, want structured defaults", got)
	}
}
