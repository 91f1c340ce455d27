package testutil

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func modelText(t *testing.T, resp *ai.ModelResponse) string {
	t.Helper()
	if resp == nil || resp.Message == nil {
		t.Fatal("nil model response")
	}
	return resp.Message.Text()
}

func TestMockModel_PatternMatching(t *testing.T) {
	mock := NewMockModel("fallback")
	mock.AddResponse("summary", "the summary")
	mock.AddResponse("sum", "never reached")

	tests := []struct {
		name string
		text string
		want string
	}{
		{"first registered match wins", "please write a SUMMARY", "the summary"},
		{"no match returns fallback", "unrelated question", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := mock.generate(context.Background(), &ai.ModelRequest{
				Messages: []*ai.Message{ai.NewUserMessage(ai.NewTextPart(tt.text))},
			}, nil)
			if err != nil {
				t.Fatalf("generate() error = %v", err)
			}
			if got := modelText(t, resp); got != tt.want {
				t.Errorf("generate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMockModel_RecordsCalls(t *testing.T) {
	mock := NewMockModel("ok")

	req := &ai.ModelRequest{
		Messages: []*ai.Message{
			{Role: ai.RoleSystem, Content: []*ai.Part{ai.NewTextPart("be brief")}},
			ai.NewUserMessage(
				ai.NewTextPart("look at this"),
				ai.NewMediaPart("image/png", "data:image/png;base64,AA=="),
			),
		},
	}
	if _, err := mock.generate(context.Background(), req, nil); err != nil {
		t.Fatalf("generate() error = %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("Calls() recorded %d calls, want 1", len(calls))
	}
	call := calls[0]
	if call.UserText != "look at this" {
		t.Errorf("UserText = %q, want %q", call.UserText, "look at this")
	}
	if call.System != "be brief" {
		t.Errorf("System = %q, want %q", call.System, "be brief")
	}
	if len(call.MediaTypes) != 1 || call.MediaTypes[0] != "image/png" {
		t.Errorf("MediaTypes = %v, want [image/png]", call.MediaTypes)
	}
	if call.Messages != 2 {
		t.Errorf("Messages = %d, want 2", call.Messages)
	}

	mock.Reset()
	if got := len(mock.Calls()); got != 0 {
		t.Errorf("Calls() after Reset() = %d, want 0", got)
	}
}
