package markup

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Segment
	}{
		{
			name:    "empty content",
			content: "",
			want:    nil,
		},
		{
			name:    "whitespace only",
			content: "   \n\t",
			want:    nil,
		},
		{
			name:    "bare text without markup",
			content: "just words",
			want:    []Segment{{Text: "just words"}},
		},
		{
			name:    "paragraphs fold to newlines",
			content: "<p>Meeting notes</p><p>Action: ship it</p>",
			want:    []Segment{{Text: "Meeting notes\nAction: ship it"}},
		},
		{
			name:    "headings and list items fold to newlines",
			content: "<h1>Title</h1><ul><li>alpha</li><li>beta</li></ul>",
			want:    []Segment{{Text: "Title\nalpha\nbeta"}},
		},
		{
			name:    "br and hr fold to newlines",
			content: "line one<br>line two<hr>line three",
			want:    []Segment{{Text: "line one\nline two\nline three"}},
		},
		{
			name:    "table rows fold to newlines",
			content: "<table><tr><td>a</td></tr><tr><td>b</td></tr></table>",
			want:    []Segment{{Text: "a\nb"}},
		},
		{
			name:    "link appends href after its text",
			content: `<p>see <a href="https://example.com">docs</a> now</p>`,
			want:    []Segment{{Text: "see docs (https://example.com) now"}},
		},
		{
			name:    "data url image splits the text run",
			content: `<p>before</p><img src="data:image/png;base64,aGk="><p>after</p>`,
			want: []Segment{
				{Text: "before"},
				{Data: []byte("hi"), MIME: "image/png"},
				{Text: "after"},
			},
		},
		{
			name:    "remote image is skipped without splitting the run",
			content: `<p>a</p><img src="https://example.com/x.png"><p>b</p>`,
			want:    []Segment{{Text: "a\nb"}},
		},
		{
			name:    "invalid base64 payload is skipped",
			content: `<p>a</p><img src="data:image/png;base64,!!!"><p>b</p>`,
			want:    []Segment{{Text: "a\nb"}},
		},
		{
			name:    "whitespace-only markup yields nothing",
			content: "<p>   </p><p> </p>",
			want:    nil,
		},
		{
			name:    "inline formatting accumulates into one run",
			content: "<p>The <b>quick</b> brown <i>fox</i></p>",
			want:    []Segment{{Text: "The quick brown fox"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Flatten(tt.content)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Flatten() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlatten_ImageOrdering(t *testing.T) {
	content := `<img src="data:image/png;base64,YQ=="><p>middle</p><img src="data:image/jpeg;base64,Yg==">`

	got := Flatten(content)

	want := []Segment{
		{Data: []byte("a"), MIME: "image/png"},
		{Text: "middle"},
		{Data: []byte("b"), MIME: "image/jpeg"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Flatten() mismatch (-want +got):\n%s", diff)
	}
	if got[0].IsBinary() != true || got[1].IsBinary() != false {
		t.Error("IsBinary() misclassified segments")
	}
}

func TestSearchTokens(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "lowercases and splits", query: "Hello World", want: []string{"hello", "world"}},
		{name: "drops single-rune tokens", query: " a bb c dd ", want: []string{"bb", "dd"}},
		{name: "empty query", query: "", want: []string{}},
		{name: "whitespace query", query: "   ", want: []string{}},
		{name: "multibyte runes count as runes", query: "紀錄 本", want: []string{"紀錄"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchTokens(tt.query)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SearchTokens() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyHighlight(t *testing.T) {
	tests := []struct {
		name    string
		content string
		query   string
		want    string
	}{
		{
			name:    "wraps a basic match",
			content: "<p>hello world</p>",
			query:   "world",
			want:    `<p>hello <mark data-search-hit="">world</mark></p>`,
		},
		{
			name:    "matches case-insensitively, preserves original case",
			content: "<p>Hello World</p>",
			query:   "world",
			want:    `<p>Hello <mark data-search-hit="">World</mark></p>`,
		},
		{
			name:    "wraps every occurrence",
			content: "<p>go go go</p>",
			query:   "go",
			want:    `<p><mark data-search-hit="">go</mark> <mark data-search-hit="">go</mark> <mark data-search-hit="">go</mark></p>`,
		},
		{
			name:    "earliest position wins over token order",
			content: "<p>abcd</p>",
			query:   "cd ab",
			want:    `<p><mark data-search-hit="">ab</mark><mark data-search-hit="">cd</mark></p>`,
		},
		{
			name:    "position tie resolves to earlier token",
			content: "<p>abc</p>",
			query:   "ab abc",
			want:    `<p><mark data-search-hit="">ab</mark>c</p>`,
		},
		{
			name:    "match inside nested inline element",
			content: "<p><b>bold term</b></p>",
			query:   "term",
			want:    `<p><b>bold <mark data-search-hit="">term</mark></b></p>`,
		},
		{
			name:    "single-rune tokens are ignored",
			content: "<p>a world</p>",
			query:   "a world",
			want:    `<p>a <mark data-search-hit="">world</mark></p>`,
		},
		{
			name:    "no eligible tokens leaves content unchanged",
			content: "<p class='odd-quotes'>hi</p>",
			query:   "a b c",
			want:    "<p class='odd-quotes'>hi</p>",
		},
		{
			name:    "no match leaves content byte-identical",
			content: "<p class='odd-quotes'>hi</p>",
			query:   "zzz",
			want:    "<p class='odd-quotes'>hi</p>",
		},
		{
			name:    "empty query is a no-op",
			content: "<p>hello</p>",
			query:   "",
			want:    "<p>hello</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyHighlight(tt.content, tt.query)
			if got != tt.want {
				t.Errorf("ApplyHighlight() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyHighlight_NeverRewrapsInsideHighlight(t *testing.T) {
	content := "<p>term and term</p>"

	once := ApplyHighlight(content, "term")
	twice := ApplyHighlight(once, "term")

	if once != twice {
		t.Errorf("second apply must be a no-op:\nonce:  %q\ntwice: %q", once, twice)
	}
	if got := strings.Count(twice, "<mark"); got != 2 {
		t.Errorf("expected 2 overlay elements, got %d in %q", got, twice)
	}
}

func TestStripHighlight_LeftInverseOfApply(t *testing.T) {
	// Fragments in render-normal form so the round trip is byte-exact.
	corpus := []string{
		"<p>hello world</p>",
		"<p>The <b>quick</b> brown fox</p>",
		"<h1>Title</h1><p>body text here</p>",
		"<ul><li>alpha</li><li>beta</li></ul>",
		"<p>data and more data</p>",
	}
	queries := []string{"world", "quick brown", "data", "alpha beta", "title body", "zzz", ""}

	for _, content := range corpus {
		for _, query := range queries {
			highlighted := ApplyHighlight(content, query)
			restored := StripHighlight(highlighted)
			if restored != content {
				t.Errorf("strip(apply(%q, %q)) = %q, want original", content, query, restored)
			}
		}
	}
}

func TestStripHighlight(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unwraps overlay element",
			content: `<p>hello <mark data-search-hit="">world</mark></p>`,
			want:    "<p>hello world</p>",
		},
		{
			name:    "unwraps valueless attribute form",
			content: `<p><mark data-search-hit>term</mark></p>`,
			want:    "<p>term</p>",
		},
		{
			name:    "plain mark without the attribute survives",
			content: "<p><mark>kept</mark></p>",
			want:    "<p><mark>kept</mark></p>",
		},
		{
			name:    "no overlay leaves content byte-identical",
			content: "<p class='odd-quotes'>hi</p>",
			want:    "<p class='odd-quotes'>hi</p>",
		},
		{
			name:    "attribute name as literal text is not an overlay",
			content: "<p>data-search-hit is an attribute</p>",
			want:    "<p>data-search-hit is an attribute</p>",
		},
		{
			name:    "empty content",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripHighlight(tt.content)
			if got != tt.want {
				t.Errorf("StripHighlight() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripHighlight_Idempotent(t *testing.T) {
	highlighted := ApplyHighlight("<p>some text to find</p>", "find")

	once := StripHighlight(highlighted)
	twice := StripHighlight(once)

	if once != twice {
		t.Errorf("strip must be idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "strips tags", content: "<p>hello <b>world</b></p>", want: "hello world"},
		{name: "bare text passes through", content: "no tags", want: "no tags"},
		{name: "heading text", content: "<h1>Title</h1>", want: "Title"},
		{name: "empty", content: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.content); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}
