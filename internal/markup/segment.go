package markup

import (
	"encoding/base64"
	"strings"

	"golang.org/x/net/html"
)

// Segment is one unit of flattened note content, in document order.
// Exactly one of Text or Data is set.
type Segment struct {
	Text string // text run, block boundaries folded to newlines
	Data []byte // decoded inline binary payload
	MIME string // media type of Data
}

// IsBinary reports whether the segment carries an inline binary payload.
func (s Segment) IsBinary() bool { return s.Data != nil }

// blockTags are elements whose end folds to a newline in flattened text.
var blockTags = map[string]bool{
	"p": true, "div": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "blockquote": true, "pre": true, "tr": true,
}

// Flatten converts an HTML fragment into ordered segments: accumulated text
// runs interleaved with inline binary payloads decoded from data-URL images.
//
// Rules:
//   - adjacent text accumulates into one run; block boundaries append "\n"
//   - an <img> with a base64 data URL flushes the run and emits a binary segment
//   - an <a href> contributes its link text followed by " (href)"
//   - whitespace-only runs are dropped
//   - unrecognized or malformed nodes are skipped, never fatal
//
// If the fragment cannot be parsed at all, the raw input is returned as a
// single text run so no content is ever silently lost.
func Flatten(content string) []Segment {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return []Segment{{Text: content}}
	}

	f := &flattener{}
	f.walk(doc)
	f.flush()
	return f.segments
}

type flattener struct {
	segments []Segment
	run      strings.Builder
}

func (f *flattener) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		f.run.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "img":
			if data, mediaType, ok := decodeDataURL(attrVal(n, "src")); ok {
				f.flush()
				f.segments = append(f.segments, Segment{Data: data, MIME: mediaType})
			}
			return
		case "br", "hr":
			f.run.WriteString("\n")
			return
		case "script", "style":
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		f.walk(c)
	}

	if n.Type == html.ElementNode {
		if href := attrVal(n, "href"); n.Data == "a" && href != "" {
			f.run.WriteString(" (" + href + ")")
		}
		if blockTags[n.Data] {
			f.run.WriteString("\n")
		}
	}
}

// flush emits the accumulated text as a segment unless it is whitespace-only.
func (f *flattener) flush() {
	text := strings.TrimSpace(f.run.String())
	f.run.Reset()
	if text == "" {
		return
	}
	f.segments = append(f.segments, Segment{Text: text})
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// decodeDataURL decodes a base64 data URL of the form
// "data:<mime>;base64,<payload>". Anything else reports ok=false.
func decodeDataURL(src string) (data []byte, mediaType string, ok bool) {
	rest, found := strings.CutPrefix(src, "data:")
	if !found {
		return nil, "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return nil, "", false
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 || mediaType == "" {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", false
	}
	return data, mediaType, true
}
