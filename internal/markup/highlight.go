package markup

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// highlightAttr marks the transient overlay elements ApplyHighlight inserts.
// Content at rest must never contain it.
const highlightAttr = "data-search-hit"

// minTokenRunes is the shortest query token that triggers highlighting.
// Single-character tokens produce too much noise to be useful.
const minTokenRunes = 2

// SearchTokens splits a query into lowercase tokens eligible for matching:
// whitespace-separated, at least minTokenRunes runes long.
func SearchTokens(query string) []string {
	fields := strings.Fields(query)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenRunes {
			continue
		}
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

// ApplyHighlight wraps query matches in the fragment with
// <mark data-search-hit> overlay elements.
//
// Matching is case-insensitive substring search within each text run, in
// document order. Overlapping candidates resolve deterministically: the
// earliest match position wins, ties go to the earlier token in the query.
// A wrapped region is never rescanned, so highlights do not nest, and text
// already inside an overlay is left alone. Matches do not cross element
// boundaries.
//
// Queries with no eligible tokens, and fragments without any match, are
// returned unchanged.
func ApplyHighlight(content, query string) string {
	tokens := SearchTokens(query)
	if len(tokens) == 0 || content == "" {
		return content
	}

	body, err := parseBody(content)
	if err != nil || body == nil {
		return content
	}

	if !highlightTree(body, tokens) {
		return content
	}
	return renderBody(body)
}

// StripHighlight removes every overlay element inserted by ApplyHighlight,
// splicing its children back in place. It is a left inverse of ApplyHighlight
// and idempotent; content without overlays is returned unchanged.
func StripHighlight(content string) string {
	if content == "" || !strings.Contains(content, highlightAttr) {
		return content
	}

	body, err := parseBody(content)
	if err != nil || body == nil {
		return content
	}

	if !stripTree(body) {
		return content
	}
	return renderBody(body)
}

// parseBody parses an HTML fragment and returns the body node of the
// resulting document.
func parseBody(content string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	return findBody(doc), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// renderBody serializes the children of body back into a fragment.
func renderBody(body *html.Node) string {
	var sb strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return sb.String()
		}
	}
	return sb.String()
}

func isHighlight(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "mark" {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == highlightAttr {
			return true
		}
	}
	return false
}

// highlightTree wraps matches under root and reports whether anything changed.
func highlightTree(root *html.Node, tokens []string) bool {
	// Collect candidates first; wrapping mutates the sibling chain.
	var textNodes []*html.Node
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		if isHighlight(n) {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			textNodes = append(textNodes, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(root)

	changed := false
	for _, tn := range textNodes {
		if highlightTextNode(tn, tokens) {
			changed = true
		}
	}
	return changed
}

// highlightTextNode splits one text node around its matches and wraps each
// match in an overlay element. Reports whether a match was found.
func highlightTextNode(tn *html.Node, tokens []string) bool {
	text := []rune(tn.Data)
	// Lowercase rune by rune so offsets into the original text stay exact.
	lower := make([]rune, len(text))
	for i, r := range text {
		lower[i] = unicode.ToLower(r)
	}

	lowTokens := make([][]rune, len(tokens))
	for i, tok := range tokens {
		lowTokens[i] = []rune(tok)
	}

	parent := tn.Parent
	pos := 0
	matched := false
	for pos < len(text) {
		start, tokLen := nextMatch(lower, lowTokens, pos)
		if start < 0 {
			break
		}
		matched = true

		if start > pos {
			parent.InsertBefore(textNode(string(text[pos:start])), tn)
		}
		mark := &html.Node{
			Type: html.ElementNode,
			Data: "mark",
			Attr: []html.Attribute{{Key: highlightAttr}},
		}
		mark.AppendChild(textNode(string(text[start : start+tokLen])))
		parent.InsertBefore(mark, tn)

		pos = start + tokLen
	}

	if !matched {
		return false
	}
	if pos < len(text) {
		parent.InsertBefore(textNode(string(text[pos:])), tn)
	}
	parent.RemoveChild(tn)
	return true
}

// nextMatch finds the earliest token match at or after from. Ties on position
// resolve to the earlier token. Returns start -1 when nothing matches.
func nextMatch(lower []rune, tokens [][]rune, from int) (start, tokLen int) {
	start = -1
	for _, tok := range tokens {
		idx := runeIndex(lower, tok, from)
		if idx < 0 {
			continue
		}
		if start < 0 || idx < start {
			start, tokLen = idx, len(tok)
		}
	}
	return start, tokLen
}

// runeIndex is strings.Index over rune slices.
func runeIndex(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		hit := true
		for j, r := range needle {
			if haystack[i+j] != r {
				hit = false
				break
			}
		}
		if hit {
			return i
		}
	}
	return -1
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// stripTree unwraps every overlay element under root and reports whether
// anything changed.
func stripTree(root *html.Node) bool {
	changed := false
	// Unwrapping mutates the sibling chain; capture next before touching c.
	// Descend first so overlays are gone from a subtree before its root is
	// spliced out.
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		if stripTree(c) {
			changed = true
		}
		if isHighlight(c) {
			unwrap(c)
			changed = true
		}
		c = next
	}
	return changed
}

// unwrap splices n's children into its place and removes n.
func unwrap(n *html.Node) {
	parent := n.Parent
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.RemoveChild(n)
}
