package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// VisibleText parses input as HTML and returns the document title and the
// concatenated text of every text node, skipping script, style, noscript and
// template content. Whitespace is preserved as found in the markup.
func VisibleText(input []byte) (title, text string) {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return "", ""
	}
	var b strings.Builder
	collectText(&b, node)
	return strings.TrimSpace(findTitle(node)), b.String()
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "template":
			return
		}
	case html.TextNode:
		b.WriteString(n.Data)
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

func findTitle(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findFirst(c, tag); res != nil {
			return res
		}
	}
	return nil
}

// Collapse removes every whitespace rune and joins what is left with no
// separator, so "你好 世界\n abc" becomes "你好世界abc".
//
// TODO: words in space-delimited scripts run together; switch to a single
// space join once downstream consumers stop depending on the unbroken form.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// CountCJK counts code points in the CJK Unified Ideographs block (U+4E00-U+9FFF).
func CountCJK(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			n++
		}
	}
	return n
}
