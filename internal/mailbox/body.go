package mailbox

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractText flattens an HTML email body into plain text, one line per
// block element, so the key-value parser sees the same shape as a plain
// text message.
func ExtractText(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return strings.TrimSpace(rawHTML)
	}

	var sb strings.Builder
	walkText(root, &sb)
	return strings.TrimSpace(collapseBlankLines(sb.String()))
}

func walkText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "head":
			return
		case "br":
			sb.WriteString("\n")
			return
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walkText(child, sb)
	}

	if n.Type == html.ElementNode && isBlockElement(n.Data) {
		sb.WriteString("\n")
	}
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "table":
		return true
	}
	return false
}

func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
