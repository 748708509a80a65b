package api

import (
	"encoding/json"
	"strings"
)

// ADFNode is one node of an Atlassian Document Format tree. Leaves carry
// Text; every other node only structures its Content.
type ADFNode struct {
	Version int            `json:"version,omitempty"`
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Content []ADFNode      `json:"content,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// PlainTextDocument wraps text in a doc node with one paragraph per line
func PlainTextDocument(text string) *ADFNode {
	doc := &ADFNode{Version: 1, Type: "doc", Content: []ADFNode{}}
	for _, line := range strings.Split(text, "\n") {
		paragraph := ADFNode{Type: "paragraph"}
		if line != "" {
			paragraph.Content = []ADFNode{{Type: "text", Text: line}}
		}
		doc.Content = append(doc.Content, paragraph)
	}
	return doc
}

// ExtractText flattens a description into plain text. Strings are returned
// unchanged, nil yields "", and documents are walked depth-first with child
// text concatenated in order and no separator. Malformed nodes contribute
// nothing; ExtractText never fails.
func ExtractText(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(n, &decoded); err != nil {
			return ""
		}
		return ExtractText(decoded)
	case ADFNode:
		return extractADF(&n)
	case *ADFNode:
		return extractADF(n)
	case map[string]any:
		return extractMap(n)
	case []any:
		return extractChildren(n)
	default:
		return ""
	}
}

func extractMap(node map[string]any) string {
	if text, ok := node["text"].(string); ok {
		return text
	}
	children, ok := node["content"].([]any)
	if !ok {
		return ""
	}
	return extractChildren(children)
}

func extractChildren(children []any) string {
	var sb strings.Builder
	for _, child := range children {
		if m, ok := child.(map[string]any); ok {
			sb.WriteString(extractMap(m))
		}
	}
	return sb.String()
}

func extractADF(node *ADFNode) string {
	if node == nil {
		return ""
	}
	if node.Text != "" {
		return node.Text
	}
	var sb strings.Builder
	for i := range node.Content {
		sb.WriteString(extractADF(&node.Content[i]))
	}
	return sb.String()
}
